package wire

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Codec serializes envelopes to and from frames.
// Implementations are stateless and safe for concurrent use.
type Codec interface {
	// Name is the short name used in configuration ("json", "cbor",
	// "deskthing").
	Name() string

	// ContentType is the MIME type of encoded frames.
	ContentType() string

	// Binary reports whether frames are binary rather than text.
	Binary() bool

	// Encode validates and serializes an envelope.
	Encode(env Envelope) ([]byte, error)

	// Decode parses a frame. Failures are *MalformedEnvelopeError.
	Decode(data []byte) (Envelope, error)
}

// Codec names accepted by CodecByName.
const (
	CodecJSON = "json"
	CodecCBOR = "cbor"
)

// record is the shape of an envelope on the wire.
type record struct {
	Kind    string `json:"kind" cbor:"kind"`
	App     string `json:"app" cbor:"app"`
	Type    string `json:"type,omitempty" cbor:"type,omitempty"`
	Request string `json:"request,omitempty" cbor:"request,omitempty"`
	Payload any    `json:"payload,omitempty" cbor:"payload,omitempty"`
}

func toRecord(env Envelope) (record, error) {
	if err := env.Validate(); err != nil {
		return record{}, err
	}
	return record{
		Kind:    env.Kind.String(),
		App:     env.App,
		Type:    env.Type,
		Request: env.Request,
		Payload: env.Payload,
	}, nil
}

func fromRecord(r record) (Envelope, error) {
	kind, err := ParseKind(r.Kind)
	if err != nil {
		reason := "unrecognized discriminator"
		if err == errMissingKind {
			reason = "missing discriminator"
		}
		return Envelope{}, &MalformedEnvelopeError{Reason: reason, Err: err}
	}
	env := Envelope{Kind: kind, App: r.App}
	if kind == KindApplication {
		env.Type = r.Type
		env.Request = r.Request
		env.Payload = r.Payload
	}
	return env, nil
}

// cborEncMode is the CBOR encoder mode for envelopes.
var cborEncMode cbor.EncMode

// cborDecMode is the CBOR decoder mode for envelopes.
var cborDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	cborEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Untyped maps decode with string keys so payloads look the same
	// whichever codec carried them.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		DefaultMapType:    reflect.TypeOf(map[string]any(nil)),
	}
	cborDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

type jsonCodec struct{}

// JSON returns the JSON codec.
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) Name() string        { return CodecJSON }
func (jsonCodec) ContentType() string { return "application/json" }
func (jsonCodec) Binary() bool        { return false }

func (jsonCodec) Encode(env Envelope) ([]byte, error) {
	r, err := toRecord(env)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

func (jsonCodec) Decode(data []byte) (Envelope, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Envelope{}, &MalformedEnvelopeError{Reason: "invalid JSON record", Err: err}
	}
	return fromRecord(r)
}

type cborCodec struct{}

// CBOR returns the CBOR codec.
func CBOR() Codec { return cborCodec{} }

func (cborCodec) Name() string        { return CodecCBOR }
func (cborCodec) ContentType() string { return "application/cbor" }
func (cborCodec) Binary() bool        { return true }

func (cborCodec) Encode(env Envelope) ([]byte, error) {
	r, err := toRecord(env)
	if err != nil {
		return nil, err
	}
	data, err := cborEncMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

func (cborCodec) Decode(data []byte) (Envelope, error) {
	var r record
	if err := cborDecMode.Unmarshal(data, &r); err != nil {
		return Envelope{}, &MalformedEnvelopeError{Reason: "invalid CBOR record", Err: err}
	}
	return fromRecord(r)
}

// CodecByName returns the codec registered under name.
// An empty name selects the default JSON codec.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", CodecJSON:
		return JSON(), nil
	case CodecCBOR:
		return CBOR(), nil
	case CodecDeskThing:
		return DeskThing(), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// Default is the codec used by Encode and Decode.
var Default = JSON()

// Encode serializes env with the default codec.
func Encode(env Envelope) ([]byte, error) {
	return Default.Encode(env)
}

// Decode parses data with the default codec.
func Decode(data []byte) (Envelope, error) {
	return Default.Decode(data)
}

// Compile-time interface satisfaction checks.
var (
	_ Codec = jsonCodec{}
	_ Codec = cborCodec{}
	_ Codec = deskthingCodec{}
)
