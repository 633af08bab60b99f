package wire

import (
	"encoding/json"
	"fmt"
)

// CodecDeskThing selects the JSON dialect spoken by DeskThing servers.
const CodecDeskThing = "deskthing"

// Message types that DeskThing servers reserve for liveness traffic.
const (
	TypePing = "ping"
	TypePong = "pong"
)

// deskthingRecord is a DeskThing socket message. It has no kind field;
// the type doubles as the discriminator.
type deskthingRecord struct {
	App     string `json:"app"`
	Type    string `json:"type"`
	Request string `json:"request,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type deskthingCodec struct{}

// DeskThing returns the codec for DeskThing servers. Probes travel as
// {"app":..,"type":"ping"}, probe responses as type "pong", and every
// other type is an application message.
func DeskThing() Codec { return deskthingCodec{} }

func (deskthingCodec) Name() string        { return CodecDeskThing }
func (deskthingCodec) ContentType() string { return "application/json" }
func (deskthingCodec) Binary() bool        { return false }

func (deskthingCodec) Encode(env Envelope) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	r := deskthingRecord{App: env.App}
	switch env.Kind {
	case KindProbe:
		r.Type = TypePing
	case KindProbeResponse:
		r.Type = TypePong
	default:
		if env.Type == "" {
			return nil, fmt.Errorf("%w: application type is required", ErrInvalidEnvelope)
		}
		if env.Type == TypePing || env.Type == TypePong {
			return nil, fmt.Errorf("%w: application type %q is reserved", ErrInvalidEnvelope, env.Type)
		}
		r.Type = env.Type
		r.Request = env.Request
		r.Payload = env.Payload
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

func (deskthingCodec) Decode(data []byte) (Envelope, error) {
	var r deskthingRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return Envelope{}, &MalformedEnvelopeError{Reason: "invalid JSON record", Err: err}
	}

	switch r.Type {
	case "":
		return Envelope{}, &MalformedEnvelopeError{Reason: "missing discriminator", Err: errMissingType}
	case TypePing:
		return Probe(r.App), nil
	case TypePong:
		return ProbeResponse(r.App), nil
	default:
		return Envelope{
			Kind:    KindApplication,
			App:     r.App,
			Type:    r.Type,
			Request: r.Request,
			Payload: r.Payload,
		}, nil
	}
}
