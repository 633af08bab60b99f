package wire

import (
	"errors"
	"fmt"
)

// Kind discriminates the three envelope variants.
type Kind uint8

const (
	// KindProbe is a liveness probe.
	KindProbe Kind = iota + 1
	// KindProbeResponse answers a probe.
	KindProbeResponse
	// KindApplication carries an application payload.
	KindApplication
)

// Wire names of the kinds.
const (
	KindNameProbe         = "probe"
	KindNameProbeResponse = "probe-response"
	KindNameApplication   = "application"
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindProbe:
		return KindNameProbe
	case KindProbeResponse:
		return KindNameProbeResponse
	case KindApplication:
		return KindNameApplication
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsControl reports whether the kind is liveness traffic.
func (k Kind) IsControl() bool {
	return k == KindProbe || k == KindProbeResponse
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k >= KindProbe && k <= KindApplication
}

// ParseKind maps a wire name to its Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case KindNameProbe:
		return KindProbe, nil
	case KindNameProbeResponse:
		return KindProbeResponse, nil
	case KindNameApplication:
		return KindApplication, nil
	case "":
		return 0, errMissingKind
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvelope, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Envelope is one unit of data on the channel.
type Envelope struct {
	// Kind is the discriminator.
	Kind Kind

	// App tags the source application of the envelope.
	App string

	// Type is the application message type. Empty for probes.
	Type string

	// Request is an optional application sub-request.
	Request string

	// Payload is application-defined. Always nil for probes.
	Payload any
}

// Probe builds a liveness probe tagged with app.
func Probe(app string) Envelope {
	return Envelope{Kind: KindProbe, App: app}
}

// ProbeResponse builds the answer to a probe.
func ProbeResponse(app string) Envelope {
	return Envelope{Kind: KindProbeResponse, App: app}
}

// Application builds an application envelope.
func Application(app, msgType string, payload any) Envelope {
	return Envelope{Kind: KindApplication, App: app, Type: msgType, Payload: payload}
}

// Validate checks that the envelope can be put on the wire.
func (e Envelope) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidEnvelope, e.Kind)
	}
	if e.Kind.IsControl() && (e.Payload != nil || e.Type != "" || e.Request != "") {
		return fmt.Errorf("%w: %s carries no application data", ErrInvalidEnvelope, e.Kind)
	}
	return nil
}

// Envelope errors.
var (
	// ErrInvalidEnvelope is returned when encoding an envelope that breaks
	// the wire contract.
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrMalformedEnvelope matches every *MalformedEnvelopeError.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	errMissingKind = errors.New("missing kind")
	errMissingType = errors.New("missing type")
)

// MalformedEnvelopeError reports inbound data that could not be decoded
// into an Envelope.
type MalformedEnvelopeError struct {
	// Reason is a short description of what was wrong.
	Reason string

	// Err is the underlying decoder error, if any.
	Err error
}

func (e *MalformedEnvelopeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed envelope: %s: %v", e.Reason, e.Err)
	}
	return "malformed envelope: " + e.Reason
}

// Unwrap returns the underlying decoder error.
func (e *MalformedEnvelopeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrMalformedEnvelope.
func (e *MalformedEnvelopeError) Is(target error) bool {
	return target == ErrMalformedEnvelope
}
