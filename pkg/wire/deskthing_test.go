package wire

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeskThingDecodeServerMessages(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Envelope
	}{
		{
			name:  "server ping",
			input: `{"app":"server","type":"ping"}`,
			want:  Probe("server"),
		},
		{
			name:  "server pong",
			input: `{"app":"server","type":"pong"}`,
			want:  ProbeResponse("server"),
		},
		{
			name:  "ping payload dropped",
			input: `{"app":"server","type":"ping","payload":{"x":1}}`,
			want:  Probe("server"),
		},
		{
			name:  "song update",
			input: `{"app":"music","type":"song","payload":{"track_name":"So What","is_playing":true}}`,
			want: Application("music", "song", map[string]any{
				"track_name": "So What",
				"is_playing": true,
			}),
		},
		{
			name:  "request with unknown fields",
			input: `{"app":"client","type":"get","request":"settings","extra":1}`,
			want:  Envelope{Kind: KindApplication, App: "client", Type: "get", Request: "settings"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeskThing().Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeskThingEncodeMatchesServerFormat(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want string
	}{
		{name: "probe", env: Probe("server"), want: `{"app":"server","type":"ping"}`},
		{name: "probe response", env: ProbeResponse("server"), want: `{"app":"server","type":"pong"}`},
		{
			name: "application",
			env:  Envelope{Kind: KindApplication, App: "spotify", Type: "set", Request: "play", Payload: "abc"},
			want: `{"app":"spotify","type":"set","request":"play","payload":"abc"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := DeskThing().Encode(tt.env)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var fields map[string]any
			require.NoError(t, json.Unmarshal(data, &fields))
			assert.NotContains(t, fields, "kind")
		})
	}
}

func TestDeskThingRoundTrip(t *testing.T) {
	envelopes := []Envelope{
		Probe("server"),
		ProbeResponse("server"),
		Application("music", "song", nil),
		{
			Kind:    KindApplication,
			App:     "weather",
			Type:    "data",
			Request: "forecast",
			Payload: map[string]any{"temp": float64(21), "units": "C"},
		},
	}

	for _, env := range envelopes {
		t.Run(env.Kind.String()+"/"+env.Type, func(t *testing.T) {
			data, err := DeskThing().Encode(env)
			require.NoError(t, err)

			got, err := DeskThing().Decode(data)
			require.NoError(t, err)
			assert.Equal(t, env, got)
		})
	}
}

func TestDeskThingEncodeRejects(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
	}{
		{name: "zero kind", env: Envelope{App: "server"}},
		{name: "application without type", env: Application("music", "", nil)},
		{name: "application ping", env: Application("music", TypePing, nil)},
		{name: "application pong", env: Application("music", TypePong, nil)},
		{name: "probe with payload", env: Envelope{Kind: KindProbe, Payload: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeskThing().Encode(tt.env)
			assert.ErrorIs(t, err, ErrInvalidEnvelope)
		})
	}
}

func TestDeskThingDecodeMalformed(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{name: "not JSON", input: "ping", reason: "invalid JSON record"},
		{name: "array", input: `["ping"]`, reason: "invalid JSON record"},
		{name: "missing type", input: `{"app":"server"}`, reason: "missing discriminator"},
		{name: "null", input: `null`, reason: "missing discriminator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeskThing().Decode([]byte(tt.input))
			assert.ErrorIs(t, err, ErrMalformedEnvelope)

			var malformed *MalformedEnvelopeError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tt.reason, malformed.Reason)
		})
	}
}
