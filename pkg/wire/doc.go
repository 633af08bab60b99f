// Package wire defines the envelope exchanged with the DeskThing server.
//
// Every unit of data on the channel is exactly one Envelope. The kind
// discriminator separates liveness traffic from application traffic:
//   - probe: a liveness probe, answered with a probe-response
//   - probe-response: the answer to a probe
//   - application: an application message fanned out to listeners
//
// # Codecs
//
// Two codecs are provided. JSON is the default and matches the format the
// desktop server speaks. CBOR carries the same record with text keys and is
// used where a compact binary frame is preferred.
//
//	data, err := wire.Encode(wire.Application("music", "song", payload))
//	env, err := wire.Decode(data)
//
// # Malformed input
//
// Decode returns a *MalformedEnvelopeError for input that is not a
// structured record or lacks a known discriminator. Callers treat it as a
// per-message error.
package wire
