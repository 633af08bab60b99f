// Package connection keeps one persistent message channel open to a
// DeskThing server.
//
// A Client owns a single transport session at a time and drives it through
// four states:
//
//	DISCONNECTED ──Connect──▶ CONNECTING ──dial ok──▶ CONNECTED
//	                             ▲   │                    │
//	                       delay │   │ dial failed        │ closed, write error,
//	                     elapsed │   ▼                    │ heartbeat death
//	                        RECONNECT_PENDING ◀───────────┘
//
// Disconnect moves any state to DISCONNECTED and suppresses automatic
// reconnection until the next Connect.
//
// # Reconnection
//
// Entering RECONNECT_PENDING schedules exactly one reconnect timer. The
// delay is fixed (default 5 seconds) and retries continue until Disconnect
// or Close. There is no backoff and no retry cap.
//
// # Epochs
//
// Every connect attempt gets a new epoch. Dial results, read-loop events,
// heartbeat callbacks and the reconnect timer all carry the epoch they were
// created under and are dropped when it is no longer current. Disconnect
// bumps the epoch, so nothing scheduled before it can fire afterwards.
//
// # Traffic
//
// Inbound frames are decoded with the configured wire.Codec. Probe
// responses reset the heartbeat monitor, probes are answered immediately,
// and application envelopes fan out to subscribed listeners in arrival
// order. Send accepts application envelopes only and never queues: while
// not CONNECTED it returns a *NotConnectedError and writes nothing.
package connection
