// Package transport opens frame-oriented sessions to a DeskThing server.
//
// A session is a Conn: ReadFrame, WriteFrame, Close. The connection manager
// never sees sockets directly, so the same state machine runs over any of
// the dialers here:
//
//   - WebSocketDialer for ws:// and wss:// (one message per frame)
//   - StreamDialer for tcp:// and tls:// (4-byte big-endian length prefix)
//   - MemoryDialer for in-process pairs
//
// Mux picks a dialer by address scheme:
//
//	mux := transport.NewDefaultMux(transport.Config{WriteTimeout: 5 * time.Second})
//	conn, err := mux.Dial(ctx, "ws://192.168.7.1:8891")
//
// # Frame Capture
//
// Conns that implement LoggerSetter emit a protolog.Event for every frame
// read or written. Frame data beyond MaxLogFrameDataSize is truncated in the
// event and marked as such.
package transport
