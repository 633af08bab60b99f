// Package protolog captures a machine-readable trace of channel activity.
//
// It is separate from operational logging (slog). Every probe, application
// envelope, state transition and error seen by the client can be recorded as
// an Event and written to a sink:
//
//	// Console, for development
//	opts = append(opts, connection.WithProtocolLogger(protolog.NewSlogAdapter(slog.Default())))
//
//	// Binary file, for later analysis
//	fl, _ := protolog.NewFileLogger("/var/log/deskthing/client.dtlog")
//
//	// Both
//	protolog.NewMultiLogger(protolog.NewSlogAdapter(slog.Default()), fl)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys, usually
// with the .dtlog extension. The deskthing-log tool views and summarizes them.
package protolog
