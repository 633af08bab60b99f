// Package journal stores inbound application envelopes in Postgres.
//
// A Journal is registered on the client as an ordinary listener. Record
// never blocks the read loop: envelopes go into a bounded buffer and are
// dropped, and counted, when it is full. A consumer goroutine batches rows
// and writes them with pgx.Batch when the batch is full or the flush
// interval elapses, whichever comes first.
//
// Schema (created by EnsureSchema):
//
//	id          uuid primary key
//	received_at timestamptz
//	app         text
//	type        text
//	request     text
//	payload     jsonb
package journal
