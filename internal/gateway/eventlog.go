package gateway

import "context"

// EventLog is the append-only downstream the outbox relay drains into.
type EventLog interface {
	// Append publishes payload under stream, returning an opaque id the
	// event log assigned to it (used only for logging/diagnostics).
	Append(ctx context.Context, stream string, payload []byte) (id string, err error)
}
