// Package bus bridges per-instance connection registries into one logical
// messaging fabric. Every instance publishes each persisted envelope to a
// single shared channel and receives every envelope published by any
// instance, its own included.
package bus

import "context"

// Handler is invoked once per envelope received from the shared channel.
type Handler func(payload []byte)

// Bus is the fan-out client every instance runs.
//
// Publish is best-effort: a failed publish is the caller's to log, never to
// retry, and must not fail the originating send since the message is already
// persisted by the time publish is attempted. Subscribe installs a handler
// that runs for the life of the instance.
type Bus interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}
