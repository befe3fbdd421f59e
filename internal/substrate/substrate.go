// Package substrate provides the engine's only cross-participant medium: an
// eventually consistent replicated object store with per-key atomic writes,
// plus the trigger/poll/backoff discipline every component uses when waiting
// on an artifact that may not yet have replicated
package substrate

import (
	"context"
	"errors"
)

type (
	// Interface is the engine's view of the sync substrate. Keys are
	// slash-separated paths under per-identity datasite prefixes. Writes are
	// atomic per key: no reader ever observes a partially written object
	Interface interface {
		ReadAll(ctx context.Context, key string) ([]byte, error)
		WriteAll(ctx context.Context, key string, data []byte) error
		Exists(ctx context.Context, key string) (bool, error)
		List(ctx context.Context, prefix string) ([]string, error)
		Delete(ctx context.Context, key string) error
		Close() error
	}

	// Syncer triggers an external replication pass. Implementations may be
	// no-ops when the store replicates on its own
	Syncer interface {
		TriggerSync(ctx context.Context) error
	}

	// SyncerFunc adapts a function to the Syncer interface
	SyncerFunc func(ctx context.Context) error
)

// ErrNotFound is returned when a key does not exist (or has not yet
// replicated to the local view)
var ErrNotFound = errors.New("key not found")

func (f SyncerFunc) TriggerSync(ctx context.Context) error {
	return f(ctx)
}

// NopSyncer is used with substrates that replicate without prompting
var NopSyncer Syncer = SyncerFunc(func(context.Context) error {
	return nil
})
