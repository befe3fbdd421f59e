package substrate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type (
	// Waiter implements the bounded trigger/poll discipline used whenever a
	// component must observe a key that may not yet have replicated: trigger
	// an external sync, sleep a fixed short interval, re-check, until found
	// or the attempt budget is exhausted
	Waiter struct {
		sub      Interface
		syncer   Syncer
		interval time.Duration
		attempts int
	}

	// TimeoutError names the missing key and the number of attempts made.
	// It is distinguished from execution failures: the artifact may simply
	// not have replicated yet
	TimeoutError struct {
		Key      string
		Attempts int
	}
)

// ErrSyncTimeout is the sentinel all TimeoutErrors unwrap to
var ErrSyncTimeout = errors.New("sync wait timed out")

func (e *TimeoutError) Error() string {
	return fmt.Sprintf(
		"%s: %s not found after %d attempts", ErrSyncTimeout, e.Key, e.Attempts,
	)
}

func (e *TimeoutError) Unwrap() error {
	return ErrSyncTimeout
}

// NewWaiter creates a Waiter polling every interval, at most attempts times
func NewWaiter(
	sub Interface, syncer Syncer, interval time.Duration, attempts int,
) *Waiter {
	if syncer == nil {
		syncer = NopSyncer
	}
	return &Waiter{
		sub:      sub,
		syncer:   syncer,
		interval: interval,
		attempts: attempts,
	}
}

// Wait polls until the key exists, returning its contents. Every wait is
// bounded: the caller receives a TimeoutError naming the key rather than
// blocking indefinitely
func (w *Waiter) Wait(ctx context.Context, key string) ([]byte, error) {
	if err := w.WaitExists(ctx, key); err != nil {
		return nil, err
	}
	return w.sub.ReadAll(ctx, key)
}

// WaitExists polls until the key exists
func (w *Waiter) WaitExists(ctx context.Context, key string) error {
	return w.WaitFor(ctx, key, func(ctx context.Context) (bool, error) {
		return w.sub.Exists(ctx, key)
	})
}

// WaitFor polls an arbitrary condition with the same trigger/poll/backoff
// discipline. The name identifies what was being waited on in the timeout
// error
func (w *Waiter) WaitFor(
	ctx context.Context, name string,
	cond func(context.Context) (bool, error),
) error {
	for attempt := 1; attempt <= w.attempts; attempt++ {
		if err := w.syncer.TriggerSync(ctx); err != nil {
			return err
		}
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if attempt == w.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.interval):
		}
	}
	return &TimeoutError{Key: name, Attempts: w.attempts}
}
