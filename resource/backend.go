package resource

import (
	"context"
	"errors"

	"github.com/hupe1980/sampleidx/entry"
	"github.com/hupe1980/sampleidx/store"
)

// ErrMemoryLimitExceeded is returned when a write is larger than the
// memory limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// ThrottledBackend limits the writes of a store.Backend with a Controller.
// Reads pass through.
type ThrottledBackend struct {
	store.Backend
	rc *Controller
}

// Throttle wraps b.
func Throttle(b store.Backend, rc *Controller) *ThrottledBackend {
	return &ThrottledBackend{Backend: b, rc: rc}
}

// Apply waits for a writer slot, reserves the mutation bytes and the IO
// budget, then writes.
func (t *ThrottledBackend) Apply(ctx context.Context, ms []entry.Mutation) error {
	size := MutationBytes(ms)
	if err := t.rc.AcquireBackground(ctx); err != nil {
		return err
	}
	defer t.rc.ReleaseBackground()

	if err := t.rc.AcquireMemory(ctx, int64(size)); err != nil {
		return err
	}
	defer t.rc.ReleaseMemory(int64(size))

	if err := t.rc.AcquireIO(ctx, size); err != nil {
		return err
	}
	return t.Backend.Apply(ctx, ms)
}

// MutationBytes estimates the bytes written by ms: column names and values.
func MutationBytes(ms []entry.Mutation) int {
	n := 0
	for i := range ms {
		for name, v := range ms[i].Put {
			n += len(name) + len(v)
		}
		for _, name := range ms[i].Delete {
			n += len(name)
		}
	}
	return n
}
