// Package memory is an in-process bus that records what it was given.
package memory

import (
	"context"
	"errors"
	"sync"

	"clm/internal/customer/models"
)

// ErrInjected is the default error returned by injected failures.
var ErrInjected = errors.New("injected bus failure")

type Bus struct {
	mu       sync.Mutex
	events   []models.Event
	failures int
	failErr  error
	calls    int
}

func New() *Bus {
	return &Bus{}
}

// FailNext makes the next n Publish calls return err (ErrInjected when nil).
// A negative n fails every call until FailNext(0, nil).
func (b *Bus) FailNext(n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	b.failures = n
	b.failErr = err
}

func (b *Bus) Publish(ctx context.Context, event *models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.failures != 0 {
		if b.failures > 0 {
			b.failures--
		}
		return b.failErr
	}
	b.events = append(b.events, *event.Clone())
	return nil
}

// Events returns delivered events in order.
func (b *Bus) Events() []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Calls counts Publish invocations, failed ones included.
func (b *Bus) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *Bus) Health(context.Context) error {
	return nil
}
