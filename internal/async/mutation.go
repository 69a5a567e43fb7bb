package async

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when a mutation is started while another run is pending.
var ErrBusy = errors.New("operation already in progress")

// Mutation wraps a write. Runs never overlap: a second Run while one is
// pending fails fast with ErrBusy instead of queueing a stale write.
type Mutation[A, R any] struct {
	do func(ctx context.Context, arg A) (R, error)

	mu      sync.Mutex
	pending bool
	err     error
}

func NewMutation[A, R any](do func(ctx context.Context, arg A) (R, error)) *Mutation[A, R] {
	return &Mutation[A, R]{do: do}
}

func (m *Mutation[A, R]) Run(ctx context.Context, arg A) (R, error) {
	m.mu.Lock()
	if m.pending {
		m.mu.Unlock()
		var zero R
		return zero, ErrBusy
	}
	m.pending = true
	m.err = nil
	m.mu.Unlock()

	res, err := m.do(ctx, arg)

	m.mu.Lock()
	m.pending = false
	m.err = err
	m.mu.Unlock()
	return res, err
}

func (m *Mutation[A, R]) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Err is the outcome of the last finished run.
func (m *Mutation[A, R]) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}
