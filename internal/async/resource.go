// Package async holds request state for screens that load data from the backend.
package async

import (
	"context"
	"sync"
)

type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "idle"
}

// State is a point-in-time copy of a Resource.
type State[T any] struct {
	Status Status
	Data   T
	Err    error
	// HasData is true once any load succeeded; Data is kept while reloading.
	HasData bool
}

// Fetcher produces a fresh value.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Resource tracks one remotely loaded value. Only the most recent Load may
// publish its outcome; results of superseded loads are discarded.
type Resource[T any] struct {
	fetch Fetcher[T]

	mu    sync.Mutex
	gen   uint64
	state State[T]
}

func NewResource[T any](fetch Fetcher[T]) *Resource[T] {
	return &Resource[T]{fetch: fetch}
}

// Load runs the fetcher and returns the state after it finished. If another
// Load or Set happened in the meantime, the returned state is the newer one
// and this result is dropped.
func (r *Resource[T]) Load(ctx context.Context) State[T] {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.state.Status = Loading
	r.state.Err = nil
	r.mu.Unlock()

	data, err := r.fetch(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen == r.gen {
		r.publish(data, err)
	}
	return r.state
}

// Set stores a value obtained elsewhere, e.g. the reload that follows a save,
// and supersedes any load in flight.
func (r *Resource[T]) Set(data T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.publish(data, nil)
}

func (r *Resource[T]) publish(data T, err error) {
	if err != nil {
		r.state.Status = Failed
		r.state.Err = err
		return
	}
	r.state = State[T]{Status: Ready, Data: data, HasData: true}
}

func (r *Resource[T]) Snapshot() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Reset forgets data and cancels the effect of any in-flight load.
func (r *Resource[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.state = State[T]{}
}
