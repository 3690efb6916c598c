package stores

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// LoadFunc loads a single record from the backend.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Single mirrors a single server-owned record (wallet balance, weather,
// profile snapshot). Same fetch ordering rules as Collection.
type Single[T any] struct {
	name string
	load LoadFunc[T]
	log  zerolog.Logger

	mu      sync.Mutex
	value   T
	present bool
	loading bool
	err     string

	generation uint64
	applied    uint64
}

// SingleOption configures a Single.
type SingleOption[T any] func(*Single[T])

// WithSingleLogger sets the store logger.
func WithSingleLogger[T any](log zerolog.Logger) SingleOption[T] {
	return func(s *Single[T]) {
		s.log = log
	}
}

// NewSingle creates a single-record store.
func NewSingle[T any](name string, load LoadFunc[T], options ...SingleOption[T]) *Single[T] {
	s := &Single[T]{name: name, load: load, log: zerolog.Nop()}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Fetch replaces the record with the backend's copy, with the same stale
// and cancellation handling as Collection.Fetch.
func (s *Single[T]) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.loading = true
	s.err = ""
	s.mu.Unlock()

	value, err := s.load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		if gen == s.generation {
			s.loading = false
		}
		return ctx.Err()
	}
	if gen <= s.applied {
		s.log.Debug().Str("store", s.name).Msg("discarding stale fetch result")
		if gen == s.generation {
			s.loading = false
		}
		return nil
	}
	if err != nil {
		if gen == s.generation {
			s.loading = false
			s.err = err.Error()
		}
		return errors.Wrapf(err, "[%s.Fetch]", s.name)
	}

	s.value = value
	s.present = true
	s.applied = gen
	if gen == s.generation {
		s.loading = false
	}
	return nil
}

// Get returns the cached record and whether one is present.
func (s *Single[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.present
}

// Set replaces the cached record locally, used after a confirmed write.
func (s *Single[T]) Set(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	s.present = true
}

// Loading reports whether a fetch is in flight.
func (s *Single[T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Error returns the last recorded failure message, or "".
func (s *Single[T]) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Reset clears the record and all flags.
func (s *Single[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.value = zero
	s.present = false
	s.loading = false
	s.err = ""
	s.applied = s.generation
}
