// Package stores provides the shared cache-plus-operations core every
// feature store is built on: a server-fetched collection with loading and
// error flags, last-write-wins fetch ordering, and tagged optimistic
// mutations with explicit rollback. Client-side copies are a cache, never
// authoritative; a re-fetch is always the ground truth.
package stores

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	apperrors "github.com/agrimandi/agrimandi-go/internal/errors"
)

// FetchFunc loads the collection from the backend.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// IDFunc extracts the server-assigned id of an item.
type IDFunc[T any] func(T) string

type mutationKind int

const (
	mutationAdd mutationKind = iota
	mutationUpdate
	mutationRemove
)

// pendingMutation holds the rollback information for one staged change.
type pendingMutation[T any] struct {
	kind  mutationKind
	id    string
	prior *T
}

// Collection is a mirrored server-owned collection. All methods are safe
// for concurrent use.
type Collection[T any] struct {
	name  string
	fetch FetchFunc[T]
	idOf  IDFunc[T]
	log   zerolog.Logger

	mu      sync.Mutex
	items   []T
	loading bool
	err     string
	pending map[string]pendingMutation[T]

	// generation orders fetches; applied records the newest generation
	// whose result reached the collection, so a stale fetch that
	// finishes late is discarded instead of overwriting newer data.
	generation uint64
	applied    uint64
}

// CollectionOption configures a Collection.
type CollectionOption[T any] func(*Collection[T])

// WithCollectionLogger sets the collection logger.
func WithCollectionLogger[T any](log zerolog.Logger) CollectionOption[T] {
	return func(c *Collection[T]) {
		c.log = log
	}
}

// NewCollection creates a collection store named for logging purposes.
func NewCollection[T any](name string, fetch FetchFunc[T], idOf IDFunc[T], options ...CollectionOption[T]) *Collection[T] {
	c := &Collection[T]{
		name:    name,
		fetch:   fetch,
		idOf:    idOf,
		log:     zerolog.Nop(),
		pending: map[string]pendingMutation[T]{},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Fetch replaces the collection with the backend's copy. Failures are
// recorded in the error flag and leave cached data in place; a stale
// result (superseded by a later-started fetch) is discarded. The error
// return mirrors the flag for callers that want it, but nothing is
// thrown past this method.
func (c *Collection[T]) Fetch(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.loading = true
	c.err = ""
	c.mu.Unlock()

	items, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Result of a call whose originating context is gone must not be
	// applied.
	if ctx.Err() != nil {
		if gen == c.generation {
			c.loading = false
		}
		return ctx.Err()
	}

	if gen <= c.applied {
		// A later-started fetch already finished; this result is stale.
		c.log.Debug().Str("store", c.name).Msg("discarding stale fetch result")
		if gen == c.generation {
			c.loading = false
		}
		return errors.Wrapf(apperrors.ErrStaleFetch, "[%s.Fetch]", c.name)
	}

	if err != nil {
		if gen == c.generation {
			c.loading = false
			c.err = err.Error()
		}
		return errors.Wrapf(err, "[%s.Fetch]", c.name)
	}

	c.items = items
	c.applied = gen
	// A re-fetch is ground truth; staged mutations it raced with are
	// superseded.
	c.pending = map[string]pendingMutation[T]{}
	if gen == c.generation {
		c.loading = false
	}
	return nil
}

// Items returns a copy of the current collection, staged changes included.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Get returns the item with the given id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if c.idOf(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Len returns the current item count, staged changes included.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Loading reports whether a fetch is in flight.
func (c *Collection[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Error returns the last recorded failure message, or "".
func (c *Collection[T]) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ClearError resets the error flag.
func (c *Collection[T]) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = ""
}

// StageAdd applies an optimistic append and returns a tag for Confirm or
// Rollback once the corresponding backend write settles.
func (c *Collection[T]) StageAdd(item T) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	tag := uuid.New().String()
	c.items = append(c.items, item)
	c.pending[tag] = pendingMutation[T]{kind: mutationAdd, id: c.idOf(item)}
	return tag
}

// StageUpdate applies an optimistic in-place update to the item with the
// same id.
func (c *Collection[T]) StageUpdate(item T) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.idOf(item)
	for i := range c.items {
		if c.idOf(c.items[i]) == id {
			prior := c.items[i]
			c.items[i] = item
			tag := uuid.New().String()
			c.pending[tag] = pendingMutation[T]{kind: mutationUpdate, id: id, prior: &prior}
			return tag, nil
		}
	}
	return "", errors.Wrapf(apperrors.ErrNotFound, "[%s.StageUpdate] id %q", c.name, id)
}

// StageRemove applies an optimistic removal of the item with the given id.
func (c *Collection[T]) StageRemove(id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.idOf(c.items[i]) == id {
			prior := c.items[i]
			c.items = append(c.items[:i], c.items[i+1:]...)
			tag := uuid.New().String()
			c.pending[tag] = pendingMutation[T]{kind: mutationRemove, id: id, prior: &prior}
			return tag, nil
		}
	}
	return "", errors.Wrapf(apperrors.ErrNotFound, "[%s.StageRemove] id %q", c.name, id)
}

// Confirm makes a staged mutation permanent after the backend write
// succeeded.
func (c *Collection[T]) Confirm(tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[tag]; !ok {
		return errors.Wrapf(apperrors.ErrPendingNotFound, "[%s.Confirm] tag %q", c.name, tag)
	}
	delete(c.pending, tag)
	return nil
}

// Rollback reverts a staged mutation after the backend write failed, as
// an explicit transition back to the prior state. The client must not
// leave an invented record in place.
func (c *Collection[T]) Rollback(tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mut, ok := c.pending[tag]
	if !ok {
		return errors.Wrapf(apperrors.ErrPendingNotFound, "[%s.Rollback] tag %q", c.name, tag)
	}
	delete(c.pending, tag)

	switch mut.kind {
	case mutationAdd:
		for i := range c.items {
			if c.idOf(c.items[i]) == mut.id {
				c.items = append(c.items[:i], c.items[i+1:]...)
				break
			}
		}
	case mutationUpdate:
		for i := range c.items {
			if c.idOf(c.items[i]) == mut.id {
				c.items[i] = *mut.prior
				break
			}
		}
	case mutationRemove:
		c.items = append(c.items, *mut.prior)
	}
	return nil
}

// PendingCount reports the number of unsettled staged mutations.
func (c *Collection[T]) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Reset clears the collection and all flags. Registered with the session
// store's on-logout broadcast so no user sees a previous user's cache.
func (c *Collection[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.loading = false
	c.err = ""
	c.pending = map[string]pendingMutation[T]{}
	c.applied = c.generation
}
