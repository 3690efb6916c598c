package storefakes

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/agrimandi/agrimandi-go/credentials"
)

var _ credentials.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credentials.Store for tests. Unavailable
// simulates platform-storage failure: every operation wraps
// credentials.ErrUnavailable while it is set.
type FakeStore struct {
	entries     map[string]string
	Unavailable bool
	SetCalls    int
	ClearCalls  int
	lock        sync.RWMutex
}

func NewFakeStore() *FakeStore {
	return &FakeStore{entries: make(map[string]string)}
}

func (fs *FakeStore) Set(ctx context.Context, key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.SetCalls++
	if fs.Unavailable {
		return errors.Wrap(credentials.ErrUnavailable, "fake store")
	}
	fs.entries[key] = value
	return nil
}

func (fs *FakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	if fs.Unavailable {
		return "", false, errors.Wrap(credentials.ErrUnavailable, "fake store")
	}
	value, ok := fs.entries[key]
	return value, ok, nil
}

func (fs *FakeStore) Clear(ctx context.Context, keys ...string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.ClearCalls++
	if fs.Unavailable {
		return errors.Wrap(credentials.ErrUnavailable, "fake store")
	}
	for _, key := range keys {
		delete(fs.entries, key)
	}
	return nil
}

// Len reports the number of stored entries.
func (fs *FakeStore) Len() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return len(fs.entries)
}
