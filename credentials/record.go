package credentials

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	apperrors "github.com/agrimandi/agrimandi-go/internal/errors"
	"github.com/agrimandi/agrimandi-go/users"
)

// ErrUnavailable is returned (wrapped) when the underlying storage cannot be
// reached, as opposed to a key simply being absent.
var ErrUnavailable = apperrors.ErrStorageUnavailable

// Record is the durable counterpart of the session's token fields plus a
// user snapshot for optimistic rehydration before the profile re-fetch
// completes.
type Record struct {
	AccessToken  string
	RefreshToken string
	User         *users.User
}

// Complete reports whether the record can seed an authenticated session.
func (r Record) Complete() bool {
	return r.AccessToken != "" && r.User != nil
}

// SaveRecord persists all three credential keys. The write is not atomic
// across keys; LoadRecord compensates by treating a partial set as absent.
func SaveRecord(ctx context.Context, store Store, rec Record) error {
	snapshot, err := json.Marshal(rec.User)
	if err != nil {
		return errors.Wrap(err, "[credentials.SaveRecord] marshal user snapshot")
	}
	if err := store.Set(ctx, KeyAccessToken, rec.AccessToken); err != nil {
		return errors.Wrap(err, "[credentials.SaveRecord] access token")
	}
	if err := store.Set(ctx, KeyRefreshToken, rec.RefreshToken); err != nil {
		return errors.Wrap(err, "[credentials.SaveRecord] refresh token")
	}
	if err := store.Set(ctx, KeyUser, string(snapshot)); err != nil {
		return errors.Wrap(err, "[credentials.SaveRecord] user snapshot")
	}
	return nil
}

// LoadRecord reads the persisted credential record. A missing or partial
// record yields (Record{}, false, nil): partial persistence is not a valid
// resting state and is treated as absent rather than surfaced to callers.
func LoadRecord(ctx context.Context, store Store) (Record, bool, error) {
	access, ok, err := store.Get(ctx, KeyAccessToken)
	if err != nil {
		return Record{}, false, errors.Wrap(err, "[credentials.LoadRecord] access token")
	}
	if !ok || access == "" {
		return Record{}, false, nil
	}

	refresh, _, err := store.Get(ctx, KeyRefreshToken)
	if err != nil {
		return Record{}, false, errors.Wrap(err, "[credentials.LoadRecord] refresh token")
	}

	snapshot, ok, err := store.Get(ctx, KeyUser)
	if err != nil {
		return Record{}, false, errors.Wrap(err, "[credentials.LoadRecord] user snapshot")
	}
	if !ok || snapshot == "" {
		return Record{}, false, nil
	}

	var user users.User
	if err := json.Unmarshal([]byte(snapshot), &user); err != nil {
		// A corrupt snapshot cannot seed a session; treat as absent.
		return Record{}, false, nil
	}

	return Record{AccessToken: access, RefreshToken: refresh, User: &user}, true, nil
}

// Wipe removes the whole credential record. Idempotent.
func Wipe(ctx context.Context, store Store) error {
	if err := store.Clear(ctx, KeyAccessToken, KeyRefreshToken, KeyUser); err != nil {
		return errors.Wrap(err, "[credentials.Wipe] clear")
	}
	return nil
}
