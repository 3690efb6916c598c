package credentials

import "context"

// Storage keys for the persisted credential record. All three are written
// together on login and cleared together on logout; readers must treat a
// partially present set as unauthenticated.
const (
	KeyAccessToken  = "agrimandi.access_token"
	KeyRefreshToken = "agrimandi.refresh_token"
	KeyUser         = "agrimandi.user"
)

// Store defines durable key-value persistence for credential material,
// isolated per installation.
//
// Get returns (value, true, nil) when the key is present and ("", false, nil)
// when absent; a missing key is never an error. Clear is idempotent.
// Implementations signal platform-storage unavailability by wrapping
// ErrUnavailable, which callers handle by falling back to an
// unauthenticated state.
type Store interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Clear(ctx context.Context, keys ...string) error
}
