// Package session is the single source of truth for "who is logged in".
// It rehydrates persisted credentials at process start, performs login and
// logout against the backend, and broadcasts resets to every dependent
// feature store when the session ends.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/credentials"
	apperrors "github.com/agrimandi/agrimandi-go/internal/errors"
	"github.com/agrimandi/agrimandi-go/token"
	"github.com/agrimandi/agrimandi-go/users"
)

// Credentials are the login request fields. Username and PhoneNumber are
// alternatives; the farmer surface logs in by phone, the buyer and web
// surfaces by username.
type Credentials struct {
	Username    string `json:"username,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Password    string `json:"password"`
}

// Store owns the in-memory Session state. The credential store holds a
// persisted copy of the token fields used purely for rehydration; it is
// never the authority for in-memory state.
type Store struct {
	api     *apiclient.Client
	creds   credentials.Store
	log     zerolog.Logger
	nowFunc func() time.Time

	mu            sync.Mutex
	state         State
	loginInFlight bool
	loggingOut    bool
	onLogout      []func()
	subscribers   map[int]func(State)
	nextSubID     int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log zerolog.Logger) Option {
	return func(st *Store) {
		st.log = log
	}
}

// WithNowFunc sets the now time function (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(st *Store) {
		st.nowFunc = now
	}
}

// New creates the session store and wires itself into the API client: the
// client reads the current access token from here, and its 401 signal
// lands here as a forced logout.
func New(api *apiclient.Client, creds credentials.Store, options ...Option) (*Store, error) {
	if api == nil {
		return nil, errors.New("[session.New] api client is required")
	}
	if creds == nil {
		return nil, errors.New("[session.New] credential store is required")
	}

	st := &Store{
		api:         api,
		creds:       creds,
		log:         zerolog.Nop(),
		nowFunc:     time.Now,
		subscribers: map[int]func(State){},
	}
	for _, opt := range options {
		opt(st)
	}

	api.SetTokenSource(st.AccessToken)
	api.SetUnauthorizedHandler(func() {
		st.ForceLogout("session expired, please log in again")
	})

	return st, nil
}

// State returns a snapshot of the current session state.
func (st *Store) State() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state.clone()
}

// AccessToken returns the current bearer token, or "" when anonymous.
// Installed as the API client's token source.
func (st *Store) AccessToken() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state.AccessToken
}

// OnLogout registers a cleanup callback invoked synchronously during
// logout and forced invalidation. Feature stores register their reset here
// at construction so a later login by a different user never sees the
// previous user's cached data.
func (st *Store) OnLogout(fn func()) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.onLogout = append(st.onLogout, fn)
}

// Subscribe registers a listener invoked with a state snapshot after every
// state change. The returned function cancels the subscription.
func (st *Store) Subscribe(fn func(State)) func() {
	st.mu.Lock()
	id := st.nextSubID
	st.nextSubID++
	st.subscribers[id] = fn
	st.mu.Unlock()

	return func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		delete(st.subscribers, id)
	}
}

// loginResponse tolerates both token shapes the backend surfaces return:
// flat {access, refresh, user} and nested {tokens: {access, refresh}, user}.
type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Tokens  *struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
	User *users.User `json:"user"`
}

func (lr loginResponse) tokens() (access, refresh string) {
	if lr.Tokens != nil && lr.Tokens.Access != "" {
		return lr.Tokens.Access, lr.Tokens.Refresh
	}
	return lr.Access, lr.Refresh
}

// Login authenticates against the backend. On failure the prior session is
// left untouched: a failed re-login attempt never clears an existing
// authenticated session. A login already in flight blocks a second one.
func (st *Store) Login(ctx context.Context, creds Credentials) error {
	st.mu.Lock()
	if st.loginInFlight {
		st.mu.Unlock()
		return apperrors.ErrLoginInFlight
	}
	st.loginInFlight = true
	st.state.Loading = true
	st.state.Err = ""
	snapshot := st.state.clone()
	st.mu.Unlock()
	st.notify(snapshot)

	defer func() {
		st.mu.Lock()
		st.loginInFlight = false
		st.mu.Unlock()
	}()

	resp, err := st.api.Post(ctx, apiclient.EndpointLogin, creds, apiclient.WithoutUnauthorizedSignal())
	if err != nil {
		st.recordFailure(loginErrorMessage(err))
		return errors.Wrap(err, "[Store.Login] login request")
	}

	var parsed loginResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		st.recordFailure("unexpected response from server")
		return errors.Wrap(err, "[Store.Login] decode response")
	}

	access, refresh := parsed.tokens()
	if access == "" || parsed.User == nil {
		st.recordFailure("unexpected response from server")
		return errors.New("[Store.Login] response missing token or user")
	}

	record := credentials.Record{AccessToken: access, RefreshToken: refresh, User: parsed.User}
	if err := credentials.SaveRecord(ctx, st.creds, record); err != nil {
		// The in-memory session still works; only rehydration on the
		// next launch is lost.
		st.log.Warn().Err(err).Msg("persisting credentials failed")
	}

	st.apply(func(s *State) {
		s.User = parsed.User
		s.AccessToken = access
		s.RefreshToken = refresh
		s.Loading = false
		s.Err = ""
		s.Lifecycle = LifecycleReady
	})

	// A fresh session re-arms the 401 signal. Re-arming here rather than
	// at logout keeps stale 401s from already-sent requests from forcing
	// a second logout.
	st.api.ResetInvalidation()
	return nil
}

// LoadStoredAuth rehydrates the session from persisted credentials. It is
// meant to run once at process start and never returns an error for the
// expected failure modes: absent credentials, unavailable storage and an
// expired token all resolve to a ready, anonymous session.
func (st *Store) LoadStoredAuth(ctx context.Context) {
	st.apply(func(s *State) {
		s.Lifecycle = LifecycleRehydrating
		s.Loading = true
	})

	record, found, err := credentials.LoadRecord(ctx, st.creds)
	if err != nil {
		st.log.Warn().Err(err).Msg("credential storage unavailable, starting anonymous")
		st.becomeAnonymous("")
		return
	}
	if !found || !record.Complete() {
		st.becomeAnonymous("")
		return
	}

	if token.Expired(record.AccessToken, st.nowFunc()) {
		if err := credentials.Wipe(ctx, st.creds); err != nil {
			st.log.Warn().Err(err).Msg("wiping expired credentials failed")
		}
		st.becomeAnonymous("")
		return
	}

	// Optimistic rehydration: seed the session from the snapshot so the
	// first paint is authenticated, then confirm against the profile
	// endpoint.
	st.apply(func(s *State) {
		s.User = record.User
		s.AccessToken = record.AccessToken
		s.RefreshToken = record.RefreshToken
	})

	resp, err := st.api.Get(ctx, apiclient.EndpointProfile)
	if err != nil {
		if apiclient.IsStatus(err, 401) {
			// The client's 401 signal has already forced a logout and
			// wiped the record; nothing left to do but settle.
			st.apply(func(s *State) {
				s.Loading = false
				s.Lifecycle = LifecycleReady
			})
			return
		}
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) {
			// Token rejected for some other reason; treat as invalid.
			if wipeErr := credentials.Wipe(ctx, st.creds); wipeErr != nil {
				st.log.Warn().Err(wipeErr).Msg("wiping rejected credentials failed")
			}
			st.becomeAnonymous("")
			return
		}
		// Backend unreachable: keep the optimistic snapshot so the app
		// is usable offline; the next successful fetch supersedes it.
		st.log.Warn().Err(err).Msg("profile re-fetch failed, keeping persisted snapshot")
		st.apply(func(s *State) {
			s.Loading = false
			s.Lifecycle = LifecycleReady
		})
		return
	}

	profile, err := apiclient.DecodeOne[users.User](resp.Body)
	if err != nil {
		st.log.Warn().Err(err).Msg("profile decode failed, keeping persisted snapshot")
		st.apply(func(s *State) {
			s.Loading = false
			s.Lifecycle = LifecycleReady
		})
		return
	}

	st.apply(func(s *State) {
		s.User = &profile
		s.Loading = false
		s.Lifecycle = LifecycleReady
	})

	record.User = &profile
	if err := credentials.SaveRecord(ctx, st.creds, record); err != nil {
		st.log.Warn().Err(err).Msg("refreshing persisted snapshot failed")
	}
}

// Logout ends the session: best-effort server-side invalidation, wipe of
// the persisted record, in-memory clear and a broadcast to every
// registered feature-store reset. Idempotent.
func (st *Store) Logout(ctx context.Context) {
	st.mu.Lock()
	if st.loggingOut {
		st.mu.Unlock()
		return
	}
	st.loggingOut = true
	authenticated := st.state.Authenticated
	st.mu.Unlock()

	// Server-side invalidation is best effort; local logout proceeds
	// regardless.
	if authenticated {
		if _, err := st.api.Post(ctx, apiclient.EndpointLogout, nil); err != nil {
			st.log.Debug().Err(err).Msg("server-side logout failed")
		}
	}

	st.finishLogout(ctx, "")
}

// ForceLogout is the target of the API client's 401 signal: immediate
// local logout without a server round-trip. Safe to call concurrently;
// only the first call per invalidation does any work.
func (st *Store) ForceLogout(reason string) {
	st.mu.Lock()
	if st.loggingOut {
		st.mu.Unlock()
		return
	}
	st.loggingOut = true
	st.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st.finishLogout(ctx, reason)
}

func (st *Store) finishLogout(ctx context.Context, reason string) {
	if err := credentials.Wipe(ctx, st.creds); err != nil {
		st.log.Warn().Err(err).Msg("wiping credentials failed")
	}

	st.apply(func(s *State) {
		s.User = nil
		s.AccessToken = ""
		s.RefreshToken = ""
		s.Loading = false
		s.Err = reason
		s.Lifecycle = LifecycleReady
	})

	st.mu.Lock()
	resets := make([]func(), len(st.onLogout))
	copy(resets, st.onLogout)
	st.mu.Unlock()
	for _, reset := range resets {
		reset()
	}

	st.mu.Lock()
	st.loggingOut = false
	st.mu.Unlock()
}

// UpdateUser shallow-merges partial into the current user without a server
// round-trip; used after a separate profile-update call has already
// succeeded. No-op when anonymous.
func (st *Store) UpdateUser(partial users.User) {
	st.mu.Lock()
	if st.state.User == nil {
		st.mu.Unlock()
		return
	}
	merged := st.state.User.Merge(partial)
	st.mu.Unlock()

	st.apply(func(s *State) {
		s.User = &merged
	})

	// Keep the persisted snapshot in sync so the next rehydration paints
	// the updated profile.
	if snapshot, err := json.Marshal(merged); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.creds.Set(ctx, credentials.KeyUser, string(snapshot)); err != nil {
			st.log.Debug().Err(err).Msg("persisting merged snapshot failed")
		}
	}
}

// ClearError resets the error field without touching other state.
func (st *Store) ClearError() {
	st.apply(func(s *State) {
		s.Err = ""
	})
}

func (st *Store) recordFailure(message string) {
	st.apply(func(s *State) {
		s.Loading = false
		s.Err = message
	})
}

func (st *Store) becomeAnonymous(reason string) {
	st.apply(func(s *State) {
		s.User = nil
		s.AccessToken = ""
		s.RefreshToken = ""
		s.Loading = false
		s.Err = reason
		s.Lifecycle = LifecycleReady
	})
}

// apply is the single mutation path: it runs mutate under the lock,
// re-derives the Authenticated invariant and notifies subscribers with
// the resulting snapshot.
func (st *Store) apply(mutate func(*State)) {
	st.mu.Lock()
	mutate(&st.state)
	st.state.Authenticated = st.state.User != nil && st.state.AccessToken != ""
	snapshot := st.state.clone()
	st.mu.Unlock()

	st.notify(snapshot)
}

func (st *Store) notify(snapshot State) {
	st.mu.Lock()
	listeners := make([]func(State), 0, len(st.subscribers))
	for _, fn := range st.subscribers {
		listeners = append(listeners, fn)
	}
	st.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func loginErrorMessage(err error) string {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 401 {
			return "invalid username or password"
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "login failed, please try again"
	}
	if errors.Is(err, apiclient.ErrUnreachable) {
		return "cannot reach the server, check your connection"
	}
	return "login failed, please try again"
}
