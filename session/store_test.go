package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/credentials"
	"github.com/agrimandi/agrimandi-go/credentials/storefakes"
	apperrors "github.com/agrimandi/agrimandi-go/internal/errors"
	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/users"
)

const (
	testPassword    = "Secret123"
	testAccessToken = "tok-a"
	testRefresh     = "tok-r"
)

var testUser = users.User{ID: "u1", Username: "farmer1", Role: users.RoleFarmer, Verified: true}

// stubBackend is a minimal in-process rendition of the auth endpoints.
type stubBackend struct {
	mu           sync.Mutex
	nestedTokens bool
	revoked      bool
	profileCalls int
	logoutCalls  int
}

func (b *stubBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds session.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != testPassword {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"invalid credentials"}`))
			return
		}
		b.mu.Lock()
		nested := b.nestedTokens
		b.mu.Unlock()
		if nested {
			json.NewEncoder(w).Encode(map[string]any{
				"tokens": map[string]string{"access": testAccessToken, "refresh": testRefresh},
				"user":   testUser,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access": testAccessToken, "refresh": testRefresh, "user": testUser,
		})
	})
	mux.HandleFunc("GET /users/profile", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.profileCalls++
		revoked := b.revoked
		b.mu.Unlock()
		if revoked || r.Header.Get("Authorization") != "Bearer "+testAccessToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(testUser)
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.logoutCalls++
		b.mu.Unlock()
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("GET /crops", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		revoked := b.revoked
		b.mu.Unlock()
		if revoked || r.Header.Get("Authorization") != "Bearer "+testAccessToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[{"id":"c1","name":"mustard"}]`))
	})
	mux.HandleFunc("POST /auth/send-otp", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"expires_in":300,"resend_after":60}`))
	})
	mux.HandleFunc("POST /auth/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	return mux
}

type fixture struct {
	backend *stubBackend
	server  *httptest.Server
	api     *apiclient.Client
	creds   *storefakes.FakeStore
	store   *session.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()

	backend := &stubBackend{}
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	api := apiclient.New(server.URL)
	creds := storefakes.NewFakeStore()
	store, err := session.New(api, creds)
	require.NoError(t, err)

	return &fixture{backend: backend, server: server, api: api, creds: creds, store: store}
}

// requireInvariant asserts the one property every reachable state must
// satisfy: authenticated iff user and access token are both present.
func requireInvariant(t *testing.T, state session.State) {
	t.Helper()
	require.Equal(t, state.User != nil && state.AccessToken != "", state.Authenticated)
}

func login(t *testing.T, f *fixture) {
	t.Helper()
	err := f.store.Login(context.Background(), session.Credentials{Username: "farmer1", Password: testPassword})
	require.NoError(t, err)
}

func TestLoginSuccess(t *testing.T) {
	f := setup(t)

	login(t, f)

	state := f.store.State()
	requireInvariant(t, state)
	require.True(t, state.Authenticated)
	require.Equal(t, "u1", state.User.ID)
	require.Equal(t, testAccessToken, state.AccessToken)
	require.False(t, state.Loading)
	require.Empty(t, state.Err)

	// Tokens persisted for the next launch.
	access, ok, err := f.creds.Get(context.Background(), credentials.KeyAccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, testAccessToken, access)
	refresh, _, _ := f.creds.Get(context.Background(), credentials.KeyRefreshToken)
	require.Equal(t, testRefresh, refresh)
}

func TestLoginAcceptsNestedTokenShape(t *testing.T) {
	f := setup(t)
	f.backend.nestedTokens = true

	login(t, f)

	state := f.store.State()
	require.True(t, state.Authenticated)
	require.Equal(t, testAccessToken, state.AccessToken)
	require.Equal(t, testRefresh, state.RefreshToken)
}

func TestFailedLoginSetsError(t *testing.T) {
	f := setup(t)

	err := f.store.Login(context.Background(), session.Credentials{Username: "farmer1", Password: "wrong"})
	require.Error(t, err)

	state := f.store.State()
	requireInvariant(t, state)
	require.False(t, state.Authenticated)
	require.Equal(t, "invalid username or password", state.Err)

	f.store.ClearError()
	require.Empty(t, f.store.State().Err)
}

func TestFailedLoginPreservesPriorSession(t *testing.T) {
	f := setup(t)
	login(t, f)

	err := f.store.Login(context.Background(), session.Credentials{Username: "farmer1", Password: "wrong"})
	require.Error(t, err)

	state := f.store.State()
	requireInvariant(t, state)
	require.True(t, state.Authenticated)
	require.Equal(t, "u1", state.User.ID)
	require.NotEmpty(t, state.Err)
}

func TestUnreachableBackendLoginError(t *testing.T) {
	f := setup(t)
	f.server.Close()

	err := f.store.Login(context.Background(), session.Credentials{Username: "farmer1", Password: testPassword})
	require.Error(t, err)
	require.Equal(t, "cannot reach the server, check your connection", f.store.State().Err)
}

func TestLoadStoredAuthRoundTrip(t *testing.T) {
	f := setup(t)
	login(t, f)

	// Fresh process: same persisted storage, new in-memory state.
	api := apiclient.New(f.server.URL)
	store, err := session.New(api, f.creds)
	require.NoError(t, err)
	require.Equal(t, session.LifecycleUninitialized, store.State().Lifecycle)

	store.LoadStoredAuth(context.Background())

	state := store.State()
	requireInvariant(t, state)
	require.Equal(t, session.LifecycleReady, state.Lifecycle)
	require.True(t, state.Authenticated)
	require.Equal(t, "u1", state.User.ID)
	require.Equal(t, testAccessToken, state.AccessToken)
}

func TestLoadStoredAuthWithNoCredentials(t *testing.T) {
	f := setup(t)

	f.store.LoadStoredAuth(context.Background())

	state := f.store.State()
	requireInvariant(t, state)
	require.Equal(t, session.LifecycleReady, state.Lifecycle)
	require.False(t, state.Authenticated)
	require.Empty(t, state.Err)
}

func TestLoadStoredAuthWithUnavailableStorage(t *testing.T) {
	f := setup(t)
	f.creds.Unavailable = true

	// Must not panic at boot; falls back to anonymous.
	f.store.LoadStoredAuth(context.Background())

	state := f.store.State()
	require.Equal(t, session.LifecycleReady, state.Lifecycle)
	require.False(t, state.Authenticated)
}

func TestLoadStoredAuthWithRevokedToken(t *testing.T) {
	f := setup(t)
	login(t, f)
	f.backend.revoked = true

	api := apiclient.New(f.server.URL)
	store, err := session.New(api, f.creds)
	require.NoError(t, err)

	store.LoadStoredAuth(context.Background())

	state := store.State()
	requireInvariant(t, state)
	require.Equal(t, session.LifecycleReady, state.Lifecycle)
	require.False(t, state.Authenticated)
	require.Equal(t, 0, f.creds.Len())
}

func TestLoadStoredAuthKeepsSnapshotWhenOffline(t *testing.T) {
	f := setup(t)
	login(t, f)
	f.server.Close()

	api := apiclient.New(f.server.URL)
	store, err := session.New(api, f.creds)
	require.NoError(t, err)

	store.LoadStoredAuth(context.Background())

	// Offline boot paints the persisted snapshot; the next successful
	// fetch supersedes it.
	state := store.State()
	requireInvariant(t, state)
	require.Equal(t, session.LifecycleReady, state.Lifecycle)
	require.True(t, state.Authenticated)
	require.Equal(t, "u1", state.User.ID)
}

func TestLogoutClearsEverything(t *testing.T) {
	f := setup(t)
	login(t, f)

	resets := 0
	f.store.OnLogout(func() { resets++ })

	f.store.Logout(context.Background())

	state := f.store.State()
	requireInvariant(t, state)
	require.False(t, state.Authenticated)
	require.Nil(t, state.User)
	require.Empty(t, state.AccessToken)
	require.Equal(t, 0, f.creds.Len())
	require.Equal(t, 1, resets)
	require.Equal(t, 1, f.backend.logoutCalls)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := setup(t)
	login(t, f)

	f.store.Logout(context.Background())
	first := f.store.State()

	f.store.Logout(context.Background())
	second := f.store.State()

	require.Equal(t, first.Authenticated, second.Authenticated)
	require.Nil(t, second.User)
	require.Empty(t, second.AccessToken)
	require.Equal(t, 0, f.creds.Len())
}

func TestLogoutProceedsWhenServerUnreachable(t *testing.T) {
	f := setup(t)
	login(t, f)
	f.server.Close()

	f.store.Logout(context.Background())

	state := f.store.State()
	require.False(t, state.Authenticated)
	require.Equal(t, 0, f.creds.Len())
}

func TestForceLogoutOn401MidSession(t *testing.T) {
	f := setup(t)
	login(t, f)

	resets := 0
	f.store.OnLogout(func() { resets++ })

	// Token revoked server-side: the next feature fetch gets a 401,
	// which must force a logout through the client's signal.
	f.backend.revoked = true
	_, err := f.api.Get(context.Background(), apiclient.EndpointCrops)
	require.True(t, apiclient.IsStatus(err, http.StatusUnauthorized))

	state := f.store.State()
	requireInvariant(t, state)
	require.False(t, state.Authenticated)
	require.Equal(t, 0, f.creds.Len())
	require.Equal(t, 1, resets)
	require.NotEmpty(t, state.Err)
}

func TestConcurrent401sForceLogoutOnce(t *testing.T) {
	f := setup(t)
	login(t, f)

	resets := 0
	f.store.OnLogout(func() { resets++ })

	f.backend.revoked = true
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.api.Get(context.Background(), apiclient.EndpointCrops)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, resets)
	require.False(t, f.store.State().Authenticated)
}

func TestDuplicateLoginBlocked(t *testing.T) {
	f := setup(t)

	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{"access":"tok-a","refresh":"tok-r","user":{"id":"u1"}}`))
	}))
	defer slow.Close()

	api := apiclient.New(slow.URL)
	store, err := session.New(api, f.creds)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- store.Login(context.Background(), session.Credentials{Username: "farmer1", Password: testPassword})
	}()

	// Wait for the first login to be in flight.
	require.Eventually(t, func() bool { return store.State().Loading }, 2*time.Second, time.Millisecond)

	err = store.Login(context.Background(), session.Credentials{Username: "farmer1", Password: testPassword})
	require.ErrorIs(t, err, apperrors.ErrLoginInFlight)

	close(release)
	require.NoError(t, <-done)
	require.True(t, store.State().Authenticated)
}

func TestUpdateUser(t *testing.T) {
	f := setup(t)

	// No-op when anonymous.
	f.store.UpdateUser(users.User{Village: "Khanna"})
	require.Nil(t, f.store.State().User)

	login(t, f)
	f.store.UpdateUser(users.User{Village: "Khanna", District: "Ludhiana"})

	state := f.store.State()
	requireInvariant(t, state)
	require.Equal(t, "u1", state.User.ID)
	require.Equal(t, "Khanna", state.User.Village)
	require.Equal(t, "Ludhiana", state.User.District)

	// Persisted snapshot follows the merge.
	snapshot, ok, err := f.creds.Get(context.Background(), credentials.KeyUser)
	require.NoError(t, err)
	require.True(t, ok)
	var persisted users.User
	require.NoError(t, json.Unmarshal([]byte(snapshot), &persisted))
	require.Equal(t, "Khanna", persisted.Village)
}

func TestSubscribersSeeEveryTransition(t *testing.T) {
	f := setup(t)

	var mu sync.Mutex
	var flags []bool
	cancel := f.store.Subscribe(func(state session.State) {
		mu.Lock()
		flags = append(flags, state.Authenticated)
		mu.Unlock()
	})

	login(t, f)
	f.store.Logout(context.Background())

	mu.Lock()
	require.NotEmpty(t, flags)
	require.True(t, flags[len(flags)-2]) // authenticated after login
	require.False(t, flags[len(flags)-1])
	mu.Unlock()

	cancel()
	before := len(flags)
	f.store.ClearError()
	require.Len(t, flags, before)
}

func TestSendAndVerifyOTP(t *testing.T) {
	f := setup(t)

	meta, err := f.store.SendOTP(context.Background(), "+919876543210")
	require.NoError(t, err)
	require.Equal(t, 300, meta.ExpiresInSeconds)
	require.Equal(t, float64(300), meta.ExpiresIn().Seconds())

	require.NoError(t, f.store.VerifyOTP(context.Background(), "+919876543210", "123456"))
}
