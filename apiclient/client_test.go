package apiclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrimandi/agrimandi-go/apiclient"
)

func TestAttachesCurrentBearerToken(t *testing.T) {
	var seen []string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer backend.Close()

	client := apiclient.New(backend.URL)
	current := "tok-1"
	client.SetTokenSource(func() string { return current })

	_, err := client.Get(context.Background(), "/ping")
	require.NoError(t, err)

	// The token source is read per request, so a new token is picked up
	// without rebuilding the client.
	current = "tok-2"
	_, err = client.Get(context.Background(), "/ping")
	require.NoError(t, err)

	require.Equal(t, []string{"Bearer tok-1", "Bearer tok-2"}, seen)
}

func TestNoAuthorizationHeaderWhenAnonymous(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer backend.Close()

	client := apiclient.New(backend.URL)
	client.SetTokenSource(func() string { return "" })

	_, err := client.Get(context.Background(), "/ping")
	require.NoError(t, err)
}

func TestUnauthorizedSignalFiresExactlyOnce(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer backend.Close()

	client := apiclient.New(backend.URL)
	var signals atomic.Int32
	client.SetUnauthorizedHandler(func() { signals.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Get(context.Background(), "/crops")
			require.True(t, apiclient.IsStatus(err, http.StatusUnauthorized))
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), signals.Load())

	// Re-armed once a new session begins.
	client.ResetInvalidation()
	_, _ = client.Get(context.Background(), "/crops")
	require.Equal(t, int32(2), signals.Load())
}

func TestUnauthorizedSignalSkippedForAuthEndpoints(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"bad credentials"}`))
	}))
	defer backend.Close()

	client := apiclient.New(backend.URL)
	fired := false
	client.SetUnauthorizedHandler(func() { fired = true })

	_, err := client.Post(context.Background(), apiclient.EndpointLogin, nil, apiclient.WithoutUnauthorizedSignal())
	require.True(t, apiclient.IsStatus(err, http.StatusUnauthorized))
	require.False(t, fired)
}

func TestStatusErrorCarriesServerMessage(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"quantity must be positive"}`))
	}))
	defer backend.Close()

	client := apiclient.New(backend.URL)
	_, err := client.Post(context.Background(), "/lots", map[string]int{"quantity": -1})

	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Equal(t, "quantity must be positive", apiErr.Message)
}

func TestNetworkFailureIsDistinctFromStatusError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close() // nothing listening

	client := apiclient.New(backend.URL)
	fired := false
	client.SetUnauthorizedHandler(func() { fired = true })

	_, err := client.Get(context.Background(), "/weather")
	require.ErrorIs(t, err, apiclient.ErrUnreachable)

	var apiErr *apiclient.Error
	require.False(t, apiclient.IsStatus(err, http.StatusUnauthorized))
	require.NotErrorAs(t, err, &apiErr)
	require.False(t, fired)
}

func TestRequestOptions(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "amritsar", r.URL.Query().Get("district"))
		require.Equal(t, "hi-IN", r.Header.Get("Accept-Language"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Write([]byte(`{}`))
	}))
	defer backend.Close()

	client := apiclient.New(backend.URL)
	_, err := client.Get(context.Background(), "/weather",
		apiclient.WithQuery("district", "amritsar"),
		apiclient.WithHeader("Accept-Language", "hi-IN"),
	)
	require.NoError(t, err)
}

func TestContextCancellation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	}))
	defer backend.Close()
	defer close(release)

	client := apiclient.New(backend.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.Get(ctx, "/slow")
	require.ErrorIs(t, err, context.Canceled)
}
