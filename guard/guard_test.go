package guard_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/credentials/storefakes"
	"github.com/agrimandi/agrimandi-go/guard"
	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/users"
)

func TestEvaluate(t *testing.T) {
	farmer := &users.User{ID: "u1", Role: users.RoleFarmer}

	tests := []struct {
		name  string
		state session.State
		req   guard.Requirement
		want  guard.Decision
	}{
		{
			name:  "public view ignores session entirely",
			state: session.State{Lifecycle: session.LifecycleRehydrating},
			req:   guard.Requirement{},
			want:  guard.Allow,
		},
		{
			name:  "protected view waits for rehydration",
			state: session.State{Lifecycle: session.LifecycleRehydrating},
			req:   guard.Requirement{RequireAuth: true},
			want:  guard.Pending,
		},
		{
			name:  "protected view waits before boot",
			state: session.State{Lifecycle: session.LifecycleUninitialized},
			req:   guard.Requirement{RequireAuth: true},
			want:  guard.Pending,
		},
		{
			name:  "anonymous is sent to login",
			state: session.State{Lifecycle: session.LifecycleReady},
			req:   guard.Requirement{RequireAuth: true},
			want:  guard.RedirectLogin,
		},
		{
			name: "wrong role is sent to unauthorized, not login",
			state: session.State{
				User: farmer, AccessToken: "tok", Authenticated: true,
				Lifecycle: session.LifecycleReady,
			},
			req:  guard.Requirement{RequireAuth: true, AllowedRoles: []users.Role{users.RoleBuyer}},
			want: guard.RedirectUnauthorized,
		},
		{
			name: "matching role is allowed",
			state: session.State{
				User: farmer, AccessToken: "tok", Authenticated: true,
				Lifecycle: session.LifecycleReady,
			},
			req:  guard.Requirement{RequireAuth: true, AllowedRoles: []users.Role{users.RoleBuyer, users.RoleFarmer}},
			want: guard.Allow,
		},
		{
			name: "empty allow-list admits any authenticated role",
			state: session.State{
				User: farmer, AccessToken: "tok", Authenticated: true,
				Lifecycle: session.LifecycleReady,
			},
			req:  guard.Requirement{RequireAuth: true},
			want: guard.Allow,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, guard.Evaluate(tc.state, tc.req))
		})
	}
}

func TestGuardFollowsSessionTransitions(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			json.NewEncoder(w).Encode(map[string]any{
				"access": "tok-a", "refresh": "tok-r",
				"user": users.User{ID: "u1", Role: users.RoleFarmer},
			})
		default:
			w.Write([]byte(`{}`))
		}
	}))
	defer backend.Close()

	api := apiclient.New(backend.URL)
	store, err := session.New(api, storefakes.NewFakeStore())
	require.NoError(t, err)

	var decisions []guard.Decision
	g := guard.New(store, guard.Requirement{RequireAuth: true}, func(d guard.Decision) {
		decisions = append(decisions, d)
	})
	defer g.Close()

	// Before rehydration the guard must hold, not redirect.
	require.Equal(t, []guard.Decision{guard.Pending}, decisions)
	require.Equal(t, guard.Pending, g.Check())

	require.NoError(t, store.Login(context.Background(), session.Credentials{Username: "farmer1", Password: "pw"}))
	require.Equal(t, guard.Allow, g.Check())
	require.Equal(t, guard.Allow, decisions[len(decisions)-1])

	// Narrow the allow-list: the same session is now the wrong role.
	g.SetRequirement(guard.Requirement{RequireAuth: true, AllowedRoles: []users.Role{users.RoleBuyer}})
	require.Equal(t, guard.RedirectUnauthorized, decisions[len(decisions)-1])

	store.Logout(context.Background())
	require.Equal(t, guard.RedirectLogin, g.Check())
	require.Equal(t, guard.RedirectLogin, decisions[len(decisions)-1])

	g.Close()
	seen := len(decisions)
	store.ClearError()
	require.Len(t, decisions, seen)
}
