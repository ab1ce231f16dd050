package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/IlyaErmolovich/gc-frontend/internal/types"
)

func TestTypedEndpoints(t *testing.T) {
	alice := &types.User{ID: 1, Username: "alice", RoleID: 2}

	var gotMethod, gotPath string
	var gotCreds types.Credentials
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		if r.Header.Get("Content-Type") == "application/json" {
			_ = json.NewDecoder(r.Body).Decode(&gotCreds)
		}
		writeJSON(w, http.StatusOK, types.AuthResponse{User: alice})
	}, nil)

	ctx := context.Background()
	tests := []struct {
		name       string
		call       func() (*types.User, error)
		wantMethod string
		wantPath   string
		wantCreds  bool
	}{
		{"register", func() (*types.User, error) { return c.Register(ctx, "alice", "secret") }, http.MethodPost, "/api/auth/register", true},
		{"login", func() (*types.User, error) { return c.Login(ctx, "alice", "secret") }, http.MethodPost, "/api/auth/login", true},
		{"get profile", func() (*types.User, error) { return c.GetProfile(ctx) }, http.MethodGet, "/api/users/profile", false},
		{"update profile", func() (*types.User, error) { return c.UpdateProfile(ctx, NewFormData().Add("email", "a@x")) }, http.MethodPut, "/api/users/profile", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCreds = types.Credentials{}
			user, err := tt.call()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if *user != *alice {
				t.Errorf("user = %+v, want %+v", user, alice)
			}
			if gotMethod != tt.wantMethod || gotPath != tt.wantPath {
				t.Errorf("request = %s %s, want %s %s", gotMethod, gotPath, tt.wantMethod, tt.wantPath)
			}
			if tt.wantCreds && (gotCreds.Username != "alice" || gotCreds.Password != "secret") {
				t.Errorf("credentials = %+v", gotCreds)
			}
		})
	}
}

func TestTypedEndpointMissingUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}, nil)

	_, err := c.Login(context.Background(), "alice", "secret")
	ce, ok := AsError(err)
	if !ok || ce.Kind != KindInternal {
		t.Fatalf("error = %v, want internal error", err)
	}
}

func TestLoginBadCredentialsIsNotSessionExpiry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	}, nil)

	notified := false
	c.OnUnauthorized(func(context.Context, *Error) { notified = true })

	_, err := c.Login(context.Background(), "alice", "wrong")
	if !IsUnauthorized(err) {
		t.Fatalf("error = %v, want unauthorized", err)
	}
	if notified {
		t.Error("observer notified for login failure")
	}
	if MessageOr(err, "Login failed") != "Invalid credentials" {
		t.Errorf("MessageOr() = %q", MessageOr(err, "Login failed"))
	}
}
