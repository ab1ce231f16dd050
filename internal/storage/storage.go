// Package storage is the Go stand-in for browser local storage: a string key/value store shared by the
// HTTP client (which reads the stored user to identify requests) and the session store (which writes it).
//
// Both writers use the key constants below so their clearing semantics agree.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Keys written by the session store
const (
	KeyIsLoggedIn = "isLoggedIn"
	KeyUserData   = "userData"
	KeyAuthError  = "authError"
)

// LoggedInValue is the only value ever stored under KeyIsLoggedIn; logged out is represented by absence
const LoggedInValue = "true"

// Store is a key/value store with local storage semantics.
// Get reports ok=false for a missing key rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
}

// StoreCloser is a Store that holds resources (a database handle or a redis connection)
type StoreCloser interface {
	Store
	io.Closer
}

// GetJSON decodes the value stored under key into v.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores the JSON encoding of v under key
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
