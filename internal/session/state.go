package session

import (
	"context"
	"fmt"

	"github.com/IlyaErmolovich/gc-frontend/internal/types"
)

// Status is the position of the session in its lifecycle
type Status int

const (
	StatusUninitialized Status = iota
	StatusChecking
	StatusAuthenticated
	StatusAnonymous
)

var statusNames = []string{"uninitialized", "checking", "authenticated", "anonymous"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// State is a point-in-time copy of the session
type State struct {
	Status  Status
	User    *types.User
	Loading bool   // true only while CheckAuth runs
	Error   string // last error message, empty when none
}

// LoginRoute is where the user is sent when the backend rejects the session
const LoginRoute = "/login"

// Navigator moves the application to another route (the SPA router in a browser, a message in the CLI)
type Navigator interface {
	Navigate(ctx context.Context, route string)
}

type NavigatorFunc func(ctx context.Context, route string)

func (f NavigatorFunc) Navigate(ctx context.Context, route string) {
	f(ctx, route)
}
