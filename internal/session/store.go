// Package session tracks the signed-in user.
//
// A Store holds the current user, the loading flag of the initial check and the last error. Every change to
// the signed-in user is written through to the persisted storage so a restart resumes the latest known-good
// session. The persisted copy is only trusted at start-up (CheckAuth); afterwards the in-memory state is
// authoritative and the two are reconciled on every successful profile fetch.
//
// A 401 from any call that relies on the session tears the session down and navigates to LoginRoute.
// The store learns about 401s it did not make itself by subscribing to the client (Attach).
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/IlyaErmolovich/gc-frontend/internal/client"
	"github.com/IlyaErmolovich/gc-frontend/internal/storage"
	"github.com/IlyaErmolovich/gc-frontend/internal/types"
)

// Messages used when the backend does not say what went wrong
const (
	FallbackRegister      = "Registration failed"
	FallbackLogin         = "Login failed"
	FallbackProfileUpdate = "Profile update failed"
	FallbackCheckAuth     = "Could not verify the session"
)

// API is the part of the backend the session store uses (implemented by *client.Client)
type API interface {
	Register(ctx context.Context, username, password string) (*types.User, error)
	Login(ctx context.Context, username, password string) (*types.User, error)
	GetProfile(ctx context.Context) (*types.User, error)
	UpdateProfile(ctx context.Context, form *client.FormData) (*types.User, error)
}

type Store struct {
	api     API
	storage storage.Store
	nav     Navigator
	logger  *slog.Logger

	mu           sync.Mutex
	state        State
	checkStarted bool
	// epoch changes whenever the signed-in user is replaced or removed; results of
	// network calls started in an older epoch are discarded
	epoch uint64

	listenersMu sync.Mutex
	listeners   map[uint64]func(State)
	nextID      uint64
}

// NewStore creates an uninitialized store. nav may be nil, in which case no navigation happens on 401.
func NewStore(api API, store storage.Store, nav Navigator, logger *slog.Logger) *Store {
	if store == nil {
		store = storage.NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:       api,
		storage:   store,
		nav:       nav,
		logger:    logger,
		listeners: make(map[uint64]func(State)),
	}
}

// Attach subscribes the store to the 401 responses seen by c
func (s *Store) Attach(c *client.Client) {
	c.OnUnauthorized(func(ctx context.Context, err *client.Error) {
		s.logger.Warn("backend rejected the session",
			slog.String("component", "session.Attach"),
			slog.String("method", err.Method),
			slog.String("path", err.Path),
		)
		s.handleUnauthorized(ctx)
	})
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := s.state
	st.User = s.state.User.Clone()
	return st
}

// IsAdmin reports whether a user is signed in and holds the administrator role
func (s *Store) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.User.IsAdmin()
}

// Subscribe registers fn to receive the state after every change. The returned func removes it.
// fn is called without any store lock held and may call back into the store.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *Store) notify() {
	st := s.Snapshot()

	s.listenersMu.Lock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// update applies fn to the state under the lock and then notifies listeners
func (s *Store) update(fn func(st *State)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
	s.notify()
}

// CheckAuth restores the persisted session and reconciles it with the backend. Only the first call does
// anything; later calls return nil immediately.
//
// A cached user is shown straight away. A 401 from the profile fetch ends the session, any other failure
// keeps the cached user and records the error, which is also returned.
func (s *Store) CheckAuth(ctx context.Context) error {
	s.mu.Lock()
	if s.checkStarted {
		s.mu.Unlock()
		return nil
	}
	s.checkStarted = true
	s.state.Status = StatusChecking
	s.state.Loading = true

	// the persisted error is shown by the first check after it was written and then dropped
	if msg, ok := s.loadAuthErrorLocked(ctx); ok {
		s.state.Error = msg
		s.removeLocked(ctx, storage.KeyAuthError)
	}
	loggedIn := s.loggedInLocked(ctx)
	if loggedIn {
		s.state.User = s.loadUserLocked(ctx)
	}
	epoch := s.epoch
	s.mu.Unlock()
	s.notify()

	defer s.update(func(st *State) { st.Loading = false })

	if !loggedIn {
		s.update(func(st *State) {
			if st.Status == StatusChecking {
				st.Status = StatusAnonymous
			}
		})
		return nil
	}

	user, err := s.api.GetProfile(ctx)
	if err != nil {
		if client.IsUnauthorized(err) {
			s.handleUnauthorized(ctx)
			return err
		}

		s.logger.Error("session check failed",
			slog.String("component", "session.CheckAuth"),
			slog.String("error", err.Error()),
		)
		s.update(func(st *State) {
			if s.epoch != epoch {
				return
			}
			st.Error = client.MessageOr(err, FallbackCheckAuth)
			if st.User != nil {
				st.Status = StatusAuthenticated
			} else {
				st.Status = StatusAnonymous
			}
		})
		return err
	}

	s.mu.Lock()
	if s.epoch == epoch {
		s.setUserLocked(ctx, user)
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Register creates an account and signs it in
func (s *Store) Register(ctx context.Context, username, password string) (*types.User, error) {
	s.update(func(st *State) { st.Error = "" })

	user, err := s.api.Register(ctx, username, password)
	if err != nil {
		s.logger.Error("registration failed",
			slog.String("component", "session.Register"),
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		s.update(func(st *State) { st.Error = client.MessageOr(err, FallbackRegister) })
		return nil, err
	}

	s.mu.Lock()
	s.epoch++
	s.setUserLocked(ctx, user)
	s.removeLocked(ctx, storage.KeyAuthError)
	s.mu.Unlock()
	s.notify()

	return user.Clone(), nil
}

// Login signs in with the given credentials.
//
// The previous session and any stale error are cleared before the credentials are sent. After a
// successful exchange the full profile is fetched on a best-effort basis (see fetchProfileSoft).
// A failed login is recorded in the state and persisted so it survives a restart.
func (s *Store) Login(ctx context.Context, username, password string) (*types.User, error) {
	s.mu.Lock()
	s.epoch++
	s.clearSessionLocked(ctx)
	s.state.Status = StatusAnonymous
	s.state.Error = ""
	s.removeLocked(ctx, storage.KeyAuthError)
	s.mu.Unlock()
	s.notify()

	user, err := s.api.Login(ctx, username, password)
	if err != nil {
		s.logger.Error("login failed",
			slog.String("component", "session.Login"),
			slog.String("username", username),
			slog.String("error", err.Error()),
		)

		msg := client.MessageOr(err, FallbackLogin)
		s.mu.Lock()
		s.state.Error = msg
		if err := storage.SetJSON(ctx, s.storage, storage.KeyAuthError, msg); err != nil {
			s.storageFailed("session.Login", err)
		}
		s.mu.Unlock()
		s.notify()
		return nil, err
	}

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.setUserLocked(ctx, user)
	s.mu.Unlock()
	s.notify()

	if profile, ok := s.fetchProfileSoft(ctx); ok {
		s.mu.Lock()
		if s.epoch == epoch {
			s.setUserLocked(ctx, profile)
			user = profile
		}
		s.mu.Unlock()
		s.notify()
	}

	return user.Clone(), nil
}

// fetchProfileSoft fetches the full profile after a login. It is allowed to fail: failures are logged and
// reported as ok=false, and a 401 here does not end the session that the login just created.
func (s *Store) fetchProfileSoft(ctx context.Context) (*types.User, bool) {
	user, err := s.api.GetProfile(client.WithoutUnauthorizedEvents(ctx))
	if err != nil {
		s.logger.Warn("could not fetch profile after login",
			slog.String("component", "session.fetchProfileSoft"),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return user, true
}

// Logout forgets the signed-in user. It never contacts the backend.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.epoch++
	s.clearSessionLocked(ctx)
	s.state.Status = StatusAnonymous
	s.mu.Unlock()
	s.notify()
}

// UpdateProfile sends the changed profile fields and stores the user returned by the backend
func (s *Store) UpdateProfile(ctx context.Context, form *client.FormData) (*types.User, error) {
	s.mu.Lock()
	s.state.Error = ""
	epoch := s.epoch
	s.mu.Unlock()
	s.notify()

	user, err := s.api.UpdateProfile(ctx, form)
	if err != nil {
		if client.IsUnauthorized(err) {
			s.handleUnauthorized(ctx)
			return nil, err
		}
		s.logger.Error("profile update failed",
			slog.String("component", "session.UpdateProfile"),
			slog.String("error", err.Error()),
		)
		s.update(func(st *State) { st.Error = client.MessageOr(err, FallbackProfileUpdate) })
		return nil, err
	}

	s.mu.Lock()
	if s.epoch == epoch {
		s.setUserLocked(ctx, user)
	}
	s.mu.Unlock()
	s.notify()

	return user.Clone(), nil
}

// RefreshUserProfile re-fetches the signed-in user for a silent background refresh.
// It returns ok=false when nobody is signed in or the fetch fails; errors are logged, not returned.
func (s *Store) RefreshUserProfile(ctx context.Context) (*types.User, bool) {
	s.mu.Lock()
	if s.state.User == nil {
		s.mu.Unlock()
		return nil, false
	}
	epoch := s.epoch
	s.mu.Unlock()

	user, err := s.api.GetProfile(ctx)
	if err != nil {
		if client.IsUnauthorized(err) {
			s.handleUnauthorized(ctx)
			return nil, false
		}
		s.logger.Warn("profile refresh failed",
			slog.String("component", "session.RefreshUserProfile"),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil, false
	}
	s.setUserLocked(ctx, user)
	s.mu.Unlock()
	s.notify()

	return user.Clone(), true
}

// handleUnauthorized ends the session. Navigation only happens on the transition into anonymous, so a
// 401 reported both by the client and by the failing operation navigates once.
func (s *Store) handleUnauthorized(ctx context.Context) {
	s.mu.Lock()
	transition := s.state.Status != StatusAnonymous
	s.epoch++
	s.clearSessionLocked(ctx)
	s.state.Status = StatusAnonymous
	s.mu.Unlock()
	s.notify()

	if transition && s.nav != nil {
		s.nav.Navigate(ctx, LoginRoute)
	}
}

// setUserLocked persists the session flag and user record, then makes user the signed-in user
func (s *Store) setUserLocked(ctx context.Context, user *types.User) {
	if err := s.storage.Set(ctx, storage.KeyIsLoggedIn, storage.LoggedInValue); err != nil {
		s.storageFailed("session.setUser", err)
	}
	if err := storage.SetJSON(ctx, s.storage, storage.KeyUserData, user); err != nil {
		s.storageFailed("session.setUser", err)
	}
	s.state.User = user.Clone()
	s.state.Status = StatusAuthenticated
}

func (s *Store) clearSessionLocked(ctx context.Context) {
	s.removeLocked(ctx, storage.KeyIsLoggedIn, storage.KeyUserData)
	s.state.User = nil
}

func (s *Store) removeLocked(ctx context.Context, keys ...string) {
	if err := s.storage.Remove(ctx, keys...); err != nil {
		s.storageFailed("session.remove", err)
	}
}

func (s *Store) loggedInLocked(ctx context.Context) bool {
	v, ok, err := s.storage.Get(ctx, storage.KeyIsLoggedIn)
	if err != nil {
		s.storageFailed("session.CheckAuth", err)
		return false
	}
	return ok && v != ""
}

func (s *Store) loadUserLocked(ctx context.Context) *types.User {
	var user types.User
	ok, err := storage.GetJSON(ctx, s.storage, storage.KeyUserData, &user)
	if err != nil {
		s.storageFailed("session.CheckAuth", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &user
}

func (s *Store) loadAuthErrorLocked(ctx context.Context) (string, bool) {
	var msg string
	ok, err := storage.GetJSON(ctx, s.storage, storage.KeyAuthError, &msg)
	if err != nil {
		s.storageFailed("session.CheckAuth", err)
		return "", false
	}
	return msg, ok && msg != ""
}

// storageFailed logs a persistence failure; the in-memory state stays authoritative
func (s *Store) storageFailed(component string, err error) {
	s.logger.Error("session storage failed",
		slog.String("component", component),
		slog.String("error", err.Error()),
	)
}
