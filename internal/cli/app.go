package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/IlyaErmolovich/gc-frontend/internal/client"
	"github.com/IlyaErmolovich/gc-frontend/internal/config"
	"github.com/IlyaErmolovich/gc-frontend/internal/logger"
	"github.com/IlyaErmolovich/gc-frontend/internal/session"
	"github.com/IlyaErmolovich/gc-frontend/internal/storage"
	"github.com/IlyaErmolovich/gc-frontend/internal/types"
)

// app is the wiring shared by the session commands
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	storage storage.StoreCloser
	client  *client.Client
	session *session.Store
	out     io.Writer
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer) (*app, error) {
	st, err := storage.Open(ctx, cfg.StorageDSN)
	if err != nil {
		return nil, err
	}

	c := client.New(cfg.APIBaseURL, st,
		client.WithTimeout(cfg.APITimeout),
		client.WithLogger(log),
	)

	a := &app{
		cfg:     cfg,
		logger:  log,
		storage: st,
		client:  c,
		out:     out,
	}
	a.session = session.NewStore(c, st, session.NavigatorFunc(a.navigate), log)
	a.session.Attach(c)

	log.Debug("session commands ready",
		slog.String("api", c.BaseURL()),
		slog.String("storage", cfg.StorageDSN),
	)
	return a, nil
}

func (a *app) Close() error {
	return a.storage.Close()
}

// navigate is the CLI's router: there are no pages, so the user is told where to go
func (a *app) navigate(_ context.Context, route string) {
	if route == session.LoginRoute {
		fmt.Fprintln(a.out, "Your session has expired. Sign in again with: gc-frontend login <username>")
		return
	}
	fmt.Fprintf(a.out, "Continue at %s\n", route)
}

func printUser(w io.Writer, u *types.User) {
	role := "user"
	if u.IsAdmin() {
		role = "admin"
	}
	fmt.Fprintf(w, "Signed in as %s (id %d, %s)\n", u.Username, u.ID, role)
	if u.DisplayName != "" {
		fmt.Fprintf(w, "  display name: %s\n", u.DisplayName)
	}
	if u.Email != "" {
		fmt.Fprintf(w, "  email: %s\n", u.Email)
	}
	if u.Avatar != "" {
		fmt.Fprintf(w, "  avatar: %s\n", u.Avatar)
	}
}

// sessionLogger is quiet unless --verbose is given, so command output stays readable
func sessionLogger(cfg *config.Config, verbose bool) *slog.Logger {
	if !verbose {
		return logger.Discard()
	}
	return logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)
}
