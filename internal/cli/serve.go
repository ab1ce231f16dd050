package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IlyaErmolovich/gc-frontend/internal/config"
	"github.com/IlyaErmolovich/gc-frontend/internal/host"
	"github.com/IlyaErmolovich/gc-frontend/internal/logger"
	"github.com/IlyaErmolovich/gc-frontend/internal/version"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the built single-page application",
		Long: `Serves BUILD_DIR on HOST:PORT. Paths that are not files in the build directory get the entry document
(INDEX_FILE) so client-side routes can be reloaded. With PROXY_API=true, /api/* is forwarded to API_BASE_URL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}

	serverLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)
	slog.SetDefault(serverLogger)

	serverLogger.Info("starting static host", slog.String("version", version.Get().Version))

	server, err := host.NewServer(cfg, nil, serverLogger)
	if err != nil {
		serverLogger.Error("failed to create static host", slog.String("error", err.Error()))
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		serverLogger.Error("static host error", slog.String("error", err.Error()))
		return err
	}

	serverLogger.Info("static host shutdown complete")
	return nil
}
