// Package cli implements the gc-frontend command: the static host (serve) and session commands that drive the
// session store against the backend from a terminal.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/IlyaErmolovich/gc-frontend/internal/config"
	"github.com/IlyaErmolovich/gc-frontend/internal/version"
)

type rootOptions struct {
	verbose bool
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "gc-frontend",
		Short:         "Static host and session tools for the gc web application",
		Long:          `Serves the pre-built single-page application and signs in to the backend from the command line.`,
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests and storage activity (level from LOG_LEVEL)")

	root.AddCommand(
		newServeCommand(),
		newRegisterCommand(opts),
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newWhoamiCommand(opts),
		newRefreshCommand(opts),
		newProfileCommand(opts),
	)
	return root
}

// withApp loads the configuration, opens the session storage and hands the wiring to run.
// The storage is closed when run returns.
func withApp(opts *rootOptions, run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := config.NewConfig()
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, sessionLogger(cfg, opts.verbose), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		return run(cmd, args, a)
	}
}
