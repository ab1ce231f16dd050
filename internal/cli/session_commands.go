package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/IlyaErmolovich/gc-frontend/internal/client"
	"github.com/IlyaErmolovich/gc-frontend/internal/session"
)

// credentialFlags holds the way a command obtains the password
type credentialFlags struct {
	passwordStdin bool
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
}

func (f *credentialFlags) password(cmd *cobra.Command) (string, error) {
	var pw string
	var err error
	if f.passwordStdin {
		pw, err = readLine(cmd.InOrStdin())
	} else {
		pw, err = getPassword(cmd.ErrOrStderr())
	}
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", errors.New("password cannot be empty")
	}
	return pw, nil
}

// sessionError is the message the session store recorded for a failed operation
func sessionError(a *app, err error) error {
	if msg := a.session.Snapshot().Error; msg != "" {
		return errors.New(msg)
	}
	if ce, ok := client.AsError(err); ok {
		return errors.New(ce.UserError())
	}
	return err
}

func newRegisterCommand(opts *rootOptions) *cobra.Command {
	creds := &credentialFlags{}
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			pw, err := creds.password(cmd)
			if err != nil {
				return err
			}
			user, err := a.session.Register(cmd.Context(), args[0], pw)
			if err != nil {
				return sessionError(a, err)
			}
			printUser(cmd.OutOrStdout(), user)
			return nil
		}),
	}
	creds.register(cmd)
	return cmd
}

func newLoginCommand(opts *rootOptions) *cobra.Command {
	creds := &credentialFlags{}
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in, replacing any stored session",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			pw, err := creds.password(cmd)
			if err != nil {
				return err
			}
			user, err := a.session.Login(cmd.Context(), args[0], pw)
			if err != nil {
				return sessionError(a, err)
			}
			printUser(cmd.OutOrStdout(), user)
			return nil
		}),
	}
	creds.register(cmd)
	return cmd
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session (the backend is not contacted)",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			a.session.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		}),
	}
}

func newWhoamiCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Restore the stored session, confirm it with the backend and show the user",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			err := a.session.CheckAuth(cmd.Context())
			st := a.session.Snapshot()

			if st.User == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				if st.Error != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "last error: %s\n", st.Error)
				}
				return nil
			}

			printUser(cmd.OutOrStdout(), st.User)
			if err != nil {
				// the cached user is shown but could not be confirmed
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", st.Error)
			}
			return nil
		}),
	}
}

func newRefreshCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-fetch the profile of the signed-in user",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.session.CheckAuth(cmd.Context()); err != nil && a.session.Snapshot().User == nil {
				return sessionError(a, err)
			}

			user, ok := a.session.RefreshUserProfile(cmd.Context())
			if !ok {
				if a.session.Snapshot().Status == session.StatusAnonymous {
					return errors.New("not signed in")
				}
				return errors.New("profile refresh failed (run with --verbose for details)")
			}
			printUser(cmd.OutOrStdout(), user)
			return nil
		}),
	}
}

func newProfileCommand(opts *rootOptions) *cobra.Command {
	profile := &cobra.Command{
		Use:   "profile",
		Short: "Manage the signed-in user's profile",
	}

	var fields, files []string
	update := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields and upload files",
		Example: `  gc-frontend profile update --set display_name="Alice A." --set email=alice@example.com
  gc-frontend profile update --file avatar=./me.png`,
		Args: cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			setFields, err := parseAssignments("set", fields)
			if err != nil {
				return err
			}
			setFiles, err := parseAssignments("file", files)
			if err != nil {
				return err
			}
			if len(setFields) == 0 && len(setFiles) == 0 {
				return errors.New("nothing to update: use --set name=value or --file name=path")
			}

			form := client.NewFormData()
			for _, f := range setFields {
				form.Add(f[0], f[1])
			}
			for _, f := range setFiles {
				file, err := os.Open(f[1])
				if err != nil {
					return fmt.Errorf("opening %s: %w", f[1], err)
				}
				defer file.Close()
				form.AddFile(f[0], f[1], file)
			}

			if err := a.session.CheckAuth(cmd.Context()); err != nil && a.session.Snapshot().User == nil {
				return sessionError(a, err)
			}
			if a.session.Snapshot().User == nil {
				return errors.New("not signed in")
			}

			user, err := a.session.UpdateProfile(cmd.Context(), form)
			if err != nil {
				if client.IsUnauthorized(err) {
					return errors.New("not signed in")
				}
				return sessionError(a, err)
			}
			printUser(cmd.OutOrStdout(), user)
			return nil
		}),
	}
	update.Flags().StringArrayVar(&fields, "set", nil, "profile field to change, as name=value (repeatable)")
	update.Flags().StringArrayVar(&files, "file", nil, "file to upload, as field=path (repeatable)")

	profile.AddCommand(update)
	return profile
}
