package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MegaGrindStone/support-chat/internal/cli/config"
	"github.com/MegaGrindStone/support-chat/internal/cli/ui"
	"github.com/MegaGrindStone/support-chat/internal/client"
)

type credentialFlags struct {
	email    string
	password string
	name     string
}

func newLoginCmd(opts *options) *cobra.Command {
	var flags credentialFlags

	cmd := &cobra.Command{
		Use:   "login [server]",
		Short: "sign in and save the session",
		Long: `Sign in to the support chat server and save the session token locally.

The token is stored in the credentials file and used by all subsequent commands
until it expires or you log out. Missing email or password are prompted for.`,
		Example: `  $ supportctl login
  $ supportctl login http://support.example.com -e ada@example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStartSession(cmd, opts, args, flags, false)
		},
	}
	cmd.Flags().StringVarP(&flags.email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&flags.password, "password", "p", "", "account password")

	return cmd
}

func newSignUpCmd(opts *options) *cobra.Command {
	var flags credentialFlags

	cmd := &cobra.Command{
		Use:   "signup [server]",
		Short: "create an account and save the session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStartSession(cmd, opts, args, flags, true)
		},
	}
	cmd.Flags().StringVarP(&flags.email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&flags.password, "password", "p", "", "account password, at least 6 characters")
	cmd.Flags().StringVarP(&flags.name, "name", "n", "", "display name")

	return cmd
}

func runStartSession(cmd *cobra.Command, opts *options, args []string, flags credentialFlags, signUp bool) error {
	creds, err := opts.loadCredentials()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		creds.Server = args[0]
	}

	if flags.email == "" {
		if flags.email, err = opts.readLine(cmd, "Email: "); err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}
	if flags.password == "" {
		if flags.password, err = opts.readPassword(cmd, "Password: "); err != nil {
			return err
		}
	}

	c, err := client.New(creds.Server, "", opts.logger)
	if err != nil {
		return err
	}

	var sess client.Session
	if signUp {
		sess, err = c.SignUp(cmd.Context(), flags.email, flags.password, flags.name)
	} else {
		sess, err = c.SignIn(cmd.Context(), flags.email, flags.password)
	}
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	creds = config.Credentials{
		Server: c.Server(),
		Token:  sess.Token,
		UserID: sess.User.ID,
		Email:  sess.User.Email,
		Name:   sess.User.Name,
	}
	if err := creds.Save(opts.credentialsPath); err != nil {
		return err
	}

	ui.PrintSuccess(cmd.OutOrStdout(), "Signed in as %s <%s>", sess.User.Name, sess.User.Email)
	ui.PrintInfo(cmd.OutOrStdout(), "Credentials saved to %s", opts.credentialsPath)
	return nil
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "revoke the session and forget it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, creds, err := opts.authedClient()
			if errors.Is(err, errNotLoggedIn) {
				ui.PrintInfo(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			if err != nil {
				return err
			}

			if err := c.SignOut(cmd.Context()); err != nil && !errors.Is(err, client.ErrUnauthorized) {
				return fmt.Errorf("failed to sign out: %w", err)
			}

			if err := (config.Credentials{Server: creds.Server}).Save(opts.credentialsPath); err != nil {
				return err
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoAmICmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, creds, err := opts.authedClient()
			if err != nil {
				return err
			}

			user, err := c.Me(cmd.Context())
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", ui.Styles.Bold.Render(user.Name), user.Email)
			ui.PrintInfo(cmd.OutOrStdout(), "%s", creds.Server)
			return nil
		},
	}
}
