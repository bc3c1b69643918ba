package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/MegaGrindStone/support-chat/internal/cli/config"
	"github.com/MegaGrindStone/support-chat/internal/cli/ui"
	"github.com/MegaGrindStone/support-chat/internal/client"
)

const version = "0.1.0"

// options holds the global flags and the state shared by the subcommands of one invocation.
type options struct {
	credentialsPath string
	server          string
	debug           bool

	logger *slog.Logger
	input  *bufio.Reader
}

var errNotLoggedIn = errors.New("not logged in, run 'supportctl login' first")

// NewRootCmd builds the supportctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "supportctl",
		Short:   "Customer support chat from the terminal",
		Version: version,
		Long: `A command-line client for the support chat server. Sign in, chat with the support
assistant, browse and delete your conversations, and leave feedback.`,
		Example: `  # Create an account on a local server
  $ supportctl signup --email ada@example.com

  # Chat in a new conversation
  $ supportctl chat

  # Continue a saved conversation
  $ supportctl chat --conversation <id>`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.setup,
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("supportctl version %s\n", version))

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.credentialsPath, "credentials", "", "credentials file (default <config dir>/supportctl/credentials.yaml)")
	flags.StringVarP(&opts.server, "server", "s", "", "server address, overrides the one saved at login")
	flags.BoolVar(&opts.debug, "debug", false, "log requests to stderr")

	rootCmd.AddCommand(
		newLoginCmd(opts),
		newSignUpCmd(opts),
		newLogoutCmd(opts),
		newWhoAmICmd(opts),
		newChatCmd(opts),
		newConversationsCmd(opts),
		newMessagesCmd(opts),
		newFeedbackCmd(opts),
	)

	return rootCmd
}

func (o *options) setup(cmd *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	if o.debug {
		level = slog.LevelDebug
	}
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	o.input = bufio.NewReader(cmd.InOrStdin())

	if o.credentialsPath == "" {
		path, err := config.Path()
		if err != nil {
			return err
		}
		o.credentialsPath = path
	}
	return nil
}

func (o *options) loadCredentials() (config.Credentials, error) {
	creds, err := config.Load(o.credentialsPath)
	if err != nil {
		return config.Credentials{}, err
	}
	if o.server != "" {
		creds.Server = o.server
	}
	return creds, nil
}

// authedClient returns a client carrying the saved session token.
func (o *options) authedClient() (*client.Client, config.Credentials, error) {
	creds, err := o.loadCredentials()
	if err != nil {
		return nil, config.Credentials{}, err
	}
	if !creds.IsAuthenticated() {
		return nil, config.Credentials{}, errNotLoggedIn
	}

	c, err := client.New(creds.Server, creds.Token, o.logger)
	if err != nil {
		return nil, config.Credentials{}, err
	}
	return c, creds, nil
}

// readLine prompts for a line of input. The trailing newline is removed.
func (o *options) readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, err := o.input.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword prompts for a password without echo when the input is a terminal.
func (o *options) readPassword(cmd *cobra.Command, prompt string) (string, error) {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return o.readLine(cmd, prompt)
	}

	fmt.Fprint(cmd.OutOrStdout(), prompt)
	pw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// explain turns API errors into hints for the user.
func explain(err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		return fmt.Errorf("%w (your session may have expired, run 'supportctl login')", err)
	}
	return err
}

func printError(cmd *cobra.Command, err error) {
	ui.PrintError(cmd.ErrOrStderr(), "%v", err)
}
