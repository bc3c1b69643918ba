package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MegaGrindStone/support-chat/internal/cli/ui"
	"github.com/MegaGrindStone/support-chat/internal/client"
	"github.com/MegaGrindStone/support-chat/internal/models"
	"github.com/MegaGrindStone/support-chat/internal/transcript"
)

// chatSession is the interactive loop of the chat command. A new merger is built whenever another
// conversation is selected.
type chatSession struct {
	cmd  *cobra.Command
	opts *options

	client    *client.Client
	selection *client.Selection
	merger    *transcript.Merger
}

const chatHelp = `Commands:
  /new         start a new conversation
  /list        list your conversations
  /open ID     continue a saved conversation
  /delete ID   delete a conversation
  /help        show this help
  /quit        leave the chat`

func newChatCmd(opts *options) *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "chat with the support assistant",
		Long: `Start an interactive chat. Answers are printed while they stream in, and every
finished exchange is saved to the selected conversation. Type /help for commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := opts.authedClient()
			if err != nil {
				return err
			}

			s := &chatSession{
				cmd:       cmd,
				opts:      opts,
				client:    c,
				selection: client.NewSelection(c),
			}

			var history []models.Entry
			if conversationID != "" {
				msgs, err := s.selection.Open(cmd.Context(), conversationID)
				if err != nil {
					return explain(err)
				}
				s.printHistory(msgs)
				history = models.Entries(msgs)
			}
			s.reset(history)

			fmt.Fprintln(cmd.OutOrStdout(), ui.Styles.Banner.Render("Customer Support · type /help for commands"))
			return s.run()
		},
	}
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "continue the conversation with this id")

	return cmd
}

// reset starts a merger over a transcript seeded with history.
func (s *chatSession) reset(history []models.Entry) {
	t := transcript.New(history...)

	out := s.cmd.OutOrStdout()
	var iw *ui.InlineWriter
	t.Subscribe(func(e transcript.Event) {
		switch e.Kind {
		case transcript.EventOpened:
			fmt.Fprint(out, ui.Styles.Assistant.Render("assistant>")+" ")
			iw = ui.NewInlineWriter(out, ui.Styles.Bold.Render)
		case transcript.EventGrown:
			if iw != nil {
				_ = iw.Grow(e.Delta)
			}
		case transcript.EventFrozen:
			if iw != nil {
				_ = iw.Close()
			}
			fmt.Fprintln(out)
		}
	})

	s.merger = transcript.NewMerger(t, s.client, s.opts.logger,
		transcript.WithRecorder(client.NewRecorder(s.client, s.selection)))
}

func (s *chatSession) run() error {
	for {
		line, err := s.opts.readLine(s.cmd, ui.Styles.User.Render("you>")+" ")
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.cmd.OutOrStdout())
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "/") {
			quit, err := s.command(line)
			if err != nil {
				printError(s.cmd, explain(err))
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.merger.Send(s.cmd.Context(), line); err != nil {
			printError(s.cmd, explain(err))
		}
		if err := s.cmd.Context().Err(); err != nil {
			return err
		}
	}
}

func (s *chatSession) command(line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	out := s.cmd.OutOrStdout()
	ctx := s.cmd.Context()

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Fprintln(out, chatHelp)

	case "/new":
		s.selection.New()
		s.reset(nil)
		ui.PrintInfo(out, "Started a new conversation.")

	case "/list":
		convs, err := s.selection.Refresh(ctx)
		if err != nil {
			return false, err
		}
		ui.PrintConversations(out, convs, s.selection.Selected())

	case "/open":
		if arg == "" {
			return false, errors.New("usage: /open ID")
		}
		msgs, err := s.selection.Open(ctx, arg)
		if err != nil {
			return false, err
		}
		s.printHistory(msgs)
		s.reset(models.Entries(msgs))

	case "/delete":
		if arg == "" {
			return false, errors.New("usage: /delete ID")
		}
		reset, err := s.selection.Delete(ctx, arg)
		if err != nil {
			return false, err
		}
		ui.PrintSuccess(out, "Deleted conversation %s", arg)
		if reset {
			s.reset(nil)
			ui.PrintInfo(out, "Started a new conversation.")
		}

	default:
		return false, fmt.Errorf("unknown command %s, type /help", name)
	}

	return false, nil
}

func (s *chatSession) printHistory(msgs []models.Message) {
	for _, msg := range msgs {
		ui.PrintMessage(s.cmd.OutOrStdout(), msg)
	}
}
