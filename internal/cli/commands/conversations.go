package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MegaGrindStone/support-chat/internal/cli/ui"
	"github.com/MegaGrindStone/support-chat/internal/models"
)

func newConversationsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "list or delete your conversations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := opts.authedClient()
			if err != nil {
				return err
			}
			convs, err := c.Conversations(cmd.Context())
			if err != nil {
				return explain(err)
			}
			ui.PrintConversations(cmd.OutOrStdout(), convs, "")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "delete a conversation with all of its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := opts.authedClient()
			if err != nil {
				return err
			}
			if err := c.DeleteConversation(cmd.Context(), args[0]); err != nil {
				return explain(err)
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "Deleted conversation %s", args[0])
			return nil
		},
	})

	return cmd
}

func newMessagesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "messages ID",
		Short: "print the messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := opts.authedClient()
			if err != nil {
				return err
			}
			msgs, err := c.Messages(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			for _, msg := range msgs {
				ui.PrintMessage(cmd.OutOrStdout(), msg)
			}
			return nil
		},
	}
}

func newFeedbackCmd(opts *options) *cobra.Command {
	var (
		rating  int
		comment string
	)

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "rate the support experience",
		Example: `  $ supportctl feedback --rating 5 --comment "Quick and friendly"`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rating < models.MinRating || rating > models.MaxRating {
				return fmt.Errorf("rating must be between %d and %d", models.MinRating, models.MaxRating)
			}

			c, _, err := opts.authedClient()
			if err != nil {
				return err
			}
			if _, err := c.Feedback(cmd.Context(), rating, comment); err != nil {
				return explain(err)
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "Thanks for your feedback!")
			return nil
		},
	}
	cmd.Flags().IntVarP(&rating, "rating", "r", models.DefaultRating, "rating from 0 to 5")
	cmd.Flags().StringVarP(&comment, "comment", "c", "", "optional comment")

	return cmd
}
