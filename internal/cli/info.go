package cli

import (
	"errors"
	"fmt"

	"github.com/matheus3301/wpparchive/internal/render"
	"github.com/spf13/cobra"
)

// ErrUnknownConversation is returned by info for a JID the store has never seen.
var ErrUnknownConversation = errors.New("unknown conversation")

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info JID",
		Short: "Show one conversation and its group members",
		Long: `Show what the archive knows about one conversation: its type, name,
last activity and, for groups, the recorded members.

Examples:
  wpparchive info 120363000000000000@g.us
  wpparchive info 5511999999999@s.whatsapp.net --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openSource(rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			jid := args[0]
			conv, err := src.Conversation(jid)
			if err != nil {
				return err
			}
			if conv == nil {
				return fmt.Errorf("%w %q", ErrUnknownConversation, jid)
			}
			members, err := src.Participants(jid)
			if err != nil {
				return err
			}
			return render.ConversationInfo(cmd.OutOrStdout(), rootOpts.format(render.FormatText), conv, members)
		},
	}
}
