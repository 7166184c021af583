package cli

import (
	"github.com/matheus3301/wpparchive/internal/render"
	"github.com/matheus3301/wpparchive/internal/store"
	"github.com/spf13/cobra"
)

// FilterOptions holds the flags shared by query and export.
type FilterOptions struct {
	*RootOptions
	From      string
	To        string
	Chat      string
	AccountID string
	Limit     int
}

func (o *FilterOptions) filter() store.Filter {
	return store.Filter{
		From:            o.From,
		To:              o.To,
		ConversationJID: o.Chat,
		AccountID:       o.AccountID,
		Limit:           o.Limit,
	}
}

func addFilterFlags(cmd *cobra.Command, opts *FilterOptions) {
	cmd.Flags().StringVar(&opts.From, "from", "", "inclusive lower bound (2024-01-31, 2024-01-31T08:00:00 or RFC3339)")
	cmd.Flags().StringVar(&opts.To, "to", "", "inclusive upper bound, same forms as --from")
	cmd.Flags().StringVar(&opts.Chat, "chat", "", "restrict to one conversation JID")
	cmd.Flags().StringVar(&opts.AccountID, "account-id", "", "restrict to messages archived by one account")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of messages (0 = unlimited)")
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List archived messages in chronological order",
		Long: `List archived messages ordered by timestamp.

Examples:
  wpparchive query --from 2024-01-01 --to 2024-01-31
  wpparchive query --chat 5511999999999@s.whatsapp.net --format json
  wpparchive query --limit 100 --format jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openSource(opts.RootOptions)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			msgs, err := src.QueryMessages(opts.filter())
			if err != nil {
				return err
			}
			return render.Messages(cmd.OutOrStdout(), opts.format(render.FormatCSV), msgs)
		},
	}
	addFilterFlags(cmd, opts)
	return cmd
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export archived messages grouped by conversation",
		Long: `Export archived messages grouped by conversation, each group carrying
its chat type and display name.

Examples:
  wpparchive export > history.json
  wpparchive export --from 2024-01-01 --format jsonl
  wpparchive export --format csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openSource(opts.RootOptions)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			groups, err := src.ExportMessages(opts.filter())
			if err != nil {
				return err
			}
			return render.Conversations(cmd.OutOrStdout(), opts.format(render.FormatJSON), groups)
		},
	}
	addFilterFlags(cmd, opts)
	return cmd
}
