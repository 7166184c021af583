// Package cli implements the wpparchive command line: pairing an account and
// reading the archived history.
package cli

import (
	"fmt"
	"os"

	"github.com/matheus3301/wpparchive/internal/render"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Account string
	DB      string
	Format  string
}

// format returns the --format value, or def when the flag was not given.
func (o *RootOptions) format(def render.Format) render.Format {
	if o.Format == "" {
		return def
	}
	f, err := render.ParseFormat(o.Format)
	if err != nil {
		return def
	}
	return f
}

// NewRootCommand creates the root command for the wpparchive CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "wpparchive",
		Short: "Query and export an archived WhatsApp history",
		Long: `wpparchive reads the history archived by wpparchived.

When the account's daemon is running, reads go through its socket.
Otherwise the history store file is opened directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format == "" {
				return nil
			}
			_, err := render.ParseFormat(opts.Format)
			return err
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Account, "account", "", "account name (overrides config default)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "history store path (bypasses the daemon)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "", "output format (csv|json|jsonl|text)")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
