package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/matheus3301/wpparchive/internal/account"
	"github.com/matheus3301/wpparchive/internal/render"
	"github.com/matheus3301/wpparchive/internal/rpc"
	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show message and conversation totals",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openSource(rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			stats, err := src.GetStats()
			if err != nil {
				return err
			}
			return render.Stats(cmd.OutOrStdout(), rootOpts.format(render.FormatText), stats)
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the state of the account's daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := accountName(rootOpts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !daemonRunning(name) {
				if rootOpts.format(render.FormatText) == render.FormatText {
					fmt.Fprintf(out, "Daemon for account %q is not running.\n", name)
					return nil
				}
				return json.NewEncoder(out).Encode(map[string]any{"account": name, "state": "STOPPED"})
			}

			c, err := rpc.Dial(account.SocketPath(name))
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			resp, err := c.Status()
			if err != nil {
				return err
			}
			if rootOpts.format(render.FormatText) != render.FormatText {
				return json.NewEncoder(out).Encode(resp)
			}
			return writeStatus(out, resp)
		},
	}
}

func writeStatus(w io.Writer, s *rpc.StatusResponse) error {
	phone := s.PhoneNumber
	if phone == "" {
		phone = "-"
	}
	last := "-"
	if s.Archive.LastStoredAt > 0 {
		last = render.FormatMillis(s.Archive.LastStoredAt)
	}
	_, err := fmt.Fprintf(w,
		"Account:  %s\nPhone:    %s\nState:    %s (since %s)\nUptime:   %s\nStore:    %s\nArchived: %d stored, %d failed, last %s\nMedia:    %d saved, %d failed\n",
		s.Account, phone, s.State, render.FormatMillis(s.StateSince),
		(time.Duration(s.UptimeMs) * time.Millisecond).Round(time.Second),
		s.StorePath, s.Archive.Stored, s.Archive.Failed, last,
		s.Archive.MediaSaved, s.Archive.MediaFailed)
	if err != nil || s.Archive.LastError == "" {
		return err
	}
	_, err = fmt.Fprintf(w, "Error:    %s\n", s.Archive.LastError)
	return err
}
