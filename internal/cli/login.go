package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/matheus3301/wpparchive/internal/account"
	"github.com/matheus3301/wpparchive/internal/config"
	"github.com/matheus3301/wpparchive/internal/lock"
	"github.com/matheus3301/wpparchive/internal/logging"
	"github.com/matheus3301/wpparchive/internal/wa"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Pair an account by scanning a QR code",
		Long: `Pair the account with a phone. Open WhatsApp, go to Linked devices and
scan the code printed here. The daemon must not be running.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLogin(ctx, rootOpts, cmd.OutOrStdout())
		},
	}
}

func runLogin(ctx context.Context, opts *RootOptions, out io.Writer) error {
	name, err := accountName(opts)
	if err != nil {
		return err
	}

	lk, err := lock.Acquire(account.Dir(name))
	if err != nil {
		var held *lock.LockHeldError
		if errors.As(err, &held) {
			return fmt.Errorf("daemon for account %q is running (PID %d); stop it before pairing", name, held.PID)
		}
		return err
	}
	defer func() { _ = lk.Release() }()

	if err := account.EnsureDir(name); err != nil {
		return fmt.Errorf("create account dir: %w", err)
	}

	level := config.LoadOrDefault(account.ConfigPath()).LogLevel
	if level == "" {
		level = "warn"
	}
	logger := logging.NewConsole(level).With(zap.String("account", name))
	defer func() { _ = logger.Sync() }()

	adapter, err := wa.NewAdapter(ctx, name, nil, logger)
	if err != nil {
		return err
	}
	defer func() { _ = adapter.Close() }()

	if adapter.IsLoggedIn() {
		fmt.Fprintf(out, "Account %q is already paired with %s.\n", name, adapter.PhoneNumber())
		return nil
	}

	events, err := adapter.StartQRAuth(ctx)
	if err != nil {
		return fmt.Errorf("start pairing: %w", err)
	}
	defer adapter.Disconnect()

	for evt := range events {
		switch evt.Type {
		case wa.AuthEventQRCode:
			fmt.Fprintf(out, "\n  Scan this QR code with WhatsApp (Linked devices):\n\n%s\n", renderQR(evt.QRCode))
		case wa.AuthEventAuthenticated:
			fmt.Fprintf(out, "Paired account %q with %s.\n", name, adapter.PhoneNumber())
			if err := rememberAccount(account.ConfigPath(), name); err != nil {
				logger.Warn("could not record default account", zap.Error(err))
			}
			return nil
		case wa.AuthEventTimeout:
			return errors.New("QR code expired; run login again")
		case wa.AuthEventAuthFailed:
			return fmt.Errorf("pairing failed: %s", evt.Message)
		}
	}
	if ctx.Err() != nil {
		return errors.New("pairing cancelled")
	}
	return errors.New("pairing ended without success")
}

// rememberAccount makes name the default account when the config names none.
// A config file that exists but does not parse is left alone.
func rememberAccount(path, name string) error {
	cfg, err := config.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = &config.Config{}
	case err != nil:
		return err
	}
	if cfg.DefaultAccount != "" {
		return nil
	}
	cfg.DefaultAccount = name
	return config.Save(path, cfg)
}

// renderQR converts a string to a compact QR code using Unicode half-block
// characters. Two bitmap rows become one terminal line.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := y+1 < rows && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
