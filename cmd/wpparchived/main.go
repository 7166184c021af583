package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/wpparchive/internal/account"
	"github.com/matheus3301/wpparchive/internal/config"
	"github.com/matheus3301/wpparchive/internal/daemon"
	"go.uber.org/fx"
)

func main() {
	accountFlag := flag.String("account", "", "account name (overrides config default)")
	dbFlag := flag.String("db", "", "history store path (overrides config)")
	flag.Parse()

	accountName := account.Resolve(*accountFlag)
	if err := account.ValidateName(accountName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg := config.LoadOrDefault(account.ConfigPath())

	app := fx.New(
		daemon.Module(daemon.Params{
			AccountName:   accountName,
			StorePath:     account.StorePath(*dbFlag),
			LogLevel:      cfg.LogLevel,
			DownloadMedia: cfg.DownloadMedia,
		}),
	)

	app.Run()
}
