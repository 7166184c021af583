package main

import (
	"os"

	"github.com/matheus3301/wpparchive/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
