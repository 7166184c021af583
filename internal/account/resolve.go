package account

import "github.com/matheus3301/wpparchive/internal/config"

const DefaultName = "main"

// Resolve determines the active account name using precedence:
// 1. flagOverride (--account flag)
// 2. config.toml default_account
// 3. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultAccount != "" {
		return cfg.DefaultAccount
	}
	return DefaultName
}

// StorePath determines the history store location using precedence:
// 1. flagOverride (--db flag)
// 2. config.toml store_path
// 3. DefaultStorePath
func StorePath(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.StorePath != "" {
		return cfg.StorePath
	}
	return DefaultStorePath()
}
