package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/matheus3301/wpparchive/internal/account"
	"github.com/matheus3301/wpparchive/internal/lock"
	"github.com/matheus3301/wpparchive/internal/rpc"
	"github.com/matheus3301/wpparchive/internal/store"
)

// ErrNoStore is returned when neither a daemon nor a store file is available.
var ErrNoStore = errors.New("no history store")

// source is an open history reader and the way to release it.
type source struct {
	rpc.Reader
	close func() error
}

func (s *source) Close() error {
	return s.close()
}

// accountName resolves and validates the --account flag.
func accountName(opts *RootOptions) (string, error) {
	name := account.Resolve(opts.Account)
	if err := account.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// daemonRunning reports whether a daemon holds the account lock. It does not
// create the account directory.
func daemonRunning(name string) bool {
	dir := account.Dir(name)
	if _, err := os.Stat(dir); err != nil {
		return false
	}
	_, held := lock.Holder(dir)
	return held
}

// openSource picks the daemon when it runs and --db was not given, and the
// store file otherwise.
func openSource(opts *RootOptions) (*source, error) {
	name, err := accountName(opts)
	if err != nil {
		return nil, err
	}

	if opts.DB == "" && daemonRunning(name) {
		c, err := rpc.Dial(account.SocketPath(name))
		if err != nil {
			return nil, fmt.Errorf("connect to daemon for account %q: %w", name, err)
		}
		return &source{Reader: c, close: c.Close}, nil
	}

	path := account.StorePath(opts.DB)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNoStore, path)
		}
		return nil, err
	}
	s, err := store.Open(path, nil)
	if err != nil {
		return nil, err
	}
	return &source{Reader: s, close: s.Close}, nil
}
