package daemon

import (
	"context"

	"github.com/matheus3301/wpparchive/internal/account"
	"github.com/matheus3301/wpparchive/internal/archive"
	"github.com/matheus3301/wpparchive/internal/bus"
	"github.com/matheus3301/wpparchive/internal/lock"
	"github.com/matheus3301/wpparchive/internal/logging"
	"github.com/matheus3301/wpparchive/internal/rpc"
	"github.com/matheus3301/wpparchive/internal/status"
	"github.com/matheus3301/wpparchive/internal/store"
	"github.com/matheus3301/wpparchive/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved account configuration passed to the fx module.
type Params struct {
	AccountName   string
	StorePath     string // history store file; empty = account.DefaultStorePath
	SocketPath    string // optional override for testing; empty = use default
	LogLevel      string
	DownloadMedia bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAdapter,
			provideEngine,
			provideHistoryService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(account.LogPath(p.AccountName), p.AccountName, p.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(lc fx.Lifecycle, p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := account.EnsureDir(p.AccountName); err != nil {
		return nil, err
	}
	logger.Info("acquiring account lock", zap.String("account", p.AccountName))
	l, err := lock.Acquire(account.Dir(p.AccountName))
	if err != nil {
		return nil, err
	}
	logger.Info("account lock acquired")
	lc.Append(fx.StopHook(func() {
		if err := l.Release(); err != nil {
			logger.Warn("error releasing lock", zap.Error(err))
		}
	}))
	return l, nil
}

// provideStore ties the history store to the app lifecycle: it is
// initialized before anything else starts and closed after everything else
// stopped, including when a later start hook fails. Taking the lock as a
// parameter keeps the store's hooks nested inside the lock's.
func provideStore(lc fx.Lifecycle, p Params, _ *lock.Lock, logger *zap.Logger) *store.Store {
	path := p.StorePath
	if path == "" {
		path = account.DefaultStorePath()
	}
	s := store.New(path, logger)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return s.Initialize()
		},
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
	return s
}

func provideAdapter(lc fx.Lifecycle, p Params, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	adapter, err := wa.NewAdapter(context.Background(), p.AccountName, b, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(adapter.Close))
	return adapter, nil
}

func provideEngine(p Params, s *store.Store, b *bus.Bus, adapter *wa.Adapter, logger *zap.Logger) *archive.Engine {
	var media archive.MediaSaver
	if p.DownloadMedia {
		media = adapter
	}
	return archive.NewEngine(s, b, adapter, media, logger)
}

func provideHistoryService(p Params, s *store.Store, m *status.Machine, engine *archive.Engine, adapter *wa.Adapter) *rpc.Service {
	return rpc.NewService(p.AccountName, s.Path(), s, m, engine, adapter)
}

func registerLifecycle(lc fx.Lifecycle, p Params, srv *Server, adapter *wa.Adapter, engine *archive.Engine, machine *status.Machine, b *bus.Bus, logger *zap.Logger) {
	var stopWatch func()
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			stopWatch = watchStatus(b, logger)

			// Start archive engine (subscribes to wa.* bus events).
			engine.Start(context.Background())

			// Register event handler for whatsmeow events.
			handler := wa.NewEventHandler(b, machine, adapter, p.AccountName, logger)
			adapter.RegisterEventHandler(handler.Handle)

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			// Transition state based on auth status.
			if adapter.IsLoggedIn() {
				_ = machine.Transition(status.Connecting)
				go func() {
					if err := adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
						_ = machine.Transition(status.Error)
					}
				}()
			} else {
				logger.Info("no credentials found, run `wpparchive login` to pair this account")
				_ = machine.Transition(status.AuthRequired)
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			adapter.Disconnect()
			engine.Stop()
			srv.Stop(ctx)
			stopWatch()
			logger.Info("daemon stopped")
			return nil
		},
	})
}
