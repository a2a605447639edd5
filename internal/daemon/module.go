// Package daemon composes the sessiond process: store, bus, backend
// client, reconciliation engine and outbox sender, wired together with
// fx lifecycle hooks.
package daemon

import (
	"context"

	"github.com/sessiond/sessiond/internal/backend"
	"github.com/sessiond/sessiond/internal/bus"
	"github.com/sessiond/sessiond/internal/config"
	"github.com/sessiond/sessiond/internal/lock"
	"github.com/sessiond/sessiond/internal/logging"
	"github.com/sessiond/sessiond/internal/notify"
	"github.com/sessiond/sessiond/internal/outbox"
	"github.com/sessiond/sessiond/internal/profile"
	"github.com/sessiond/sessiond/internal/reconcile"
	"github.com/sessiond/sessiond/internal/status"
	"github.com/sessiond/sessiond/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideTracker,
			provideLock,
			provideStore,
			provideSettings,
			provideClient,
			provideBridge,
			provideDispatcher,
			provideEngine,
			provideSender,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideTracker(b *bus.Bus) *status.Tracker {
	return status.NewTracker(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideSettings(p Params, logger *zap.Logger) (config.Settings, error) {
	s, err := config.LoadSettings(profile.SettingsPath(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("settings loaded", zap.String("path", profile.SettingsPath(p.Profile)))
	return s, nil
}

func provideClient(b *bus.Bus) backend.Client {
	return backend.NewBusClient(b)
}

func provideBridge(b *bus.Bus) *notify.Bridge {
	return notify.NewBridge(b)
}

func provideDispatcher(b *bus.Bus) *notify.Dispatcher {
	return notify.NewDispatcher(b)
}

func provideEngine(db *store.DB, client backend.Client, settings config.Settings,
	bridge *notify.Bridge, push *notify.Dispatcher, tracker *status.Tracker,
	b *bus.Bus, logger *zap.Logger) *reconcile.Engine {
	return reconcile.NewEngine(db, client, settings, bridge, push, tracker, b, logger)
}

func provideSender(db *store.DB, client backend.Client, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, client, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, engine *reconcile.Engine, sender *outbox.Sender,
	db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start(context.Background())
			engine.Subscribe()
			sender.Start(context.Background())
			logger.Info("daemon started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			sender.Stop()
			engine.Unsubscribe()
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
