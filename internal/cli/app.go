package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/existflow/narodplus/internal/api"
	"github.com/existflow/narodplus/internal/config"
	"github.com/existflow/narodplus/internal/db"
	"github.com/existflow/narodplus/internal/gateway"
	"github.com/existflow/narodplus/internal/logger"
	"github.com/existflow/narodplus/internal/qr"
	"github.com/existflow/narodplus/internal/storage"
)

// App wires the store, the gateway, the backend client and the QR
// controller for one command invocation.
type App struct {
	Config  *config.Config
	DB      *db.DB
	Store   *storage.Store
	Gateway *gateway.Gateway
	API     *api.Client
	QR      *qr.Controller
}

// openApp opens everything a command needs. The client-side gateway worker
// has no manifest: it only caches API responses for offline use.
func openApp(ctx context.Context, cfg *config.Config) (*App, error) {
	return buildApp(ctx, cfg, []string{})
}

func buildApp(ctx context.Context, cfg *config.Config, manifest []string) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	app := &App{Config: cfg}

	needDB := cfg.Storage.Driver == storage.DriverSQLite || (cfg.Gateway.Enabled && cfg.Gateway.Persist)
	if needDB {
		path := cfg.Storage.Path
		if path == "" {
			p, err := db.DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		database, err := db.Open(path)
		if err != nil {
			logger.Error("Failed to open database", logger.Err(err))
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		app.DB = database
	}

	backend, err := storage.NewBackend(cfg.Storage, storage.Dependencies{DB: app.DB})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	store, err := storage.New(ctx, backend, cfg.Storage.Passphrase())
	if err != nil {
		_ = backend.Close()
		app.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	app.Store = store

	var caches gateway.CacheStorage = gateway.NewMemoryStorage()
	if cfg.Gateway.Persist && app.DB != nil {
		caches = gateway.NewSQLiteStorage(app.DB)
	}
	gw, err := gateway.New(cfg.ServerURL, http.DefaultTransport, caches,
		gateway.WithAPIPrefixes(cfg.Gateway.APIPrefixes))
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Gateway = gw

	if cfg.Gateway.Enabled {
		w := gateway.NewWorker(cfg.Gateway.Version, manifest)
		w.SkipWaiting = cfg.Gateway.SkipWaiting
		if err := gw.Register(ctx, w); err != nil {
			logger.Warn("Offline cache unavailable, continuing online only", logger.Err(err))
		}
	}

	client, err := api.NewClient(cfg.ServerURL,
		api.WithTransport(gw),
		api.WithTokenSource(store),
	)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.API = client
	app.QR = qr.New(store, client, qr.ConfigFrom(cfg.QR))

	return app, nil
}

// Close releases the store and the database.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			logger.Warn("Failed to close storage", logger.Err(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			logger.Warn("Failed to close database", logger.Err(err))
		}
		logger.Info("Database closed")
	}
}

// requireSession returns the stored user, or an error telling the user to sign in.
func (a *App) requireSession(ctx context.Context) (string, error) {
	if !a.Store.IsAuthenticated(ctx) {
		return "", errors.New("not signed in, run 'narod auth login' first")
	}
	user, ok := a.Store.UserData(ctx)
	if !ok || user.ID == "" {
		return "", errors.New("user data not found, run 'narod auth login' again")
	}
	return user.ID, nil
}
