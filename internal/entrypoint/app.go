package entrypoint

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mrlokans/readstats/internal/config"
	"github.com/mrlokans/readstats/internal/credentials"
	"github.com/mrlokans/readstats/internal/crypto"
	"github.com/mrlokans/readstats/internal/database"
	"github.com/mrlokans/readstats/internal/database/books"
	"github.com/mrlokans/readstats/internal/database/settings"
	"github.com/mrlokans/readstats/internal/database/syncruns"
	"github.com/mrlokans/readstats/internal/database/users"
	"github.com/mrlokans/readstats/internal/entities"
	"github.com/mrlokans/readstats/internal/settingsstore"
	"github.com/mrlokans/readstats/internal/statsync"
	"github.com/mrlokans/readstats/internal/storage"
	"github.com/mrlokans/readstats/internal/storage/providers/webdav"
)

// App holds the components shared by the server and the CLI commands.
type App struct {
	Config      *config.Config
	DB          *database.Database
	Users       *users.Repository
	Books       *books.Repository
	Runs        *syncruns.Repository
	Credentials *credentials.Store
	Settings    *settingsstore.SettingsStore
	Sync        *statsync.Service
	Logger      *slog.Logger
}

// NewApp opens the database and builds the sync service on top of it.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	secret, err := credentials.ResolveSecret(cfg.Encryption.Key, cfg.Encryption.KeyFile)
	if err != nil {
		return nil, err
	}
	encryptor, err := crypto.NewEncryptorFromSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential encryption: %w", err)
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:      cfg,
		DB:          db,
		Users:       users.NewRepository(db.DB),
		Books:       books.NewRepository(db.DB),
		Runs:        syncruns.NewRepository(db.DB),
		Credentials: credentials.New(db.DB, encryptor),
		Settings:    settingsstore.New(settings.NewRepository(db.DB), cfg.Sync.CronSchedule()),
		Logger:      logger,
	}

	app.Sync = statsync.NewService(statsync.Deps{
		Credentials: app.Credentials,
		Runs:        app.Runs,
		Library:     app.Books,
		NewClient:   NewClientFactory(cfg.WebDAV),
		Pool:        storage.NewPool(cfg.WebDAV.MaxConcurrent, cfg.WebDAV.Timeout),
		Logger:      logger,
	}, statsync.Config{
		BasePath:    cfg.WebDAV.BasePath,
		TempDir:     cfg.WebDAV.TempDir,
		LockTimeout: cfg.Sync.LockTimeout,
	})

	return app, nil
}

// NewClientFactory connects to the WebDAV server named by each user's
// credentials.
func NewClientFactory(cfg config.WebDAV) statsync.ClientFactory {
	return func(c credentials.Credentials) storage.Client {
		return webdav.NewClient(c.URL, c.Login, c.Password, webdav.Options{Timeout: cfg.Timeout})
	}
}

// DefaultUser returns the configured default user, creating it if needed.
func (a *App) DefaultUser(ctx context.Context) (*entities.User, error) {
	if !a.Config.Auth.DefaultUserEnabled {
		return nil, fmt.Errorf("default user is disabled")
	}
	return a.Users.EnsureUser(ctx, a.Config.Auth.DefaultUsername)
}

// ResolveUser returns the user with the given id, or the default user when
// id is zero.
func (a *App) ResolveUser(ctx context.Context, id uint) (*entities.User, error) {
	if id == 0 {
		return a.DefaultUser(ctx)
	}
	return a.Users.GetUserByID(ctx, id)
}

func (a *App) Close() error {
	return a.DB.Close()
}
