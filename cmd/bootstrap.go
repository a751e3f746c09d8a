package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"mcp-manager/core/backup"
	"mcp-manager/core/config"
	"mcp-manager/core/database"
	"mcp-manager/core/lock"
	"mcp-manager/core/storage"
	"mcp-manager/feature/mcp"
	"mcp-manager/feature/mcp/clientconfig"
	"mcp-manager/feature/mcp/engine"
	"mcp-manager/feature/mcp/models"
	"mcp-manager/feature/mcp/registry"
	"mcp-manager/feature/mcp/settings"
	"mcp-manager/feature/mcp/syncgroup"
	"mcp-manager/feature/presets"

	"go.uber.org/zap"
)

// lockDirName holds the cross-process lock files inside the data directory.
const lockDirName = ".locks"

// application is the wired set of stores shared by the server and the CLI.
type application struct {
	cfg      *config.Config
	logger   *zap.Logger
	settings *settings.FileStore
	backups  *backup.Manager
	registry *registry.Store
	configs  *clientconfig.Store
	engine   *engine.Engine
	groups   *syncgroup.Manager
	presets  presets.Store
}

// bootstrap loads settings.json and wires every store on top of the data directory.
func bootstrap(ctx context.Context, cfg *config.Config, logg *zap.Logger) (*application, error) {
	dataDir := cfg.Data.Dir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		logg.Warn("Home directory unknown, built-in client paths are relative", zap.Error(err))
	}

	store := settings.NewFileStore(filepath.Join(dataDir, settings.FileName), func() *models.Settings {
		return settings.Defaults(home, runtime.GOOS, cfg.Data.MaxBackups)
	}, logg)

	var opts []backup.Option
	if cfg.Storage.Enabled {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			logg.Warn("Backup mirror disabled", zap.Error(err))
		} else {
			opts = append(opts, backup.WithMirror(storage.NewBackupMirror(client, cfg.Storage.Bucket, cfg.Storage.Prefix)))
			logg.Info("Mirroring backups", zap.String("bucket", cfg.Storage.Bucket), zap.String("prefix", cfg.Storage.Prefix))
		}
	}
	backups := backup.NewManager(func() int { return store.Current().MaxBackups }, logg, opts...)
	store.SetBackuper(backups)

	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	locks := lock.New(filepath.Join(dataDir, lockDirName))
	reg := registry.NewStore(dataDir, backups, locks, logg)
	configs := clientconfig.NewStore(dataDir, store, backups, locks, logg)

	return &application{
		cfg:      cfg,
		logger:   logg,
		settings: store,
		backups:  backups,
		registry: reg,
		configs:  configs,
		engine:   engine.New(store, reg, configs, logg),
		groups:   syncgroup.NewManager(store, configs, logg),
		presets:  openPresets(ctx, cfg, backups, locks, logg),
	}, nil
}

// openPresets uses the SQL store when a database is configured and reachable,
// and presets.json otherwise.
func openPresets(ctx context.Context, cfg *config.Config, backups *backup.Manager, locks *lock.PathLocker, logg *zap.Logger) presets.Store {
	fileStore := presets.NewFileStore(cfg.Data.Dir, backups, locks, logg)
	if !cfg.Database.Enabled() {
		return fileStore
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logg.Warn("Optional database connection failed, using presets file", zap.Error(err))
		return fileStore
	}
	sqlStore := presets.NewGormStore(db)
	if err := sqlStore.Migrate(ctx); err != nil {
		logg.Warn("Preset table migration failed, using presets file", zap.Error(err))
		return fileStore
	}
	logg.Info("Presets stored in database", zap.String("driver", cfg.Database.Driver))
	return sqlStore
}

// service returns the configuration service used by the HTTP feature and the CLI.
func (a *application) service() *mcp.Service {
	return mcp.NewService(a.settings, a.engine, a.groups, a.logger)
}
