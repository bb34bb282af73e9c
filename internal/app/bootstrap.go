// Package app orchestrates the startup sequence: environment, config,
// logging, runtime directories and the trade journal.
package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/markremover/futures-oracle/internal/infra"
	"github.com/markremover/futures-oracle/internal/storage"
)

// Bootstrap holds everything Initialize builds.
type Bootstrap struct {
	Config *infra.Config
	Store  *storage.TradeStore

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (env, config, dirs, DB).
func (b *Bootstrap) Initialize() error {
	// .env is optional; real deployments export variables directly.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	b.Config = cfg

	infra.NewLogger(cfg.Logging.Level, cfg.Logging.Format, nil)
	slog.Info("🚀 Bootstrapping Futures Oracle",
		slog.String("version", cfg.App.Version),
		slog.String("mode", cfg.Trading.Mode))

	// Data isolation per mode: paper and live never share a journal.
	mode := strings.ToLower(cfg.Trading.Mode)
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", mode)
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// Single instance per workspace; two writers would corrupt the journal.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "trades.db")
	}
	store, err := storage.NewTradeStore(dbPath)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("✅ Trade journal initialized (WAL-mode)", "path", dbPath, "mode", mode)

	return nil
}

// Close releases the instance lock and the journal.
func (b *Bootstrap) Close() {
	if b.Store != nil {
		b.Store.Close()
	}
	if b.unlock != nil {
		b.unlock()
	}
}
