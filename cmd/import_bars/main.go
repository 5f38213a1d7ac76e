// Command import_bars loads price bars from a CSV export into the bar store
// so backtests can run against them.
package main

import (
	"context"
	"log"

	"github.com/hellobdo/kairos-backend-sub001/config"
	"github.com/hellobdo/kairos-backend-sub001/internal/adapters/csvfile"
	"github.com/hellobdo/kairos-backend-sub001/internal/adapters/logger"
	"github.com/hellobdo/kairos-backend-sub001/internal/adapters/sqlite"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewSlogLogger(cfg.LogLevel)
	ctx := context.Background()

	bars, err := csvfile.ReadBars(ctx, cfg.BarsFile, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to read bars from %s: %v", cfg.BarsFile, err)
	}
	if len(bars) == 0 {
		appLogger.Warn(ctx, "No bars found in import file", map[string]interface{}{"path": cfg.BarsFile})
		return
	}

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	if err := repo.SaveBars(ctx, bars); err != nil {
		log.Fatalf("FATAL: Failed to save bars: %v", err)
	}
	appLogger.Info(ctx, "Bars imported", map[string]interface{}{
		"path": cfg.BarsFile, "count": len(bars),
	})
}
