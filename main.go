package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"github.com/hellobdo/kairos-backend-sub001/config"
	"github.com/hellobdo/kairos-backend-sub001/internal/adapters/csvfile"
	"github.com/hellobdo/kairos-backend-sub001/internal/adapters/logger"
	"github.com/hellobdo/kairos-backend-sub001/internal/adapters/sqlite"
	"github.com/hellobdo/kairos-backend-sub001/internal/app"
	"github.com/hellobdo/kairos-backend-sub001/internal/tracking"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewSlogLogger(cfg.LogLevel)
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	// 4. Initialize Execution Source and Side Policy
	source := csvfile.NewExecutionReader(cfg.ExecutionsFile, appLogger)
	policy, err := tracking.NewSidePolicy(cfg.StrategySide)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to build side policy")
		log.Fatalf("FATAL: Failed to build side policy: %v", err)
	}

	// 5. Run Ingestion
	service, err := app.NewIngestionService(source, repo, policy, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize ingestion service")
		log.Fatalf("FATAL: Failed to initialize ingestion service: %v", err)
	}

	report, err := service.Ingest(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "Ingestion failed")
		log.Fatalf("FATAL: Ingestion failed: %v", err)
	}

	// 6. Write quarantined executions for audit
	if len(report.Rejected) > 0 {
		if err := csvfile.WriteRejectedExecutions(report.Rejected, cfg.RejectedFile); err != nil {
			appLogger.Error(ctx, err, "Failed to write rejected executions file",
				map[string]interface{}{"path": cfg.RejectedFile})
		} else {
			appLogger.Info(ctx, "Rejected executions written",
				map[string]interface{}{"path": cfg.RejectedFile, "count": len(report.Rejected)})
		}
	}
}
