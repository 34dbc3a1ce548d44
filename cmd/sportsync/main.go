package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/matchday/sportsync/config"
	"github.com/matchday/sportsync/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}

	logger := bootstrap.InitLogger(cfg.IsDev)
	if err := run(ctx, &cfg, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	logger.InfoContext(ctx, "starting sportsync",
		"environment", cfg.Environment,
		"db_host", cfg.Postgres.Host,
		"db_name", cfg.Postgres.Name,
		"enabled_services", bootstrap.EnabledServiceNames(cfg))

	if err := bootstrap.ValidateServiceConfig(cfg); err != nil {
		return err
	}

	db, redisClient, err := initInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", cerr)
		}
	}()
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()

	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: cfg,
		DB:     db,
		Redis:  redisClient,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	if err = bootstrap.SeedJobConfigs(ctx, services.Repos, logger); err != nil {
		return err
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Services: services,
	})
}

func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, *redis.Client, error) {
	db, err := bootstrap.ConnectDB(cfg.Postgres, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}

	redisClient, err := bootstrap.ConnectRedis(cfg.Redis, logger)
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
			err = errors.Join(err, fmt.Errorf("close database: %w", cerr))
		}
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	return db, redisClient, nil
}
