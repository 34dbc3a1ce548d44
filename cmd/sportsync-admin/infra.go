package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/matchday/sportsync/internal/bootstrap"
)

// connectDB opens the database for commands that only need Postgres.
func connectDB(c *commandContext) (*sql.DB, error) {
	db, err := bootstrap.ConnectDB(c.Config.Postgres, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return db, nil
}

// connectInfra opens both Postgres and Redis for commands that build the full
// service graph.
func connectInfra(c *commandContext) (*sql.DB, *redis.Client, error) {
	db, err := connectDB(c)
	if err != nil {
		return nil, nil, err
	}

	redisClient, err := bootstrap.ConnectRedis(c.Config.Redis, c.Logger)
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close database: %w", cerr))
		}
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	return db, redisClient, nil
}

// buildServices wires the service container for commands that act through it.
func buildServices(c *commandContext, db *sql.DB, redisClient *redis.Client) (bootstrap.ServiceContainer, error) {
	return bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: &c.Config,
		DB:     db,
		Redis:  redisClient,
		Logger: c.Logger,
	})
}

func closeQuietly(c *commandContext, db *sql.DB, redisClient *redis.Client) {
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			c.Logger.Error("close redis failed", "error", err)
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			c.Logger.Error("close database failed", "error", err)
		}
	}
}
