package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/matchday/sportsync/internal/bootstrap"
	"github.com/matchday/sportsync/internal/data"
	"github.com/matchday/sportsync/internal/devseed"
	"github.com/matchday/sportsync/internal/service"
)

const migrationTimeout = 5 * time.Minute

func runMigrate(c *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := connectDB(c)
	if err != nil {
		return err
	}
	defer closeQuietly(c, db, nil)

	ctx, cancel := context.WithTimeout(c.Ctx, migrationTimeout)
	defer cancel()
	return bootstrap.RunMigrations(ctx, db, c.Logger)
}

func runSeedConfigs(c *commandContext, args []string) error {
	fs := flag.NewFlagSet("seed-configs", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := connectDB(c)
	if err != nil {
		return err
	}
	defer closeQuietly(c, db, nil)

	repos := bootstrap.BuildRepositories(db, nil, &c.Config, c.Logger)
	return bootstrap.SeedJobConfigs(c.Ctx, repos, c.Logger)
}

func runDBSeed(c *commandContext, args []string) error {
	fs := flag.NewFlagSet("db-seed", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := connectDB(c)
	if err != nil {
		return err
	}
	defer closeQuietly(c, db, nil)

	ctx, cancel := context.WithTimeout(c.Ctx, migrationTimeout)
	defer cancel()
	if err := bootstrap.RunMigrations(ctx, db, c.Logger); err != nil {
		return err
	}
	return devseed.Run(ctx, devseed.NewServices(db, c.Logger), c.Logger)
}

func runSweep(c *commandContext, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := connectDB(c)
	if err != nil {
		return err
	}
	defer closeQuietly(c, db, nil)

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Runs:    data.NewJobRunRepo(db, data.JobRunRepoConfig{Logger: c.Logger}),
		Batches: data.NewSeedBatchRepo(db, data.SeedBatchRepoConfig{Logger: c.Logger}),
		Config:  c.Config.Reaper,
		Logger:  c.Logger,
	})
	if err != nil {
		return err
	}
	return reaper.Sweep(c.Ctx)
}

func runCoverage(c *commandContext, args []string) error {
	fs := flag.NewFlagSet("coverage", flag.ContinueOnError)
	refresh := fs.Bool("refresh", false, "recompute the snapshot instead of reading the cache")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, redisClient, err := connectInfra(c)
	if err != nil {
		return err
	}
	defer closeQuietly(c, db, redisClient)

	services, err := buildServices(c, db, redisClient)
	if err != nil {
		return err
	}

	snapshot, err := fetchSnapshot(c, services, *refresh)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func fetchSnapshot(c *commandContext, services bootstrap.ServiceContainer, refresh bool) (any, error) {
	if refresh {
		return services.Coverage.Refresh(c.Ctx)
	}
	return services.Coverage.Snapshot(c.Ctx)
}
