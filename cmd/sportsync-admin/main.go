// Command sportsync-admin is the operator CLI: migrations, job config
// management, manual job triggers, and run inspection.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/matchday/sportsync/config"
	"github.com/matchday/sportsync/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	logger := bootstrap.InitLogger(cfg.IsDev)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmdName)
		printUsage()
		os.Exit(2)
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1)
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrate,
		},
		"seed-configs": {
			name:        "seed-configs",
			description: "Insert missing job config rows for the built-in catalog",
			run:         runSeedConfigs,
		},
		"db-seed": {
			name:        "db-seed",
			description: "Seed sample leagues, fixtures, and odds for development",
			run:         runDBSeed,
		},
		"jobs": {
			name:        "jobs",
			description: "List job configs",
			run:         runJobs,
		},
		"set-job": {
			name:        "set-job",
			description: "Enable/disable a job or change its cron schedule",
			run:         runSetJob,
		},
		"trigger": {
			name:        "trigger",
			description: "Trigger a job run manually",
			run:         runTrigger,
		},
		"runs": {
			name:        "runs",
			description: "List recent job runs",
			run:         runRuns,
		},
		"run": {
			name:        "run",
			description: "Show one job run in detail",
			run:         runShowRun,
		},
		"sweep": {
			name:        "sweep",
			description: "Run one reaper cleanup pass now",
			run:         runSweep,
		},
		"coverage": {
			name:        "coverage",
			description: "Print the league coverage snapshot",
			run:         runCoverage,
		},
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: sportsync-admin <command> [flags]")
	fmt.Fprintln(os.Stderr)

	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stderr, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%s\n", name, cmds[name].description)
	}
	_ = w.Flush()
}
