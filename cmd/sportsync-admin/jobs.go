package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/matchday/sportsync/internal/adapters/scheduler"
	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data"
	"github.com/matchday/sportsync/internal/domain/model"
	"github.com/matchday/sportsync/internal/service"
)

// parseJobKey validates a CLI-supplied job key against the built-in catalog.
func parseJobKey(raw string) (model.JobKey, error) {
	key := model.JobKey(raw)
	for _, def := range core.JobCatalog() {
		if def.Key == key {
			return key, nil
		}
	}
	return "", fmt.Errorf("unknown job %q", raw)
}

func runJobs(c *commandContext, args []string) error {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := connectDB(c)
	if err != nil {
		return err
	}
	defer closeQuietly(c, db, nil)

	configs := data.NewJobConfigRepo(db, data.JobConfigRepoConfig{Logger: c.Logger})
	cfgs, err := configs.List(c.Ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tENABLED\tSCHEDULE\tDESCRIPTION")
	for _, cfg := range cfgs {
		schedule := "-"
		if cfg.ScheduleCron != nil {
			schedule = *cfg.ScheduleCron
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", cfg.Key, cfg.Enabled, schedule, cfg.Description)
	}
	return w.Flush()
}

func runSetJob(c *commandContext, args []string) error {
	fs := flag.NewFlagSet("set-job", flag.ContinueOnError)
	jobArg := fs.String("job", "", "job key (required)")
	enable := fs.Bool("enable", false, "enable the job")
	disable := fs.Bool("disable", false, "disable the job")
	cronSpec := fs.String("cron", "", "new cron schedule (five-field)")
	clearCron := fs.Bool("clear-cron", false, "remove the cron schedule")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := parseJobKey(*jobArg)
	if err != nil {
		return err
	}
	if *enable && *disable {
		return errors.New("-enable and -disable are mutually exclusive")
	}
	if *cronSpec != "" && *clearCron {
		return errors.New("-cron and -clear-cron are mutually exclusive")
	}

	update := core.JobConfigUpdate{ClearCron: *clearCron}
	if *enable || *disable {
		enabled := *enable
		update.Enabled = &enabled
	}
	if *cronSpec != "" {
		if err := scheduler.ValidateSpec(*cronSpec); err != nil {
			return fmt.Errorf("invalid cron spec %q: %w", *cronSpec, err)
		}
		update.ScheduleCron = cronSpec
	}
	if update.Enabled == nil && update.ScheduleCron == nil && !update.ClearCron {
		return errors.New("nothing to change")
	}

	db, err := connectDB(c)
	if err != nil {
		return err
	}
	defer closeQuietly(c, db, nil)

	configs := data.NewJobConfigRepo(db, data.JobConfigRepoConfig{Logger: c.Logger})
	if err := configs.Update(c.Ctx, key, update); err != nil {
		return err
	}

	c.Logger.InfoContext(c.Ctx, "job config updated", "job_key", key)
	return nil
}

func runTrigger(c *commandContext, args []string) error {
	fs := flag.NewFlagSet("trigger", flag.ContinueOnError)
	jobArg := fs.String("job", "", "job key (required)")
	by := fs.String("by", "", "operator identity recorded on the run")
	dryRun := fs.Bool("dry-run", false, "fetch and diff without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := parseJobKey(*jobArg)
	if err != nil {
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

	req := service.TriggerRequest{
		JobKey:  key,
		Trigger: model.TriggerManual,
		DryRun:  *dryRun,
	}
	if *by != "" {
		req.TriggeredBy = by
	}

	run, err := services.Trigger.TriggerJob(c.Ctx, req)
	if run != nil {
		printRun(run)
	}
	return err
}

func runRuns(c *commandContext, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	jobArg := fs.String("job", "", "filter by job key")
	limit := fs.Int("limit", 20, "maximum runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var keyFilter *model.JobKey
	if *jobArg != "" {
		key, err := parseJobKey(*jobArg)
		if err != nil {
			return err
		}
		keyFilter = &key
	}

	db, err := connectDB(c)
	if err != nil {
		return err
	}
	defer closeQuietly(c, db, nil)

	runs := data.NewJobRunRepo(db, data.JobRunRepoConfig{Logger: c.Logger})
	list, err := runs.ListRecent(c.Ctx, keyFilter, *limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tJOB\tSTATUS\tTRIGGER\tSTARTED\tDURATION\tROWS\tERROR")
	for _, run := range list {
		duration := "-"
		if run.DurationMs != nil {
			duration = (time.Duration(*run.DurationMs) * time.Millisecond).String()
		}
		errMsg := ""
		if run.ErrorMessage != nil {
			errMsg = *run.ErrorMessage
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			run.ID, run.JobKey, run.Status, run.Trigger,
			run.StartedAt.Format(time.RFC3339), duration, run.RowsAffected, errMsg)
	}
	return w.Flush()
}

func runShowRun(c *commandContext, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	id := fs.String("id", "", "run id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}

	db, err := connectDB(c)
	if err != nil {
		return err
	}
	defer closeQuietly(c, db, nil)

	runs := data.NewJobRunRepo(db, data.JobRunRepoConfig{Logger: c.Logger})
	run, err := runs.GetByID(c.Ctx, *id)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printRun(run *model.JobRun) {
	fmt.Printf("run %s: job=%s status=%s rows=%d\n",
		run.ID, run.JobKey, run.Status, run.RowsAffected)
}
