package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matchday/sportsync/config"
	"github.com/matchday/sportsync/internal/adapters/provider"
	reaperadapter "github.com/matchday/sportsync/internal/adapters/reaper"
	"github.com/matchday/sportsync/internal/adapters/scheduler"
	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data"
	"github.com/matchday/sportsync/internal/domain/model"
	"github.com/matchday/sportsync/internal/observability/notify/slack"
	"github.com/matchday/sportsync/internal/observability/statsd"
	"github.com/matchday/sportsync/internal/service"
	"github.com/matchday/sportsync/internal/service/failurenotifier"
)

const shutdownWaitTimeout = 30 * time.Second

// Repositories groups the storage-layer implementations behind the core
// ports; no business rules here.
type Repositories struct {
	Runs     *data.JobRunRepo
	Configs  *data.JobConfigRepo
	Batches  *data.SeedBatchRepo
	Fixtures *data.FixtureRepo
	Odds     *data.OddRepo
	Leagues  *data.LeagueRepo
	Cache    *data.RedisCacheRepo
	Locks    *data.LockManager
}

// BuildRepositories constructs all repositories over the shared connections.
func BuildRepositories(db *sql.DB, redisClient redis.UniversalClient, cfg *config.AppConfig, logger *slog.Logger) *Repositories {
	return &Repositories{
		Runs: data.NewJobRunRepo(db, data.JobRunRepoConfig{
			Environment: cfg.Environment,
			Logger:      logger,
		}),
		Configs:  data.NewJobConfigRepo(db, data.JobConfigRepoConfig{Logger: logger}),
		Batches:  data.NewSeedBatchRepo(db, data.SeedBatchRepoConfig{Logger: logger}),
		Fixtures: data.NewFixtureRepo(db, data.FixtureRepoConfig{Logger: logger}),
		Odds:     data.NewOddRepo(db, data.OddRepoConfig{Logger: logger}),
		Leagues:  data.NewLeagueRepo(db, data.LeagueRepoConfig{Logger: logger}),
		Cache:    data.NewRedisCacheRepo(redisClient),
		Locks:    data.NewLockManager(db, logger),
	}
}

// ObservabilityContainer holds the wired observability sinks.
type ObservabilityContainer struct {
	// MetricsSink is nil when metrics are disabled; services treat a nil sink
	// as a no-op.
	MetricsSink     *statsd.Client
	FailureNotifier *failurenotifier.Service
}

func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	notifierLogger := logger.With("component", "failure_notifier")

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{Logger: notifierLogger})
	}

	var sinks []failurenotifier.SinkRegistration
	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: notifierLogger,
		Sinks:  sinks,
	})
}

// ServiceContainer holds the fully wired application services.
type ServiceContainer struct {
	Repos         *Repositories
	Provider      core.ProviderClient
	Coverage      *core.CoverageService
	Harness       *service.Harness
	FixtureSync   *service.FixtureSyncService
	OddsSync      *service.OddsSyncService
	LeagueSeed    *service.LeagueSeedService
	Recovery      *service.RecoveryService
	Trigger       *service.SyncTriggerService
	Observability ObservabilityContainer
}

// ServiceDeps groups the external resources services are built over.
type ServiceDeps struct {
	DB     *sql.DB
	Redis  redis.UniversalClient
	Config *config.AppConfig
	Logger *slog.Logger

	// Provider overrides the default HTTP provider client, mainly for tests.
	Provider core.ProviderClient
}

// NewServices wires the full service graph.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	repos := BuildRepositories(deps.DB, deps.Redis, cfg, logger)
	observability := buildObservability(logger, cfg.Observability)

	providerClient := deps.Provider
	if providerClient == nil {
		client, err := provider.NewClient(provider.ClientOptions{
			Config: cfg.Provider,
			Logger: logger,
		})
		if err != nil {
			return ServiceContainer{}, fmt.Errorf("build provider client: %w", err)
		}
		providerClient = client
	}

	coverage := core.NewCoverageService(core.CoverageServiceOptions{
		Cache:    repos.Cache,
		Leagues:  repos.Leagues,
		Fixtures: repos.Fixtures,
		TTL:      cfg.Cache.CoverageTTL,
	})

	harness := service.NewHarness(service.HarnessOptions{
		Runs:     repos.Runs,
		Configs:  repos.Configs,
		Metrics:  observability.MetricsSink,
		Notifier: observability.FailureNotifier,
		Logger:   logger,
	})

	engineOpts := service.SyncEngineOptions{
		Batches:     repos.Batches,
		ChunkSize:   cfg.Sync.ChunkSize,
		Concurrency: cfg.Sync.Concurrency,
		Metrics:     observability.MetricsSink,
		Logger:      logger,
	}

	fixtureSync := service.NewFixtureSyncService(service.FixtureSyncServiceOptions{
		Provider: providerClient,
		Fixtures: repos.Fixtures,
		Leagues:  repos.Leagues,
		Engine:   service.NewSyncEngine[model.FixtureDTO](engineOpts),
		Logger:   logger,
	})
	oddsSync := service.NewOddsSyncService(service.OddsSyncServiceOptions{
		Provider: providerClient,
		Fixtures: repos.Fixtures,
		Odds:     repos.Odds,
		Leagues:  repos.Leagues,
		Engine:   service.NewOddsSyncEngine(engineOpts),
		Logger:   logger,
	})
	leagueSeed := service.NewLeagueSeedService(service.LeagueSeedServiceOptions{
		Provider: providerClient,
		Leagues:  repos.Leagues,
		Engine:   service.NewSyncEngine[model.LeagueDTO](engineOpts),
		Logger:   logger,
	})
	recovery := service.NewRecoveryService(service.RecoveryServiceOptions{
		Fixtures:    repos.Fixtures,
		FixtureSync: fixtureSync,
		Listener:    &service.LoggingTransitionListener{Logger: logger},
		Defaults:    cfg.Recovery,
		Logger:      logger,
	})

	trigger := service.NewSyncTriggerService(service.SyncTriggerOptions{
		Harness:     harness,
		Locker:      repos.Locks,
		Fixtures:    fixtureSync,
		Odds:        oddsSync,
		Leagues:     leagueSeed,
		Recovery:    recovery,
		Coverage:    coverage,
		LockTimeout: cfg.Sync.LockTimeout,
		Logger:      logger,
	})

	return ServiceContainer{
		Repos:         repos,
		Provider:      providerClient,
		Coverage:      coverage,
		Harness:       harness,
		FixtureSync:   fixtureSync,
		OddsSync:      oddsSync,
		LeagueSeed:    leagueSeed,
		Recovery:      recovery,
		Trigger:       trigger,
		Observability: observability,
	}, nil
}

// SeedJobConfigs inserts missing job config rows for the built-in catalog.
// Existing rows are left alone so operator edits survive deploys.
func SeedJobConfigs(ctx context.Context, repos *Repositories, logger *slog.Logger) error {
	if err := repos.Configs.SeedDefaults(ctx, core.JobCatalog()); err != nil {
		return fmt.Errorf("seed job configs: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "job config defaults ensured")
	}
	return nil
}

// backgroundService pairs a runner loop with its name for logging.
type backgroundService struct {
	name    string
	enabled bool
	run     func(context.Context) error
}

// ServiceOrchestrationConfig groups everything needed to run the process.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Logger   *slog.Logger
	DB       *sql.DB
	Services ServiceContainer
}

// RunServicesWithShutdown starts all enabled background services and blocks
// until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	services, err := buildBackgroundServices(cfg, enabled, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, len(services)+1)
	var handles []<-chan struct{}
	for _, svc := range services {
		if !svc.enabled {
			continue
		}
		handles = append(handles, launchBackground(ctx, svc, errCh, logger))
	}
	if len(handles) == 0 {
		return errors.New("no services enabled")
	}

	return waitForShutdown(cancel, errCh, handles, logger)
}

func buildBackgroundServices(
	cfg *ServiceOrchestrationConfig,
	enabled map[config.ServiceMode]bool,
	logger *slog.Logger,
) ([]backgroundService, error) {
	var services []backgroundService

	if enabled[config.ServiceModeScheduler] && cfg.Config.Scheduler.Enabled {
		runner, err := scheduler.NewRunner(scheduler.RunnerOptions{
			Configs: cfg.Services.Repos.Configs,
			Trigger: cfg.Services.Trigger,
			Logger:  logger,
			Metrics: cfg.Services.Observability.MetricsSink,
		})
		if err != nil {
			return nil, fmt.Errorf("build scheduler runner: %w", err)
		}
		services = append(services, backgroundService{
			name:    "scheduler",
			enabled: true,
			run:     runner.Run,
		})
	}

	if enabled[config.ServiceModeReaper] {
		runner, err := reaperadapter.NewRunner(reaperadapter.RunnerOptions{
			DB:      cfg.DB,
			Config:  cfg.Config.Reaper,
			Logger:  logger,
			Runs:    cfg.Services.Repos.Runs,
			Batches: cfg.Services.Repos.Batches,
			Metrics: cfg.Services.Observability.MetricsSink,
		})
		if err != nil {
			return nil, fmt.Errorf("build reaper runner: %w", err)
		}
		services = append(services, backgroundService{
			name:    "reaper",
			enabled: true,
			run:     runner.Run,
		})
	}

	return services, nil
}

func launchBackground(
	ctx context.Context,
	svc backgroundService,
	errCh chan<- error,
	logger *slog.Logger,
) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("starting service", "service", svc.name)
		if err := svc.run(ctx); err != nil {
			errCh <- fmt.Errorf("%s: %w", svc.name, err)
		}
	}()
	return done
}

func waitForShutdown(
	cancel context.CancelFunc,
	errCh <-chan error,
	handles []<-chan struct{},
	logger *slog.Logger,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
		logger.Info("shutting down services...")
	case err := <-errCh:
		logger.Error("service error", "error", err)
		runErr = err
	}
	cancel()

	for _, done := range handles {
		select {
		case <-done:
		case <-time.After(shutdownWaitTimeout):
			logger.Warn("timeout waiting for service to stop")
		}
	}
	return runErr
}
