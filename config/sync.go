package config

import "time"

// SyncConfig controls the entity sync engine.
type SyncConfig struct {
	// ChunkSize bounds how many items are dispatched per processing chunk.
	ChunkSize int `env:"SYNC_CHUNK_SIZE" envDefault:"50"`
	// Concurrency bounds how many items within a chunk are processed at once.
	Concurrency int `env:"SYNC_CONCURRENCY" envDefault:"8"`
	// LockTimeout bounds how long a route-triggered sync waits for its work
	// before the caller is released. The advisory lock is still held until the
	// in-flight work settles.
	LockTimeout time.Duration `env:"SYNC_LOCK_TIMEOUT" envDefault:"2m"`
}

// Sanitize clamps sync engine settings to safe bounds.
func (c *SyncConfig) Sanitize() {
	if c.ChunkSize < 1 {
		c.ChunkSize = 50
	}
	if c.ChunkSize > 500 {
		c.ChunkSize = 500
	}
	if c.Concurrency < 1 {
		c.Concurrency = 8
	}
	if c.Concurrency > 32 {
		c.Concurrency = 32
	}
	if c.LockTimeout < 0 {
		c.LockTimeout = 0
	}
}

// SchedulerConfig controls the cron scheduler runner.
type SchedulerConfig struct {
	// Enabled allows disabling the scheduler loop entirely without changing
	// the SERVICES list (useful in one-off admin contexts).
	Enabled bool `env:"SCHEDULER_ENABLED" envDefault:"true"`
}

// Sanitize applies guardrails to scheduler configuration.
func (c *SchedulerConfig) Sanitize() {}

// RecoveryConfig controls the overdue fixture recovery job defaults.
// Per-job overrides live in the job_configs meta column; these are the
// fallbacks when a job config carries no override.
type RecoveryConfig struct {
	// GraceMinutes is how long past kickoff a not-started fixture must be
	// before recovery considers it stuck. Prevents racing the live sync job.
	GraceMinutes int `env:"RECOVERY_GRACE_MINUTES" envDefault:"10"`
	// MaxOverdueHours bounds how far back recovery reaches for stuck fixtures.
	MaxOverdueHours int `env:"RECOVERY_MAX_OVERDUE_HOURS" envDefault:"48"`
}

// Sanitize clamps recovery settings to sane bounds.
func (c *RecoveryConfig) Sanitize() {
	if c.GraceMinutes < 1 {
		c.GraceMinutes = 1
	}
	if c.GraceMinutes > 120 {
		c.GraceMinutes = 120
	}
	if c.MaxOverdueHours < 1 {
		c.MaxOverdueHours = 1
	}
	if c.MaxOverdueHours > 168 {
		c.MaxOverdueHours = 168
	}
}

// ReaperConfig controls the job run reaper service.
type ReaperConfig struct {
	// Interval is how often cleanup runs.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"10m"`
	// OrphanMaxAge is how old a still-running job run must be before it is
	// force-failed as orphaned.
	OrphanMaxAge time.Duration `env:"REAPER_ORPHAN_MAX_AGE" envDefault:"3h"`
	// RunMaxAge is how old terminal job runs must be before deletion.
	RunMaxAge time.Duration `env:"REAPER_RUN_MAX_AGE" envDefault:"720h"`
	// BatchMaxAge is how old closed seed batches must be before deletion.
	BatchMaxAge time.Duration `env:"REAPER_BATCH_MAX_AGE" envDefault:"720h"`
	// BatchSize bounds rows touched per cleanup statement.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"500"`
}

// Sanitize clamps reaper settings to sane bounds.
func (c *ReaperConfig) Sanitize() {
	if c.Interval < time.Minute {
		c.Interval = 10 * time.Minute
	}
	if c.OrphanMaxAge < 10*time.Minute {
		c.OrphanMaxAge = 3 * time.Hour
	}
	if c.RunMaxAge < 24*time.Hour {
		c.RunMaxAge = 720 * time.Hour
	}
	if c.BatchMaxAge < 24*time.Hour {
		c.BatchMaxAge = 720 * time.Hour
	}
	if c.BatchSize < 1 || c.BatchSize > 10000 {
		c.BatchSize = 500
	}
}
