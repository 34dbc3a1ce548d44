package core

import (
	"github.com/matchday/sportsync/internal/domain/model"
)

// mustMeta panics on a marshal failure of a static catalog literal. Only
// called at package init with compile-time-known shapes.
func mustMeta(in any) []byte {
	b, err := model.EncodeMeta(in)
	if err != nil {
		panic(err)
	}
	return b
}

// JobCatalog returns the built-in job definitions seeded into the durable
// config store on startup. Seeding is create-only; the values here are
// defaults for a fresh deployment, not the runtime source of truth.
func JobCatalog() []model.JobDefinition {
	return []model.JobDefinition{
		{
			Key:          model.JobLeaguesSeed,
			Description:  "Seed league reference data from the provider",
			Enabled:      true,
			ScheduleCron: cronSpec("0 4 * * *"),
		},
		{
			Key:          model.JobFixturesSync,
			Description:  "Sync upcoming fixtures inside the lookahead window",
			Enabled:      true,
			ScheduleCron: cronSpec("*/30 * * * *"),
			Meta:         mustMeta(model.FixturesSyncMeta{LookaheadDays: 7}),
		},
		{
			Key:          model.JobFixturesLiveSync,
			Description:  "Sync fixtures currently in play",
			Enabled:      true,
			ScheduleCron: cronSpec("* * * * *"),
		},
		{
			Key:          model.JobOddsSync,
			Description:  "Sync odds for fixtures inside the lookahead window",
			Enabled:      true,
			ScheduleCron: cronSpec("*/15 * * * *"),
			Meta:         mustMeta(model.OddsSyncMeta{LookaheadHours: 72}),
		},
		{
			Key:          model.JobFixtureRecovery,
			Description:  "Reconcile fixtures stuck in a pre-match state past kickoff",
			Enabled:      true,
			ScheduleCron: cronSpec("*/10 * * * *"),
			Meta:         mustMeta(model.RecoveryMeta{GraceMinutes: 10, MaxOverdueHours: 48}),
		},
	}
}

func cronSpec(spec string) *string {
	return &spec
}
