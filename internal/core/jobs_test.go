package core

import (
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday/sportsync/internal/domain/model"
)

func TestJobCatalog_KeysUniqueAndKnown(t *testing.T) {
	catalog := JobCatalog()
	require.Len(t, catalog, 5)

	seen := map[model.JobKey]bool{}
	for _, def := range catalog {
		assert.False(t, seen[def.Key], "duplicate catalog key %s", def.Key)
		seen[def.Key] = true
		assert.NotEmpty(t, def.Description)
	}

	for _, key := range []model.JobKey{
		model.JobLeaguesSeed,
		model.JobFixturesSync,
		model.JobFixturesLiveSync,
		model.JobOddsSync,
		model.JobFixtureRecovery,
	} {
		assert.True(t, seen[key], "catalog missing %s", key)
	}
}

func TestJobCatalog_SchedulesParse(t *testing.T) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for _, def := range JobCatalog() {
		require.NotNil(t, def.ScheduleCron, "%s has no default schedule", def.Key)
		_, err := parser.Parse(*def.ScheduleCron)
		assert.NoError(t, err, "%s schedule %q", def.Key, *def.ScheduleCron)
	}
}

func TestJobCatalog_MetaDecodes(t *testing.T) {
	for _, def := range JobCatalog() {
		switch def.Key {
		case model.JobFixturesSync:
			var meta model.FixturesSyncMeta
			require.NoError(t, model.DecodeMeta(def.Meta, &meta))
			assert.Equal(t, 7, meta.LookaheadDays)
		case model.JobOddsSync:
			var meta model.OddsSyncMeta
			require.NoError(t, model.DecodeMeta(def.Meta, &meta))
			assert.Equal(t, 72, meta.LookaheadHours)
		case model.JobFixtureRecovery:
			var meta model.RecoveryMeta
			require.NoError(t, model.DecodeMeta(def.Meta, &meta))
			assert.Equal(t, 10, meta.GraceMinutes)
			assert.Equal(t, 48, meta.MaxOverdueHours)
		}
	}
}
