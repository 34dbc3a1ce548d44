package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/domain/model"
	"github.com/matchday/sportsync/internal/testutil"
)

func newTestFixtureRepo(t *testing.T) (*FixtureRepo, *FixedTimeProvider) {
	t.Helper()
	db := testutil.SetupEphemeralSchemaDB(t)
	clock := NewFixedTimeProvider(testutil.TestTime())
	seedTestLeague(t, db, clock, 39, "Premier League")
	return NewFixtureRepo(db, FixtureRepoConfig{TimeProvider: clock}), clock
}

func seedTestLeague(t *testing.T, db *sql.DB, clock TimeProvider, externalID int64, name string) {
	t.Helper()
	repo := NewLeagueRepo(db, LeagueRepoConfig{TimeProvider: clock})
	_, err := repo.Upsert(context.Background(), &model.League{
		ExternalID: externalID,
		Name:       name,
		Country:    "England",
	})
	require.NoError(t, err)
}

func testFixture(externalID int64, status model.FixtureStatus, kickoff time.Time) *model.Fixture {
	return &model.Fixture{
		ExternalID:       externalID,
		LeagueExternalID: 39,
		Season:           2025,
		HomeTeam:         "Home FC",
		AwayTeam:         "Away FC",
		Status:           status,
		KickoffAt:        kickoff,
	}
}

func TestFixtureRepo_Upsert_InsertThenUpdate(t *testing.T) {
	repo, _ := newTestFixtureRepo(t)
	ctx := context.Background()
	kickoff := testutil.TestTime().Add(24 * time.Hour)

	action, err := repo.Upsert(ctx, testFixture(1001, model.StatusNotStarted, kickoff))
	require.NoError(t, err)
	assert.Equal(t, core.UpsertInserted, action)

	updated := testFixture(1001, model.StatusFirstHalf, kickoff)
	updated.HomeScore = testutil.IntPtr(1)
	updated.AwayScore = testutil.IntPtr(0)
	action, err = repo.Upsert(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, core.UpsertUpdated, action)

	got, err := repo.GetByExternalID(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFirstHalf, got.Status)
	require.NotNil(t, got.HomeScore)
	assert.Equal(t, 1, *got.HomeScore)
}

func TestFixtureRepo_Upsert_PreservesHasOddsAndIdentity(t *testing.T) {
	repo, _ := newTestFixtureRepo(t)
	ctx := context.Background()
	kickoff := testutil.TestTime().Add(24 * time.Hour)

	_, err := repo.Upsert(ctx, testFixture(1001, model.StatusNotStarted, kickoff))
	require.NoError(t, err)
	count, err := repo.MarkHasOdds(ctx, []int64{1001})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	first, err := repo.GetByExternalID(ctx, 1001)
	require.NoError(t, err)

	_, err = repo.Upsert(ctx, testFixture(1001, model.StatusFirstHalf, kickoff))
	require.NoError(t, err)

	got, err := repo.GetByExternalID(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "upsert rewrites the row, not the identity")
	assert.True(t, got.HasOdds, "has_odds is owned by the odds path, sync must not clear it")
}

func TestFixtureRepo_MarkHasOdds_OnlyNewlyFlagged(t *testing.T) {
	repo, _ := newTestFixtureRepo(t)
	ctx := context.Background()
	kickoff := testutil.TestTime().Add(time.Hour)

	_, err := repo.Upsert(ctx, testFixture(1001, model.StatusNotStarted, kickoff))
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, testFixture(1002, model.StatusNotStarted, kickoff))
	require.NoError(t, err)

	count, err := repo.MarkHasOdds(ctx, []int64{1001})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.MarkHasOdds(ctx, []int64{1001, 1002})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "already-flagged fixtures are not counted again")

	count, err = repo.MarkHasOdds(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFixtureRepo_GetByExternalIDs(t *testing.T) {
	repo, _ := newTestFixtureRepo(t)
	ctx := context.Background()
	kickoff := testutil.TestTime().Add(time.Hour)

	_, err := repo.Upsert(ctx, testFixture(1001, model.StatusNotStarted, kickoff))
	require.NoError(t, err)

	got, err := repo.GetByExternalIDs(ctx, []int64{1001, 9999})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got, int64(1001))

	got, err = repo.GetByExternalIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFixtureRepo_GetByExternalID_NotFound(t *testing.T) {
	repo, _ := newTestFixtureRepo(t)

	_, err := repo.GetByExternalID(context.Background(), 9999)
	require.ErrorIs(t, err, ErrFixtureNotFound)
}

func TestFixtureRepo_ListOverdueNotStarted(t *testing.T) {
	repo, _ := newTestFixtureRepo(t)
	ctx := context.Background()
	now := testutil.TestTime()

	// Inside the window: kicked off 2h ago, still NS.
	_, err := repo.Upsert(ctx, testFixture(1001, model.StatusNotStarted, now.Add(-2*time.Hour)))
	require.NoError(t, err)
	// Too recent: inside the grace period.
	_, err = repo.Upsert(ctx, testFixture(1002, model.StatusNotStarted, now.Add(-5*time.Minute)))
	require.NoError(t, err)
	// Too old: beyond the max overdue bound.
	_, err = repo.Upsert(ctx, testFixture(1003, model.StatusNotStarted, now.Add(-80*time.Hour)))
	require.NoError(t, err)
	// Overdue window but already live.
	_, err = repo.Upsert(ctx, testFixture(1004, model.StatusFirstHalf, now.Add(-2*time.Hour)))
	require.NoError(t, err)

	overdue, err := repo.ListOverdueNotStarted(ctx, core.OverdueQuery{
		Grace:      10 * time.Minute,
		MaxOverdue: 48 * time.Hour,
	})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, int64(1001), overdue[0].ExternalID)
}

func TestFixtureRepo_StatusesByExternalIDs(t *testing.T) {
	repo, _ := newTestFixtureRepo(t)
	ctx := context.Background()
	kickoff := testutil.TestTime()

	_, err := repo.Upsert(ctx, testFixture(1001, model.StatusFullTime, kickoff))
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, testFixture(1002, model.StatusNotStarted, kickoff))
	require.NoError(t, err)

	statuses, err := repo.StatusesByExternalIDs(ctx, []int64{1001, 1002, 9999})
	require.NoError(t, err)
	assert.Equal(t, map[int64]model.FixtureStatus{
		1001: model.StatusFullTime,
		1002: model.StatusNotStarted,
	}, statuses)
}

func TestFixtureRepo_CoverageByLeague(t *testing.T) {
	repo, clock := newTestFixtureRepo(t)
	ctx := context.Background()
	seedTestLeague(t, repo.DB, clock, 140, "La Liga")
	kickoff := testutil.TestTime()

	_, err := repo.Upsert(ctx, testFixture(1001, model.StatusNotStarted, kickoff))
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, testFixture(1002, model.StatusSecondHalf, kickoff))
	require.NoError(t, err)
	laliga := testFixture(2001, model.StatusNotStarted, kickoff)
	laliga.LeagueExternalID = 140
	_, err = repo.Upsert(ctx, laliga)
	require.NoError(t, err)

	_, err = repo.MarkHasOdds(ctx, []int64{1001})
	require.NoError(t, err)

	counts, err := repo.CoverageByLeague(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.CoverageCounts{Fixtures: 2, Live: 1, WithOdds: 1}, counts[39])
	assert.Equal(t, core.CoverageCounts{Fixtures: 1}, counts[140])
}
