package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/domain/model"
	"github.com/matchday/sportsync/internal/testutil"
)

func newTestLeagueRepo(t *testing.T) *LeagueRepo {
	t.Helper()
	db := testutil.SetupEphemeralSchemaDB(t)
	return NewLeagueRepo(db, LeagueRepoConfig{
		TimeProvider: NewFixedTimeProvider(testutil.TestTime()),
	})
}

func TestLeagueRepo_Upsert_InsertThenRename(t *testing.T) {
	repo := newTestLeagueRepo(t)
	ctx := context.Background()

	action, err := repo.Upsert(ctx, &model.League{
		ExternalID: 39,
		Name:       "Premier League",
		Country:    "England",
	})
	require.NoError(t, err)
	assert.Equal(t, core.UpsertInserted, action)

	action, err = repo.Upsert(ctx, &model.League{
		ExternalID: 39,
		Name:       "English Premier League",
		Country:    "England",
	})
	require.NoError(t, err)
	assert.Equal(t, core.UpsertUpdated, action)

	leagues, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, leagues, 1)
	assert.Equal(t, "English Premier League", leagues[0].Name)
}

func TestLeagueRepo_ExistingExternalIDs(t *testing.T) {
	repo := newTestLeagueRepo(t)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, &model.League{ExternalID: 39, Name: "Premier League", Country: "England"})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, &model.League{ExternalID: 140, Name: "La Liga", Country: "Spain"})
	require.NoError(t, err)

	existing, err := repo.ExistingExternalIDs(ctx, []int64{39, 140, 78})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{39: true, 140: true}, existing)

	existing, err = repo.ExistingExternalIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func TestLeagueRepo_ExternalIDs_Ordered(t *testing.T) {
	repo := newTestLeagueRepo(t)
	ctx := context.Background()

	for _, l := range []model.League{
		{ExternalID: 140, Name: "La Liga", Country: "Spain"},
		{ExternalID: 39, Name: "Premier League", Country: "England"},
		{ExternalID: 78, Name: "Bundesliga", Country: "Germany"},
	} {
		league := l
		_, err := repo.Upsert(ctx, &league)
		require.NoError(t, err)
	}

	ids, err := repo.ExternalIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{39, 78, 140}, ids)
}
