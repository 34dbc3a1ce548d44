package testutil

import (
	"time"

	"github.com/matchday/sportsync/internal/domain/model"
)

// FixtureDTOBuilder provides a fluent interface for building fixture DTOs.
type FixtureDTOBuilder struct {
	dto model.FixtureDTO
}

// NewFixtureDTO creates a builder with sensible defaults: a not-started
// fixture in league 39, kicking off one day after TestTime.
func NewFixtureDTO(externalID int64) *FixtureDTOBuilder {
	return &FixtureDTOBuilder{
		dto: model.FixtureDTO{
			ExternalID:       externalID,
			LeagueExternalID: 39,
			Season:           2025,
			HomeTeam:         "Home FC",
			AwayTeam:         "Away FC",
			Status:           model.StatusNotStarted,
			KickoffAt:        TestTime().Add(24 * time.Hour),
		},
	}
}

// InLeague sets the league.
func (b *FixtureDTOBuilder) InLeague(leagueID int64) *FixtureDTOBuilder {
	b.dto.LeagueExternalID = leagueID
	return b
}

// WithTeams sets the team names.
func (b *FixtureDTOBuilder) WithTeams(home, away string) *FixtureDTOBuilder {
	b.dto.HomeTeam = home
	b.dto.AwayTeam = away
	return b
}

// WithStatus sets the fixture status.
func (b *FixtureDTOBuilder) WithStatus(status model.FixtureStatus) *FixtureDTOBuilder {
	b.dto.Status = status
	return b
}

// KickingOffAt sets the kickoff time.
func (b *FixtureDTOBuilder) KickingOffAt(t time.Time) *FixtureDTOBuilder {
	b.dto.KickoffAt = t
	return b
}

// WithScore sets both scores.
func (b *FixtureDTOBuilder) WithScore(home, away int) *FixtureDTOBuilder {
	b.dto.HomeScore = IntPtr(home)
	b.dto.AwayScore = IntPtr(away)
	return b
}

// WithResult sets the final result string.
func (b *FixtureDTOBuilder) WithResult(result string) *FixtureDTOBuilder {
	b.dto.Result = StringPtr(result)
	return b
}

// Build returns the built DTO.
func (b *FixtureDTOBuilder) Build() model.FixtureDTO {
	return b.dto
}

// NewLeagueDTO returns a league DTO with the given id.
func NewLeagueDTO(externalID int64, name string) model.LeagueDTO {
	return model.LeagueDTO{
		ExternalID: externalID,
		Name:       name,
		Country:    "England",
	}
}

// NewOddDTO returns a match-winner odd for the given fixture.
func NewOddDTO(fixtureID int64, label string, price float64) model.OddDTO {
	return model.OddDTO{
		FixtureExternalID: fixtureID,
		Market:            "match_winner",
		Label:             label,
		Price:             price,
		Bookmaker:         "bet365",
	}
}
