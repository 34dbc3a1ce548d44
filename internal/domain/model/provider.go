package model

import "time"

// FixtureDTO is the provider-normalized shape for a fixture, keyed by the
// provider's stable external identifier.
type FixtureDTO struct {
	ExternalID       int64         `json:"external_id"`
	LeagueExternalID int64         `json:"league_external_id"`
	Season           int           `json:"season"`
	HomeTeam         string        `json:"home_team"`
	AwayTeam         string        `json:"away_team"`
	Status           FixtureStatus `json:"status"`
	KickoffAt        time.Time     `json:"kickoff_at"`
	HomeScore        *int          `json:"home_score,omitempty"`
	AwayScore        *int          `json:"away_score,omitempty"`
	Result           *string       `json:"result,omitempty"`
}

// OddDTO is the provider-normalized shape for one market outcome price.
type OddDTO struct {
	FixtureExternalID int64   `json:"fixture_external_id"`
	Market            string  `json:"market"`
	Label             string  `json:"label"`
	Price             float64 `json:"price"`
	Bookmaker         string  `json:"bookmaker"`
}

// LeagueDTO is the provider-normalized shape for a league.
type LeagueDTO struct {
	ExternalID int64  `json:"external_id"`
	Name       string `json:"name"`
	Country    string `json:"country"`
}

// FixtureFilters narrows provider fixture queries.
type FixtureFilters struct {
	LeagueIDs []int64 `json:"league_ids,omitempty"`
	Season    int     `json:"season,omitempty"`
}
