package model

import "time"

// FixtureStatus is the short provider code for a fixture's lifecycle state.
type FixtureStatus string

const (
	// StatusNotStarted is the pre-match state.
	StatusNotStarted FixtureStatus = "NS"

	// Live states.
	StatusFirstHalf     FixtureStatus = "1H"
	StatusHalftime      FixtureStatus = "HT"
	StatusSecondHalf    FixtureStatus = "2H"
	StatusExtraTime     FixtureStatus = "ET"
	StatusBreakTime     FixtureStatus = "BT"
	StatusPenaltyInPlay FixtureStatus = "P"

	// Finished states.
	StatusFullTime       FixtureStatus = "FT"
	StatusAfterExtraTime FixtureStatus = "AET"
	StatusAfterPenalties FixtureStatus = "PEN"

	// Administrative states. These can occur at any point in a fixture's life.
	StatusPostponed   FixtureStatus = "PST"
	StatusCancelled   FixtureStatus = "CANC"
	StatusAbandoned   FixtureStatus = "ABD"
	StatusSuspended   FixtureStatus = "SUSP"
	StatusInterrupted FixtureStatus = "INT"
	StatusWalkover    FixtureStatus = "WO"
	StatusAwarded     FixtureStatus = "AWD"
)

// Fixture is the stored representation of a match.
type Fixture struct {
	ID               string        `json:"id"                    db:"id"`
	ExternalID       int64         `json:"external_id"           db:"external_id"`
	LeagueExternalID int64         `json:"league_external_id"    db:"league_external_id"`
	Season           int           `json:"season"                db:"season"`
	HomeTeam         string        `json:"home_team"             db:"home_team"`
	AwayTeam         string        `json:"away_team"             db:"away_team"`
	Status           FixtureStatus `json:"status"                db:"status"`
	KickoffAt        time.Time     `json:"kickoff_at"            db:"kickoff_at"`
	HomeScore        *int          `json:"home_score,omitempty"  db:"home_score"`
	AwayScore        *int          `json:"away_score,omitempty"  db:"away_score"`
	Result           *string       `json:"result,omitempty"      db:"result"`
	HasOdds          bool          `json:"has_odds"              db:"has_odds"`
	CreatedAt        time.Time     `json:"created_at"            db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"            db:"updated_at"`
}

// Odd is one stored price for a fixture market outcome, unique per
// (fixture, market, label).
type Odd struct {
	ID                string    `json:"id"                  db:"id"`
	FixtureExternalID int64     `json:"fixture_external_id" db:"fixture_external_id"`
	Market            string    `json:"market"              db:"market"`
	Label             string    `json:"label"               db:"label"`
	Price             float64   `json:"price"               db:"price"`
	Bookmaker         string    `json:"bookmaker"           db:"bookmaker"`
	CreatedAt         time.Time `json:"created_at"          db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"          db:"updated_at"`
}

// League is reference data for a competition. Leagues are created by the
// seeding code path, never by sync.
type League struct {
	ID         string    `json:"id"          db:"id"`
	ExternalID int64     `json:"external_id" db:"external_id"`
	Name       string    `json:"name"        db:"name"`
	Country    string    `json:"country"     db:"country"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"  db:"updated_at"`
}
