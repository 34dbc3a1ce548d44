package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const coverageCacheKey = "sportsync:coverage:snapshot"

// CoverageSnapshot summarizes how much of the seeded league surface has
// fixture and odds data. Read by dashboards; refreshed after sync runs.
type CoverageSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Leagues     []LeagueCoverage `json:"leagues"`
}

// LeagueCoverage is the per-league slice of a coverage snapshot.
type LeagueCoverage struct {
	LeagueExternalID int64  `json:"league_external_id"`
	Name             string `json:"name"`
	Fixtures         int    `json:"fixtures"`
	Live             int    `json:"live"`
	WithOdds         int    `json:"with_odds"`
}

// CoverageServiceOptions bundles dependencies for NewCoverageService.
type CoverageServiceOptions struct {
	Cache    CacheRepository
	Leagues  LeagueRepository
	Fixtures FixtureRepository
	TTL      time.Duration
}

// CoverageService computes and caches coverage snapshots.
type CoverageService struct {
	cache    CacheRepository
	leagues  LeagueRepository
	fixtures FixtureRepository
	ttl      time.Duration
	now      func() time.Time
}

// NewCoverageService creates a new CoverageService.
func NewCoverageService(opts CoverageServiceOptions) *CoverageService {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CoverageService{
		cache:    opts.Cache,
		leagues:  opts.Leagues,
		fixtures: opts.Fixtures,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Snapshot returns the cached coverage snapshot, computing and caching a
// fresh one on a miss.
func (s *CoverageService) Snapshot(ctx context.Context) (*CoverageSnapshot, error) {
	cached, err := s.cache.Get(ctx, coverageCacheKey)
	if err != nil {
		return nil, fmt.Errorf("get coverage snapshot: %w", err)
	}
	if len(cached) > 0 {
		var snap CoverageSnapshot
		if err := json.Unmarshal(cached, &snap); err == nil {
			return &snap, nil
		}
		// Undecodable cache entry; fall through and rebuild.
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the snapshot and overwrites the cached copy.
func (s *CoverageService) Refresh(ctx context.Context) (*CoverageSnapshot, error) {
	leagues, err := s.leagues.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh coverage: %w", err)
	}

	counts, err := s.fixtures.CoverageByLeague(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh coverage: %w", err)
	}

	snap := &CoverageSnapshot{GeneratedAt: s.now().UTC()}
	for _, league := range leagues {
		c := counts[league.ExternalID]
		snap.Leagues = append(snap.Leagues, LeagueCoverage{
			LeagueExternalID: league.ExternalID,
			Name:             league.Name,
			Fixtures:         c.Fixtures,
			Live:             c.Live,
			WithOdds:         c.WithOdds,
		})
	}

	b, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode coverage snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, coverageCacheKey, b, s.ttl); err != nil {
		return nil, fmt.Errorf("cache coverage snapshot: %w", err)
	}
	return snap, nil
}

// Invalidate drops the cached snapshot so the next read recomputes it.
func (s *CoverageService) Invalidate(ctx context.Context) error {
	_, err := s.cache.Delete(ctx, coverageCacheKey)
	return err
}

