// Package fixture enforces legal state transitions for fixture lifecycle writes.
package fixture

import (
	"fmt"
	"slices"

	"github.com/matchday/sportsync/internal/domain/model"
)

// Phase is the coarse position of a status along the canonical progression.
type Phase int

const (
	// PhaseNotStarted is the pre-match phase.
	PhaseNotStarted Phase = iota
	// PhaseLive covers all in-play states.
	PhaseLive
	// PhaseFinished covers all final states.
	PhaseFinished
	// PhaseAdministrative covers postponements, cancellations, and similar
	// states that can occur at any point.
	PhaseAdministrative
)

var phaseByStatus = map[model.FixtureStatus]Phase{
	model.StatusNotStarted: PhaseNotStarted,

	model.StatusFirstHalf:     PhaseLive,
	model.StatusHalftime:      PhaseLive,
	model.StatusSecondHalf:    PhaseLive,
	model.StatusExtraTime:     PhaseLive,
	model.StatusBreakTime:     PhaseLive,
	model.StatusPenaltyInPlay: PhaseLive,

	model.StatusFullTime:       PhaseFinished,
	model.StatusAfterExtraTime: PhaseFinished,
	model.StatusAfterPenalties: PhaseFinished,

	model.StatusPostponed:   PhaseAdministrative,
	model.StatusCancelled:   PhaseAdministrative,
	model.StatusAbandoned:   PhaseAdministrative,
	model.StatusSuspended:   PhaseAdministrative,
	model.StatusInterrupted: PhaseAdministrative,
	model.StatusWalkover:    PhaseAdministrative,
	model.StatusAwarded:     PhaseAdministrative,
}

// PhaseOf returns the phase for a status and whether the status is known.
func PhaseOf(s model.FixtureStatus) (Phase, bool) {
	p, ok := phaseByStatus[s]
	return p, ok
}

// StatusesInPhase returns every known status in the given phase, in a stable
// order. Used to build SQL filters from the canonical status table.
func StatusesInPhase(p Phase) []model.FixtureStatus {
	var out []model.FixtureStatus
	for s, phase := range phaseByStatus {
		if phase == p {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

// IsLive returns true for in-play states.
func IsLive(s model.FixtureStatus) bool {
	p, ok := phaseByStatus[s]
	return ok && p == PhaseLive
}

// IsFinished returns true for final states.
func IsFinished(s model.FixtureStatus) bool {
	p, ok := phaseByStatus[s]
	return ok && p == PhaseFinished
}

// TransitionError reports a rejected state transition. It is distinct from a
// generic write failure so callers can treat it as a data-quality signal.
type TransitionError struct {
	From model.FixtureStatus
	To   model.FixtureStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid fixture transition %s -> %s", e.From, e.To)
}

// ValidateTransition checks whether a write moving a fixture from one status
// to another is legal. A transition is accepted when the new status does not
// move backward along the canonical progression (not-started -> live ->
// finished), when the new status is administrative, or when bypass is set.
// Bypass exists for manual corrective admin edits only; automated jobs must
// never set it.
func ValidateTransition(from, to model.FixtureStatus, bypass bool) error {
	if bypass {
		return nil
	}

	toPhase, ok := phaseByStatus[to]
	if !ok {
		return fmt.Errorf("unknown fixture status %q", to)
	}
	if toPhase == PhaseAdministrative {
		return nil
	}

	fromPhase, ok := phaseByStatus[from]
	if !ok {
		// Unknown stored state: allow the write to self-heal the row.
		return nil
	}
	if fromPhase == PhaseAdministrative {
		// A postponed or suspended fixture may resume at any phase.
		return nil
	}

	if toPhase < fromPhase {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
