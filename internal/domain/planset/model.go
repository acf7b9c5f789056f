package planset

import (
	"errors"
	"time"

	"vitality/internal/domain/member"
)

// Domain errors
var (
	ErrEmptyProfile = errors.New("profile ID is required")
	ErrNoMembers    = errors.New("plan set must contain at least one member")
)

// WarningPlanTimeout is shown when plan generation exceeds its deadline
// and the basic assignments were kept.
const WarningPlanTimeout = "AI plan generation is taking longer than expected. Using basic program assignments for now. You can try again with fewer members."

// WarningPlanFailedPrefix precedes the upstream error text when plan
// generation fails for any reason other than a timeout.
const WarningPlanFailedPrefix = "AI plan generation failed: "

// PlanSet is the persisted result of the last completed pipeline run for
// one browser profile. It replaces the previous set wholesale on each run.
type PlanSet struct {
	ProfileID  string
	Members    []member.WithPlans
	SourceName string
	Fallback   bool // true when plans were not generated and basic assignments were kept
	Warning    string
	UpdatedAt  time.Time

	// Corrupt is set by the store when the persisted blob could not be
	// decoded. Members is empty in that case.
	Corrupt bool
}

// Validate checks that the PlanSet has valid data.
// PRE: PlanSet struct is populated
// POST: Returns nil if valid, error otherwise
func (p PlanSet) Validate() error {
	if p.ProfileID == "" {
		return ErrEmptyProfile
	}
	if len(p.Members) == 0 {
		return ErrNoMembers
	}
	return nil
}

// PlansCount returns how many members carry generated plans.
// INVARIANT: Members is not mutated
func (p PlanSet) PlansCount() int {
	return member.CountWithPlans(p.Members)
}

// HasPlans reports whether at least one member has a generated plan.
func (p PlanSet) HasPlans() bool {
	return p.PlansCount() > 0
}

// Find returns the member whose ID string equals id.
// POST: ok is false when the set is corrupt or id is not present
func (p PlanSet) Find(id string) (member.WithPlans, bool) {
	if p.Corrupt {
		return member.WithPlans{}, false
	}
	return member.Find(p.Members, id)
}
