package projections

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	planSetStore "vitality/internal/adapters/storage/planset"
	"vitality/internal/domain/member"
)

// Lookup errors, shown to the user as is.
var (
	ErrMemberIDRequired = errors.New("Member ID is required")
	ErrNoPlanData       = errors.New("No member data found. Please upload CSV data first.")
	ErrMemberNotFound   = errors.New("Member not found in current data set.")
	ErrPlanLoadFailed   = errors.New("Failed to load member data. Please try again.")
)

// MemberPlanQuery identifies one member of a profile's plan set.
type MemberPlanQuery struct {
	ProfileID string
	MemberID  string
}

// MemberPlanResult carries the member and context about the set it came from.
type MemberPlanResult struct {
	Member   member.WithPlans
	Fallback bool
	Warning  string
	// UpdatedAt is when the set was stored; pages date themselves from it.
	UpdatedAt time.Time
}

// MemberPlanDeps holds dependencies for QueryMemberPlan.
type MemberPlanDeps struct {
	PlanSets PlanSetReader
}

// QueryMemberPlan finds a member by the string form of its id.
// PRE: ProfileID is non-empty
// POST: Returns ErrNoPlanData, ErrMemberNotFound or ErrPlanLoadFailed
// for the three distinct failure states; a corrupt set is ErrMemberNotFound
// INVARIANT: Repeated calls over the same stored set return identical results,
// UpdatedAt included
func QueryMemberPlan(ctx context.Context, query MemberPlanQuery, deps MemberPlanDeps) (MemberPlanResult, error) {
	id := strings.TrimSpace(query.MemberID)
	if id == "" {
		return MemberPlanResult{}, ErrMemberIDRequired
	}
	set, err := deps.PlanSets.Get(ctx, query.ProfileID)
	if errors.Is(err, planSetStore.ErrNotFound) {
		return MemberPlanResult{}, ErrNoPlanData
	}
	if err != nil {
		return MemberPlanResult{}, fmt.Errorf("%w: %w", ErrPlanLoadFailed, err)
	}
	m, ok := set.Find(id)
	if !ok {
		return MemberPlanResult{}, ErrMemberNotFound
	}
	return MemberPlanResult{Member: m, Fallback: set.Fallback, Warning: set.Warning, UpdatedAt: set.UpdatedAt}, nil
}
