package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	planSetStore "vitality/internal/adapters/storage/planset"
)

// ClearPlansInput names the profile whose plan set is discarded.
type ClearPlansInput struct {
	ProfileID string
}

// ClearPlansDeps holds dependencies for ClearPlans.
type ClearPlansDeps struct {
	PlanSets planSetStore.Store
	Tracker  *RunTracker
}

// ExecuteClearPlans removes the stored plan set and resets run progress.
// PRE: ProfileID is non-empty
// POST: The profile has no plan set and reads as idle
// INVARIANT: A run in progress is never interrupted; ErrRunInProgress is returned instead
func ExecuteClearPlans(ctx context.Context, input ClearPlansInput, deps ClearPlansDeps) error {
	if input.ProfileID == "" {
		return errors.New("profile ID is required")
	}
	if deps.Tracker != nil && deps.Tracker.Status(input.ProfileID).Stage.Active() {
		return ErrRunInProgress
	}
	if err := deps.PlanSets.Delete(ctx, input.ProfileID); err != nil {
		return err
	}
	if deps.Tracker != nil {
		deps.Tracker.Reset(input.ProfileID)
	}
	slog.Info("plans_cleared", "profile", input.ProfileID)
	return nil
}
