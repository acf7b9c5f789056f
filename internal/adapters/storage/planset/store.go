package planset

import (
	"context"
	"errors"

	domain "vitality/internal/domain/planset"
)

// ErrNotFound is returned by Get when the profile has no stored plan set.
var ErrNotFound = errors.New("plan set not found")

// Store persists the per-profile plan set.
type Store interface {
	Get(ctx context.Context, profileID string) (domain.PlanSet, error)
	Save(ctx context.Context, value domain.PlanSet) error
	Delete(ctx context.Context, profileID string) error
}
