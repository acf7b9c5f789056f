package projections

import (
	"context"

	"vitality/internal/domain/planset"
	"vitality/internal/domain/sheet"
)

// PlanSetReader is the read side of the plan set store.
type PlanSetReader interface {
	Get(ctx context.Context, profileID string) (planset.PlanSet, error)
}

// SheetSource fetches pages of the analytics sheet.
type SheetSource interface {
	FetchDashboard(ctx context.Context, page, limit int, search string) (sheet.Page, error)
}
