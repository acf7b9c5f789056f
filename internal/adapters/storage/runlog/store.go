package runlog

import (
	"context"

	domain "vitality/internal/domain/pipeline"
)

// Store persists pipeline run history.
type Store interface {
	Save(ctx context.Context, value domain.Run) error
	ListByProfile(ctx context.Context, profileID string, limit int) ([]domain.Run, error)
}
