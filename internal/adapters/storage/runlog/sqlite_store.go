package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vitality/internal/adapters/storage"
	domain "vitality/internal/domain/pipeline"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new run log store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save upserts a run record.
// PRE: value passes Validate
// POST: Run is persisted (insert or update by ID)
func (s *SQLiteStore) Save(ctx context.Context, value domain.Run) error {
	if err := value.Validate(); err != nil {
		return err
	}
	var finished any
	if !value.FinishedAt.IsZero() {
		finished = value.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_run (
			id, profile_id, source_name, stage,
			member_count, plans_count, warning, error,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stage=excluded.stage,
			member_count=excluded.member_count,
			plans_count=excluded.plans_count,
			warning=excluded.warning,
			error=excluded.error,
			finished_at=excluded.finished_at
	`,
		value.ID,
		value.ProfileID,
		value.SourceName,
		string(value.Stage),
		value.MemberCount,
		value.PlansCount,
		value.Warning,
		value.Error,
		value.StartedAt.UTC().Format(time.RFC3339Nano),
		finished,
	)
	if err != nil {
		return fmt.Errorf("save pipeline_run: %w", err)
	}
	return nil
}

// ListByProfile returns the most recent runs for a profile, newest first.
// PRE: limit > 0
// INVARIANT: Store state is not mutated
func (s *SQLiteStore) ListByProfile(ctx context.Context, profileID string, limit int) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, source_name, stage, member_count, plans_count,
			warning, error, started_at, finished_at
		FROM pipeline_run
		WHERE profile_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, profileID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Run{}
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRun(scan func(dest ...any) error) (domain.Run, error) {
	var r domain.Run
	var stage, started string
	var finished sql.NullString
	if err := scan(
		&r.ID,
		&r.ProfileID,
		&r.SourceName,
		&stage,
		&r.MemberCount,
		&r.PlansCount,
		&r.Warning,
		&r.Error,
		&started,
		&finished,
	); err != nil {
		return domain.Run{}, err
	}
	r.Stage = domain.Stage(stage)
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	return r, nil
}
