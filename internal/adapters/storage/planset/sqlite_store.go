package planset

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vitality/internal/adapters/storage"
	"vitality/internal/domain/member"
	domain "vitality/internal/domain/planset"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new PlanSet store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get retrieves the plan set stored for a profile.
// PRE: profileID is non-empty
// POST: Returns ErrNotFound when nothing is stored; an undecodable blob yields
// a set with Corrupt=true and no members rather than an error
// INVARIANT: Store state is not mutated
func (s *SQLiteStore) Get(ctx context.Context, profileID string) (domain.PlanSet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT profile_id, members_json, source_name, fallback, warning, updated_at
		FROM plan_set
		WHERE profile_id = ?
	`, profileID)
	return scanPlanSet(row.Scan)
}

// Save replaces the profile's plan set.
// PRE: value passes Validate
// POST: The previous set for the profile, if any, is overwritten
// INVARIANT: No other profile's set is modified
func (s *SQLiteStore) Save(ctx context.Context, value domain.PlanSet) error {
	if err := value.Validate(); err != nil {
		return err
	}
	blob, err := json.Marshal(value.Members)
	if err != nil {
		return fmt.Errorf("encode plan_set members: %w", err)
	}
	updated := value.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plan_set (profile_id, members_json, source_name, fallback, warning, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(profile_id) DO UPDATE SET
			members_json=excluded.members_json,
			source_name=excluded.source_name,
			fallback=excluded.fallback,
			warning=excluded.warning,
			updated_at=excluded.updated_at
	`,
		value.ProfileID,
		string(blob),
		value.SourceName,
		boolToInt(value.Fallback),
		value.Warning,
		updated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save plan_set: %w", err)
	}
	return nil
}

// Delete removes the profile's plan set. Deleting a missing set is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, profileID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM plan_set WHERE profile_id = ?`, profileID); err != nil {
		return fmt.Errorf("delete plan_set: %w", err)
	}
	return nil
}

func scanPlanSet(scan func(dest ...any) error) (domain.PlanSet, error) {
	var ps domain.PlanSet
	var blob, updated string
	var fallback int
	if err := scan(&ps.ProfileID, &blob, &ps.SourceName, &fallback, &ps.Warning, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PlanSet{}, ErrNotFound
		}
		return domain.PlanSet{}, err
	}
	ps.Fallback = fallback != 0
	ps.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)

	var members []member.WithPlans
	if err := json.Unmarshal([]byte(blob), &members); err != nil {
		slog.Warn("plan_set_corrupt", "profile", ps.ProfileID, "error", err)
		ps.Corrupt = true
		ps.Members = []member.WithPlans{}
		return ps, nil
	}
	ps.Members = members
	return ps, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
