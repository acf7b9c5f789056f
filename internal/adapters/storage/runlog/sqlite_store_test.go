package runlog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"vitality/internal/adapters/storage"
	domain "vitality/internal/domain/pipeline"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLiteStore(db)
}

func TestSQLiteStore_SaveAndUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	run := domain.Run{ID: "r1", ProfileID: "p", SourceName: "m.csv", Stage: domain.StageUploading, StartedAt: start}
	if err := store.Save(ctx, run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	run.Stage = domain.StageDone
	run.MemberCount = 3
	run.PlansCount = 3
	run.FinishedAt = start.Add(2 * time.Minute)
	if err := store.Save(ctx, run); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	runs, err := store.ListByProfile(ctx, "p", 10)
	if err != nil {
		t.Fatalf("ListByProfile: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.Stage != domain.StageDone || got.PlansCount != 3 || got.Duration() != 2*time.Minute {
		t.Errorf("run = %+v", got)
	}
}

func TestSQLiteStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		r := domain.Run{ID: id, ProfileID: "p", Stage: domain.StageDone, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.Save(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Save(ctx, domain.Run{ID: "other", ProfileID: "q", Stage: domain.StageFailed, StartedAt: base}); err != nil {
		t.Fatal(err)
	}

	runs, err := store.ListByProfile(ctx, "p", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("runs = %+v", runs)
	}
	if !runs[0].FinishedAt.IsZero() {
		t.Error("FinishedAt should stay zero when never set")
	}
}

func TestSQLiteStore_RejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save(context.Background(), domain.Run{ProfileID: "p", Stage: domain.StageDone}); err != domain.ErrEmptyRunID {
		t.Errorf("Save = %v, want ErrEmptyRunID", err)
	}
}
