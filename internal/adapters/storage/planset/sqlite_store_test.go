package planset

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"vitality/internal/adapters/storage"
	"vitality/internal/domain/member"
	domain "vitality/internal/domain/planset"
)

func newTestStore(t *testing.T) (*SQLiteStore, *sql.DB) {
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
	return NewSQLiteStore(db), db
}

func sampleMembers() []member.WithPlans {
	var a, b member.WithPlans
	if err := a.UnmarshalJSON([]byte(`{"MemberID":101,"BMI":24.5,"Program_Type":"Endurance","Biometrics_Plan":{"personal_note":"Run more"},"Gym_Location":"North"}`)); err != nil {
		panic(err)
	}
	if err := b.UnmarshalJSON([]byte(`{"MemberID":"M002","VO2max":41}`)); err != nil {
		panic(err)
	}
	return []member.WithPlans{a, b}
}

func TestSQLiteStore_SaveGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	want := domain.PlanSet{
		ProfileID:  "profile-1",
		Members:    sampleMembers(),
		SourceName: "members.csv",
		Fallback:   true,
		Warning:    domain.WarningPlanTimeout,
		UpdatedAt:  time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "profile-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SourceName != want.SourceName || !got.Fallback || got.Warning != want.Warning {
		t.Errorf("metadata mismatch: %+v", got)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, want.UpdatedAt)
	}
	if len(got.Members) != 2 {
		t.Fatalf("len(Members) = %d, want 2", len(got.Members))
	}
	first := got.Members[0]
	if first.MemberID.String() != "101" || !first.MemberID.Numeric() {
		t.Errorf("MemberID = %q numeric=%v", first.MemberID.String(), first.MemberID.Numeric())
	}
	if first.BiometricsPlan == nil || first.BiometricsPlan.PersonalNote != "Run more" {
		t.Errorf("BiometricsPlan lost: %+v", first.BiometricsPlan)
	}
	if _, ok := first.Extra["Gym_Location"]; !ok {
		t.Error("unknown field Gym_Location was not preserved")
	}
	if got.Corrupt {
		t.Error("Corrupt = true for a valid blob")
	}
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	members := sampleMembers()
	if err := store.Save(ctx, domain.PlanSet{ProfileID: "p", Members: members}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, domain.PlanSet{ProfileID: "p", Members: members[1:], SourceName: "second.csv"}); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Members) != 1 || got.SourceName != "second.csv" {
		t.Errorf("expected replacement, got %d members from %q", len(got.Members), got.SourceName)
	}
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Get(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_CorruptBlob(t *testing.T) {
	store, db := newTestStore(t)
	if _, err := db.Exec(`INSERT INTO plan_set (profile_id, members_json, updated_at) VALUES ('p', '{not json', '2026-01-01T00:00:00Z')`); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(context.Background(), "p")
	if err != nil {
		t.Fatalf("Get corrupt = %v, want nil error", err)
	}
	if !got.Corrupt || len(got.Members) != 0 {
		t.Errorf("corrupt set = %+v", got)
	}
	if _, ok := got.Find("101"); ok {
		t.Error("Find on corrupt set should report not found")
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	if err := store.Save(ctx, domain.PlanSet{ProfileID: "p", Members: sampleMembers()}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "p"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "p"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v", err)
	}
	if err := store.Delete(ctx, "p"); err != nil {
		t.Errorf("second Delete = %v, want nil", err)
	}
}

func TestSQLiteStore_SaveRejectsInvalid(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Save(context.Background(), domain.PlanSet{ProfileID: "p"}); !errors.Is(err, domain.ErrNoMembers) {
		t.Errorf("Save empty = %v, want ErrNoMembers", err)
	}
}

func TestMemoryStore(t *testing.T) {
	var s Store = NewMemoryStore()
	ctx := context.Background()
	if _, err := s.Get(ctx, "p"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get empty = %v", err)
	}
	if err := s.Save(ctx, domain.PlanSet{ProfileID: "p", Members: sampleMembers()}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "p")
	if err != nil || len(got.Members) != 2 {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	_ = s.Delete(ctx, "p")
	if _, err := s.Get(ctx, "p"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v", err)
	}
}
