package orchestrators

import (
	"errors"
	"sync"
	"time"

	"vitality/internal/domain/pipeline"
)

// ErrRunInProgress is returned when a profile already has an active run.
var ErrRunInProgress = errors.New("a pipeline run is already in progress for this profile")

// RunStatus is the progress snapshot served to the dashboard poller.
type RunStatus struct {
	RunID       string         `json:"run_id,omitempty"`
	Stage       pipeline.Stage `json:"stage"`
	Label       string         `json:"label"`
	SourceName  string         `json:"source_name,omitempty"`
	MemberCount int            `json:"member_count"`
	PlansCount  int            `json:"plans_count"`
	Warning     string         `json:"warning,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at,omitzero"`
	UpdatedAt   time.Time      `json:"updated_at,omitzero"`
}

// RunTracker holds the latest run status per profile. At most one run per
// profile is active at a time.
type RunTracker struct {
	mu   sync.Mutex
	runs map[string]RunStatus
	now  func() time.Time
}

// NewRunTracker creates an empty tracker.
func NewRunTracker() *RunTracker {
	return &RunTracker{runs: make(map[string]RunStatus), now: time.Now}
}

// Begin marks a new run as uploading.
// PRE: profileID and runID are non-empty
// POST: Returns ErrRunInProgress and changes nothing if a run is active
func (t *RunTracker) Begin(profileID, runID, source string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.runs[profileID]; ok && cur.Stage.Active() {
		return ErrRunInProgress
	}
	now := t.now()
	t.runs[profileID] = RunStatus{
		RunID:      runID,
		Stage:      pipeline.StageUploading,
		Label:      pipeline.StageUploading.Label(),
		SourceName: source,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	return nil
}

// Update applies fn to the profile's current status. It is a no-op when
// runID no longer matches the tracked run.
func (t *RunTracker) Update(profileID, runID string, fn func(*RunStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.runs[profileID]
	if !ok || cur.RunID != runID {
		return
	}
	fn(&cur)
	cur.Label = cur.Stage.Label()
	cur.UpdatedAt = t.now()
	t.runs[profileID] = cur
}

// Status returns the profile's latest status, or an idle status.
// INVARIANT: Tracker state is not mutated
func (t *RunTracker) Status(profileID string) RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.runs[profileID]; ok {
		return cur
	}
	return RunStatus{Stage: pipeline.StageIdle}
}

// Reset forgets a finished run so the profile reads as idle again.
// POST: Active runs are left untouched
func (t *RunTracker) Reset(profileID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.runs[profileID]; ok && !cur.Stage.Active() {
		delete(t.runs, profileID)
	}
}
