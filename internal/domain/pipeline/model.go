package pipeline

import (
	"errors"
	"time"
)

// Stage is the coarse progress state of an upload run.
type Stage string

// Stages in the order a run moves through them. Done and Failed are terminal.
const (
	StageIdle       Stage = "idle"
	StageUploading  Stage = "uploading"
	StageGenerating Stage = "generating"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Active reports whether a run in this stage is still in progress.
func (s Stage) Active() bool {
	return s == StageUploading || s == StageGenerating
}

// Label is the user-facing progress line for the stage.
func (s Stage) Label() string {
	switch s {
	case StageUploading:
		return "Uploading & analyzing members..."
	case StageGenerating:
		return "Generating personalized AI plans..."
	case StageDone:
		return "Complete"
	case StageFailed:
		return "Failed"
	default:
		return ""
	}
}

// Domain errors
var (
	ErrEmptyRunID   = errors.New("run ID is required")
	ErrEmptyProfile = errors.New("profile ID is required")
	ErrInvalidStage = errors.New("invalid pipeline stage")
)

// Run records one upload-to-plans pipeline execution.
type Run struct {
	ID          string
	ProfileID   string
	SourceName  string
	Stage       Stage
	MemberCount int
	PlansCount  int
	Warning     string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Validate checks that the Run has valid data.
// PRE: Run struct is populated
// POST: Returns nil if valid, error otherwise
func (r Run) Validate() error {
	if r.ID == "" {
		return ErrEmptyRunID
	}
	if r.ProfileID == "" {
		return ErrEmptyProfile
	}
	switch r.Stage {
	case StageIdle, StageUploading, StageGenerating, StageDone, StageFailed:
	default:
		return ErrInvalidStage
	}
	return nil
}

// Finished reports whether the run reached a terminal stage.
func (r Run) Finished() bool {
	return r.Stage == StageDone || r.Stage == StageFailed
}

// Duration returns how long the run took, or zero while it is active.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
