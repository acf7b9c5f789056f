package orchestrators

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"vitality/internal/adapters/planner"
	planSetStore "vitality/internal/adapters/storage/planset"
	runlogStore "vitality/internal/adapters/storage/runlog"
	"vitality/internal/domain/member"
	"vitality/internal/domain/pipeline"
	"vitality/internal/domain/planset"
)

// Default stage deadlines.
const (
	DefaultUploadTimeout   = 30 * time.Second
	DefaultGenerateTimeout = 5 * time.Minute
)

// Upload validation messages.
const (
	MsgNoFile    = "Please select a CSV file to upload"
	MsgNotCSV    = "Please upload a CSV file"
	MsgBadShape  = "Invalid response format: expected array of members"
	MsgNoMembers = "The uploaded file did not produce any members"
)

// UploadValidationError is returned when the submitted file is missing or not a CSV.
type UploadValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *UploadValidationError) Error() string {
	return e.Message
}

// PipelinePlanner is the part of the planner client the pipeline calls.
type PipelinePlanner interface {
	ForwardCSV(ctx context.Context, filename string, csv io.Reader) (json.RawMessage, error)
	GeneratePlans(ctx context.Context, list []member.WithPlans) ([]member.WithPlans, error)
}

// RunPipelineInput carries one uploaded file.
type RunPipelineInput struct {
	ProfileID   string
	Filename    string
	ContentType string
	CSV         []byte
}

// RunPipelineDeps holds dependencies for the upload pipeline.
type RunPipelineDeps struct {
	Planner         PipelinePlanner
	PlanSets        planSetStore.Store
	Runs            runlogStore.Store // optional
	Tracker         *RunTracker
	UploadTimeout   time.Duration
	GenerateTimeout time.Duration
	GenerateID      func() string
	Now             func() time.Time
}

// RunPipelineResult is the outcome of a finished run.
type RunPipelineResult struct {
	Run     pipeline.Run
	PlanSet planset.PlanSet
}

// IsCSVUpload reports whether a file looks like CSV by MIME type or name.
func IsCSVUpload(filename, contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "csv") ||
		strings.EqualFold(filepath.Ext(filename), ".csv")
}

// ValidateUpload checks a file was supplied and is a CSV.
// POST: Returns *UploadValidationError when the input cannot be processed
func ValidateUpload(input RunPipelineInput) error {
	if input.Filename == "" && len(input.CSV) == 0 {
		return &UploadValidationError{Message: MsgNoFile}
	}
	if !IsCSVUpload(input.Filename, input.ContentType) {
		return &UploadValidationError{Message: MsgNotCSV}
	}
	return nil
}

// StartRunPipeline validates the upload, registers the run with the
// tracker and executes it on its own goroutine. The run is detached from
// ctx cancellation so it survives the request that started it.
// PRE: deps.Tracker is non-nil
// POST: Returns ErrRunInProgress if the profile already has an active run;
// otherwise the returned channel yields exactly one result and is closed
func StartRunPipeline(ctx context.Context, input RunPipelineInput, deps RunPipelineDeps) (pipeline.Run, <-chan RunPipelineResult, error) {
	run, err := beginRun(input, deps)
	if err != nil {
		return pipeline.Run{}, nil, err
	}
	done := make(chan RunPipelineResult, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		res, _ := executeRun(detached, run, input, deps)
		done <- res
	}()
	return run, done, nil
}

// ExecuteRunPipeline runs the upload pipeline synchronously.
// PRE: deps.Planner, deps.PlanSets and deps.Tracker are non-nil
// POST: On success the profile's plan set holds the detailed plans, or the
// basic assignments with a warning when plan generation failed
// INVARIANT: Member fields returned by upload are never altered by later stages
func ExecuteRunPipeline(ctx context.Context, input RunPipelineInput, deps RunPipelineDeps) (RunPipelineResult, error) {
	run, err := beginRun(input, deps)
	if err != nil {
		return RunPipelineResult{}, err
	}
	return executeRun(ctx, run, input, deps)
}

func beginRun(input RunPipelineInput, deps RunPipelineDeps) (pipeline.Run, error) {
	if err := ValidateUpload(input); err != nil {
		return pipeline.Run{}, err
	}
	run := pipeline.Run{
		ID:         deps.GenerateID(),
		ProfileID:  input.ProfileID,
		SourceName: input.Filename,
		Stage:      pipeline.StageUploading,
		StartedAt:  deps.Now(),
	}
	if err := run.Validate(); err != nil {
		return pipeline.Run{}, err
	}
	if err := deps.Tracker.Begin(run.ProfileID, run.ID, run.SourceName); err != nil {
		return pipeline.Run{}, err
	}
	saveRun(deps, run)
	slog.Info("pipeline_started", "profile", run.ProfileID, "run_id", run.ID, "file", run.SourceName, "bytes", len(input.CSV))
	return run, nil
}

func executeRun(ctx context.Context, run pipeline.Run, input RunPipelineInput, deps RunPipelineDeps) (RunPipelineResult, error) {
	basic, err := uploadStage(ctx, input, deps)
	if err != nil {
		return failRun(deps, run, err)
	}
	run.MemberCount = len(basic)
	run.Stage = pipeline.StageGenerating
	deps.Tracker.Update(run.ProfileID, run.ID, func(s *RunStatus) {
		s.Stage = pipeline.StageGenerating
		s.MemberCount = len(basic)
	})
	saveRun(deps, run)

	set := planset.PlanSet{
		ProfileID:  run.ProfileID,
		Members:    basic,
		SourceName: run.SourceName,
		Fallback:   true,
		UpdatedAt:  deps.Now(),
	}
	if err := deps.PlanSets.Save(ctx, set); err != nil {
		return failRun(deps, run, err)
	}

	detailed, warning := generateStage(ctx, basic, deps)
	if warning == "" {
		set.Members = detailed
		set.Fallback = false
	} else {
		set.Warning = warning
	}
	set.UpdatedAt = deps.Now()
	if err := deps.PlanSets.Save(ctx, set); err != nil {
		return failRun(deps, run, err)
	}

	run.Stage = pipeline.StageDone
	run.PlansCount = set.PlansCount()
	run.Warning = warning
	run.FinishedAt = deps.Now()
	deps.Tracker.Update(run.ProfileID, run.ID, func(s *RunStatus) {
		s.Stage = pipeline.StageDone
		s.PlansCount = run.PlansCount
		s.Warning = warning
	})
	saveRun(deps, run)
	slog.Info("pipeline_done", "profile", run.ProfileID, "run_id", run.ID, "members", run.MemberCount, "plans", run.PlansCount, "fallback", set.Fallback, "duration_ms", run.Duration().Milliseconds())
	return RunPipelineResult{Run: run, PlanSet: set}, nil
}

// uploadStage forwards the CSV and decodes the basic assignment list.
func uploadStage(ctx context.Context, input RunPipelineInput, deps RunPipelineDeps) ([]member.WithPlans, error) {
	uctx, cancel := context.WithTimeout(ctx, orDefault(deps.UploadTimeout, DefaultUploadTimeout))
	defer cancel()

	raw, err := deps.Planner.ForwardCSV(uctx, input.Filename, bytes.NewReader(input.CSV))
	if err != nil {
		return nil, err
	}
	basic, err := member.DecodeList[member.WithPlans](raw, member.KeyMembers)
	if err != nil {
		return nil, err
	}
	if len(basic) == 0 {
		return nil, &UploadValidationError{Message: MsgNoMembers}
	}
	return basic, nil
}

// generateStage requests detailed plans. A non-empty warning means the
// basic list should be kept instead.
func generateStage(ctx context.Context, basic []member.WithPlans, deps RunPipelineDeps) ([]member.WithPlans, string) {
	gctx, cancel := context.WithTimeout(ctx, orDefault(deps.GenerateTimeout, DefaultGenerateTimeout))
	defer cancel()

	start := time.Now()
	detailed, err := deps.Planner.GeneratePlans(gctx, basic)
	if err != nil {
		if errors.Is(err, planner.ErrTimeout) {
			slog.Warn("plan_generation_timeout", "members", len(basic), "elapsed_ms", time.Since(start).Milliseconds())
			return nil, planset.WarningPlanTimeout
		}
		f := planner.DescribeGenerate(err)
		slog.Warn("plan_generation_failed", "members", len(basic), "status", f.Status, "error", err)
		return nil, planset.WarningPlanFailedPrefix + f.Message
	}
	if len(detailed) == 0 {
		slog.Warn("plan_generation_empty", "members", len(basic))
		return nil, planset.WarningPlanFailedPrefix + "no plans returned"
	}
	slog.Info("plan_generation_done", "members", len(detailed), "elapsed_ms", time.Since(start).Milliseconds())
	return member.MergePlans(basic, detailed), ""
}

func failRun(deps RunPipelineDeps, run pipeline.Run, err error) (RunPipelineResult, error) {
	msg := failureMessage(err)
	run.Stage = pipeline.StageFailed
	run.Error = msg
	run.FinishedAt = deps.Now()
	deps.Tracker.Update(run.ProfileID, run.ID, func(s *RunStatus) {
		s.Stage = pipeline.StageFailed
		s.Error = msg
	})
	saveRun(deps, run)
	slog.Error("pipeline_failed", "profile", run.ProfileID, "run_id", run.ID, "error", err)
	return RunPipelineResult{Run: run}, err
}

// failureMessage is the text shown to the operator for a failed run.
func failureMessage(err error) string {
	var uv *UploadValidationError
	var de *member.DecodeError
	switch {
	case errors.As(err, &uv):
		return uv.Message
	case errors.As(err, &de):
		return MsgBadShape
	default:
		return planner.DescribeForward(err).Message
	}
}

func saveRun(deps RunPipelineDeps, run pipeline.Run) {
	if deps.Runs == nil {
		return
	}
	if err := deps.Runs.Save(context.Background(), run); err != nil {
		slog.Warn("pipeline_run_save_failed", "run_id", run.ID, "error", err)
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
