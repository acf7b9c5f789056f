package web

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"vitality/internal/adapters/http/middleware"
	"vitality/internal/adapters/spreadsheet"
	planSetStore "vitality/internal/adapters/storage/planset"
	"vitality/internal/application/listutil"
	"vitality/internal/application/orchestrators"
	"vitality/internal/application/projections"
	"vitality/internal/domain/member"
	"vitality/internal/domain/pipeline"
)

// recentRunsLimit is how many past runs the dashboard lists.
const recentRunsLimit = 5

// dashboardPage is the data for dashboard.html.
type dashboardPage struct {
	projections.DashboardResult
	Query          url.Values
	Search         string
	Cluster        string
	Program        string
	PerPageOptions []int
	Links          []listutil.PageLink
	Run            orchestrators.RunStatus
	Running        bool
	RecentRuns     []pipeline.Run
	Error          string
}

// handleDashboard renders the member cards for the current profile.
func handleDashboard(w http.ResponseWriter, r *http.Request) {
	renderDashboard(w, r, http.StatusOK, "")
}

func renderDashboard(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	profileID := middleware.ProfileID(r.Context())
	q := r.URL.Query()
	pp := listutil.ParsePageParams(q)
	filters := listutil.ParseFilterParams(q, projections.DashboardFilterKeys)

	result, err := projections.QueryDashboard(r.Context(), projections.DashboardQuery{
		ProfileID: profileID,
		Search:    filters.Search,
		Cluster:   filters.Filters[projections.FilterCluster],
		Program:   filters.Filters[projections.FilterProgram],
		Page:      pp.Page,
		PerPage:   pp.PerPage,
	}, projections.DashboardDeps{PlanSets: stores.PlanSets})
	if err != nil {
		internalError(w, err)
		return
	}

	var recent []pipeline.Run
	if stores.Runs != nil {
		recent, err = stores.Runs.ListByProfile(r.Context(), profileID, recentRunsLimit)
		if err != nil {
			slog.Warn("recent_runs_failed", "profile", profileID, "error", err)
		}
	}

	run := services.Tracker.Status(profileID)
	renderTemplateStatus(w, r, status, "dashboard.html", dashboardPage{
		DashboardResult: result,
		Query:           q,
		Search:          filters.Search,
		Cluster:         filters.Filters[projections.FilterCluster],
		Program:         filters.Filters[projections.FilterProgram],
		PerPageOptions:  listutil.PerPageOptions,
		Links:           result.PageInfo.Links(),
		Run:             run,
		Running:         run.Stage.Active(),
		RecentRuns:      recent,
		Error:           errMsg,
	})
}

// handleDashboardStatus serves the profile's run progress for polling.
func handleDashboardStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, services.Tracker.Status(middleware.ProfileID(r.Context())))
}

// handleDashboardUpload starts the upload pipeline for the profile. The
// run continues after the response; the page polls /dashboard/status.
// It uses the same FITNESS_API_URL client as the /api routes.
func handleDashboardUpload(w http.ResponseWriter, r *http.Request) {
	if services.Proxy == nil {
		uploadFailed(w, r, http.StatusInternalServerError, msgAPIConfigMissing)
		return
	}
	file, ok, err := readFormFile(w, r, "file", "csvFile")
	if err != nil {
		uploadFailed(w, r, http.StatusBadRequest, msgNotMultipart)
		return
	}
	if !ok {
		uploadFailed(w, r, http.StatusBadRequest, orchestrators.MsgNoFile)
		return
	}

	run, _, err := orchestrators.StartRunPipeline(r.Context(), orchestrators.RunPipelineInput{
		ProfileID:   middleware.ProfileID(r.Context()),
		Filename:    file.Name,
		ContentType: file.ContentType,
		CSV:         file.Data,
	}, orchestrators.RunPipelineDeps{
		Planner:         services.Proxy,
		PlanSets:        stores.PlanSets,
		Runs:            stores.Runs,
		Tracker:         services.Tracker,
		UploadTimeout:   services.UploadTimeout,
		GenerateTimeout: services.GenerateTimeout,
		GenerateID:      generateID,
		Now:             timeNow,
	})
	var uv *orchestrators.UploadValidationError
	switch {
	case errors.As(err, &uv):
		uploadFailed(w, r, http.StatusBadRequest, uv.Message)
		return
	case errors.Is(err, orchestrators.ErrRunInProgress):
		uploadFailed(w, r, http.StatusConflict, "An upload is already being processed. Please wait for it to finish.")
		return
	case err != nil:
		internalError(w, err)
		return
	}

	if isHTMLRequest(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusAccepted, services.Tracker.Status(run.ProfileID))
}

func uploadFailed(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if isHTMLRequest(r) {
		renderDashboard(w, r, status, msg)
		return
	}
	writeError(w, status, msg)
}

// handleDashboardClear removes the profile's stored plans.
func handleDashboardClear(w http.ResponseWriter, r *http.Request) {
	err := orchestrators.ExecuteClearPlans(r.Context(), orchestrators.ClearPlansInput{
		ProfileID: middleware.ProfileID(r.Context()),
	}, orchestrators.ClearPlansDeps{
		PlanSets: stores.PlanSets,
		Tracker:  services.Tracker,
	})
	if errors.Is(err, orchestrators.ErrRunInProgress) {
		uploadFailed(w, r, http.StatusConflict, "Plans cannot be cleared while an upload is being processed.")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	if isHTMLRequest(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportCSV downloads the stored members as CSV.
func handleExportCSV(w http.ResponseWriter, r *http.Request) {
	members, ok := exportMembers(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := spreadsheet.WriteCSV(&buf, members); err != nil {
		internalError(w, err)
		return
	}
	sendDownload(w, "text/csv; charset=utf-8", spreadsheet.CSVFilename, buf.Bytes())
}

// handleExportXLSX downloads the stored members as a workbook.
func handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	members, ok := exportMembers(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := spreadsheet.WriteXLSX(&buf, members); err != nil {
		internalError(w, err)
		return
	}
	sendDownload(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", spreadsheet.XLSXFilename, buf.Bytes())
}

// exportMembers returns the filtered, unpaged member list.
func exportMembers(w http.ResponseWriter, r *http.Request) ([]member.WithPlans, bool) {
	profileID := middleware.ProfileID(r.Context())
	set, err := stores.PlanSets.Get(r.Context(), profileID)
	if err != nil && !errors.Is(err, planSetStore.ErrNotFound) {
		internalError(w, err)
		return nil, false
	}
	if err != nil || set.Corrupt || len(set.Members) == 0 {
		if isHTMLRequest(r) {
			renderErrorPage(w, r, http.StatusNotFound, "Nothing to export", projections.ErrNoPlanData.Error())
		} else {
			writeError(w, http.StatusNotFound, projections.ErrNoPlanData.Error())
		}
		return nil, false
	}
	filters := listutil.ParseFilterParams(r.URL.Query(), projections.DashboardFilterKeys)
	members := projections.FilterMembers(set.Members, filters.Search,
		filters.Filters[projections.FilterCluster], filters.Filters[projections.FilterProgram])
	slog.Info("members_exported", "profile", profileID, "members", len(members))
	return members, true
}

func sendDownload(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
