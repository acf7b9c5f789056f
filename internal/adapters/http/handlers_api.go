package web

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vitality/internal/adapters/planner"
	"vitality/internal/adapters/sheets"
	"vitality/internal/application/orchestrators"
	"vitality/internal/domain/member"
)

// Messages returned by the /api proxy.
const (
	msgNoFileProvided   = "No file provided"
	msgNoFileUploaded   = `No file uploaded (expected form field "file" or "csvFile")`
	msgNotCSV           = "Please upload a CSV file"
	msgNotMultipart     = "Expected CSV file upload (multipart/form-data)"
	msgNoCSVProvided    = "No CSV file provided"
	msgAPIConfigMissing = "API configuration missing. Please set FITNESS_API_URL environment variable."
	msgNotConfigured    = "Fitness Planner API is not configured"
	msgInvalidMembers   = "Invalid members data"
	msgMemberIDRequired = "Member ID is required"
	msgMemberOnServer   = "Member plans are stored on the server; open the plan page instead"
	msgHealthFailed     = "Health check failed"
	msgHealthNoURL      = "FITNESS_API_URL not configured on the server"
	msgAPIUnavailable   = "API unavailable"
)

// assignTimeout bounds CSV forwarding calls.
const assignTimeout = 30 * time.Second

// uploadedFile is a CSV read from a multipart form.
type uploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// readFormFile returns the first of fields present in the multipart form.
// ok is false when none is present.
func readFormFile(w http.ResponseWriter, r *http.Request, fields ...string) (uploadedFile, bool, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return uploadedFile{}, false, err
	}
	for _, field := range fields {
		f, hdr, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return uploadedFile{}, false, err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return uploadedFile{}, false, err
		}
		return uploadedFile{Name: hdr.Filename, ContentType: hdr.Header.Get("Content-Type"), Data: data}, true, nil
	}
	return uploadedFile{}, false, nil
}

func isJSONRequest(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

func writeFailure(w http.ResponseWriter, f planner.Failure) {
	writeError(w, f.Status, f.Message)
}

// handleAssignPrograms assigns programs to uploaded members. A JSON body
// is forwarded as records; anything else is treated as a CSV upload.
func handleAssignPrograms(w http.ResponseWriter, r *http.Request) {
	if isJSONRequest(r) {
		assignJSON(w, r)
		return
	}
	assignCSV(w, r, msgNoFileProvided, func(w http.ResponseWriter, list []member.WithPlans) {
		writeJSON(w, http.StatusOK, list)
	})
}

// handleUploadCSV is the older upload route. It answers with the
// {success, data} envelope.
func handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	assignCSV(w, r, msgNoFileUploaded, func(w http.ResponseWriter, list []member.WithPlans) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": list})
	})
}

func assignCSV(w http.ResponseWriter, r *http.Request, missingMsg string, respond func(http.ResponseWriter, []member.WithPlans)) {
	file, ok, err := readFormFile(w, r, "file", "csvFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, msgNotMultipart)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, missingMsg)
		return
	}
	if !orchestrators.IsCSVUpload(file.Name, file.ContentType) {
		writeError(w, http.StatusBadRequest, msgNotCSV)
		return
	}
	if services.Proxy == nil {
		writeError(w, http.StatusServiceUnavailable, msgNotConfigured)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), assignTimeout)
	defer cancel()
	list, err := services.Proxy.AssignProgramsCSV(ctx, file.Name, bytes.NewReader(file.Data))
	if err != nil {
		logUpstreamError(r, "assign_programs_failed", err)
		writeFailure(w, planner.DescribeAssign(err))
		return
	}
	slog.Info("programs_assigned", "file", file.Name, "members", len(list))
	respond(w, list)
}

func assignJSON(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeJSONBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidMembers)
		return
	}
	members, err := member.DecodeList[member.Member](raw, member.KeyMembers)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, msgInvalidMembers)
		return
	}
	if services.Proxy == nil {
		writeError(w, http.StatusServiceUnavailable, msgNotConfigured)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), assignTimeout)
	defer cancel()
	list, err := services.Proxy.AssignPrograms(ctx, members)
	if err != nil {
		logUpstreamError(r, "assign_programs_failed", err)
		writeFailure(w, planner.DescribeAssign(err))
		return
	}
	slog.Info("programs_assigned", "members", len(list))
	writeJSON(w, http.StatusOK, list)
}

// handleProcess forwards a CSV to the planner and returns its JSON as is.
func handleProcess(w http.ResponseWriter, r *http.Request) {
	if services.Proxy == nil {
		slog.Error("planner_not_configured", "route", "/api/process")
		writeError(w, http.StatusInternalServerError, msgAPIConfigMissing)
		return
	}
	file, ok, err := readFormFile(w, r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, msgNotMultipart)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, msgNoCSVProvided)
		return
	}
	if !strings.HasSuffix(strings.ToLower(file.Name), ".csv") {
		writeError(w, http.StatusBadRequest, msgNotCSV)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), assignTimeout)
	defer cancel()
	body, err := services.Proxy.ForwardCSV(ctx, file.Name, bytes.NewReader(file.Data))
	if err != nil {
		logUpstreamError(r, "process_csv_failed", err)
		writeFailure(w, planner.DescribeForward(err))
		return
	}
	slog.Info("csv_processed", "file", file.Name, "bytes", len(file.Data))
	writeRawJSON(w, http.StatusOK, body)
}

// handleGeneratePlans forwards assigned members for detailed plans.
func handleGeneratePlans(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeJSONBody(w, r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, msgInvalidMembers)
		return
	}
	list, err := member.DecodeList[member.WithPlans](raw, member.KeyMembers)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, msgInvalidMembers)
		return
	}
	if services.Proxy == nil {
		writeError(w, http.StatusServiceUnavailable, msgNotConfigured)
		return
	}

	timeout := services.GenerateTimeout
	if timeout <= 0 {
		timeout = orchestrators.DefaultGenerateTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	enriched, err := services.Proxy.GeneratePlans(ctx, list)
	if err != nil {
		logUpstreamError(r, "generate_plans_failed", err)
		writeFailure(w, planner.DescribeGenerate(err))
		return
	}
	slog.Info("plans_generated", "members", len(enriched), "with_plans", member.CountWithPlans(enriched))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": enriched})
}

// handleHealth reports planner health. It always answers with a JSON
// document, even when the planner cannot be reached.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if services.Proxy == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":  "error",
			"message": msgHealthNoURL,
		})
		return
	}
	body, err := services.Proxy.Health(r.Context())
	var se *planner.StatusError
	var ij *planner.InvalidJSONError
	switch {
	case err == nil:
		writeRawJSON(w, http.StatusOK, body)
	case errors.As(err, &se), errors.As(err, &ij):
		logUpstreamError(r, "health_check_failed", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "error",
			"message": msgHealthFailed,
		})
	default:
		logUpstreamError(r, "health_check_unreachable", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":        "error",
			"models_loaded": false,
			"azure_openai":  false,
			"message":       msgAPIUnavailable,
		})
	}
}

// handleSummary proxies the analytics summary from the Apps Script.
func handleSummary(w http.ResponseWriter, r *http.Request) {
	body, err := services.Sheets.FetchSummary(r.Context(), r.URL.Query())
	var ue *sheets.UpstreamError
	switch {
	case err == nil:
		writeRawJSON(w, http.StatusOK, body)
	case errors.Is(err, sheets.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &ue):
		logUpstreamError(r, "summary_failed", err)
		writeErrorDetails(w, http.StatusBadGateway, ue.Message, ue.Details)
	default:
		internalError(w, err)
	}
}

// handleMemberPassthrough exists for older clients. Plan sets live in the
// server-side store, so it points callers at the member's plan page.
func handleMemberPassthrough(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "memberId"))
	if id == "" {
		writeError(w, http.StatusBadRequest, msgMemberIDRequired)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  msgMemberOnServer,
		"memberId": id,
		"planUrl":  planPath(id),
	})
}

// handlePerf serves the slowest paths, queries and upstream calls.
func handlePerf(w http.ResponseWriter, r *http.Request) {
	if perfCollector == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	since := time.Hour
	if d, err := time.ParseDuration(r.URL.Query().Get("since")); err == nil && d > 0 {
		since = d
	}
	writeJSON(w, http.StatusOK, perfCollector.Snapshot(timeNow().Add(-since), 10))
}

func logUpstreamError(r *http.Request, event string, err error) {
	attrs := []any{"path", r.URL.Path, "error", err}
	var de *member.DecodeError
	if errors.As(err, &de) {
		attrs = append(attrs, "detail", de.Detail())
	}
	slog.Warn(event, attrs...)
}
