package web

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"vitality/internal/adapters/email"
	"vitality/internal/adapters/http/middleware"
	"vitality/internal/adapters/pdf"
	"vitality/internal/application/orchestrators"
	"vitality/internal/application/projections"
	"vitality/internal/application/report"
)

const msgPDFUnavailable = "PDF export is not available on this server. Use Print instead."

// planPage is the data for plan.html.
type planPage struct {
	report.View
	Fallback     bool
	Warning      string
	EmailEnabled bool
	Flash        string
	Error        string
}

// lookupPlan loads the member named in the URL. On failure the response
// has been written and ok is false.
func lookupPlan(w http.ResponseWriter, r *http.Request) (projections.MemberPlanResult, bool) {
	result, err := projections.QueryMemberPlan(r.Context(), projections.MemberPlanQuery{
		ProfileID: middleware.ProfileID(r.Context()),
		MemberID:  chi.URLParam(r, "memberId"),
	}, projections.MemberPlanDeps{PlanSets: stores.PlanSets})
	if err == nil {
		return result, true
	}

	status := http.StatusInternalServerError
	msg := projections.ErrPlanLoadFailed.Error()
	switch {
	case errors.Is(err, projections.ErrMemberIDRequired):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, projections.ErrNoPlanData), errors.Is(err, projections.ErrMemberNotFound):
		status, msg = http.StatusNotFound, err.Error()
	default:
		slog.Error("plan_load_failed", "member", chi.URLParam(r, "memberId"), "error", err)
	}
	if isHTMLRequest(r) || r.Method == http.MethodGet {
		renderErrorPage(w, r, status, "Member plan unavailable", msg)
	} else {
		writeError(w, status, msg)
	}
	return projections.MemberPlanResult{}, false
}

// handlePlan renders a member's plan page.
func handlePlan(w http.ResponseWriter, r *http.Request) {
	result, ok := lookupPlan(w, r)
	if !ok {
		return
	}
	renderPlan(w, r, http.StatusOK, result, r.URL.Query().Get("sent"), "")
}

func renderPlan(w http.ResponseWriter, r *http.Request, status int, result projections.MemberPlanResult, flash, errMsg string) {
	renderTemplateStatus(w, r, status, "plan.html", planPage{
		View:         report.Build(result.Member, result.UpdatedAt),
		Fallback:     result.Fallback,
		Warning:      result.Warning,
		EmailEnabled: emailSender != nil,
		Flash:        flash,
		Error:        errMsg,
	})
}

// handlePlanPrint serves the standalone print page, which opens the
// browser's print dialog on load.
func handlePlanPrint(w http.ResponseWriter, r *http.Request) {
	result, ok := lookupPlan(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.RenderPrint(&buf, report.Build(result.Member, result.UpdatedAt), middleware.Nonce(r.Context())); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handlePlanPDF downloads the member's three-page PDF report.
func handlePlanPDF(w http.ResponseWriter, r *http.Request) {
	result, ok := lookupPlan(w, r)
	if !ok {
		return
	}
	file, err := orchestrators.ExecuteRenderReport(r.Context(), orchestrators.RenderReportInput{
		Member: result.Member,
	}, orchestrators.RenderReportDeps{PDF: services.PDF, Now: timeNow})
	if errors.Is(err, pdf.ErrUnavailable) {
		slog.Warn("pdf_unavailable", "member", result.Member.MemberID.String(), "error", err)
		renderErrorPage(w, r, http.StatusServiceUnavailable, "PDF unavailable", msgPDFUnavailable)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", fmt.Sprint(len(file.Content)))
	w.Write(file.Content)
}

// handlePlanEmail sends the PDF report to the address in the form.
func handlePlanEmail(w http.ResponseWriter, r *http.Request) {
	result, ok := lookupPlan(w, r)
	if !ok {
		return
	}
	if emailSender == nil {
		renderPlan(w, r, http.StatusServiceUnavailable, result, "", "Email is not configured on this server.")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		renderPlan(w, r, http.StatusBadRequest, result, "", "Invalid form submission.")
		return
	}

	_, err := orchestrators.ExecuteEmailReport(r.Context(), orchestrators.EmailReportInput{
		Member: result.Member,
		To:     r.PostFormValue("to"),
		Note:   r.PostFormValue("note"),
	}, orchestrators.EmailReportDeps{
		PDF:     services.PDF,
		Sender:  emailSender,
		From:    emailFromAddress,
		ReplyTo: emailReplyTo,
		Now:     timeNow,
	})
	switch {
	case errors.Is(err, email.ErrNoRecipient):
		renderPlan(w, r, http.StatusBadRequest, result, "", "Please enter a valid email address.")
		return
	case errors.Is(err, pdf.ErrUnavailable):
		renderPlan(w, r, http.StatusServiceUnavailable, result, "", msgPDFUnavailable)
		return
	case err != nil:
		slog.Error("report_email_failed", "member", result.Member.MemberID.String(), "error", err)
		renderPlan(w, r, http.StatusBadGateway, result, "", "The report could not be sent. Please try again.")
		return
	}
	http.Redirect(w, r, planPath(result.Member.MemberID.String())+"?sent=1", http.StatusSeeOther)
}

// planPath is the plan page URL for a member id of any shape.
func planPath(id string) string {
	return "/plan/" + url.PathEscape(id)
}
