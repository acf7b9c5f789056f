package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	emailAdapter "vitality/internal/adapters/email"
	"vitality/internal/adapters/pdf"
	"vitality/internal/application/report"
	"vitality/internal/domain/member"
)

// ReportFile is a rendered PDF ready for download or attachment.
type ReportFile struct {
	Filename string
	Content  []byte
}

// RenderReportInput carries the member whose report is printed.
type RenderReportInput struct {
	Member member.WithPlans
}

// RenderReportDeps holds dependencies for RenderReport.
type RenderReportDeps struct {
	PDF pdf.Renderer
	Now func() time.Time
}

// ExecuteRenderReport prints a member's three-page report to PDF.
// PRE: Member has a non-empty id
// POST: Returns the PDF named Member_<id>_Report.pdf, or an error wrapping
// pdf.ErrUnavailable when no renderer can run
func ExecuteRenderReport(ctx context.Context, input RenderReportInput, deps RenderReportDeps) (ReportFile, error) {
	if input.Member.MemberID.IsZero() {
		return ReportFile{}, errors.New("member ID is required")
	}
	var doc bytes.Buffer
	if err := report.RenderDocument(&doc, report.Build(input.Member, deps.Now())); err != nil {
		return ReportFile{}, err
	}
	out, err := deps.PDF.Render(ctx, doc.String())
	if err != nil {
		return ReportFile{}, fmt.Errorf("render report for member %s: %w", input.Member.MemberID, err)
	}
	return ReportFile{Filename: report.Filename(input.Member.MemberID.String()), Content: out}, nil
}

// EmailReportInput carries the member and the address to send the report to.
type EmailReportInput struct {
	Member member.WithPlans
	To     string
	Note   string // optional message shown above the standard body
}

// EmailReportDeps holds dependencies for EmailReport.
type EmailReportDeps struct {
	PDF     pdf.Renderer
	Sender  emailAdapter.Sender
	From    string
	ReplyTo string
	Now     func() time.Time
}

var reportEmailBody = template.Must(template.New("email").Parse(`<p>Hello,</p>
{{if .Note}}<p>{{.Note}}</p>{{end}}
<p>Attached is the personalized fitness and nutrition plan for member #{{.MemberID}}{{if .Program}} ({{.Program}}){{end}}.</p>
<p>This is a personalized plan. Consult a professional before making changes.</p>
<p>{{.Brand}}</p>`))

// ExecuteEmailReport renders the member's PDF and emails it as an attachment.
// PRE: To is a valid address; Sender is configured
// POST: One message sent with the report attached
// INVARIANT: Nothing is sent when rendering fails
func ExecuteEmailReport(ctx context.Context, input EmailReportInput, deps EmailReportDeps) (emailAdapter.SendResult, error) {
	to := strings.TrimSpace(input.To)
	req := emailAdapter.SendRequest{To: []string{to}}
	if err := req.Validate(); err != nil {
		return emailAdapter.SendResult{}, err
	}

	file, err := ExecuteRenderReport(ctx, RenderReportInput{Member: input.Member}, RenderReportDeps{PDF: deps.PDF, Now: deps.Now})
	if err != nil {
		return emailAdapter.SendResult{}, err
	}

	var body bytes.Buffer
	err = reportEmailBody.Execute(&body, map[string]string{
		"Note":     strings.TrimSpace(input.Note),
		"MemberID": input.Member.MemberID.String(),
		"Program":  input.Member.ProgramType,
		"Brand":    report.Brand,
	})
	if err != nil {
		return emailAdapter.SendResult{}, fmt.Errorf("render email body: %w", err)
	}

	req.From = deps.From
	req.ReplyTo = deps.ReplyTo
	req.Subject = "Your personalized plan - Member #" + input.Member.MemberID.String()
	req.HTML = body.String()
	req.Attachments = []emailAdapter.Attachment{{Filename: file.Filename, Content: file.Content}}

	res, err := deps.Sender.Send(ctx, req)
	if err != nil {
		return emailAdapter.SendResult{}, fmt.Errorf("send report: %w", err)
	}
	slog.Info("report_emailed", "member", input.Member.MemberID.String(), "message_id", res.MessageID)
	return res, nil
}
