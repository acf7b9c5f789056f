package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.html
var templateFS embed.FS

// FooterTemplate is the page footer for PDF output. The pageNumber and
// totalPages spans are filled in by the browser's print engine.
const FooterTemplate = `<div style="width:100%;font-size:8px;color:#64748b;padding:0 15mm;display:flex;justify-content:space-between;">` +
	`<span>This is a personalized plan. Consult a professional before making changes.</span>` +
	`<span>Page <span class="pageNumber"></span> of <span class="totalPages"></span></span></div>`

// Raw HTML in markdown input is escaped since WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// Markdown renders trainer-written text such as program details.
func Markdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// FuncMap holds the helpers report templates use. The web package adds
// these to its own templates so the plan page formats numbers the same way.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"fmtNum":     Fmt,
		"num":        Num,
		"score":      Score,
		"liters":     Liters,
		"withUnit":   WithUnit,
		"markdown":   Markdown,
		"session":    SessionLine,
		"mealItems":  MealItems,
		"mealMacros": MealMacros,
		"pieSVG":     PieSVG,
	}
}

var templates = template.Must(template.New("report").Funcs(FuncMap()).ParseFS(templateFS, "templates/*.html"))

// printData is passed to the print template.
type printData struct {
	View
	Nonce string
}

// documentData is passed to the PDF document template.
type documentData struct {
	View
	Brand string
}

// RenderPrint writes the standalone print page. The page calls
// window.print on load; nonce is set on its inline script so a strict
// content security policy can allow it.
func RenderPrint(w io.Writer, v View, nonce string) error {
	if err := templates.ExecuteTemplate(w, "print.html", printData{View: v, Nonce: nonce}); err != nil {
		return fmt.Errorf("render print page: %w", err)
	}
	return nil
}

// RenderDocument writes the three-page HTML document that is printed to PDF.
func RenderDocument(w io.Writer, v View) error {
	if err := templates.ExecuteTemplate(w, "document.html", documentData{View: v, Brand: Brand}); err != nil {
		return fmt.Errorf("render report document: %w", err)
	}
	return nil
}

// Filename is the download name of a member's PDF report.
func Filename(memberID string) string {
	return "Member_" + memberID + "_Report.pdf"
}

// MacroChart renders the macro pie, or nothing when there is no data.
func (v View) MacroChart() template.HTML {
	arcs, ok := v.MacroPie.Get()
	if !ok {
		return ""
	}
	return PieSVG(arcs, PieSize)
}
