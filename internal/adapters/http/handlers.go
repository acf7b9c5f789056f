package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"

	"vitality/internal/adapters/http/middleware"
	"vitality/internal/application/report"
	"vitality/internal/domain/sheet"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	if isJSONResponse(w) {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func isJSONResponse(w http.ResponseWriter) bool {
	return strings.HasPrefix(w.Header().Get("Content-Type"), "application/json")
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json_encode_failed", "error", err)
	}
}

// writeRawJSON writes an upstream JSON body unchanged.
func writeRawJSON(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeErrorDetails(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

func isHTMLRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "application/xhtml+xml")
}

// maxUploadBytes bounds CSV uploads and JSON bodies.
const maxUploadBytes = 10 << 20

// pageTemplates caches parsed page templates by name. Each page is parsed
// together with layout.html.
var (
	pageTemplatesMu sync.Mutex
	pageTemplates   = map[string]*template.Template{}
)

// templateFuncs are the helpers that do not depend on the request.
func templateFuncs() template.FuncMap {
	funcs := report.FuncMap()
	funcs["csrfToken"] = func() string { return "" }
	funcs["nonce"] = func() string { return "" }
	funcs["isOperator"] = func() bool { return false }
	funcs["loginEnabled"] = func() bool { return false }
	funcs["add"] = func(a, b int) int { return a + b }
	funcs["sub"] = func(a, b int) int { return a - b }
	funcs["fieldValue"] = func(row sheet.Row, key string) string { return sheet.FormatValue(row.Get(key)) }
	funcs["pageQuery"] = pageQuery
	funcs["withQuery"] = withQuery
	funcs["planPath"] = func(id any) string { return planPath(fmt.Sprint(id)) }
	funcs["since"] = func(t time.Time) string { return since(timeNow(), t) }
	return funcs
}

func loadPage(name string) (*template.Template, error) {
	pageTemplatesMu.Lock()
	defer pageTemplatesMu.Unlock()
	if tpl, ok := pageTemplates[name]; ok {
		return tpl, nil
	}
	tpl, err := template.New("layout.html").Funcs(templateFuncs()).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	pageTemplates[name] = tpl
	return tpl, nil
}

// renderTemplate renders a page inside layout.html with request-bound helpers.
func renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	renderTemplateStatus(w, r, http.StatusOK, templateName, data)
}

func renderTemplateStatus(w http.ResponseWriter, r *http.Request, status int, templateName string, data any) {
	base, err := loadPage(templateName)
	if err != nil {
		internalError(w, err)
		return
	}
	tpl, err := base.Clone()
	if err != nil {
		internalError(w, err)
		return
	}
	operator := middleware.IsOperator(r.Context())
	tpl.Funcs(template.FuncMap{
		"csrfToken":    func() string { return csrf.Token(r) },
		"nonce":        func() string { return middleware.Nonce(r.Context()) },
		"isOperator":   func() bool { return operator },
		"loginEnabled": func() bool { return services != nil && services.OperatorPasswordHash != "" },
	})

	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, fmt.Errorf("render %s: %w", templateName, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(buf.String()))
}

// renderErrorPage shows msg with a link back to the dashboard.
func renderErrorPage(w http.ResponseWriter, r *http.Request, status int, title, msg string) {
	renderTemplateStatus(w, r, status, "error.html", map[string]any{
		"Title":   title,
		"Message": msg,
	})
}

// pageQuery builds a query string for a page link, keeping the other params.
func pageQuery(base url.Values, page int) template.URL {
	q := url.Values{}
	for k, v := range base {
		q[k] = v
	}
	q.Set("page", fmt.Sprint(page))
	return template.URL("?" + q.Encode())
}

// withQuery appends the encoded query to path.
func withQuery(path string, q url.Values) template.URL {
	if len(q) == 0 {
		return template.URL(path)
	}
	return template.URL(path + "?" + q.Encode())
}

// since renders a coarse relative time like "5 minutes ago".
func since(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour") + " ago"
	default:
		return plural(int(d/(24*time.Hour)), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// decodeJSONBody reads a JSON body bounded by maxUploadBytes.
func decodeJSONBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// staticFiles serves embedded assets under /static/.
func staticFiles() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
