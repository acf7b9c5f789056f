// Package sheets reads the Google Apps Script web app that fronts the
// analytics spreadsheet.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"vitality/internal/domain/sheet"
)

// DefaultScriptHost is the Apps Script host serving /macros/s/<id>/exec.
const DefaultScriptHost = "https://script.google.com"

// ErrNotConfigured is returned when no script id is set.
var ErrNotConfigured = errors.New("GOOGLE_APP_SCRIPT_ID not configured")

// jsonpPattern captures the argument of a callback(...) wrapper.
var jsonpPattern = regexp.MustCompile(`^[^(]*\(([\s\S]*)\);?\s*$`)

// UpstreamError is any failure to obtain JSON from the script.
// Message is safe to show; Details carries upstream text or the cause.
type UpstreamError struct {
	Message string
	Details string
	Status  int // upstream status, 0 when not an HTTP error
}

func (e *UpstreamError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Observer receives one callback per upstream call.
type Observer interface {
	ObserveUpstream(op string, status int, start time.Time)
}

// Client fetches from one Apps Script deployment.
type Client struct {
	scriptID string
	host     string
	http     *http.Client
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHost replaces the Apps Script host, for tests and proxies.
func WithHost(host string) Option {
	return func(c *Client) { c.host = strings.TrimRight(host, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithObserver records timings of every call.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a client for scriptID. An empty id yields a client whose
// calls fail with ErrNotConfigured.
func New(scriptID string, opts ...Option) *Client {
	c := &Client{
		scriptID: strings.TrimSpace(scriptID),
		host:     DefaultScriptHost,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Configured reports whether a script id is set.
func (c *Client) Configured() bool {
	return c.scriptID != ""
}

// ExecURL returns the exec endpoint with query attached.
func (c *Client) ExecURL(query url.Values) string {
	u := fmt.Sprintf("%s/macros/s/%s/exec", c.host, url.PathEscape(c.scriptID))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// FetchSummary returns the script's JSON answer for query. JSON and JSONP
// bodies are accepted; anything else is an *UpstreamError.
func (c *Client) FetchSummary(ctx context.Context, query url.Values) (json.RawMessage, error) {
	const op = "sheets.FetchSummary"
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	status, contentType, body, err := c.get(ctx, op, query)
	if err != nil {
		return nil, &UpstreamError{Message: "Fetch failed", Details: err.Error()}
	}
	if status < 200 || status > 299 {
		return nil, &UpstreamError{Message: fmt.Sprintf("Upstream error %d", status), Details: string(body), Status: status}
	}
	return ParseSummary(contentType, body)
}

// ParseSummary interprets a successful script body.
// A JSON or JavaScript content type allows a JSONP wrapper; any other
// content type must carry plain JSON.
func ParseSummary(contentType string, body []byte) (json.RawMessage, error) {
	text := strings.TrimSpace(string(body))
	if json.Valid([]byte(text)) && text != "" && text != "null" {
		return json.RawMessage(text), nil
	}
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "application/json") || strings.Contains(ct, "text/javascript") {
		if m := jsonpPattern.FindStringSubmatch(text); m != nil && m[1] != "" {
			inner := strings.TrimSpace(m[1])
			if json.Valid([]byte(inner)) {
				return json.RawMessage(inner), nil
			}
			return nil, &UpstreamError{Message: "Failed to parse upstream response"}
		}
		return nil, &UpstreamError{Message: "Unexpected upstream content"}
	}
	return nil, &UpstreamError{Message: "Upstream returned non-JSON response"}
}

// FetchDashboard returns one page of sheet rows.
// PRE: page >= 1, limit >= 1
// POST: a body carrying an "error" field is returned as an error
func (c *Client) FetchDashboard(ctx context.Context, page, limit int, search string) (sheet.Page, error) {
	const op = "sheets.FetchDashboard"
	if !c.Configured() {
		return sheet.Page{}, ErrNotConfigured
	}
	q := url.Values{
		"action": {"dashboard"},
		"page":   {strconv.Itoa(page)},
		"limit":  {strconv.Itoa(limit)},
	}
	if search != "" {
		q.Set("search", search)
	}
	status, contentType, body, err := c.get(ctx, op, q)
	if err != nil {
		return sheet.Page{}, fmt.Errorf("fetching sheet data: %w", err)
	}
	if status < 200 || status > 299 {
		return sheet.Page{}, fmt.Errorf("HTTP %d: %s", status, http.StatusText(status))
	}
	raw, err := ParseSummary(contentType, body)
	if err != nil {
		return sheet.Page{}, err
	}
	var p sheet.Page
	if err := json.Unmarshal(raw, &p); err != nil {
		return sheet.Page{}, fmt.Errorf("decoding sheet data: %w", err)
	}
	if p.Error != "" {
		return sheet.Page{}, errors.New(p.Error)
	}
	return p, nil
}

func (c *Client) get(ctx context.Context, op string, query url.Values) (int, string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ExecURL(query), nil)
	if err != nil {
		return 0, "", nil, err
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		return 0, "", nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	c.observe(op, resp.StatusCode, start)
	if err != nil {
		return 0, "", nil, err
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), body, nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveUpstream(op, status, start)
	}
}
