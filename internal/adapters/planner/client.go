// Package planner is the typed client for the external Fitness Planner API.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"time"

	"vitality/internal/domain/member"
)

// Upstream paths.
const (
	PathAssignPrograms    = "/assign-programs"
	PathAssignProgramsCSV = "/assign-programs/csv"
	PathGeneratePlans     = "/generate-plans"
	PathProcess           = "/process"
	PathHealth            = "/health"
)

// maxResponseBytes bounds how much of an upstream body is read.
const maxResponseBytes = 32 << 20

// Sentinel transport failures. Both are wrapped together with the
// underlying error so errors.Is matches either.
var (
	ErrTimeout     = errors.New("planner request timed out")
	ErrUnreachable = errors.New("planner unreachable")
	ErrEmptyBody   = errors.New("empty response from planner")
)

// StatusError is a non-2xx answer from the planner.
type StatusError struct {
	Op     string
	Status int
	Detail string // upstream "detail", or a fallback description
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %d", e.Op, e.Status)
}

// InvalidJSONError is a 2xx answer whose body is not JSON.
type InvalidJSONError struct {
	Op      string
	Snippet string // first 100 bytes of the body
}

func (e *InvalidJSONError) Error() string {
	return fmt.Sprintf("%s: expected JSON but received: %s...", e.Op, e.Snippet)
}

// BaseSource supplies the API base URL at call time.
type BaseSource interface {
	Get() string
}

// StaticBase is a fixed base URL.
type StaticBase string

// Get returns the base URL.
func (s StaticBase) Get() string { return string(s) }

// Observer receives one callback per upstream call.
// *perf.Collector satisfies it.
type Observer interface {
	ObserveUpstream(op string, status int, start time.Time)
}

// Client calls the planner API. Safe for concurrent use.
type Client struct {
	base     BaseSource
	apiKey   string
	http     *http.Client
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithObserver records timings of every call.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a client. Deadlines come from the caller's context; the HTTP
// client carries no overall timeout of its own.
// PRE: base is non-nil
func New(base BaseSource, opts ...Option) *Client {
	c := &Client{base: base, http: &http.Client{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the base URL calls are currently sent to.
func (c *Client) BaseURL() string {
	return c.base.Get()
}

// AssignPrograms sends member records as JSON and returns the assignments.
// The records carry no plans.
func (c *Client) AssignPrograms(ctx context.Context, members []member.Member) ([]member.WithPlans, error) {
	if members == nil {
		members = []member.Member{}
	}
	payload, err := json.Marshal(map[string]any{"members": members})
	if err != nil {
		return nil, fmt.Errorf("encoding members: %w", err)
	}
	body, err := c.do(ctx, "planner.AssignPrograms", http.MethodPost, PathAssignPrograms, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	return member.DecodeList[member.WithPlans](body, member.KeyMembers, member.KeyData)
}

// AssignProgramsCSV uploads a CSV and returns the assignments.
func (c *Client) AssignProgramsCSV(ctx context.Context, filename string, csv io.Reader) ([]member.WithPlans, error) {
	payload, contentType, err := csvForm(filename, csv)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "planner.AssignProgramsCSV", http.MethodPost, PathAssignProgramsCSV, contentType, payload)
	if err != nil {
		return nil, err
	}
	return member.DecodeList[member.WithPlans](body, member.KeyMembers, member.KeyData)
}

// GeneratePlans asks for detailed plans. Existing plans on the input are
// not sent.
func (c *Client) GeneratePlans(ctx context.Context, list []member.WithPlans) ([]member.WithPlans, error) {
	payload, err := json.Marshal(map[string]any{"members": member.StripPlans(list)})
	if err != nil {
		return nil, fmt.Errorf("encoding members: %w", err)
	}
	body, err := c.do(ctx, "planner.GeneratePlans", http.MethodPost, PathGeneratePlans, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	return member.DecodeList[member.WithPlans](body, member.KeyData, member.KeyMembers)
}

// ForwardCSV uploads a CSV for assignment and returns the upstream JSON
// body unchanged, without requiring a particular shape.
// POST: on success the result is non-empty valid JSON
func (c *Client) ForwardCSV(ctx context.Context, filename string, csv io.Reader) (json.RawMessage, error) {
	const op = "planner.ForwardCSV"
	payload, contentType, err := csvForm(filename, csv)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, op, http.MethodPost, PathAssignProgramsCSV, contentType, payload)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	if !json.Valid(body) {
		snippet := body
		if len(snippet) > 100 {
			snippet = snippet[:100]
		}
		return nil, &InvalidJSONError{Op: op, Snippet: string(snippet)}
	}
	return json.RawMessage(body), nil
}

// Process runs assignment, and plan generation when generatePlans is set,
// in one upstream call.
func (c *Client) Process(ctx context.Context, members []member.Member, generatePlans bool) ([]member.WithPlans, error) {
	if members == nil {
		members = []member.Member{}
	}
	payload, err := json.Marshal(map[string]any{"members": members})
	if err != nil {
		return nil, fmt.Errorf("encoding members: %w", err)
	}
	path := PathProcess
	if generatePlans {
		path += "?generatePlans=true"
	}
	body, err := c.do(ctx, "planner.Process", http.MethodPost, path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	return member.DecodeList[member.WithPlans](body, member.KeyMembers, member.KeyData)
}

// Health returns the planner's health document.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	body, err := c.do(ctx, "planner.Health", http.MethodGet, PathHealth, "", nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &InvalidJSONError{Op: "planner.Health", Snippet: string(body[:min(len(body), 100)])}
	}
	return json.RawMessage(body), nil
}

// do performs one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.Get()+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		return nil, classify(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.observe(op, resp.StatusCode, start)
	if err != nil {
		return nil, classify(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Detail: ExtractDetail(respBody, resp.StatusCode)}
	}
	return respBody, nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveUpstream(op, status, start)
	}
}

// classify maps transport failures onto ErrTimeout or ErrUnreachable.
// Cancellation by the caller is returned as is.
func classify(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUnreachable, err)
	}
}

// csvForm re-packages a CSV upload as a multipart body with field "file".
func csvForm(filename string, csv io.Reader) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "text/csv")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, csv); err != nil {
		return nil, "", fmt.Errorf("reading upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("building upload: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
