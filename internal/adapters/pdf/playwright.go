package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// DefaultTimeout bounds one render.
const DefaultTimeout = 30 * time.Second

// Options configures page output.
type Options struct {
	Format         string // paper size, A4 when empty
	FooterTemplate string // shown on every page when set
	Timeout        time.Duration
}

type engine struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

// PlaywrightRenderer prints through headless Chromium. The browser is
// started on first use and reused; a failed start is retried on the next
// call.
type PlaywrightRenderer struct {
	opts Options

	mu     sync.Mutex
	eng    *engine
	start  func() (*engine, error)
	closed bool
}

// NewPlaywrightRenderer returns a renderer that launches Chromium lazily.
func NewPlaywrightRenderer(opts Options) *PlaywrightRenderer {
	if opts.Format == "" {
		opts.Format = "A4"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &PlaywrightRenderer{opts: opts, start: launchChromium}
}

func launchChromium() (*engine, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	return &engine{pw: pw, browser: browser}, nil
}

func (r *PlaywrightRenderer) browser() (playwright.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrUnavailable
	}
	if r.eng != nil && r.eng.browser.IsConnected() {
		return r.eng.browser, nil
	}
	eng, err := r.start()
	if err != nil {
		slog.Error("pdf_engine_start_failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	slog.Info("pdf_engine_started")
	r.eng = eng
	return eng.browser, nil
}

// Render loads html into a fresh page and prints it.
// PRE: html is a complete document with no external resources required
// POST: returns PDF bytes, or an error wrapping ErrUnavailable when Chromium cannot start
func (r *PlaywrightRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := r.browser()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	page, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	timeout := float64(r.opts.Timeout.Milliseconds())
	if deadline, ok := ctx.Deadline(); ok {
		if left := float64(time.Until(deadline).Milliseconds()); left < timeout {
			timeout = left
		}
	}
	page.SetDefaultTimeout(timeout)

	if err := page.SetContent(html, playwright.PageSetContentOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	pdfOpts := playwright.PagePdfOptions{
		Format:          playwright.String(r.opts.Format),
		PrintBackground: playwright.Bool(true),
		Margin: &playwright.Margin{
			Top:    playwright.String("15mm"),
			Right:  playwright.String("15mm"),
			Bottom: playwright.String("20mm"),
			Left:   playwright.String("15mm"),
		},
	}
	if r.opts.FooterTemplate != "" {
		pdfOpts.DisplayHeaderFooter = playwright.Bool(true)
		pdfOpts.HeaderTemplate = playwright.String("<span></span>")
		pdfOpts.FooterTemplate = playwright.String(r.opts.FooterTemplate)
	}
	out, err := page.PDF(pdfOpts)
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	slog.Info("pdf_rendered", "bytes", len(out), "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// Close shuts the browser down. Later renders fail with ErrUnavailable.
func (r *PlaywrightRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.eng == nil {
		return nil
	}
	eng := r.eng
	r.eng = nil
	if err := eng.browser.Close(); err != nil {
		slog.Warn("pdf_browser_close_failed", "error", err)
	}
	return eng.pw.Stop()
}
