package browser_test

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	web "vitality/internal/adapters/http"
	"vitality/internal/adapters/http/middleware"
	"vitality/internal/adapters/http/perf"
	"vitality/internal/adapters/pdf"
	"vitality/internal/adapters/planner"
	"vitality/internal/adapters/sheets"
	"vitality/internal/adapters/storage"
	planSetStore "vitality/internal/adapters/storage/planset"
	runlogStore "vitality/internal/adapters/storage/runlog"
	"vitality/internal/application/orchestrators"
	"vitality/internal/plannertwin"
)

// testApp holds the running server, the planner twin and Playwright handles.
type testApp struct {
	BaseURL string
	DB      *sql.DB
	Twin    *plannertwin.Twin
	PW      *playwright.Playwright
	Browser playwright.Browser
	tmpDir  string
}

const membersCSV = "MemberID,BMI,BodyFatPercent,VO2max,EnduranceScore,FlexibilityScore,StrengthScore,WeeklyWorkouts\n" +
	"1,22.1,18,45,70,60,75,4\n" +
	"2,27.4,28,35,40,50,45,2\n" +
	"3,24.0,22,40,60,55,50,3\n"

// newTestApp starts the app on a temp SQLite database with the planner twin
// upstream. The test is skipped when Playwright or Chromium is missing.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}

	pw, err := playwright.Run()
	if err != nil {
		t.Skipf("playwright not installed: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		t.Skipf("chromium not available: %v", err)
	}

	tmpDir := t.TempDir()
	dsn := filepath.Join(tmpDir, "test.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	if err := storage.MigrateDB(db); err != nil {
		t.Fatalf("failed to migrate test DB: %v", err)
	}

	twin := plannertwin.New(plannertwin.Config{Latency: 200 * time.Millisecond})
	twinSrv := httptest.NewServer(twin.Handler())
	client := planner.New(planner.StaticBase(twinSrv.URL))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	middleware.ExtraTrustedOrigins = append(middleware.ExtraTrustedOrigins,
		fmt.Sprintf("127.0.0.1:%d", port),
		fmt.Sprintf("localhost:%d", port),
	)

	collector := perf.NewCollector(1000)
	timedDB := storage.NewTimedDB(db, collector, 0)
	ctx, cancel := context.WithCancel(context.Background())
	mux := web.NewMux(ctx, &web.Stores{
		PlanSets: planSetStore.NewSQLiteStore(timedDB),
		Runs:     runlogStore.NewSQLiteStore(timedDB),
	}, &web.Services{
		Proxy:         client,
		Sheets:        sheets.New(""),
		PDF:           pdf.Disabled{},
		Tracker:       orchestrators.NewRunTracker(),
		UploadTimeout: 10 * time.Second,
	}, collector)

	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(listener); err != http.ErrServerClosed {
			log.Printf("test server error: %v", err)
		}
	}()

	app := &testApp{
		BaseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		DB:      db,
		Twin:    twin,
		PW:      pw,
		Browser: browser,
		tmpDir:  tmpDir,
	}
	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		cancel()
		twinSrv.Close()
		db.Close()
	})
	return app
}

// newPage creates a new browser page (tab).
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// writeCSV stores content in the test's temp dir and returns its path.
func (a *testApp) writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(a.tmpDir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return p
}

// uploadMembers submits membersCSV through the dashboard form and waits
// for the three member cards.
func (a *testApp) uploadMembers(t *testing.T, page playwright.Page) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + "/dashboard"); err != nil {
		t.Fatalf("failed to navigate to dashboard: %v", err)
	}
	if err := page.Locator("#file").SetInputFiles(a.writeCSV(t, "members.csv", membersCSV)); err != nil {
		t.Fatalf("failed to choose file: %v", err)
	}
	if err := page.Locator("form.upload button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to submit upload: %v", err)
	}
	if err := page.Locator(".member-card").Nth(2).WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(15000),
	}); err != nil {
		t.Fatalf("member cards did not appear: %v", err)
	}
}
