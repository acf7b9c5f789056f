package web

import (
	"bytes"
	"context"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"vitality/internal/adapters/http/perf"
	"vitality/internal/adapters/pdf"
	"vitality/internal/adapters/planner"
	"vitality/internal/adapters/sheets"
	planSetStore "vitality/internal/adapters/storage/planset"
	"vitality/internal/application/orchestrators"
	"vitality/internal/domain/member"
	"vitality/internal/domain/planset"
)

// testApp is a running server wired to fake upstreams.
type testApp struct {
	srv      *httptest.Server
	client   *http.Client
	planSets *planSetStore.MemoryStore
	svc      *Services
}

type appOption func(*Services)

func withPDF(r pdf.Renderer) appOption { return func(s *Services) { s.PDF = r } }

func withGenerateTimeout(d time.Duration) appOption {
	return func(s *Services) { s.GenerateTimeout = d }
}

func withoutPlanner() appOption { return func(s *Services) { s.Proxy = nil } }

func withPasswordHash(hash string) appOption {
	return func(s *Services) { s.OperatorPasswordHash = hash }
}

// newTestApp starts the app. planner and sheetsUpstream may be nil.
func newTestApp(t *testing.T, plannerUpstream, sheetsUpstream http.Handler, opts ...appOption) *testApp {
	t.Helper()
	RateLimitPerSecond = 10000
	emailSender = nil

	svc := &Services{
		Sheets:        sheets.New(""),
		PDF:           pdf.Disabled{},
		Tracker:       orchestrators.NewRunTracker(),
		CSRFKey:       bytes.Repeat([]byte("k"), 32),
		UploadTimeout: 5 * time.Second,
	}
	if plannerUpstream != nil {
		up := httptest.NewServer(plannerUpstream)
		t.Cleanup(up.Close)
		svc.Proxy = planner.New(planner.StaticBase(up.URL))
	}
	if sheetsUpstream != nil {
		up := httptest.NewServer(sheetsUpstream)
		t.Cleanup(up.Close)
		svc.Sheets = sheets.New("script-123", sheets.WithHost(up.URL))
	}
	for _, o := range opts {
		o(svc)
	}

	planSets := planSetStore.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewMux(ctx, &Stores{PlanSets: planSets}, svc, perf.NewCollector(100))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testApp{srv: srv, client: client, planSets: planSets, svc: svc}
}

func (a *testApp) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (a *testApp) get(t *testing.T, path string, accept string) (*http.Response, string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, a.srv.URL+path, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return a.do(t, req)
}

func (a *testApp) postJSON(t *testing.T, path, body string) (*http.Response, string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, a.srv.URL+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return a.do(t, req)
}

// postFile sends a multipart form with one file and the given extra fields.
func (a *testApp) postFile(t *testing.T, path, field, filename, content string, fields map[string]string, accept string) (*http.Response, string) {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, content, fields)
	req, _ := http.NewRequest(http.MethodPost, a.srv.URL+path, body)
	req.Header.Set("Content-Type", contentType)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return a.do(t, req)
}

func multipartBody(t *testing.T, field, filename, content string, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

var csrfFieldPattern = regexp.MustCompile(`name="gorilla\.csrf\.Token" value="([^"]+)"`)

// csrfToken loads path and returns the form token it renders.
func (a *testApp) csrfToken(t *testing.T, path string) string {
	t.Helper()
	resp, body := a.get(t, path, "text/html")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d", path, resp.StatusCode)
	}
	m := csrfFieldPattern.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("no csrf token on %s", path)
	}
	return html.UnescapeString(m[1])
}

// profileID returns the profile cookie the jar holds for the app.
func (a *testApp) profileID(t *testing.T) string {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, a.srv.URL, nil)
	for _, c := range a.client.Jar.Cookies(req.URL) {
		if c.Name == "vitality_profile" {
			return c.Value
		}
	}
	t.Fatal("no profile cookie")
	return ""
}

// seed stores a plan set for the client's profile.
func (a *testApp) seed(t *testing.T, set planset.PlanSet) {
	t.Helper()
	a.get(t, "/dashboard/status", "")
	set.ProfileID = a.profileID(t)
	if set.UpdatedAt.IsZero() {
		set.UpdatedAt = time.Now()
	}
	if err := a.planSets.Save(context.Background(), set); err != nil {
		t.Fatal(err)
	}
}

func fp(v float64) *float64 { return &v }

func ip(v int) *int { return &v }

func basicMember(id string) member.WithPlans {
	var m member.WithPlans
	m.MemberID = member.NewID(id)
	m.BMI = fp(24.5)
	m.VO2max = fp(41)
	m.WeeklyWorkouts = fp(3)
	m.PredictedCluster = ip(1)
	m.ProgramType = "Endurance Builder"
	return m
}

func plannedMember(id string) member.WithPlans {
	m := basicMember(id)
	m.BiometricsPlan = &member.BiometricsPlan{
		WeeklyWorkoutPlan: []member.WorkoutDay{{
			Day:      "Monday",
			Focus:    "Cardio",
			Sessions: []member.Session{{Type: "Run", DurationMin: fp(30), Intensity: "Moderate"}},
		}},
	}
	m.NutritionPlan = &member.NutritionPlan{
		DailyMealSchedule: []member.Meal{{Time: "08:00", MealType: "Breakfast", Items: []string{"Oats"}, Calories: fp(350)}},
		Summary: &member.NutritionSummary{
			TotalCalories: fp(2200),
			HydrationML:   fp(2500),
			MacroTargetsG: &member.MacroTargets{Protein: 150, Carbs: 250, Fat: 70},
		},
	}
	return m
}
