package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestProfile_IssuesCookie(t *testing.T) {
	var seen string
	h := Profile(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ProfileID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/dashboard", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("profile id %q is not a uuid", seen)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != ProfileCookieName || cookies[0].Value != seen {
		t.Errorf("cookies = %+v", cookies)
	}
}

func TestProfile_ReusesValidCookie(t *testing.T) {
	id := uuid.NewString()
	var seen string
	h := Profile(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ProfileID(r.Context())
	}))
	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: ProfileCookieName, Value: id})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen != id {
		t.Errorf("profile = %q, want %q", seen, id)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Error("no cookie should be set when a valid one was sent")
	}
}

func TestProfile_ReplacesMalformedCookie(t *testing.T) {
	var seen string
	h := Profile(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ProfileID(r.Context())
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: ProfileCookieName, Value: "../../etc"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "../../etc" {
		t.Error("malformed profile id must not be trusted")
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	ss := NewSessionStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ss.now = func() time.Time { return now }

	token, err := ss.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := ss.Get(token); !ok {
		t.Fatal("fresh session should be valid")
	}
	now = now.Add(SessionTTL + time.Second)
	if _, ok := ss.Get(token); ok {
		t.Error("expired session should be rejected")
	}
}

func TestRequireOperator(t *testing.T) {
	ss := NewSessionStore()
	token, _ := ss.Create()
	h := Auth(ss)(RequireOperator(true)(http.HandlerFunc(ok)))

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"page redirects", "/dashboard/clear", "", http.StatusSeeOther},
		{"api is 401", "/api/perf", "", http.StatusUnauthorized},
		{"session passes", "/dashboard/clear", token, http.StatusOK},
		{"unknown token", "/dashboard/clear", "nope", http.StatusSeeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.path, nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tt.token})
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
		})
	}
}

func TestRequireOperator_Disabled(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireOperator(false)(http.HandlerFunc(ok)).ServeHTTP(rr, httptest.NewRequest("POST", "/dashboard/clear", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 2, time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("third request within the interval should be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("other clients are limited separately")
	}
	now = now.Add(time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Error("tokens should refill after the interval")
	}
}

func TestRateLimit_StripsPort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(NewRateLimiter(ctx, 1, time.Hour))(http.HandlerFunc(ok))

	for i, port := range []string{"1000", "2000"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:" + port
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		want := http.StatusOK
		if i == 1 {
			want = http.StatusTooManyRequests
		}
		if rr.Code != want {
			t.Errorf("request %d status = %d, want %d", i, rr.Code, want)
		}
	}
}

func TestSecurityHeaders_Nonce(t *testing.T) {
	var nonce string
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonce = Nonce(r.Context())
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/plan/1/print", nil))

	if nonce == "" {
		t.Fatal("nonce not set in context")
	}
	csp := rr.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "'nonce-"+nonce+"'") {
		t.Errorf("CSP %q does not allow the request nonce", csp)
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
}

func TestCSRF_ExemptsAPI(t *testing.T) {
	h := CSRF(make([]byte, 32))(http.HandlerFunc(ok))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/generate-plans", strings.NewReader("[]")))
	if rr.Code != http.StatusOK {
		t.Errorf("api post status = %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/dashboard/clear", nil))
	if rr.Code != http.StatusForbidden {
		t.Errorf("form post without token status = %d, want 403", rr.Code)
	}
}
