package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rollcall/rollcall/internal/cache"
)

type stubLimiter struct {
	result  cache.RateLimitResult
	gotIP   string
	gotScope string
}

func (s *stubLimiter) CheckIPRateLimit(ctx context.Context, scope, ip string, rps float64, burst int) *cache.RateLimitResult {
	s.gotIP = ip
	s.gotScope = scope
	r := s.result
	return &r
}

func TestRateLimitIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		enabled    bool
		result     cache.RateLimitResult
		wantStatus int
		wantRetry  string
	}{
		{"disabled", false, cache.RateLimitResult{Allowed: false}, http.StatusOK, ""},
		{"allowed", true, cache.RateLimitResult{Allowed: true, Remaining: 4}, http.StatusOK, ""},
		{"degraded fails open", true, cache.RateLimitResult{Allowed: true, Degraded: true}, http.StatusOK, ""},
		{"rejected", true, cache.RateLimitResult{Allowed: false, RetryAfter: 3 * time.Second}, http.StatusTooManyRequests, "3"},
		{"rejected rounds retry up", true, cache.RateLimitResult{Allowed: false}, http.StatusTooManyRequests, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			limiter := &stubLimiter{result: tt.result}
			handler := RateLimitIP(RateLimitConfig{
				Logger:  discardLogger(),
				Limiter: limiter,
				Enabled: tt.enabled,
				Scope:   "auth",
				RPS:     1,
				Burst:   5,
			})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
			req.RemoteAddr = "203.0.113.9:51234"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.wantRetry {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetry)
			}
			if tt.wantStatus == http.StatusTooManyRequests && !strings.Contains(rec.Body.String(), `"code":"RATE_LIMITED"`) {
				t.Errorf("unexpected body %s", rec.Body.String())
			}
			if tt.enabled && (limiter.gotIP != "203.0.113.9" || limiter.gotScope != "auth") {
				t.Errorf("limiter called with ip=%q scope=%q", limiter.gotIP, limiter.gotScope)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"192.0.2.1:1234": "192.0.2.1",
		"[::1]:8080":     "::1",
		"192.0.2.7":      "192.0.2.7",
	}
	for addr, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		if got := getClientIP(req); got != want {
			t.Errorf("getClientIP(%q) = %q, want %q", addr, got, want)
		}
	}
}
