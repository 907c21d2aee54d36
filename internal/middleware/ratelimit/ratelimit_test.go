package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 2})
	defer rl.Stop()
	now := time.Date(2025, 10, 3, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i, want := range []bool{true, true, false} {
		if got := rl.Allow("alice"); got != want {
			t.Fatalf("request %d: allowed = %v, want %v", i+1, got, want)
		}
	}
	if !rl.Allow("bob") {
		t.Fatal("clients are limited independently")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("alice") {
		t.Fatal("a new window should allow requests again")
	}

	if m := rl.GetMetrics(); m.TotalHits != 1 || m.ClientCount != 2 {
		t.Fatalf("metrics = %+v", m)
	}

	now = now.Add(11 * time.Minute)
	rl.cleanupStaleEntries()
	if rl.ActiveClients() != 0 {
		t.Fatalf("active clients = %d after cleanup", rl.ActiveClients())
	}
}

func TestLimiter_MiddlewareOnlyLimitsWrites(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1})
	defer rl.Stop()
	h := rl.Middleware(func(*http.Request) string { return "alice" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	tests := []struct {
		method string
		want   int
	}{
		{http.MethodPost, http.StatusNoContent},
		{http.MethodGet, http.StatusNoContent},
		{http.MethodPatch, http.StatusTooManyRequests},
		{http.MethodGet, http.StatusNoContent},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/v1/transactions", nil))
		if rec.Code != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.method, rec.Code, tt.want)
		}
		if tt.want == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Fatal("missing Retry-After")
		}
	}
}
