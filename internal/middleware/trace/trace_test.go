package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddleware(t *testing.T) {
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, nil)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		if _, ok := w.(http.Flusher); !ok {
			t.Error("wrapped writer should support flushing")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated", "", false},
		{"propagated", "abc-123", true},
		{"invalid replaced", "bad id with spaces", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(HeaderRequestID)
			if got != seen {
				t.Fatalf("response id %q, context id %q", got, seen)
			}
			if tt.keep && got != tt.incoming {
				t.Fatalf("id = %q, want %q", got, tt.incoming)
			}
			if !tt.keep && !strings.HasPrefix(got, "req_") {
				t.Fatalf("id = %q, want a generated one", got)
			}
			if rec.Code != http.StatusTeapot {
				t.Fatalf("status = %d", rec.Code)
			}
		})
	}

	if got := m.GetMetrics().TotalRequests; got != 3 {
		t.Fatalf("total requests = %d, want 3", got)
	}
}
