package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"ledger/internal/log"
)

func newTestMiddleware(buf *bytes.Buffer) *Middleware {
	logger := log.New(log.Config{Level: slog.LevelDebug, Component: log.ComponentHTTP, Output: buf})
	return NewMiddleware(func(*http.Request) string { return "192.0.2.1" }, logger)
}

func TestMiddleware_RequestID(t *testing.T) {
	existing := uuid.NewString()

	tests := []struct {
		name   string
		header string
		reuse  bool
	}{
		{"no header", "", false},
		{"valid uuid is reused", existing, true},
		{"garbage is replaced", "not-a-uuid\nforged", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			m := newTestMiddleware(&buf)

			var seen string
			h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got != seen {
				t.Fatalf("response header %q differs from context id %q", got, seen)
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("request id %q is not a uuid", got)
			}
			if tt.reuse && got != existing {
				t.Errorf("expected %q to be reused, got %q", existing, got)
			}
			if !tt.reuse && got == tt.header {
				t.Errorf("expected a fresh id, got the client's %q", got)
			}
			if !strings.Contains(buf.String(), "request_id="+got) {
				t.Errorf("log lines missing request id: %s", buf.String())
			}
		})
	}
}

func TestMiddleware_ContextLoggerAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	m := newTestMiddleware(&buf)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).Info("inside handler")
		if r.URL.Path == "/boom" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/ok", "/boom", "/ok"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	metrics := m.GetMetrics()
	if metrics.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", metrics.TotalRequests)
	}
	if metrics.ServerErrors != 1 {
		t.Errorf("ServerErrors = %d, want 1", metrics.ServerErrors)
	}

	out := buf.String()
	if strings.Count(out, "inside handler") != 3 {
		t.Errorf("handler logs did not use the request logger: %s", out)
	}
	if !strings.Contains(out, "status_code=500") || !strings.Contains(out, "level=ERROR") {
		t.Errorf("expected an error-level completion line for /boom: %s", out)
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Errorf("GetRequestID = %q, want empty", id)
	}
}
