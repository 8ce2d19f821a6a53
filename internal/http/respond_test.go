package http

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledger/internal/log"
)

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteJSON_LogsEncodeFailures(t *testing.T) {
	tests := []struct {
		name string
		w    http.ResponseWriter
		v    any
	}{
		{"unencodable value", httptest.NewRecorder(), map[string]any{"ch": make(chan int)}},
		{"broken connection", failingWriter{httptest.NewRecorder()}, map[string]string{"id": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := log.New(log.Config{Level: slog.LevelDebug, Component: log.ComponentHTTP, Output: &buf})
			r := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
			r = r.WithContext(log.NewContext(r.Context(), logger))

			writeJSON(tt.w, r, http.StatusOK, tt.v)

			out := buf.String()
			if !strings.Contains(out, "Failed to write JSON response") {
				t.Fatalf("expected a log line, got %q", out)
			}
			if !strings.Contains(out, "path=/api/transactions") || !strings.Contains(out, "status_code=200") {
				t.Errorf("log line missing request fields: %q", out)
			}
		})
	}
}

func TestWriteJSON_Success(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Output: &buf})
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r = r.WithContext(log.NewContext(r.Context(), logger))
	rec := httptest.NewRecorder()

	writeJSON(rec, r, http.StatusCreated, map[string]string{"id": "abc"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"id":"abc"}` {
		t.Errorf("body = %q", rec.Body.String())
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output %q", buf.String())
	}
}
