package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecureHeaders(t *testing.T) {
	// Create a handler that just returns 200 OK
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Wrap it with our middleware
	secureHandler := withSecureHeaders(handler)

	// Create a request
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	// Serve
	secureHandler.ServeHTTP(w, req)

	// Check headers
	expectedHeaders := map[string]string{
		"Content-Security-Policy":   "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:;",
		"Strict-Transport-Security": "max-age=63072000; includeSubDomains",
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Referrer-Policy":           "no-referrer",
		"X-XSS-Protection":          "1; mode=block",
	}

	for key, expected := range expectedHeaders {
		got := w.Header().Get(key)
		if got != expected {
			t.Errorf("Header %s: expected %q, got %q", key, expected, got)
		}
	}
}

func TestWithLogging_TraceID(t *testing.T) {
	s := &Server{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	var seen string
	handler := s.withLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getTraceID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen != "trace-123" {
		t.Errorf("Expected trace id from header, got %q", seen)
	}
	if got := w.Header().Get("X-Trace-ID"); got != "trace-123" {
		t.Errorf("Expected response trace id trace-123, got %q", got)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if len(w.Header().Get("X-Trace-ID")) != 32 {
		t.Errorf("Expected generated 32-char trace id, got %q", w.Header().Get("X-Trace-ID"))
	}
}

func TestWithRecovery(t *testing.T) {
	s := &Server{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	handler := s.withRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1/simulation", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 after panic, got %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	w := httptest.NewRecorder()
	handleHealth(w, httptest.NewRequest("GET", "/v1/health", nil))
	if w.Code != http.StatusOK || w.Body.String() != `{"status":"ok"}` {
		t.Errorf("Unexpected health response: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	handleHealth(w, httptest.NewRequest("POST", "/v1/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

func TestPathParts(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/v1/nodes/", nil},
		{"/v1/nodes/n1", []string{"n1"}},
		{"/v1/nodes/n1/resources", []string{"n1", "resources"}},
		{"/v1/nodes/n1/resources/", []string{"n1", "resources"}},
	}
	for _, tt := range tests {
		got := pathParts(tt.path, "/v1/nodes/")
		if strings.Join(got, ",") != strings.Join(tt.want, ",") || len(got) != len(tt.want) {
			t.Errorf("pathParts(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
