package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []Entry {
	t.Helper()
	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode entry %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("roster", WARN, &buf)

	logger.Info("store", "ignored", nil)
	logger.Warn("store", "kept", map[string]any{"id": "cam1"})
	logger.Error("store", "failed", errors.New("boom"), nil)

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries got %d", len(entries))
	}
	if entries[0].Message != "kept" || entries[0].Component != "roster" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Level != "ERROR" || entries[1].Error != "boom" {
		t.Fatalf("unexpected error entry: %+v", entries[1])
	}

	buf.Reset()
	logger.SetLevel(DEBUG)
	logger.Debug("store", "now visible", nil)
	if entries := decodeEntries(t, &buf); len(entries) != 1 || entries[0].Level != "DEBUG" {
		t.Fatalf("expected debug entry after SetLevel, got %+v", entries)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("store", "nothing", nil)
	logger.Error("store", "nothing", errors.New("x"), nil)
	logger.WithRequestID("abc").WithCategory("c").Info("nothing")
	logger.Subscribe(make(chan Entry, 1))()
}

func TestSubscribeReceivesEntriesUntilUnsubscribed(t *testing.T) {
	logger := New("roster", DEBUG, &bytes.Buffer{})
	ch := make(chan Entry, 4)
	unsubscribe := logger.Subscribe(ch)

	logger.Debug("store", "first", nil)
	unsubscribe()
	logger.Debug("store", "second", nil)

	if len(ch) != 1 {
		t.Fatalf("expected 1 delivered entry got %d", len(ch))
	}
	if got := <-ch; got.Message != "first" {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "", want: INFO},
		{in: "debug", want: DEBUG},
		{in: " Warning ", want: WARN},
		{in: "ERROR", want: ERROR},
		{in: "critical", want: FATAL},
		{in: "loud", want: INFO, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLevel(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v want %v", tt.in, got, tt.want)
		}
	}
}

func TestHTTPLoggerTagsRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := New("api", DEBUG, &buf)

	handler := NewHTTPLogger(logger, 0).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	req := httptest.NewRequest(http.MethodPatch, "/api/streamers/cam1", strings.NewReader(`{"enable":true}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	requestID := rec.Header().Get(RequestIDHeader)
	if requestID == "" {
		t.Fatalf("expected request id header")
	}
	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != "WARN" || entry.Category != "http" || entry.RequestID != requestID {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Fields["request_body"] != `{"enable":true}` {
		t.Fatalf("expected request body logged, got %v", entry.Fields["request_body"])
	}
	headers, _ := entry.Fields["request_headers"].(map[string]any)
	if _, ok := headers["Authorization"]; ok {
		t.Fatalf("authorization header should not be logged")
	}
}

func TestHTTPLoggerReusesIncomingRequestID(t *testing.T) {
	logger := New("api", DEBUG, &bytes.Buffer{})
	handler := NewHTTPLogger(logger, 0).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/streamers", nil)
	req.Header.Set(RequestIDHeader, "client-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "client-42" {
		t.Fatalf("expected request id to be reused, got %q", got)
	}
}

func TestNewFileWriterCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "console.log")
	w, err := NewFileWriter(path, FileOptions{})
	if err != nil {
		t.Fatalf("new file writer: %v", err)
	}
	defer w.Close()

	logger := New("console", INFO, w)
	logger.Info("startup", "hello", nil)

	if w.MaxSize != DefaultFileOptions.MaxSizeMB {
		t.Fatalf("expected default max size, got %d", w.MaxSize)
	}
	if _, err := NewFileWriter("", FileOptions{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestOpenWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	logger, closeLog, err := Open("streamers-api", INFO, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	logger.Info("server", "started", nil)
	if err := closeLog(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"component":"streamers-api"`) {
		t.Fatalf("expected component in log file, got %s", data)
	}
}
