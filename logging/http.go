package logging

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request identifier on requests and responses.
const RequestIDHeader = "X-Request-ID"

const (
	defaultMaxBody  = 10 * 1024
	loggedBodyLimit = 1000
)

// HTTPLogger logs one entry per HTTP request in the "http" category.
type HTTPLogger struct {
	logger      *Logger
	maxBodySize int
}

// NewHTTPLogger creates an HTTPLogger. maxBodySize caps how much of each body
// is buffered for logging; zero selects 10KiB.
func NewHTTPLogger(logger *Logger, maxBodySize int) *HTTPLogger {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBody
	}
	return &HTTPLogger{logger: logger, maxBodySize: maxBodySize}
}

type responseRecorder struct {
	http.ResponseWriter
	status      int
	size        int
	body        bytes.Buffer
	limit       int
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	if room := r.limit - r.body.Len(); room > 0 {
		r.body.Write(b[:min(len(b), room)])
	}
	return n, err
}

// Middleware wraps next with request logging. An incoming X-Request-ID is
// reused so client and server entries correlate; otherwise one is generated.
// The id is echoed on the response.
func (h *HTTPLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		requestBody := h.captureBody(r)

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK, limit: h.maxBodySize}
		rec.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(rec, r)

		level := levelForStatus(rec.status)
		if !h.logger.Enabled(level) {
			return
		}
		duration := time.Since(start).Milliseconds()
		h.logger.write(Entry{
			Timestamp: h.logger.now(),
			Level:     level.String(),
			Category:  "http",
			Message:   fmt.Sprintf("%s %s %d", r.Method, r.URL.Path, rec.status),
			Fields:    requestFields(r, rec, requestBody),
			RequestID: requestID,
			Duration:  &duration,
		})
	})
}

// captureBody reads a small request body and puts it back for the handler.
func (h *HTTPLogger) captureBody(r *http.Request) string {
	if r.Body == nil || r.ContentLength <= 0 || r.ContentLength >= int64(h.maxBodySize) {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, int64(h.maxBodySize)))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return string(data)
}

func requestFields(r *http.Request, rec *responseRecorder, requestBody string) map[string]any {
	fields := map[string]any{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status":      rec.status,
		"size":        rec.size,
		"remote_addr": r.RemoteAddr,
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		fields["content_type"] = ct
	}
	if r.URL.RawQuery != "" {
		fields["query"] = r.URL.RawQuery
	}
	if requestBody != "" {
		fields["request_body"] = truncate(requestBody, loggedBodyLimit)
	}
	if rec.body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		fields["response_body"] = truncate(rec.body.String(), loggedBodyLimit)
	}

	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if !isSensitiveHeader(name) {
			headers[name] = strings.Join(values, ", ")
		}
	}
	if len(headers) > 0 {
		fields["request_headers"] = headers
	}
	return fields
}

func levelForStatus(status int) Level {
	switch {
	case status >= 500:
		return ERROR
	case status >= 400:
		return WARN
	default:
		return INFO
	}
}

// Publish keys and credentials never reach the log.
func isSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range []string{"auth", "token", "cookie", "key", "secret"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... [truncated]"
}
