// Package logging provides structured JSON logging shared by the API, the console
// server and the roster store.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = [...]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

func (l Level) String() string {
	if l < DEBUG || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel converts a case-insensitive level name. "warning" is accepted as WARN.
func ParseLevel(raw string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "trace":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error", "err":
		return ERROR, nil
	case "fatal", "critical":
		return FATAL, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", raw)
	}
}

// Entry is one JSON log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Duration  *int64         `json:"duration_ms,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Logger writes entries for one component to every configured writer.
//
// A nil *Logger is valid and discards everything, so components can take an
// optional logger without guarding every call.
type Logger struct {
	component string
	now       func() time.Time

	mu          sync.RWMutex
	minLevel    Level
	writers     []io.Writer
	subscribers []chan<- Entry
}

// New creates a Logger for the named component. With no writers it logs to stderr.
func New(component string, minLevel Level, writers ...io.Writer) *Logger {
	if len(writers) == 0 {
		writers = []io.Writer{os.Stderr}
	}
	return &Logger{
		component: component,
		now:       func() time.Time { return time.Now().UTC() },
		minLevel:  minLevel,
		writers:   writers,
	}
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level Level) bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.minLevel
}

// Subscribe streams every written entry to ch until the returned func is
// called. A full channel misses entries rather than blocking the caller.
func (l *Logger) Subscribe(ch chan<- Entry) func() {
	if l == nil {
		return func() {}
	}
	l.mu.Lock()
	l.subscribers = append(l.subscribers, ch)
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, sub := range l.subscribers {
			if sub == ch {
				l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Log writes an entry at level.
func (l *Logger) Log(level Level, category, message string, fields map[string]any) {
	l.emit(level, category, message, nil, fields, "")
}

func (l *Logger) Debug(category, message string, fields map[string]any) {
	l.emit(DEBUG, category, message, nil, fields, "")
}

func (l *Logger) Info(category, message string, fields map[string]any) {
	l.emit(INFO, category, message, nil, fields, "")
}

func (l *Logger) Warn(category, message string, fields map[string]any) {
	l.emit(WARN, category, message, nil, fields, "")
}

// Error logs at ERROR with err in the entry's error field.
func (l *Logger) Error(category, message string, err error, fields map[string]any) {
	l.emit(ERROR, category, message, err, fields, "")
}

func (l *Logger) emit(level Level, category, message string, err error, fields map[string]any, requestID string) {
	if !l.Enabled(level) {
		return
	}
	entry := Entry{
		Timestamp: l.now(),
		Level:     level.String(),
		Category:  category,
		Message:   message,
		Fields:    fields,
		RequestID: requestID,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	l.write(entry)
}

func (l *Logger) write(entry Entry) {
	entry.Component = l.component
	line, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: marshal entry: %v\n", err)
		return
	}
	line = append(line, '\n')

	l.mu.RLock()
	writers := l.writers
	subscribers := append([]chan<- Entry(nil), l.subscribers...)
	l.mu.RUnlock()

	for _, w := range writers {
		_, _ = w.Write(line)
	}
	for _, ch := range subscribers {
		select {
		case ch <- entry:
		default:
		}
	}
}

// LogContext carries a request ID and fields across several log calls.
type LogContext struct {
	logger    *Logger
	requestID string
	category  string
	fields    map[string]any
}

// WithRequestID starts a LogContext tagged with requestID.
func (l *Logger) WithRequestID(requestID string) *LogContext {
	return &LogContext{logger: l, requestID: requestID}
}

// WithCategory sets the category for this context.
func (c *LogContext) WithCategory(category string) *LogContext {
	c.category = category
	return c
}

// WithField adds a field to this context.
func (c *LogContext) WithField(key string, value any) *LogContext {
	if c.fields == nil {
		c.fields = make(map[string]any)
	}
	c.fields[key] = value
	return c
}

func (c *LogContext) Debug(message string) {
	c.logger.emit(DEBUG, c.category, message, nil, c.fields, c.requestID)
}

func (c *LogContext) Info(message string) {
	c.logger.emit(INFO, c.category, message, nil, c.fields, c.requestID)
}

func (c *LogContext) Warn(message string) {
	c.logger.emit(WARN, c.category, message, nil, c.fields, c.requestID)
}

func (c *LogContext) Error(message string, err error) {
	c.logger.emit(ERROR, c.category, message, err, c.fields, c.requestID)
}
