// Package api serves the re-streamer REST API consumed by the console.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Its-donkey/restreamer-console/logging"
)

const (
	streamersPrefix = "/api/streamers"
	maxBodyBytes    = 4 * 1024
	logCategory     = "api"
)

// Server exposes the re-streamer roster over HTTP.
type Server struct {
	store  *Store
	logger *logging.Logger
	debug  bool
	// onChange is notified after a re-streamer's enabled flag changes.
	onChange func(id string, enabled bool)
}

// Option mutates server configuration during construction.
type Option func(*Server)

// WithDebug enables permissive CORS headers and OPTIONS preflight handling.
func WithDebug(debug bool) Option {
	return func(s *Server) {
		s.debug = debug
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithChangeHook registers a callback run after a successful enable/disable.
func WithChangeHook(fn func(id string, enabled bool)) Option {
	return func(s *Server) {
		s.onChange = fn
	}
}

type errorPayload struct {
	Message string `json:"message"`
}

// New constructs a Server backed by store.
func New(store *Store, opts ...Option) *Server {
	s := &Server{store: store}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the HTTP handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(streamersPrefix, s.handleStreamers)
	mux.HandleFunc(streamersPrefix+"/", s.handleStreamers)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, errorPayload{Message: "Not found."})
	})

	var handler http.Handler = mux
	if s.debug {
		handler = addCORS(handler)
	}
	return logging.NewHTTPLogger(s.logger, 0).Middleware(handler)
}

func (s *Server) handleStreamers(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, streamersPrefix), "/")
	if id == "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		respondIndentedJSON(w, http.StatusOK, s.store.List())
		return
	}
	if strings.Contains(id, "/") {
		respondJSON(w, http.StatusNotFound, errorPayload{Message: "Not found."})
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.store.Get(id)
		if err != nil {
			respondJSON(w, http.StatusNotFound, errorPayload{Message: "Streamer not found."})
			return
		}
		respondIndentedJSON(w, http.StatusOK, rec)
	case http.MethodPatch:
		s.handlePatch(w, r, id)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch)
	}
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request, id string) {
	var payload struct {
		Enable *bool `json:"enable"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Enable == nil {
		respondJSON(w, http.StatusBadRequest, errorPayload{Message: "Field \"enable\" is required."})
		return
	}

	changed, err := s.store.SetEnabled(id, *payload.Enable)
	if errors.Is(err, ErrNotFound) {
		respondJSON(w, http.StatusNotFound, errorPayload{Message: "Streamer not found."})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if changed {
		s.logger.Info(logCategory, "restreamer state changed", map[string]any{"id": id, "enabled": *payload.Enable})
		if s.onChange != nil {
			s.onChange(id, *payload.Enable)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func addCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+logging.RequestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// respondIndentedJSON writes the roster the way operators read it with curl.
func respondIndentedJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.MarshalIndent(payload, "", "    ")
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, errorPayload{Message: err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, methods ...string) {
	w.Header().Set("Allow", strings.Join(methods, ", "))
	respondJSON(w, http.StatusMethodNotAllowed, errorPayload{Message: "Method not allowed."})
}
