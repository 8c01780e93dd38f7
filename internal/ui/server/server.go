// Package server renders the streamers console and forwards user actions to
// the roster store.
package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/Its-donkey/restreamer-console/internal/ui/model"
	"github.com/Its-donkey/restreamer-console/internal/ui/state"
	streamersvc "github.com/Its-donkey/restreamer-console/internal/ui/streamers"
	"github.com/Its-donkey/restreamer-console/logging"
)

const (
	defaultPageTitle = "Re-streamers"
	logCategory      = "console"
	flashCookie      = "console_flash"
	flashMaxAge      = 60
)

// Roster is the subset of the roster store the console needs.
type Roster interface {
	State() model.RosterState
	Refresh(ctx context.Context) error
	Toggle(ctx context.Context, id string) error
}

// Options configures the console HTTP server.
type Options struct {
	Roster    Roster
	Logger    *logging.Logger
	PageTitle string
	Templates map[string]*template.Template
}

// Flash is a one-shot notice shown on the next page render of the browser
// that triggered it. It travels in a short-lived cookie.
type Flash struct {
	Message string `json:"m"`
	Tone    string `json:"t"`
}

type rosterPageData struct {
	PageTitle  string
	Refreshing bool
	Streamers  []model.Streamer
	Flash      *Flash
}

type server struct {
	roster    Roster
	logger    *logging.Logger
	pageTitle string
	templates map[string]*template.Template
}

// New builds the console handler.
func New(opts Options) (http.Handler, error) {
	if opts.Roster == nil {
		return nil, errors.New("console: roster is required")
	}
	tmpl := opts.Templates
	if tmpl == nil {
		var err error
		if tmpl, err = loadTemplates(); err != nil {
			return nil, err
		}
	}
	title := strings.TrimSpace(opts.PageTitle)
	if title == "" {
		title = defaultPageTitle
	}
	srv := &server{
		roster:    opts.Roster,
		logger:    opts.Logger,
		pageTitle: title,
		templates: tmpl,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleHome)
	mux.HandleFunc("/state", srv.handleState)
	mux.HandleFunc("/refresh", srv.handleRefresh)
	mux.HandleFunc("/streamers/", srv.handleToggle)
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return logging.NewHTTPLogger(opts.Logger, 0).Middleware(mux), nil
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}

	current := s.roster.State()
	data := rosterPageData{
		PageTitle:  s.pageTitle,
		Refreshing: current.Refreshing,
		Streamers:  current.Streamers,
		Flash:      takeFlash(w, r),
	}

	var buf bytes.Buffer
	if err := s.templates["roster"].ExecuteTemplate(&buf, "base", data); err != nil {
		s.logger.Error(logCategory, "render roster", err, nil)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(s.roster.State())
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	err := s.roster.Refresh(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, state.ErrRefreshInProgress):
		setFlash(w, "A refresh is already running.", "info")
	default:
		setFlash(w, "Could not refresh streamers: "+describe(err), "error")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := toggleID(r.URL.EscapedPath())
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	err := s.roster.Toggle(r.Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, state.ErrUnknownStreamer):
		setFlash(w, fmt.Sprintf("Streamer %q is no longer listed.", id), "error")
	case errors.Is(err, state.ErrTogglePending):
		setFlash(w, fmt.Sprintf("Streamer %q is already being updated.", id), "info")
	default:
		setFlash(w, fmt.Sprintf("Could not update streamer %q: %s", id, describe(err)), "error")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// toggleID extracts {id} from /streamers/{id}/toggle.
func toggleID(escapedPath string) (string, bool) {
	rest, ok := strings.CutPrefix(escapedPath, "/streamers/")
	if !ok {
		return "", false
	}
	rawID, ok := strings.CutSuffix(rest, "/toggle")
	if !ok || rawID == "" || strings.Contains(rawID, "/") {
		return "", false
	}
	id, err := url.PathUnescape(rawID)
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

func describe(err error) string {
	var statusErr *streamersvc.StatusError
	if errors.As(err, &statusErr) {
		return "server responded " + statusErr.Status
	}
	return err.Error()
}

func setFlash(w http.ResponseWriter, message, tone string) {
	data, err := json.Marshal(Flash{Message: message, Tone: tone})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash reads the pending flash, if any, and expires the cookie.
func takeFlash(w http.ResponseWriter, r *http.Request) *Flash {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var f Flash
	if err := json.Unmarshal(data, &f); err != nil || f.Message == "" {
		return nil
	}
	switch f.Tone {
	case "info", "error":
	default:
		f.Tone = "info"
	}
	return &f
}

func methodNotAllowed(w http.ResponseWriter, methods ...string) {
	w.Header().Set("Allow", strings.Join(methods, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
