package server

import (
	"embed"
	"fmt"
	"html/template"
	"net/url"

	"github.com/Its-donkey/restreamer-console/internal/ui/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// loadTemplates parses the embedded templates keyed by logical page name.
func loadTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"stateLabel":   stateLabel,
		"toggleAction": toggleAction,
	}

	rosterTmpl, err := template.New("roster").Funcs(funcs).ParseFS(templateFS, "templates/base.tmpl", "templates/roster.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse roster templates: %w", err)
	}

	return map[string]*template.Template{
		"roster": rosterTmpl,
	}, nil
}

func stateLabel(s model.Streamer) string {
	switch {
	case s.PendingUpdate && s.Enabled:
		return "Stopping…"
	case s.PendingUpdate:
		return "Starting…"
	case s.Enabled:
		return "Streaming"
	default:
		return "Stopped"
	}
}

func toggleAction(id string) string {
	return "/streamers/" + url.PathEscape(id) + "/toggle"
}
