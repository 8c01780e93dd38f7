package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Its-donkey/restreamer-console/logging"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restreamer.yaml")
	data := `
restreamers:
  - id: cam1
    source: rtsp://camera.local/stream
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != defaultAddr || cfg.Server.Port != defaultPort {
		t.Fatalf("expected default server, got %+v", cfg.Server)
	}
	if cfg.LogLevel != "info" || cfg.Level() != logging.INFO {
		t.Fatalf("expected info log level, got %q", cfg.LogLevel)
	}
	if got := cfg.Restreamers[0].ForceH264ProfileLevelID; got != DefaultH264ProfileLevelID {
		t.Fatalf("expected default profile level id, got %q", got)
	}
	if cfg.Server.ListenAddr() != "127.0.0.1:8880" {
		t.Fatalf("unexpected listen addr %q", cfg.Server.ListenAddr())
	}
}

func TestParseHonoursOverridesAndOrder(t *testing.T) {
	data := `
log_level: DEBUG
server:
  addr: 0.0.0.0
  port: 9999
  debug: true
restreamers:
  - id: zeta
    source: " rtsp://z "
    description: Back yard
    key: abc
    enabled: true
    force_h264_profile_level_id: "640028"
  - id: alpha
    source: rtsp://a
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Level() != logging.DEBUG || !cfg.Server.Debug || cfg.Server.Port != 9999 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.Restreamers) != 2 || cfg.Restreamers[0].ID != "zeta" || cfg.Restreamers[1].ID != "alpha" {
		t.Fatalf("expected file order preserved, got %+v", cfg.Restreamers)
	}
	zeta := cfg.Restreamers[0]
	if zeta.Source != "rtsp://z" || zeta.Key != "abc" || !zeta.Enabled || zeta.ForceH264ProfileLevelID != "640028" {
		t.Fatalf("unexpected restreamer %+v", zeta)
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			name: "duplicate id",
			data: "restreamers:\n  - {id: a, source: s}\n  - {id: a, source: t}\n",
			want: "duplicate id",
		},
		{
			name: "missing id",
			data: "restreamers:\n  - {source: s}\n",
			want: "id is required",
		},
		{
			name: "slash in id",
			data: "restreamers:\n  - {id: a/b, source: s}\n",
			want: "invalid id",
		},
		{
			name: "missing source",
			data: "restreamers:\n  - {id: a}\n",
			want: "source is required",
		},
		{
			name: "bad level",
			data: "log_level: chatty\n",
			want: "log_level",
		},
		{
			name: "bad port",
			data: "server: {port: 70000}\n",
			want: "out of range",
		},
		{
			name: "not yaml",
			data: "restreamers: [",
			want: "decode config",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
