// Package config loads and normalises the re-streamer configuration file.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Its-donkey/restreamer-console/logging"
)

const (
	defaultAddr                   = "127.0.0.1"
	defaultPort                   = 8880
	defaultLogLevel               = "info"
	DefaultH264ProfileLevelID     = "42c015"
	maxRestreamerIDLen            = 128
	restreamerIDForbiddenCharsSet = "/?#"
)

// ServerConfig configures the API listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Port int    `yaml:"port"`
	// Debug adds permissive CORS headers so a console on another port can call the API.
	Debug bool `yaml:"debug"`
}

// ListenAddr joins Addr and Port.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Addr, strconv.Itoa(s.Port))
}

// Restreamer describes one upstream source that can be re-streamed.
type Restreamer struct {
	ID          string `yaml:"id"`
	Source      string `yaml:"source"`
	Description string `yaml:"description"`
	// Key is the publish key; only its presence is exposed over the API.
	Key     string `yaml:"key"`
	Enabled bool   `yaml:"enabled"`
	// ForceH264ProfileLevelID overrides the profile-level-id advertised for H.264 sources.
	ForceH264ProfileLevelID string `yaml:"force_h264_profile_level_id"`
}

// Config represents the runtime settings parsed from the YAML file.
type Config struct {
	LogLevel    string       `yaml:"log_level"`
	Server      ServerConfig `yaml:"server"`
	Restreamers []Restreamer `yaml:"restreamers"`
}

// Level returns the parsed log level. Load has already validated it.
func (c Config) Level() logging.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		LogLevel: defaultLogLevel,
		Server: ServerConfig{
			Addr: defaultAddr,
			Port: defaultPort,
		},
	}
}

// Load reads the YAML config at path and returns the normalised structure.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and normalises a YAML document.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config log_level: %w", err)
	}

	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config server.port %d out of range", c.Server.Port)
	}

	seen := make(map[string]struct{}, len(c.Restreamers))
	for i := range c.Restreamers {
		r := &c.Restreamers[i]
		r.ID = strings.TrimSpace(r.ID)
		r.Source = strings.TrimSpace(r.Source)
		r.Description = strings.TrimSpace(r.Description)
		r.Key = strings.TrimSpace(r.Key)
		r.ForceH264ProfileLevelID = strings.TrimSpace(r.ForceH264ProfileLevelID)

		if r.ID == "" {
			return fmt.Errorf("config restreamers[%d]: id is required", i)
		}
		if len(r.ID) > maxRestreamerIDLen || strings.ContainsAny(r.ID, restreamerIDForbiddenCharsSet) {
			return fmt.Errorf("config restreamers[%d]: invalid id %q", i, r.ID)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("config restreamers[%d]: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = struct{}{}
		if r.Source == "" {
			return fmt.Errorf("config restreamer %q: source is required", r.ID)
		}
		if r.ForceH264ProfileLevelID == "" {
			r.ForceH264ProfileLevelID = DefaultH264ProfileLevelID
		}
	}
	return nil
}
