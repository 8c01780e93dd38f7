// Package discovery announces the re-streamer API on the local network over
// mDNS/DNS-SD so consoles can find it without knowing its address.
package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"

	"github.com/Its-donkey/restreamer-console/logging"
)

const (
	// ServiceType is the DNS-SD service the API registers under.
	ServiceType = "_restreamer._tcp"
	// Domain is the mDNS domain used for registration.
	Domain = "local."

	logCategory = "discovery"
)

// LoadOrCreateDeviceID returns the device id stored at path. When the file is
// missing or does not hold a valid UUID a new id is generated and saved, so
// the device keeps its identity across restarts. An empty path yields a fresh
// id that is not persisted.
func LoadOrCreateDeviceID(path string) (id string, created bool, err error) {
	if path == "" {
		return uuid.NewString(), true, nil
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if parsed, perr := uuid.Parse(strings.TrimSpace(string(data))); perr == nil {
			return parsed.String(), false, nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", false, fmt.Errorf("read device id: %w", err)
	}

	id = uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("create device id directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", false, fmt.Errorf("save device id: %w", err)
	}
	return id, true, nil
}

// Options describes the advertised service.
type Options struct {
	Instance string
	DeviceID string
	Port     int
	// Path is the roster endpoint advertised in the TXT record.
	Path string
}

// TXT returns the TXT record entries for opts.
func (o Options) TXT() []string {
	txt := []string{"uuid=" + o.DeviceID}
	if o.Path != "" {
		txt = append(txt, "path="+o.Path)
	}
	return txt
}

func (o Options) validate() error {
	if strings.TrimSpace(o.Instance) == "" {
		return errors.New("discovery: instance name is required")
	}
	if _, err := uuid.Parse(o.DeviceID); err != nil {
		return fmt.Errorf("discovery: invalid device id %q: %w", o.DeviceID, err)
	}
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("discovery: invalid port %d", o.Port)
	}
	return nil
}

// Advertiser keeps a service registered until Shutdown is called.
type Advertiser struct {
	server *zeroconf.Server
	logger *logging.Logger
	opts   Options
}

// Advertise registers the service on all multicast-capable interfaces.
func Advertise(opts Options, logger *logging.Logger) (*Advertiser, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	server, err := zeroconf.Register(opts.Instance, ServiceType, Domain, opts.Port, opts.TXT(), nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register %s: %w", ServiceType, err)
	}
	logger.Info(logCategory, "service advertised", map[string]any{
		"instance":  opts.Instance,
		"service":   ServiceType,
		"port":      opts.Port,
		"device_id": opts.DeviceID,
	})
	return &Advertiser{server: server, logger: logger, opts: opts}, nil
}

// Shutdown withdraws the announcement. It is safe on a nil Advertiser.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.logger.Info(logCategory, "service withdrawn", map[string]any{"instance": a.opts.Instance})
}
