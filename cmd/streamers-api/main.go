// Command streamers-api serves the configured re-streamers over the REST API
// the console talks to.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/Its-donkey/restreamer-console/internal/api"
	"github.com/Its-donkey/restreamer-console/internal/config"
	"github.com/Its-donkey/restreamer-console/internal/discovery"
	"github.com/Its-donkey/restreamer-console/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "streamers-api: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("streamers-api", pflag.ContinueOnError)
	var (
		configPath string
		listen     string
		logLevel   string
		logFile    string
		debug      bool
		advertise  bool
		deviceFile string
		instance   string
	)
	flags.StringVarP(&configPath, "config", "c", "", "path to the re-streamer YAML config")
	flags.StringVar(&listen, "listen", "", "listen address (overrides server.addr/port from the config)")
	flags.StringVar(&logLevel, "log-level", "", "log level (overrides log_level from the config)")
	flags.StringVar(&logFile, "log-file", "", "also write logs to this rotating file")
	flags.BoolVar(&debug, "debug", false, "send permissive CORS headers")
	flags.BoolVar(&advertise, "advertise", false, "announce the API on the local network via mDNS/DNS-SD")
	flags.StringVar(&deviceFile, "device-id-file", "", "file holding the advertised device id (created if missing; empty means a new id per run)")
	flags.StringVar(&instance, "instance", "", "advertised instance name (default: hostname)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if flags.Changed("debug") {
		cfg.Server.Debug = debug
	}
	addr := cfg.Server.ListenAddr()
	if listen != "" {
		addr = listen
	}

	logger, closeLog, err := logging.Open("streamers-api", level, logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	warnEmptyRoster(logger, cfg)

	store := api.NewStore(cfg.Restreamers)
	srv := api.New(store,
		api.WithLogger(logger),
		api.WithDebug(cfg.Server.Debug),
		api.WithChangeHook(changeHook(logger, cfg.Restreamers)),
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if advertise {
		adv, err := startAdvertising(addr, instance, deviceFile, logger)
		if err != nil {
			return err
		}
		defer adv.Shutdown()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server", "started", map[string]any{"addr": addr, "restreamers": len(cfg.Restreamers)})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("server", "shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server", "shutdown", err, nil)
		return err
	}
	logger.Info("server", "stopped", nil)
	return nil
}

// warnEmptyRoster flags a config with nothing to serve; the API still starts
// so the console can be developed against it.
func warnEmptyRoster(logger *logging.Logger, cfg config.Config) {
	if len(cfg.Restreamers) == 0 {
		logger.Warn("config", "no restreamers configured", nil)
	}
}

// changeHook reports enable/disable requests together with the pipeline
// settings of the affected re-streamer.
func changeHook(logger *logging.Logger, restreamers []config.Restreamer) func(id string, enabled bool) {
	byID := make(map[string]config.Restreamer, len(restreamers))
	for _, r := range restreamers {
		byID[r.ID] = r
	}
	return func(id string, enabled bool) {
		fields := map[string]any{"id": id, "enabled": enabled}
		if r, ok := byID[id]; ok {
			fields["source"] = r.Source
			fields["force_h264_profile_level_id"] = r.ForceH264ProfileLevelID
		}
		logger.Debug("pipeline", "restream state requested", fields)
	}
}

func startAdvertising(addr, instance, deviceFile string, logger *logging.Logger) (*discovery.Advertiser, error) {
	_, portText, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("advertise: %w", err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return nil, fmt.Errorf("advertise: port %q: %w", portText, err)
	}
	if instance == "" {
		if instance, err = os.Hostname(); err != nil || instance == "" {
			instance = "restreamer"
		}
	}
	deviceID, created, err := discovery.LoadOrCreateDeviceID(deviceFile)
	if err != nil {
		// The announcement still works with a fresh id; only its stability is lost.
		logger.Warn("discovery", "device id not persisted", map[string]any{"path": deviceFile, "error": err.Error()})
		deviceID = uuid.NewString()
	} else if created && deviceFile != "" {
		logger.Info("discovery", "device id created", map[string]any{"path": deviceFile, "device_id": deviceID})
	}
	return discovery.Advertise(discovery.Options{
		Instance: instance,
		DeviceID: deviceID,
		Port:     port,
		Path:     "/api/streamers",
	}, logger)
}
