// Command streamers-console serves the operator console that lists the
// re-streamers and starts or stops them through the API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Its-donkey/restreamer-console/internal/ui/model"
	"github.com/Its-donkey/restreamer-console/internal/ui/server"
	"github.com/Its-donkey/restreamer-console/internal/ui/state"
	"github.com/Its-donkey/restreamer-console/internal/ui/streamers"
	"github.com/Its-donkey/restreamer-console/logging"
)

const defaultAPIPort = 8880

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "streamers-console: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("streamers-console", pflag.ContinueOnError)
	var (
		listen   string
		pageURL  string
		apiPort  int
		apiBase  string
		title    string
		logLevel string
		logFile  string
	)
	flags.StringVar(&listen, "listen", "127.0.0.1:4173", "address to serve the console on")
	flags.StringVar(&pageURL, "page-url", "", "public URL of the console; the API is reached on the same host (default http://<listen>)")
	flags.IntVar(&apiPort, "api-port", defaultAPIPort, "port of the re-streamer API on the console's host")
	flags.StringVar(&apiBase, "api", "", "explicit API base URL (overrides --page-url/--api-port)")
	flags.StringVar(&title, "title", "", "page title")
	flags.StringVar(&logLevel, "log-level", "info", "log level")
	flags.StringVar(&logFile, "log-file", "", "also write logs to this rotating file")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.Open("streamers-console", level, logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	base := strings.TrimSpace(apiBase)
	if base == "" {
		if pageURL == "" {
			pageURL = "http://" + listen
		}
		if base, err = streamers.APIBase(pageURL, apiPort); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := streamers.NewClient(base, streamers.WithLogger(logger))
	roster := state.NewRosterStore(client, logger)
	updates := make(chan model.RosterState, 16)
	unsubscribe := roster.Subscribe(updates)
	defer unsubscribe()
	go traceRoster(ctx, logger, updates)
	roster.Start(ctx)

	handler, err := server.New(server.Options{
		Roster:    roster,
		Logger:    logger,
		PageTitle: title,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server", "started", map[string]any{"addr": listen, "api": client.Base()})
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

func traceRoster(ctx context.Context, logger *logging.Logger, updates <-chan model.RosterState) {
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-updates:
			pending := 0
			for _, s := range st.Streamers {
				if s.PendingUpdate {
					pending++
				}
			}
			logger.Debug("roster", "state changed", map[string]any{
				"refreshing": st.Refreshing,
				"streamers":  len(st.Streamers),
				"pending":    pending,
			})
		}
	}
}
