// Command restreamer-console runs the API and the console side by side for
// local development.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
)

type procConfig struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

func (p procConfig) command(ctx context.Context) *exec.Cmd {
	cmd := exec.CommandContext(ctx, p.Args[0], p.Args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Dir = p.Dir
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}
	return cmd
}

func main() {
	flags := pflag.NewFlagSet("restreamer-console", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "restreamer.yaml", "re-streamer YAML config passed to streamers-api")
	apiPort := flags.Int("api-port", 8880, "port for streamers-api")
	consoleAddr := flags.String("listen", "127.0.0.1:4173", "address for streamers-console")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "restreamer-console: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runAll(ctx, devProcs(*configPath, *apiPort, *consoleAddr), 2*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "restreamer-console: %v\n", err)
		os.Exit(1)
	}
}

// devProcs runs the API in debug mode so the console may call it cross-origin.
func devProcs(configPath string, apiPort int, consoleAddr string) []procConfig {
	port := strconv.Itoa(apiPort)
	return []procConfig{
		{
			Name: "streamers-api",
			Args: []string{"go", "run", "./cmd/streamers-api",
				"--config", configPath,
				"--listen", "127.0.0.1:" + port,
				"--debug",
			},
		},
		{
			Name: "streamers-console",
			Args: []string{"go", "run", "./cmd/streamers-console",
				"--listen", consoleAddr,
				"--api-port", port,
			},
		},
	}
}

// runAll starts every process and waits. The first unexpected exit is
// returned; on cancellation the processes get grace to stop.
func runAll(ctx context.Context, procs []procConfig, grace time.Duration) error {
	if len(procs) == 0 {
		return errors.New("no processes configured")
	}
	for _, p := range procs {
		if len(p.Args) == 0 {
			return fmt.Errorf("%s: no command", p.Name)
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(procs))
	for _, p := range procs {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.command(ctx).Run(); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("%s exited: %w", p.Name, err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
		select {
		case err := <-errCh:
			return err
		default:
			return nil
		}
	case <-ctx.Done():
		select {
		case <-done:
		case <-time.After(grace):
		}
		return nil
	}
}
