package main

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireCommand(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestRunAllRejectsEmptyConfig(t *testing.T) {
	if err := runAll(context.Background(), nil, time.Second); err == nil {
		t.Fatalf("expected error for no processes")
	}
	if err := runAll(context.Background(), []procConfig{{Name: "blank"}}, time.Second); err == nil {
		t.Fatalf("expected error for process without command")
	}
}

func TestRunAllReportsFailingProcess(t *testing.T) {
	requireCommand(t, "true")
	requireCommand(t, "false")

	err := runAll(context.Background(), []procConfig{
		{Name: "ok", Args: []string{"true"}},
		{Name: "broken", Args: []string{"false"}},
	}, time.Second)
	if err == nil || !strings.Contains(err.Error(), "broken exited") {
		t.Fatalf("expected broken process error, got %v", err)
	}
}

func TestRunAllStopsOnCancel(t *testing.T) {
	requireCommand(t, "sleep")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	if err := runAll(ctx, []procConfig{{Name: "sleeper", Args: []string{"sleep", "30"}}}, 2*time.Second); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}
