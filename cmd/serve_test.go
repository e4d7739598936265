package cmd

import (
	"context"
	"testing"
	"time"

	"ipcam/pkg/config"
	"ipcam/pkg/logger"
)

func TestRunServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, "iconfig", &config.Config{
			Bind: map[string]string{"iconfig": "inproc://iconfig"},
		}, logger.Discard())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServe error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runServe did not stop after cancel")
	}
}

func TestRunServeFailsOnBadTopology(t *testing.T) {
	t.Parallel()

	err := runServe(context.Background(), "iconfig", &config.Config{
		Bind:      map[string]string{"events": "inproc://shared"},
		Subscribe: map[string]string{"events_sub": "inproc://shared"},
	}, logger.Discard())
	if err == nil {
		t.Fatal("expected topology error")
	}
}
