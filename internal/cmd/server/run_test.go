package serverrun

import (
	"context"
	"testing"
	"time"

	cfgpkg "github.com/conveyorhq/conveyor/internal/config"
	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

func TestRunServesAndShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{
			DataDir:  t.TempDir(),
			HTTPAddr: "127.0.0.1:0",
			Fsync:    pebblestore.FsyncModeNever,
			Config:   cfgpkg.Default(),
		})
	}()

	// Give the server a moment to come up, then cancel and expect a clean
	// exit. The ephemeral port is not probed here; lifecycle is the point.
	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestGetenvDefault(t *testing.T) {
	old := getenv
	defer func() { getenv = old }()

	getenv = func(string) string { return "" }
	if got := getenvDefault("ANY", "fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
	getenv = func(string) string { return "set" }
	if got := getenvDefault("ANY", "fallback"); got != "set" {
		t.Fatalf("got %q", got)
	}
}
