package livereload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dreschagin/devserve/internal/metrics"
	"github.com/dreschagin/devserve/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

func TestShouldIgnore(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "site/index.html", want: false},
		{path: "site/app.js", want: false},
		{path: "site/.env", want: true},
		{path: "site/.git", want: true},
		{path: "site/index.html~", want: true},
		{path: "site/.index.html.swp", want: true},
		{path: "site/build.tmp", want: true},
		{path: "site/notes.swo", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := shouldIgnore(tt.path); got != tt.want {
				t.Fatalf("shouldIgnore(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestSkipDir(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "assets", want: false},
		{name: ".git", want: true},
		{name: "node_modules", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := skipDir(tt.name); got != tt.want {
				t.Fatalf("skipDir(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func startWatcher(t *testing.T, root string, hub *Hub) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	watcher, err := NewWatcher(root, hub, rate.NewLimiter(rate.Inf, 0), logger.New("error"), m)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go watcher.Run(ctx)
	t.Cleanup(cancel)
}

// waitForEvent drains the client channel until a reload event for path
// arrives or the deadline passes.
func waitForEvent(t *testing.T, client *Client, path string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case event := <-client.send:
			if event.Path == path {
				return
			}
		case <-deadline:
			t.Fatalf("no reload event for %q", path)
		}
	}
}

func TestWatcherBroadcastsFileChanges(t *testing.T) {
	root := t.TempDir()
	hub, _ := newTestHub(t)
	client := &Client{id: "watch-test", send: make(chan Event, 64)}
	hub.Register(client)
	waitForClients(t, hub, 1)

	startWatcher(t, root, hub)

	if err := os.WriteFile(filepath.Join(root, "page.html"), []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	waitForEvent(t, client, "page.html")
}

func TestWatcherIgnoresEditorDroppings(t *testing.T) {
	root := t.TempDir()
	hub, _ := newTestHub(t)
	client := &Client{id: "watch-test", send: make(chan Event, 64)}
	hub.Register(client)
	waitForClients(t, hub, 1)

	startWatcher(t, root, hub)

	if err := os.WriteFile(filepath.Join(root, ".index.html.swp"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	select {
	case event := <-client.send:
		t.Fatalf("unexpected broadcast for ignored file: %+v", event)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	hub, _ := newTestHub(t)
	client := &Client{id: "watch-test", send: make(chan Event, 64)}
	hub.Register(client)
	waitForClients(t, hub, 1)

	startWatcher(t, root, hub)

	sub := filepath.Join(root, "assets")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	waitForEvent(t, client, "assets")

	if err := os.WriteFile(filepath.Join(sub, "app.js"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	waitForEvent(t, client, "assets/app.js")
}

func TestWatcherCoalescesBursts(t *testing.T) {
	root := t.TempDir()
	hub, _ := newTestHub(t)
	client := &Client{id: "watch-test", send: make(chan Event, 64)}
	hub.Register(client)
	waitForClients(t, hub, 1)

	m := metrics.New(prometheus.NewRegistry())
	// One event per second, burst of one: a rewrite storm yields a single
	// broadcast.
	watcher, err := NewWatcher(root, hub, rate.NewLimiter(1, 1), logger.New("error"), m)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go watcher.Run(ctx)
	t.Cleanup(cancel)

	for i := 0; i < 10; i++ {
		name := filepath.Join(root, "page.html")
		if err := os.WriteFile(name, []byte("rev"), 0o644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
	}

	waitForEvent(t, client, "page.html")

	// The remaining writes fell inside the limiter window.
	select {
	case event := <-client.send:
		t.Fatalf("burst was not coalesced, extra event: %+v", event)
	case <-time.After(300 * time.Millisecond):
	}
}
