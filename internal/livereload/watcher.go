package livereload

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dreschagin/devserve/internal/metrics"
	"github.com/dreschagin/devserve/pkg/logger"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Watcher observes the serving root and turns filesystem changes into hub
// broadcasts. Bursts from build tools are coalesced by the rate limiter.
type Watcher struct {
	root    string
	hub     *Hub
	limiter *rate.Limiter
	logger  *logger.Logger
	metrics *metrics.Metrics
	fsw     *fsnotify.Watcher
}

// NewWatcher watches root and every non-hidden subdirectory.
func NewWatcher(root string, hub *Hub, limiter *rate.Limiter, log *logger.Logger, m *metrics.Metrics) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:    root,
		hub:     hub,
		limiter: limiter,
		logger:  log,
		metrics: m,
		fsw:     fsw,
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

// Run forwards watch events until the context is cancelled.
// Start it in its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer func() { _ = w.fsw.Close() }()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.metrics.WatchErrors.Inc()
			w.logger.Error("file watch error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if shouldIgnore(event.Name) {
		return
	}

	// New directories need their own watch before anything inside them
	// can be seen.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDir(filepath.Base(event.Name)) {
				if err := w.fsw.Add(event.Name); err != nil {
					w.metrics.WatchErrors.Inc()
					w.logger.Error("failed to watch new directory", err, "path", event.Name)
				}
			}
		}
	}

	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	if !w.limiter.Allow() {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		rel = event.Name
	}

	w.hub.Broadcast(Event{Type: "reload", Path: filepath.ToSlash(rel)})
	w.metrics.ReloadBroadcasts.Inc()
	w.logger.Debug("file change broadcast", "path", rel, "op", event.Op.String())
}

// skipDir filters directories that never hold servable sources worth
// watching.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules"
}

// shouldIgnore filters editor droppings and hidden files.
func shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") {
		return true
	}
	switch filepath.Ext(base) {
	case ".swp", ".swo", ".tmp":
		return true
	}
	return false
}
