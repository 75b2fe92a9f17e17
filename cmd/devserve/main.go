// devserve serves the current directory over HTTP for local development:
// it picks the first free port in a bounded range, injects permissive CORS
// headers, opens the default browser, and pushes live-reload events to
// connected pages when files change.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dreschagin/devserve/internal/browser"
	"github.com/dreschagin/devserve/internal/httpx"
	"github.com/dreschagin/devserve/internal/livereload"
	devmetrics "github.com/dreschagin/devserve/internal/metrics"
	"github.com/dreschagin/devserve/internal/portscan"
	"github.com/dreschagin/devserve/internal/static"
	"github.com/dreschagin/devserve/pkg/config"
	"github.com/dreschagin/devserve/pkg/logger"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const separator = "--------------------------------------------------"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		reportFatal(cfg, err)
		os.Exit(1)
	}
}

// fatalLines maps each startup failure kind to its user-facing message;
// the first line is the error, any following lines are hints.
func fatalLines(cfg *config.Config, err error) []string {
	switch {
	case errors.Is(err, static.ErrEntryFileMissing):
		return []string{
			fmt.Sprintf("❌ error: %v", err),
			fmt.Sprintf("run devserve from the directory that holds your %s", cfg.EntryFile),
		}
	case errors.Is(err, portscan.ErrNoFreePort):
		return []string{fmt.Sprintf("❌ error: %v", err)}
	default:
		return []string{fmt.Sprintf("❌ server failed: %v", err)}
	}
}

func reportFatal(cfg *config.Config, err error) {
	lines := fatalLines(cfg, err)
	color.Red("%s", lines[0])
	for _, hint := range lines[1:] {
		color.Yellow("%s", hint)
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	root, err := filepath.Abs(cfg.ServeRoot)
	if err != nil {
		return fmt.Errorf("resolve serving root: %w", err)
	}

	if err := static.CheckEntryFile(root, cfg.EntryFile); err != nil {
		return err
	}

	port, err := portscan.Scan(cfg.PortScan.Start, cfg.PortScan.End)
	if err != nil {
		return err
	}

	handler := buildHandler(ctx, cfg, root, log)

	// Bind explicitly before announcing anything: the scanned port can be
	// claimed by another process between probe and bind.
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	printBanner(serverURL, root)

	if cfg.OpenBrowser {
		if err := browser.Open(serverURL); err != nil {
			color.Yellow("⚠️  could not open the browser: %v", err)
			color.Yellow("visit %s manually", serverURL)
		} else {
			color.Green("🌐 opened the default browser")
		}
		fmt.Println(separator)
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", err)
	}

	fmt.Println()
	color.Green("👋 server stopped")
	return nil
}

// buildHandler assembles the full serving stack: static files plus the
// reserved /_devserve/ endpoints, wrapped by OPTIONS short-circuit,
// compression, metrics, access logging, and header injection. Background
// goroutines (reload hub, watcher) stop with ctx.
func buildHandler(ctx context.Context, cfg *config.Config, root string, log *logger.Logger) http.Handler {
	registry := prometheus.NewRegistry()
	metrics := devmetrics.New(registry)

	mux := http.NewServeMux()
	mux.HandleFunc("/_devserve/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics.Enabled {
		mux.Handle("/_devserve/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	if cfg.LiveReload.Enabled {
		hub := livereload.NewHub(log, metrics)
		go hub.Run(ctx)

		limiter := rate.NewLimiter(rate.Limit(cfg.LiveReload.EventsPerSec), cfg.LiveReload.Burst)
		watcher, err := livereload.NewWatcher(root, hub, limiter, log, metrics)
		if err != nil {
			// Reload is a convenience; keep serving without it.
			log.Warn("live reload disabled", "error", err.Error())
		} else {
			go watcher.Run(ctx)
			mux.Handle("/_devserve/reload", http.HandlerFunc(livereload.NewHandler(hub, log).HandleConnection))
		}
	}

	mux.Handle("/", static.NewHandler(root))

	// OPTIONS short-circuits outside compression so preflight responses go
	// out with a genuinely empty body rather than gzip framing.
	var handler http.Handler = mux
	if cfg.Compression.Enabled {
		handler = httpx.WithCompression(handler)
	}
	handler = static.WithOptionsShortCircuit(handler)
	if cfg.Metrics.Enabled {
		handler = metrics.Middleware(handler)
	}
	handler = httpx.WithLogging(log, handler)
	handler = static.WithHeaders(handler)

	return handler
}

func printBanner(serverURL, root string) {
	color.Green("🚀 devserve is up")
	fmt.Printf("📍 server url:  %s\n", serverURL)
	fmt.Printf("📁 serving dir: %s\n", root)
	fmt.Println("⏹  press Ctrl+C to stop")
	fmt.Println(separator)
}
