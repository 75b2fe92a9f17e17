package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores devserve runtime configuration.
type Config struct {
	ServeRoot string
	EntryFile string
	LogLevel  string

	OpenBrowser bool

	PortScan PortScanConfig

	Server ServerConfig

	Compression CompressionConfig

	Metrics MetricsConfig

	LiveReload LiveReloadConfig
}

// PortScanConfig bounds the free-port search. The range is half-open:
// candidates are Start, Start+1, ..., End-1.
type PortScanConfig struct {
	Start int
	End   int
}

// ServerConfig stores HTTP server timeouts.
type ServerConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// CompressionConfig toggles gzip response compression.
type CompressionConfig struct {
	Enabled bool
}

// MetricsConfig toggles the /_devserve/metrics endpoint.
type MetricsConfig struct {
	Enabled bool
}

// LiveReloadConfig controls the file watcher and reload websocket.
type LiveReloadConfig struct {
	Enabled bool
	// EventsPerSec caps reload broadcasts while build tools rewrite
	// many files at once.
	EventsPerSec float64
	Burst        int
}

// Load reads configuration from environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServeRoot:   getEnv("SERVE_ROOT", "."),
		EntryFile:   getEnv("ENTRY_FILE", "index.html"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		OpenBrowser: getEnvBool("OPEN_BROWSER", true),
		PortScan: PortScanConfig{
			Start: getEnvInt("PORT_SCAN_START", 8000),
			End:   getEnvInt("PORT_SCAN_END", 8100),
		},
		Server: ServerConfig{
			ReadTimeout:     getEnvDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Compression: CompressionConfig{
			Enabled: getEnvBool("COMPRESSION_ENABLED", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		LiveReload: LiveReloadConfig{
			Enabled:      getEnvBool("LIVE_RELOAD_ENABLED", true),
			EventsPerSec: getEnvFloat("LIVE_RELOAD_RATE", 4),
			Burst:        getEnvInt("LIVE_RELOAD_BURST", 1),
		},
	}

	if strings.TrimSpace(cfg.ServeRoot) == "" {
		return nil, fmt.Errorf("SERVE_ROOT must not be empty")
	}
	if strings.TrimSpace(cfg.EntryFile) == "" {
		return nil, fmt.Errorf("ENTRY_FILE must not be empty")
	}

	if cfg.PortScan.Start < 1 || cfg.PortScan.Start > 65535 {
		return nil, fmt.Errorf("PORT_SCAN_START must be a valid TCP port, got %d", cfg.PortScan.Start)
	}
	if cfg.PortScan.End <= cfg.PortScan.Start || cfg.PortScan.End > 65536 {
		return nil, fmt.Errorf("PORT_SCAN_END must be greater than PORT_SCAN_START and at most 65536, got %d", cfg.PortScan.End)
	}

	if cfg.Server.ReadTimeout <= 0 || cfg.Server.WriteTimeout <= 0 || cfg.Server.IdleTimeout <= 0 {
		return nil, fmt.Errorf("server timeouts must be positive")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}

	if cfg.LiveReload.Enabled {
		if cfg.LiveReload.EventsPerSec <= 0 {
			return nil, fmt.Errorf("LIVE_RELOAD_RATE must be positive")
		}
		if cfg.LiveReload.Burst <= 0 {
			return nil, fmt.Errorf("LIVE_RELOAD_BURST must be positive")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
