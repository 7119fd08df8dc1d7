package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const textfileName = "os_updates_count.prom"

type Config struct {
	TextfileDir string
	LockFile    string
	FileMode    os.FileMode

	WatchInterval time.Duration
	PkgmgrTimeout time.Duration

	LogLevel  string
	LogFormat string
}

func LoadFromEnv() (Config, error) {
	cfg := Config{}
	cfg.TextfileDir = getenv("TEXTFILE_DIR", autodetectTextfileDir())
	cfg.LockFile = getenv("LOCK_FILE", defaultLockFile())
	cfg.FileMode = 0644

	cfg.WatchInterval = getenvDuration("WATCH_INTERVAL", 30*time.Minute)
	cfg.PkgmgrTimeout = getenvDuration("PKGMGR_TIMEOUT", 0)

	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL", "warn"))
	cfg.LogFormat = strings.ToLower(getenv("LOG_FORMAT", "text"))

	if cfg.TextfileDir == "" {
		return cfg, fmt.Errorf("TEXTFILE_DIR is empty")
	}
	if cfg.WatchInterval <= 0 {
		return cfg, fmt.Errorf("WATCH_INTERVAL must be positive, got %s", cfg.WatchInterval)
	}
	if cfg.PkgmgrTimeout < 0 {
		return cfg, fmt.Errorf("PKGMGR_TIMEOUT must not be negative, got %s", cfg.PkgmgrTimeout)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return cfg, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	return cfg, nil
}

func (c Config) TextfilePath() string { return filepath.Join(c.TextfileDir, textfileName) }

func autodetectTextfileDir() string {
	candidates := []string{
		"/var/lib/node_exporter",
		"/var/lib/prometheus/node-exporter",
		"/var/lib/alloy",
		"/var/lib/grafana-agent",
	}
	for _, d := range candidates {
		if fi, err := os.Stat(d); err == nil && fi.IsDir() {
			return d
		}
	}
	return "/var/lib/node_exporter"
}

func defaultLockFile() string {
	dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "updates-status.lock")
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
