package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const (
	EnvStorageDSN    = "COSELECT_STORAGE_DSN"
	EnvSessionSecret = "COSELECT_SESSION_SECRET"
)

// Loader reads a YAML config file and watches it for changes.
type Loader struct {
	path     string
	logger   *slog.Logger
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// NewLoader creates a Loader and performs the initial load. An invalid file
// fails here; later reloads keep the previous config instead.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path, logger: slog.Default()}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

func (l *Loader) WithLogger(logger *slog.Logger) *Loader {
	l.logger = logger
	return l
}

// Config returns the current configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked after every successful reload.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch hot-reloads the config on file changes until ctx is done. The parent
// directory is watched so editors that replace the file are picked up.
func (l *Loader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", l.path, err)
	}
	target := filepath.Clean(l.path)

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if _, err := l.Reload(); err != nil {
					l.logger.Warn("config reload failed, keeping previous config", "path", l.path, "err", err)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("config watcher error", "err", err)
		case <-ctx.Done():
			return nil
		}
	}
}

// Reload forces an immediate re-read of the config file.
func (l *Loader) Reload() (*Config, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Config), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", l.path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", l.path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, applies defaults and environment overrides, and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	applyDefaults(&cfg)
	if v := os.Getenv(EnvStorageDSN); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv(EnvSessionSecret); v != "" {
		cfg.Session.Secret = v
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeoutMs == 0 {
		cfg.Server.ShutdownTimeoutMs = 10000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.RedisPrefix == "" {
		cfg.Storage.RedisPrefix = "coselect:"
	}
	if cfg.Outbox.Backend == "" {
		cfg.Outbox.Backend = "log"
	}
	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = 24 * 60
	}
	if cfg.Payout.MinimumThreshold == "" {
		cfg.Payout.MinimumThreshold = "50"
	}
	d := &cfg.Dispute
	if d.ResponseWindowHours == 0 {
		d.ResponseWindowHours = 7 * 24
	}
	if d.RequiredEvidence == 0 {
		d.RequiredEvidence = 1
	}
	if d.UrgentWithinHours == 0 {
		d.UrgentWithinHours = 24
	}
	if d.SoonWithinHours == 0 {
		d.SoonWithinHours = 72
	}
	if d.AutoReplyDelayMs == 0 {
		d.AutoReplyDelayMs = 2000
	}
	if d.AutoReplyMessage == "" {
		d.AutoReplyMessage = "Thanks, we received your message. An ops reviewer will follow up before the case deadline."
	}
}
