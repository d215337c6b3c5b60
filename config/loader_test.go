package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimal = `
session:
  secret: s3cret
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coselect.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoaderDefaults(t *testing.T) {
	l, err := NewLoader(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := l.Config()

	if cfg.Server.Addr != ":8080" || cfg.Storage.Backend != "memory" || cfg.Outbox.Backend != "log" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if m, err := cfg.Payout.Minimum(); err != nil || m.String() != "50" {
		t.Fatalf("minimum = %v, %v", m, err)
	}
	if cfg.Dispute.ResponseWindowHours != 168 || cfg.Dispute.RequiredEvidence != 1 {
		t.Fatalf("unexpected dispute defaults %+v", cfg.Dispute)
	}
	if cfg.Session.TTL() != 24*time.Hour {
		t.Fatalf("ttl = %v", cfg.Session.TTL())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvStorageDSN, "postgres://u:p@db/coselect")
	t.Setenv(EnvSessionSecret, "from-env")

	cfg, err := Parse([]byte("storage:\n  backend: postgres\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Storage.DSN != "postgres://u:p@db/coselect" || cfg.Session.Secret != "from-env" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	t.Setenv(EnvSessionSecret, "")
	_, err := Parse([]byte(`
storage:
  backend: file
outbox:
  backend: kafka
log:
  level: loud
payout:
  minimum_threshold: lots
dispute:
  urgent_within_hours: 100
  soon_within_hours: 10
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"storage.dir", "outbox.brokers", "log.level", "session.secret", "minimum_threshold", "urgent_within_hours"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s:\n%v", want, err)
		}
	}
}

func TestReloadNotifiesAndKeepsPreviousOnError(t *testing.T) {
	path := writeConfig(t, minimal)
	l, err := NewLoader(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var got []string
	l.OnChange(func(c *Config) { got = append(got, c.Payout.MinimumThreshold) })

	if err := os.WriteFile(path, []byte(minimal+"payout:\n  minimum_threshold: \"75.50\"\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if _, err := l.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got) != 1 || got[0] != "75.50" {
		t.Fatalf("callbacks saw %v", got)
	}

	if err := os.WriteFile(path, []byte("payout: ["), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if _, err := l.Reload(); err == nil {
		t.Fatal("expected parse error")
	}
	if l.Config().Payout.MinimumThreshold != "75.50" || len(got) != 1 {
		t.Fatal("failed reload must keep the previous config")
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("filesystem watcher test")
	}
	path := writeConfig(t, minimal)
	l, err := NewLoader(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	changed := make(chan string, 4)
	l.OnChange(func(c *Config) {
		select {
		case changed <- c.Payout.MinimumThreshold:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(minimal+"payout:\n  minimum_threshold: \"20\"\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case v := <-changed:
		if v != "20" {
			t.Fatalf("reloaded threshold = %s", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}
}
