package config

import (
	"fmt"
	"strings"
)

// Validate checks required fields and cross-field consistency, reporting
// every problem at once.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.Storage.Backend {
	case "memory":
	case "file":
		if cfg.Storage.Dir == "" {
			errs = append(errs, "storage.dir is required for the file backend")
		}
	case "postgres":
		if cfg.Storage.DSN == "" {
			errs = append(errs, "storage.dsn (or COSELECT_STORAGE_DSN) is required for the postgres backend")
		}
	case "redis":
		if cfg.Storage.RedisAddr == "" {
			errs = append(errs, "storage.redis_addr is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q is not one of memory, file, postgres, redis", cfg.Storage.Backend))
	}

	switch cfg.Outbox.Backend {
	case "log":
	case "kafka":
		if len(cfg.Outbox.Brokers) == 0 {
			errs = append(errs, "outbox.brokers must not be empty for the kafka backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("outbox.backend %q is not one of log, kafka", cfg.Outbox.Backend))
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level))
	}

	if cfg.Session.Secret == "" {
		errs = append(errs, "session.secret (or COSELECT_SESSION_SECRET) is required")
	}

	if m, err := cfg.Payout.Minimum(); err != nil {
		errs = append(errs, fmt.Sprintf("payout.minimum_threshold %q is not a decimal", cfg.Payout.MinimumThreshold))
	} else if m.IsNegative() {
		errs = append(errs, "payout.minimum_threshold must not be negative")
	}

	d := cfg.Dispute
	if d.RequiredEvidence < 0 {
		errs = append(errs, "dispute.required_evidence must not be negative")
	}
	if d.UrgentWithinHours > d.SoonWithinHours {
		errs = append(errs, "dispute.urgent_within_hours must not exceed soon_within_hours")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
