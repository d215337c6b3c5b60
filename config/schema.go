package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config is the top-level YAML structure.
type Config struct {
	Server  ServerConf  `yaml:"server"`
	Log     LogConf     `yaml:"log"`
	Storage StorageConf `yaml:"storage"`
	Outbox  OutboxConf  `yaml:"outbox"`
	Session SessionConf `yaml:"session"`
	Payout  PayoutConf  `yaml:"payout"`
	Dispute DisputeConf `yaml:"dispute"`
}

type ServerConf struct {
	Addr              string `yaml:"addr"`
	ShutdownTimeoutMs int    `yaml:"shutdown_timeout_ms"`
}

func (s ServerConf) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutMs) * time.Millisecond
}

type LogConf struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// StorageConf selects the persistence backend.
type StorageConf struct {
	Backend     string `yaml:"backend"` // memory, file, postgres, redis
	Dir         string `yaml:"dir"`
	DSN         string `yaml:"dsn"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

type OutboxConf struct {
	Backend string   `yaml:"backend"` // log, kafka
	Brokers []string `yaml:"brokers"`
}

type SessionConf struct {
	Secret     string `yaml:"secret"`
	TTLMinutes int    `yaml:"ttl_minutes"`
	// DevPassphraseHash is a bcrypt hash; empty disables the dev tools.
	DevPassphraseHash string `yaml:"dev_passphrase_hash"`
}

func (s SessionConf) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// PayoutConf is hot-reloadable.
type PayoutConf struct {
	MinimumThreshold string `yaml:"minimum_threshold"`
}

func (p PayoutConf) Minimum() (decimal.Decimal, error) {
	return decimal.NewFromString(p.MinimumThreshold)
}

// DisputeConf is hot-reloadable.
type DisputeConf struct {
	ResponseWindowHours int    `yaml:"response_window_hours"`
	RequiredEvidence    int    `yaml:"required_evidence"`
	UrgentWithinHours   int    `yaml:"urgent_within_hours"`
	SoonWithinHours     int    `yaml:"soon_within_hours"`
	AutoReplyDelayMs    int    `yaml:"auto_reply_delay_ms"`
	AutoReplyMessage    string `yaml:"auto_reply_message"`
}
