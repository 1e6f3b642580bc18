package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in defaults for fields left unset.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8484"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Feed.Driver == "" {
		if cfg.Database.DSN != "" {
			cfg.Feed.Driver = FeedPostgres
		} else {
			cfg.Feed.Driver = FeedMemory
		}
	}
	if cfg.Heartbeat.FreshnessSeconds == 0 {
		cfg.Heartbeat.FreshnessSeconds = 30
	}
	if cfg.Chat.HistoryLimit == 0 {
		cfg.Chat.HistoryLimit = 100
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Feed driver
	if cfg.Feed.Driver != "" && !cfg.Feed.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("feed.driver %q is invalid; valid values: memory, postgres, redis", cfg.Feed.Driver))
	}
	switch cfg.Feed.Driver {
	case FeedPostgres:
		if cfg.Database.DSN == "" {
			errs = append(errs, errors.New("feed.driver postgres requires database.dsn"))
		}
	case FeedRedis:
		if cfg.Feed.Redis.Addr == "" {
			errs = append(errs, errors.New("feed.redis.addr is required when feed.driver is redis"))
		}
		if cfg.Database.DSN == "" {
			errs = append(errs, errors.New("feed.driver redis requires database.dsn; redis carries events, postgres carries data"))
		}
	case FeedMemory:
		if cfg.Database.DSN != "" {
			slog.Warn("feed.driver memory with database.dsn set; other instances will not see changes made here")
		}
	}

	// Secrets key
	if cfg.Secrets.Key != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.Secrets.Key)
		if err != nil {
			errs = append(errs, fmt.Errorf("secrets.key is not valid base64: %w", err))
		} else if len(key) != 32 {
			errs = append(errs, fmt.Errorf("secrets.key decodes to %d bytes, want 32", len(key)))
		}
	} else {
		slog.Warn("secrets.key is empty; secret values cannot be encrypted or decrypted")
	}

	// Tuning ranges
	if cfg.Heartbeat.FreshnessSeconds < 0 {
		errs = append(errs, fmt.Errorf("heartbeat.freshness_seconds %d is negative", cfg.Heartbeat.FreshnessSeconds))
	}
	if cfg.Chat.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("chat.history_limit %d is negative", cfg.Chat.HistoryLimit))
	}

	return errors.Join(errs...)
}
