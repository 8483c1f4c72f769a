package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors Config for TOML decoding. Durations are strings.
type fileConfig struct {
	Host             string  `toml:"host"`
	Port             int     `toml:"port"`
	Count            int     `toml:"count"`
	Seed             int64   `toml:"seed"`
	Blueprint        string  `toml:"blueprint"`
	SpawnConcurrency int     `toml:"spawn_concurrency"`
	SpawnRate        float64 `toml:"spawn_rate"`
	PollInterval     string  `toml:"poll_interval"`
	Timeout          string  `toml:"timeout"`
	TakeoverTimeout  string  `toml:"takeover_timeout"`
	Workers          int     `toml:"workers"`
	Tick             string  `toml:"tick"`
	JournalDir       string  `toml:"journal_dir"`
	MetricsAddr      string  `toml:"metrics_addr"`
	LogLevel         string  `toml:"log_level"`
}

// applyFile overlays the keys defined in path onto cfg, skipping any key
// whose flag was set explicitly.
func applyFile(path string, cfg *Config, explicit func(flag string) bool) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config %s: unknown keys %v", path, undecoded)
	}

	use := func(key, flag string) bool {
		return meta.IsDefined(key) && !explicit(flag)
	}
	duration := func(key, value string, dst *time.Duration) error {
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("load config %s: parse %s: %w", path, key, err)
		}
		*dst = d
		return nil
	}

	if use("host", "host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if use("port", "port") {
		cfg.Port = raw.Port
	}
	if use("count", "count") {
		cfg.Count = raw.Count
	}
	if use("seed", "seed") {
		cfg.Seed = raw.Seed
	}
	if use("blueprint", "blueprint") {
		cfg.Blueprint = strings.TrimSpace(raw.Blueprint)
	}
	if use("spawn_concurrency", "spawn-concurrency") {
		cfg.SpawnConcurrency = raw.SpawnConcurrency
	}
	if use("spawn_rate", "spawn-rate") {
		cfg.SpawnRate = raw.SpawnRate
	}
	if use("poll_interval", "poll-interval") {
		if err := duration("poll_interval", raw.PollInterval, &cfg.PollInterval); err != nil {
			return err
		}
	}
	if use("timeout", "timeout") {
		if err := duration("timeout", raw.Timeout, &cfg.Timeout); err != nil {
			return err
		}
	}
	if use("takeover_timeout", "takeover-timeout") {
		if err := duration("takeover_timeout", raw.TakeoverTimeout, &cfg.TakeoverTimeout); err != nil {
			return err
		}
	}
	if use("workers", "workers") {
		cfg.Workers = raw.Workers
	}
	if use("tick", "tick") {
		if err := duration("tick", raw.Tick, &cfg.Tick); err != nil {
			return err
		}
	}
	if use("journal_dir", "journal-dir") {
		cfg.JournalDir = strings.TrimSpace(raw.JournalDir)
	}
	if use("metrics_addr", "metrics-addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if use("log_level", "log-level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	return nil
}
