// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

// Package config loads bot configuration from a YAML file with command-line
// flag overrides. Flags win over the file; the file wins over defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all tunables for a hermod instance.
type Config struct {
	// Prefix is the command sigil, e.g. "." or "!".
	Prefix string `koanf:"prefix"`

	// RespondTo is "all", "groups", or "private".
	RespondTo string `koanf:"respond-to"`

	// OwnerJIDs are bot owners; they bypass admission throttles.
	OwnerJIDs []string `koanf:"owners"`

	// PremiumJIDs may use premium-gated commands.
	PremiumJIDs []string `koanf:"premium"`

	// MessagesPerDay caps outbound messages per rolling day. Zero disables
	// the quota.
	MessagesPerDay int `koanf:"messages-per-day"`

	// DefaultCooldown applies per user per command when a plugin sets none.
	DefaultCooldown time.Duration `koanf:"default-cooldown"`

	// DefaultRateMax and DefaultRateWindow bound per-user per-command calls
	// inside a fixed window when a plugin sets no rate policy.
	DefaultRateMax    int           `koanf:"default-rate-max"`
	DefaultRateWindow time.Duration `koanf:"default-rate-window"`

	// MaxTrackedUsers bounds admission throttle state; oldest senders are
	// evicted past this.
	MaxTrackedUsers int `koanf:"max-tracked-users"`

	// Spam guard: token bucket per sender across all messages.
	SpamBurst   int     `koanf:"spam-burst"`
	SpamRate    float64 `koanf:"spam-rate"`
	SpamEnabled bool    `koanf:"spam-enabled"`

	// CommandTimeout is the wall-clock budget for one command execution.
	CommandTimeout time.Duration `koanf:"command-timeout"`

	// PluginDir holds per-plugin manifest overrides.
	PluginDir string `koanf:"plugin-dir"`

	// ReloadSpec is a cron expression for manifest polling. Empty disables
	// hot reload.
	ReloadSpec string `koanf:"reload-spec"`

	// UnknownCommandNotice replies to prefixed text that matches nothing.
	UnknownCommandNotice bool `koanf:"unknown-command-notice"`

	// SuccessReaction and ErrorReaction decorate the triggering message.
	SuccessReaction string `koanf:"success-reaction"`
	ErrorReaction   string `koanf:"error-reaction"`

	// SessionKey is the hex-encoded 256-bit key for session state
	// encryption. Empty disables the cipher.
	SessionKey string `koanf:"session-key"`

	// MetricsAddr serves /metrics, /healthz, /readyz. Empty disables it.
	MetricsAddr string `koanf:"metrics-addr"`

	LogFormat string `koanf:"log-format"`
	LogLevel  string `koanf:"log-level"`
	Debug     bool   `koanf:"debug"`
}

// Default values applied before file and flag loading.
const (
	DefaultPrefix      = "."
	DefaultRespondTo   = "all"
	DefaultLogFormat   = "json"
	DefaultLogLevel    = "info"
	DefaultMetricsAddr = "127.0.0.1:9100"
)

func defaults() *Config {
	return &Config{
		Prefix:            DefaultPrefix,
		RespondTo:         DefaultRespondTo,
		DefaultCooldown:   3 * time.Second,
		DefaultRateMax:    10,
		DefaultRateWindow: time.Minute,
		MaxTrackedUsers:   10000,
		SpamBurst:         10,
		SpamRate:          1.0,
		SpamEnabled:       true,
		CommandTimeout:    2 * time.Minute,
		MetricsAddr:       DefaultMetricsAddr,
		LogFormat:         DefaultLogFormat,
		LogLevel:          DefaultLogLevel,
	}
}

// RegisterFlags declares every config key as a flag on the given set, so
// any key can be overridden without editing the file.
func RegisterFlags(fs *pflag.FlagSet) {
	d := defaults()
	fs.String("prefix", d.Prefix, "command prefix")
	fs.String("respond-to", d.RespondTo, "response scope (all, groups, private)")
	fs.StringSlice("owners", nil, "owner JIDs")
	fs.StringSlice("premium", nil, "premium JIDs")
	fs.Int("messages-per-day", 0, "daily outbound message quota (0 = unlimited)")
	fs.Duration("default-cooldown", d.DefaultCooldown, "default per-command cooldown")
	fs.Int("default-rate-max", d.DefaultRateMax, "default per-command calls per window")
	fs.Duration("default-rate-window", d.DefaultRateWindow, "default rate window")
	fs.Int("max-tracked-users", d.MaxTrackedUsers, "max senders tracked for throttling")
	fs.Int("spam-burst", d.SpamBurst, "spam guard burst capacity")
	fs.Float64("spam-rate", d.SpamRate, "spam guard sustained messages per second")
	fs.Bool("spam-enabled", d.SpamEnabled, "enable the per-sender spam guard")
	fs.Duration("command-timeout", d.CommandTimeout, "command execution timeout")
	fs.String("plugin-dir", "", "directory of per-plugin manifest overrides")
	fs.String("reload-spec", "", "cron spec for manifest hot reload (empty = disabled)")
	fs.Bool("unknown-command-notice", false, "reply to unknown commands")
	fs.String("success-reaction", "", "reaction applied after successful commands")
	fs.String("error-reaction", "", "reaction applied after failed commands")
	fs.String("session-key", "", "hex 256-bit session encryption key")
	fs.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.LogFormat, "log format (json or text)")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.Bool("debug", false, "echo raw handler errors to users")
}

// Load builds the effective configuration. path may be empty; a missing
// explicit file is an error, flags always apply.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	cfg := defaults()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (cfg *Config) Validate() error {
	if cfg.Prefix == "" {
		return fmt.Errorf("prefix is required")
	}
	if strings.ContainsAny(cfg.Prefix, " \t\n") {
		return fmt.Errorf("prefix must not contain whitespace")
	}
	switch cfg.RespondTo {
	case "all", "groups", "private":
	default:
		return fmt.Errorf("respond-to must be 'all', 'groups', or 'private', got %q", cfg.RespondTo)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("log-format must be 'json' or 'text', got %q", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log-level must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}
	if cfg.MessagesPerDay < 0 {
		return fmt.Errorf("messages-per-day must not be negative")
	}
	if cfg.DefaultRateMax <= 0 {
		return fmt.Errorf("default-rate-max must be positive")
	}
	if cfg.DefaultRateWindow <= 0 {
		return fmt.Errorf("default-rate-window must be positive")
	}
	if cfg.CommandTimeout <= 0 {
		return fmt.Errorf("command-timeout must be positive")
	}
	if cfg.SpamEnabled {
		if cfg.SpamBurst <= 0 {
			return fmt.Errorf("spam-burst must be positive")
		}
		if cfg.SpamRate <= 0 {
			return fmt.Errorf("spam-rate must be positive")
		}
	}
	return nil
}
