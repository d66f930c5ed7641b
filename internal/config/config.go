// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads holoauth configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// command-line flags that were explicitly set. The YAML file is checked
// against the generated JSON schema before it is merged.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/holoauth/internal/xdg"
)

// Storage backends.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Config is the serve configuration.
type Config struct {
	Store            string        `koanf:"store" json:"store,omitempty" jsonschema:"enum=file,enum=postgres,description=State backend"`
	StateFile        string        `koanf:"state_file" json:"state_file,omitempty" jsonschema:"description=Path of the YAML state file for the file backend"`
	DatabaseURL      string        `koanf:"database_url" json:"database_url,omitempty" jsonschema:"description=PostgreSQL DSN for the postgres backend"`
	AutoMigrate      bool          `koanf:"auto_migrate" json:"auto_migrate,omitempty" jsonschema:"description=Apply pending migrations on startup"`
	RPCAddr          string        `koanf:"rpc_addr" json:"rpc_addr,omitempty" jsonschema:"description=gRPC listen address"`
	ConsoleAddr      string        `koanf:"console_addr" json:"console_addr,omitempty" jsonschema:"description=Operator console listen address (empty disables)"`
	MetricsAddr      string        `koanf:"metrics_addr" json:"metrics_addr,omitempty" jsonschema:"description=Metrics and health HTTP address (empty disables)"`
	AutosaveInterval time.Duration `koanf:"autosave_interval" json:"autosave_interval,omitempty" jsonschema:"description=How often state is saved and expired tokens swept"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout,omitempty" jsonschema:"description=Grace period for in-flight work on shutdown"`
	LogFormat        string        `koanf:"log_format" json:"log_format,omitempty" jsonschema:"enum=json,enum=text"`
	LogLevel         string        `koanf:"log_level" json:"log_level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	return map[string]any{
		"store":             StoreFile,
		"state_file":        xdg.StateFile(),
		"database_url":      "",
		"auto_migrate":      false,
		"rpc_addr":          "127.0.0.1:4210",
		"console_addr":      "127.0.0.1:4211",
		"metrics_addr":      "127.0.0.1:9110",
		"autosave_interval": time.Minute,
		"shutdown_timeout":  5 * time.Second,
		"log_format":        "json",
		"log_level":         "info",
	}
}

// RegisterFlags adds one flag per key to fs. Flag names use dashes.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("store", StoreFile, "state backend (file or postgres)")
	fs.String("state-file", "", "state file path (default: XDG_STATE_HOME/holoauth/auth-state.yaml)")
	fs.String("database-url", "", "PostgreSQL DSN (default: $DATABASE_URL)")
	fs.Bool("auto-migrate", false, "apply pending migrations on startup")
	fs.String("rpc-addr", "127.0.0.1:4210", "gRPC listen address")
	fs.String("console-addr", "127.0.0.1:4211", "console listen address (empty = disabled)")
	fs.String("metrics-addr", "127.0.0.1:9110", "metrics/health HTTP address (empty = disabled)")
	fs.Duration("autosave-interval", time.Minute, "state save and token sweep interval")
	fs.Duration("shutdown-timeout", 5*time.Second, "graceful shutdown timeout")
	fs.String("log-format", "json", "log format (json or text)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty) and any flags in fs that were set explicitly. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	defaults := Defaults()
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, ok := defaults[key]; !ok {
				// Not a config key (--config, --help).
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.StateFile == "" {
		cfg.StateFile = xdg.StateFile()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := oops.Code("CONFIG_INVALID")
	switch c.Store {
	case StoreFile:
		if c.StateFile == "" {
			return invalid.With("key", "state_file").Errorf("state_file is required for the file store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return invalid.With("key", "database_url").Errorf("database_url or DATABASE_URL is required for the postgres store")
		}
	default:
		return invalid.With("key", "store").Errorf("store must be %q or %q, got %q", StoreFile, StorePostgres, c.Store)
	}
	if c.RPCAddr == "" {
		return invalid.With("key", "rpc_addr").Errorf("rpc_addr is required")
	}
	if c.AutosaveInterval <= 0 {
		return invalid.With("key", "autosave_interval").Errorf("autosave_interval must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return invalid.With("key", "shutdown_timeout").Errorf("shutdown_timeout must be positive")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid.With("key", "log_format").Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	return nil
}
