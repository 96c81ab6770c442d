// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

// Package config loads staffboard settings from flags, an optional YAML
// file and the environment.
//
// Precedence, highest first: flags set on the command line, the YAML file,
// flag defaults. DATABASE_URL fills database-url when nothing else does.
package config

import (
	"net/url"
	"regexp"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"
)

// Default values for flags.
const (
	DefaultListenAddr     = "127.0.0.1:8080"
	DefaultMetricsAddr    = "127.0.0.1:9100"
	DefaultLogFormat      = "json"
	DefaultSessionTimeout = 30 * time.Minute
	DefaultQueryTimeout   = 5 * time.Second
	DefaultLoginRate      = 5.0
	DefaultLoginBurst     = 10
)

// EnvDatabaseURL is consulted when database-url is unset.
const EnvDatabaseURL = "DATABASE_URL"

// Config is the effective configuration.
type Config struct {
	DatabaseURL    string        `koanf:"database-url"`
	ListenAddr     string        `koanf:"listen-addr"`
	MetricsAddr    string        `koanf:"metrics-addr"`
	LogFormat      string        `koanf:"log-format"`
	SessionTimeout time.Duration `koanf:"session-timeout"`
	QueryTimeout   time.Duration `koanf:"query-timeout"`
	LoginRate      float64       `koanf:"login-rate"`
	LoginBurst     int           `koanf:"login-burst"`
	CookieSecure   bool          `koanf:"cookie-secure"`
}

// RegisterFlags adds every config key to fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("database-url", "", "PostgreSQL connection URL (default: $"+EnvDatabaseURL+")")
	fs.String("listen-addr", DefaultListenAddr, "HTTP API listen address")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.Duration("session-timeout", DefaultSessionTimeout, "how long a login stays valid")
	fs.Duration("query-timeout", DefaultQueryTimeout, "per-request database deadline")
	fs.Float64("login-rate", DefaultLoginRate, "login attempts per second per client IP")
	fs.Int("login-burst", DefaultLoginBurst, "login attempt burst per client IP")
	fs.Bool("cookie-secure", false, "mark the session cookie Secure")
}

// Load builds a Config. path may be empty. flags should carry the
// definitions from RegisterFlags. getenv is os.Getenv outside tests.
func Load(path string, flags *pflag.FlagSet, getenv func(string) string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Unchanged flags only fill keys the file left unset.
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "decode config").
			Wrap(err)
	}

	if cfg.DatabaseURL == "" && getenv != nil {
		cfg.DatabaseURL = getenv(EnvDatabaseURL)
	}
	return &cfg, nil
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return invalid("database-url", "database-url or $"+EnvDatabaseURL+" is required")
	case c.ListenAddr == "":
		return invalid("listen-addr", "listen-addr is required")
	case c.LogFormat != "json" && c.LogFormat != "text":
		return invalid("log-format", "log-format must be 'json' or 'text'")
	case c.SessionTimeout <= 0:
		return invalid("session-timeout", "session-timeout must be positive")
	case c.QueryTimeout <= 0:
		return invalid("query-timeout", "query-timeout must be positive")
	case c.LoginRate <= 0:
		return invalid("login-rate", "login-rate must be positive")
	case c.LoginBurst < 1:
		return invalid("login-burst", "login-burst must be at least 1")
	}
	return nil
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s", msg)
}

// dump is the YAML shape of a Config. Durations print as "30m0s".
type dump struct {
	DatabaseURL    string  `yaml:"database-url"`
	ListenAddr     string  `yaml:"listen-addr"`
	MetricsAddr    string  `yaml:"metrics-addr"`
	LogFormat      string  `yaml:"log-format"`
	SessionTimeout string  `yaml:"session-timeout"`
	QueryTimeout   string  `yaml:"query-timeout"`
	LoginRate      float64 `yaml:"login-rate"`
	LoginBurst     int     `yaml:"login-burst"`
	CookieSecure   bool    `yaml:"cookie-secure"`
}

// YAML renders c with the database password redacted.
func (c *Config) YAML() ([]byte, error) {
	out, err := yamlv3.Marshal(dump{
		DatabaseURL:    RedactDSN(c.DatabaseURL),
		ListenAddr:     c.ListenAddr,
		MetricsAddr:    c.MetricsAddr,
		LogFormat:      c.LogFormat,
		SessionTimeout: c.SessionTimeout.String(),
		QueryTimeout:   c.QueryTimeout.String(),
		LoginRate:      c.LoginRate,
		LoginBurst:     c.LoginBurst,
		CookieSecure:   c.CookieSecure,
	})
	if err != nil {
		return nil, oops.Code("CONFIG_DUMP_FAILED").Wrap(err)
	}
	return out, nil
}

var keywordPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// RedactDSN hides the password in a URL or keyword/value connection string.
func RedactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		return u.Redacted()
	}
	return keywordPassword.ReplaceAllString(dsn, "${1}xxxxx")
}
