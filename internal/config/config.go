package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Source struct {
	BaseURL          string `json:"base_url" toml:"base_url" yaml:"base_url"`
	Attempts         int    `json:"attempts" toml:"attempts" yaml:"attempts"`
	TimeoutSec       int    `json:"timeout_sec" toml:"timeout_sec" yaml:"timeout_sec"`
	UserAgent        string `json:"user_agent" toml:"user_agent" yaml:"user_agent"`
	CacheBusterParam string `json:"cache_buster_param" toml:"cache_buster_param" yaml:"cache_buster_param"`
	Marker           string `json:"marker" toml:"marker" yaml:"marker"`
	Closing          string `json:"closing" toml:"closing" yaml:"closing"`
	StrictExchanges  bool   `json:"strict_exchanges" toml:"strict_exchanges" yaml:"strict_exchanges"`
}

type Pacing struct {
	MinIntervalMs        int `json:"min_interval_ms" toml:"min_interval_ms" yaml:"min_interval_ms"`
	MaxRequestsPerMinute int `json:"max_requests_per_minute" toml:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                int `json:"burst" toml:"burst" yaml:"burst"`
}

type Breaker struct {
	ConsecutiveFailures int `json:"consecutive_failures" toml:"consecutive_failures" yaml:"consecutive_failures"`
	OpenTimeoutSec      int `json:"open_timeout_sec" toml:"open_timeout_sec" yaml:"open_timeout_sec"`
}

type Cache struct {
	TTLSeconds int `json:"ttl_sec" toml:"ttl_sec" yaml:"ttl_sec"`
	MaxItems   int `json:"max_items" toml:"max_items" yaml:"max_items"`
}

type Ledger struct {
	Driver          string `json:"driver" toml:"driver" yaml:"driver"`
	Path            string `json:"path" toml:"path" yaml:"path"`
	DSN             string `json:"dsn" toml:"dsn" yaml:"dsn"`
	RedisAddr       string `json:"redis_addr" toml:"redis_addr" yaml:"redis_addr"`
	RedisPassword   string `json:"redis_password" toml:"redis_password" yaml:"redis_password"`
	RedisDB         int    `json:"redis_db" toml:"redis_db" yaml:"redis_db"`
	KeyPrefix       string `json:"key_prefix" toml:"key_prefix" yaml:"key_prefix"`
	TimestampLayout string `json:"timestamp_layout" toml:"timestamp_layout" yaml:"timestamp_layout"`
	Timezone        string `json:"timezone" toml:"timezone" yaml:"timezone"`
}

type Archive struct {
	Enabled        bool   `json:"enabled" toml:"enabled" yaml:"enabled"`
	Bucket         string `json:"bucket" toml:"bucket" yaml:"bucket"`
	Prefix         string `json:"prefix" toml:"prefix" yaml:"prefix"`
	Region         string `json:"region" toml:"region" yaml:"region"`
	Endpoint       string `json:"endpoint" toml:"endpoint" yaml:"endpoint"`
	AccessKey      string `json:"access_key" toml:"access_key" yaml:"access_key"`
	SecretKey      string `json:"secret_key" toml:"secret_key" yaml:"secret_key"`
	ForcePathStyle bool   `json:"force_path_style" toml:"force_path_style" yaml:"force_path_style"`
}

type Server struct {
	Port        string `json:"port" toml:"port" yaml:"port"`
	IntervalSec int    `json:"interval_sec" toml:"interval_sec" yaml:"interval_sec"`
}

type Config struct {
	Source    Source  `json:"source" toml:"source" yaml:"source"`
	Pacing    Pacing  `json:"pacing" toml:"pacing" yaml:"pacing"`
	Breaker   Breaker `json:"breaker" toml:"breaker" yaml:"breaker"`
	Cache     Cache   `json:"cache" toml:"cache" yaml:"cache"`
	Ledger    Ledger  `json:"ledger" toml:"ledger" yaml:"ledger"`
	Archive   Archive `json:"archive" toml:"archive" yaml:"archive"`
	Server    Server  `json:"server" toml:"server" yaml:"server"`
	LogLevel  string  `json:"log_level" toml:"log_level" yaml:"log_level"`
	LogFormat string  `json:"log_format" toml:"log_format" yaml:"log_format"`
}

const (
	DriverCSV      = "csv"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

func Default() Config {
	return Config{
		Source: Source{
			BaseURL:          "https://finance.yahoo.com/quote",
			Attempts:         3,
			TimeoutSec:       10,
			CacheBusterParam: "r",
		},
		Pacing: Pacing{Burst: 1},
		Breaker: Breaker{OpenTimeoutSec: 60},
		Cache: Cache{MaxItems: 1000},
		Ledger: Ledger{
			Driver:          DriverCSV,
			Path:            "ledger.csv",
			KeyPrefix:       "quoteledger",
			TimestampLayout: "3:04:05 PM 1/2/2006",
			Timezone:        "Local",
		},
		Archive: Archive{Prefix: "runs", Region: "us-east-1"},
		Server:  Server{Port: "8080", IntervalSec: 900},
		LogLevel:  "info",
		LogFormat: "auto",
	}
}

// Location resolves the ledger timezone; empty or "Local" means the host zone.
func (l Ledger) Location() (*time.Location, error) {
	if l.Timezone == "" || strings.EqualFold(l.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(l.Timezone)
}

func (s Source) Timeout() time.Duration { return time.Duration(s.TimeoutSec) * time.Second }

func (p Pacing) MinInterval() time.Duration { return time.Duration(p.MinIntervalMs) * time.Millisecond }

func (b Breaker) OpenTimeout() time.Duration { return time.Duration(b.OpenTimeoutSec) * time.Second }

func (c Cache) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

func (s Server) Interval() time.Duration { return time.Duration(s.IntervalSec) * time.Second }

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if c.Source.BaseURL == "" {
		errs = append(errs, errors.New("source.base_url is required"))
	}
	if c.Source.Attempts < 1 {
		errs = append(errs, fmt.Errorf("source.attempts must be >= 1, got %d", c.Source.Attempts))
	}
	if c.Source.TimeoutSec < 1 {
		errs = append(errs, fmt.Errorf("source.timeout_sec must be >= 1, got %d", c.Source.TimeoutSec))
	}
	if (c.Source.Marker == "") != (c.Source.Closing == "") {
		errs = append(errs, errors.New("source.marker and source.closing must be set together"))
	}
	if c.Pacing.MinIntervalMs < 0 || c.Pacing.MaxRequestsPerMinute < 0 {
		errs = append(errs, errors.New("pacing values must not be negative"))
	}
	if c.Breaker.ConsecutiveFailures < 0 {
		errs = append(errs, errors.New("breaker.consecutive_failures must not be negative"))
	}
	if c.Cache.TTLSeconds < 0 {
		errs = append(errs, errors.New("cache.ttl_sec must not be negative"))
	}

	switch c.Ledger.Driver {
	case DriverCSV:
		if c.Ledger.Path == "" {
			errs = append(errs, errors.New("ledger.path is required for the csv driver"))
		}
	case DriverPostgres:
		if c.Ledger.DSN == "" {
			errs = append(errs, errors.New("ledger.dsn is required for the postgres driver"))
		}
	case DriverRedis:
		if c.Ledger.RedisAddr == "" {
			errs = append(errs, errors.New("ledger.redis_addr is required for the redis driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("ledger.driver %q is not one of csv, memory, postgres, redis", c.Ledger.Driver))
	}
	if c.Ledger.TimestampLayout == "" {
		errs = append(errs, errors.New("ledger.timestamp_layout is required"))
	}
	if _, err := c.Ledger.Location(); err != nil {
		errs = append(errs, fmt.Errorf("ledger.timezone: %w", err))
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		errs = append(errs, errors.New("archive.bucket is required when archive is enabled"))
	}
	if c.Server.IntervalSec < 1 {
		errs = append(errs, fmt.Errorf("server.interval_sec must be >= 1, got %d", c.Server.IntervalSec))
	}
	switch strings.ToLower(c.LogFormat) {
	case "auto", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q is not one of auto, console, json", c.LogFormat))
	}
	return errors.Join(errs...)
}
