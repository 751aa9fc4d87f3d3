package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when Load is given no path and the file exists.
const DefaultPath = "quoteledger.json"

const envPrefix = "QUOTELEDGER_"

// Load reads the config file at path (json, toml or yaml by extension) over
// the defaults, then applies .env and QUOTELEDGER_* environment overrides.
// An empty path falls back to DefaultPath if present. The result is not
// validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(b), cfg)
		return err
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	case ".json", "":
		return json.Unmarshal(b, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func applyEnv(cfg *Config) {
	setStr(&cfg.Source.BaseURL, "SOURCE_BASE_URL")
	setInt(&cfg.Source.Attempts, "SOURCE_ATTEMPTS")
	setInt(&cfg.Source.TimeoutSec, "SOURCE_TIMEOUT_SEC")
	setStr(&cfg.Source.UserAgent, "SOURCE_USER_AGENT")
	setStr(&cfg.Source.CacheBusterParam, "SOURCE_CACHE_BUSTER_PARAM")
	setStr(&cfg.Source.Marker, "SOURCE_MARKER")
	setStr(&cfg.Source.Closing, "SOURCE_CLOSING")
	setBool(&cfg.Source.StrictExchanges, "SOURCE_STRICT_EXCHANGES")

	setInt(&cfg.Pacing.MinIntervalMs, "PACING_MIN_INTERVAL_MS")
	setInt(&cfg.Pacing.MaxRequestsPerMinute, "PACING_MAX_RPM")
	setInt(&cfg.Pacing.Burst, "PACING_BURST")

	setInt(&cfg.Breaker.ConsecutiveFailures, "BREAKER_CONSECUTIVE_FAILURES")
	setInt(&cfg.Breaker.OpenTimeoutSec, "BREAKER_OPEN_TIMEOUT_SEC")

	setInt(&cfg.Cache.TTLSeconds, "CACHE_TTL_SEC")
	setInt(&cfg.Cache.MaxItems, "CACHE_MAX_ITEMS")

	setStr(&cfg.Ledger.Driver, "LEDGER_DRIVER")
	setStr(&cfg.Ledger.Path, "LEDGER_PATH")
	setStr(&cfg.Ledger.DSN, "LEDGER_DSN")
	setStr(&cfg.Ledger.RedisAddr, "LEDGER_REDIS_ADDR")
	setStr(&cfg.Ledger.RedisPassword, "LEDGER_REDIS_PASSWORD")
	setInt(&cfg.Ledger.RedisDB, "LEDGER_REDIS_DB")
	setStr(&cfg.Ledger.KeyPrefix, "LEDGER_KEY_PREFIX")
	setStr(&cfg.Ledger.TimestampLayout, "LEDGER_TIMESTAMP_LAYOUT")
	setStr(&cfg.Ledger.Timezone, "LEDGER_TIMEZONE")

	setBool(&cfg.Archive.Enabled, "ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Bucket, "ARCHIVE_BUCKET")
	setStr(&cfg.Archive.Prefix, "ARCHIVE_PREFIX")
	setStr(&cfg.Archive.Region, "ARCHIVE_REGION")
	setStr(&cfg.Archive.Endpoint, "ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.AccessKey, "ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.ForcePathStyle, "ARCHIVE_FORCE_PATH_STYLE")

	setStr(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.IntervalSec, "SERVER_INTERVAL_SEC")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.LogFormat, "LOG_FORMAT")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y":
			*dst = true
		case "0", "false", "no", "n":
			*dst = false
		}
	}
}
