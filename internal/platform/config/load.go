package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	strutil "farmerid/pkg/platform/strings"
)

// EnvConfigFile names an optional YAML file layered over the defaults.
const EnvConfigFile = "FARMERID_CONFIG_FILE"

// Load builds the configuration. A .env file in the working directory, if
// present, seeds variables that are not already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := loadFile(filepath.Clean(path), &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables if
// set. Invalid values fail fast.
func applyEnvOverrides(cfg *Config) error {
	setString(&cfg.Server.Addr, "FARMERID_ADDR")
	setString(&cfg.Server.Environment, "FARMERID_ENV")
	setString(&cfg.Server.LogLevel, "LOG_LEVEL")
	setString(&cfg.Server.AdminToken, "ADMIN_TOKEN")

	setString(&cfg.Session.SigningKey, "SESSION_SIGNING_KEY")
	setString(&cfg.WebAuthn.RPID, "WEBAUTHN_RP_ID")
	setString(&cfg.WebAuthn.RPDisplayName, "WEBAUTHN_RP_NAME")
	setList(&cfg.WebAuthn.Origins, "WEBAUTHN_ORIGINS")
	setString(&cfg.WebAuthn.Verifier, "WEBAUTHN_VERIFIER")

	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setList(&cfg.Kafka.Brokers, "KAFKA_BROKERS")
	setString(&cfg.Kafka.AuditTopic, "KAFKA_AUDIT_TOPIC")
	setString(&cfg.Tracing.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Privacy.SubjectHashKey, "AUDIT_SUBJECT_HASH_KEY")

	durations := []struct {
		dst *time.Duration
		env string
	}{
		{&cfg.Server.RequestTimeout, "FARMERID_REQUEST_TIMEOUT"},
		{&cfg.Session.IdleTTL, "SESSION_IDLE_TTL"},
		{&cfg.Session.LockWait, "SESSION_LOCK_WAIT"},
		{&cfg.Session.LockLease, "SESSION_LOCK_LEASE"},
		{&cfg.Session.TokenTTL, "SESSION_TOKEN_TTL"},
		{&cfg.WebAuthn.Timeout, "WEBAUTHN_TIMEOUT"},
		{&cfg.Limits.Window, "RATE_LIMIT_WINDOW"},
	}
	for _, d := range durations {
		if v := os.Getenv(d.env); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", d.env, v, err)
			}
			*d.dst = parsed
		}
	}

	if v := os.Getenv("DISABLE_RATE_LIMITING"); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DISABLE_RATE_LIMITING %q: %w", v, err)
		}
		cfg.Limits.Disabled = disabled
	}
	if err := setInt(&cfg.Limits.SessionsPerIP, "RATE_LIMIT_SESSIONS_PER_IP"); err != nil {
		return err
	}
	if err := setInt(&cfg.Limits.VerifyPerSession, "RATE_LIMIT_VERIFY_PER_SESSION"); err != nil {
		return err
	}

	if v := os.Getenv("MAX_PHOTO_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_PHOTO_BYTES %q: %w", v, err)
		}
		cfg.Server.MaxPhotoBytes = n
	}
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid OTEL_TRACES_SAMPLER_ARG %q: %w", v, err)
		}
		cfg.Tracing.SampleRatio = ratio
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", env, v, err)
	}
	*dst = n
	return nil
}

func setList(dst *[]string, env string) {
	if list := strutil.SplitList(os.Getenv(env), ","); len(list) > 0 {
		*dst = list
	}
}
