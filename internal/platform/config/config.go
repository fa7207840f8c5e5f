// Package config assembles process configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"time"
)

// Config is the complete process configuration.
type Config struct {
	Server   Server          `yaml:"server"`
	Session  SessionConfig   `yaml:"session"`
	WebAuthn WebAuthnConfig  `yaml:"webauthn"`
	Redis    RedisConfig     `yaml:"redis"`
	Postgres PostgresConfig  `yaml:"postgres"`
	Kafka    KafkaConfig     `yaml:"kafka"`
	Tracing  TracingConfig   `yaml:"tracing"`
	Privacy  PrivacyConfig   `yaml:"privacy"`
	Limits   RateLimitConfig `yaml:"rate_limit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string        `yaml:"addr"`
	Environment    string        `yaml:"environment"`
	LogLevel       string        `yaml:"log_level"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AdminToken     string        `yaml:"admin_token"`
	MaxPhotoBytes  int64         `yaml:"max_photo_bytes"`
}

// SessionConfig controls the session arena and the tokens bound to it.
type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	LockWait      time.Duration `yaml:"lock_wait"`
	LockLease     time.Duration `yaml:"lock_lease"`
	SigningKey    string        `yaml:"signing_key"`
	TokenIssuer   string        `yaml:"token_issuer"`
	TokenAudience string        `yaml:"token_audience"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

// Verifier modes.
const (
	VerifierPasskey   = "passkey"
	VerifierDeviceKey = "devicekey"
)

// WebAuthnConfig describes the relying party.
type WebAuthnConfig struct {
	RPID          string        `yaml:"rp_id"`
	RPDisplayName string        `yaml:"rp_display_name"`
	Origins       []string      `yaml:"origins"`
	Timeout       time.Duration `yaml:"timeout"`
	Verifier      string        `yaml:"verifier"`
}

// RedisConfig enables the shared session arena when URL is set.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig enables the durable record store when DSN is set.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// KafkaConfig enables the audit sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	AuditTopic  string   `yaml:"audit_topic"`
	AuditBuffer int      `yaml:"audit_buffer"`
}

type TracingConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// RateLimitConfig bounds session bootstrap per client address and
// credential verification per session. A zero limit disables that rule.
type RateLimitConfig struct {
	Disabled         bool          `yaml:"disabled"`
	SessionsPerIP    int           `yaml:"sessions_per_ip"`
	VerifyPerSession int           `yaml:"verify_per_session"`
	Window           time.Duration `yaml:"window"`
}

type PrivacyConfig struct {
	SubjectHashKey string `yaml:"subject_hash_key"`
}

// IsProduction reports whether development shortcuts must be refused.
func (c Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Default returns a configuration suitable for local development.
func Default() Config {
	return Config{
		Server: Server{
			Addr:           ":8080",
			Environment:    "development",
			LogLevel:       "info",
			RequestTimeout: 30 * time.Second,
			MaxPhotoBytes:  8 << 20,
		},
		Session: SessionConfig{
			IdleTTL:       30 * time.Minute,
			LockWait:      5 * time.Second,
			LockLease:     15 * time.Second,
			SigningKey:    devSigningKey,
			TokenIssuer:   "farmerid",
			TokenAudience: "farmerid-enrollment",
			TokenTTL:      time.Hour,
		},
		WebAuthn: WebAuthnConfig{
			RPID:          "localhost",
			RPDisplayName: "Farmer Registry",
			Origins:       []string{"http://localhost:8080"},
			Timeout:       60 * time.Second,
			Verifier:      VerifierPasskey,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Kafka: KafkaConfig{
			AuditTopic:  "farmerid.enrollment.audit",
			AuditBuffer: 1024,
		},
		Tracing: TracingConfig{
			ServiceName: "farmerid",
			SampleRatio: 1,
		},
		Limits: RateLimitConfig{
			SessionsPerIP:    30,
			VerifyPerSession: 10,
			Window:           time.Minute,
		},
	}
}
