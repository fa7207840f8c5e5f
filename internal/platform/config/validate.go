package config

import (
	"errors"
	"fmt"
	"net/url"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}

	if c.Session.IdleTTL <= 0 {
		return errors.New("session.idle_ttl must be positive")
	}
	if c.Session.LockWait <= 0 || c.Session.LockLease <= 0 {
		return errors.New("session.lock_wait and session.lock_lease must be positive")
	}
	if len(c.Session.SigningKey) < 32 {
		return errors.New("session.signing_key must be at least 32 bytes")
	}
	if c.IsProduction() && c.Session.SigningKey == devSigningKey {
		return errors.New("session.signing_key must be overridden in production")
	}
	if c.Session.TokenTTL <= 0 {
		return errors.New("session.token_ttl must be positive")
	}

	if c.WebAuthn.RPID == "" {
		return errors.New("webauthn.rp_id must be set")
	}
	if len(c.WebAuthn.Origins) == 0 {
		return errors.New("webauthn.origins must list at least one origin")
	}
	for _, origin := range c.WebAuthn.Origins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid webauthn origin %q", origin)
		}
	}
	switch c.WebAuthn.Verifier {
	case VerifierPasskey, VerifierDeviceKey:
	default:
		return fmt.Errorf("webauthn.verifier must be %q or %q, got %q", VerifierPasskey, VerifierDeviceKey, c.WebAuthn.Verifier)
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.AuditTopic == "" {
		return errors.New("kafka.audit_topic must be set when brokers are configured")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.New("tracing.sample_ratio must be within [0, 1]")
	}
	if c.Limits.SessionsPerIP < 0 || c.Limits.VerifyPerSession < 0 {
		return errors.New("rate_limit limits must not be negative")
	}
	if !c.Limits.Disabled && c.Limits.Window <= 0 {
		return errors.New("rate_limit.window must be positive")
	}
	if k := len(c.Privacy.SubjectHashKey); k > 64 {
		return errors.New("privacy.subject_hash_key must be at most 64 bytes")
	}
	return nil
}
