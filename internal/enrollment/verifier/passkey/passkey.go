// Package passkey verifies WebAuthn registration responses against the
// session's pending challenge using go-webauthn.
package passkey

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"farmerid/internal/enrollment/models"
)

var errEmptyResponse = errors.New("empty credential response")

type Verifier struct {
	webAuthn *webauthn.WebAuthn
	timeout  time.Duration
}

// New builds a verifier bound to one relying party. Responses whose client
// data origin is not in origins are rejected.
func New(rpID, rpDisplayName string, origins []string, timeout time.Duration) (*Verifier, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          rpID,
		RPDisplayName: rpDisplayName,
		RPOrigins:     origins,
	})
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}
	return &Verifier{webAuthn: wa, timeout: timeout}, nil
}

// Verify checks the attestation in response and returns the new credential
// ID (base64url). The challenge comparison, origin/RP hash checks and the
// attestation signature are performed by go-webauthn.
func (v *Verifier) Verify(_ context.Context, challenge models.PendingChallenge, response []byte) (string, error) {
	if len(bytes.TrimSpace(response)) == 0 {
		return "", errEmptyResponse
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return "", fmt.Errorf("parse credential response: %w", err)
	}

	user := ceremonyUser{handle: challenge.UserHandle, name: challenge.UserName}
	session := webauthn.SessionData{
		Challenge:        challenge.Value,
		UserID:           challenge.UserHandle,
		UserVerification: protocol.VerificationPreferred,
	}
	if v.timeout > 0 && !challenge.IssuedAt.IsZero() {
		session.Expires = challenge.IssuedAt.Add(v.timeout)
	}

	credential, err := v.webAuthn.CreateCredential(user, session, parsed)
	if err != nil {
		return "", fmt.Errorf("verify attestation: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(credential.ID), nil
}

// ceremonyUser is the throwaway user entity of one registration ceremony.
type ceremonyUser struct {
	handle []byte
	name   string
}

func (u ceremonyUser) WebAuthnID() []byte                         { return u.handle }
func (u ceremonyUser) WebAuthnName() string                       { return u.name }
func (u ceremonyUser) WebAuthnDisplayName() string                { return u.name }
func (u ceremonyUser) WebAuthnCredentials() []webauthn.Credential { return nil }
