// Package devicekey verifies possession proofs from managed capture devices
// that hold a P-256 key but do not run a WebAuthn authenticator.
//
// The device signs the SHA-256 of its client data JSON, which embeds the
// challenge and the origin it was served from:
//
//	{"type":"enrollment.create","challenge":"<base64url>","origin":"https://..."}
package devicekey

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"farmerid/internal/enrollment/models"
)

const ceremonyType = "enrollment.create"

var (
	errMalformed         = errors.New("malformed device response")
	errCeremonyType      = errors.New("unexpected ceremony type")
	errChallengeMismatch = errors.New("challenge mismatch")
	errOriginMismatch    = errors.New("origin not allowed")
	errUnsupportedKey    = errors.New("unsupported public key")
	errBadSignature      = errors.New("signature invalid")
)

// Response is the wire form posted by a capture device. Binary members are
// base64url without padding.
type Response struct {
	CredentialID   string `json:"credentialId"`
	PublicKey      string `json:"publicKey"`
	ClientDataJSON string `json:"clientDataJSON"`
	Signature      string `json:"signature"`
}

type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

type Verifier struct {
	origins []string
}

func New(origins []string) *Verifier {
	return &Verifier{origins: origins}
}

// Verify returns the credential ID on success. The returned error names the
// failing check for logs; callers must not forward it to clients.
func (v *Verifier) Verify(_ context.Context, challenge models.PendingChallenge, response []byte) (string, error) {
	var resp Response
	if err := json.Unmarshal(response, &resp); err != nil {
		return "", errMalformed
	}
	if strings.TrimSpace(resp.CredentialID) == "" {
		return "", errMalformed
	}

	rawClientData, err := base64.RawURLEncoding.DecodeString(resp.ClientDataJSON)
	if err != nil {
		return "", errMalformed
	}
	var cd clientData
	if err := json.Unmarshal(rawClientData, &cd); err != nil {
		return "", errMalformed
	}

	if cd.Type != ceremonyType {
		return "", errCeremonyType
	}
	if subtle.ConstantTimeCompare([]byte(cd.Challenge), []byte(challenge.Value)) != 1 {
		return "", errChallengeMismatch
	}
	if !slices.Contains(v.origins, cd.Origin) {
		return "", errOriginMismatch
	}

	pub, err := parsePublicKey(resp.PublicKey)
	if err != nil {
		return "", err
	}
	sig, err := base64.RawURLEncoding.DecodeString(resp.Signature)
	if err != nil {
		return "", errMalformed
	}
	digest := sha256.Sum256(rawClientData)
	if !ecdsa.VerifyASN1(pub, digest[:], sig) {
		return "", errBadSignature
	}
	return resp.CredentialID, nil
}

func parsePublicKey(encoded string) (*ecdsa.PublicKey, error) {
	der, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errMalformed
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, errMalformed
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, errUnsupportedKey
	}
	return pub, nil
}
