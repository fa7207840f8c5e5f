// Package challenge mints registration challenges for the credential
// ceremony.
package challenge

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"

	"farmerid/internal/enrollment/models"
	id "farmerid/pkg/domain"
	"farmerid/pkg/email"
)

const (
	algES256 = -7
	algRS256 = -257

	defaultUserName    = "farmer@example.com"
	defaultFirstName   = "Farmer"
	defaultLastName    = "User"
	defaultAttestation = "direct"
)

// Issuer produces challenges. It holds no state beyond configuration; all
// randomness comes from the WebAuthn protocol package's CSPRNG helper.
type Issuer struct {
	rp      models.RelyingParty
	timeout time.Duration
}

func NewIssuer(rpID, rpName string, timeout time.Duration) *Issuer {
	return &Issuer{
		rp:      models.RelyingParty{ID: rpID, Name: rpName},
		timeout: timeout,
	}
}

// Issue returns a fresh 256-bit challenge and a ceremony-scoped user handle.
// The session ID is deliberately not embedded in the user handle.
func (i *Issuer) Issue(_ id.SessionID, hints models.ApplicantHints) (*models.Challenge, error) {
	value, err := protocol.CreateChallenge()
	if err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	handle := uuid.New()

	return &models.Challenge{
		Value:      []byte(value),
		UserHandle: handle[:],
		Options: models.CreationOptions{
			Challenge: base64.RawURLEncoding.EncodeToString(value),
			RP:        i.rp,
			User: models.UserEntity{
				ID:          base64.RawURLEncoding.EncodeToString(handle[:]),
				Name:        orDefault(hints.Email, defaultUserName),
				DisplayName: displayName(hints),
			},
			PubKeyCredParams: []models.CredentialParameter{
				{Type: "public-key", Alg: algES256},
				{Type: "public-key", Alg: algRS256},
			},
			Timeout:     int(i.timeout / time.Millisecond),
			Attestation: defaultAttestation,
		},
	}, nil
}

// displayName prefers explicit names, then names derived from the email
// address, then the generic defaults.
func displayName(hints models.ApplicantHints) string {
	first, last := hints.FirstName, hints.LastName
	if strings.TrimSpace(first) == "" && strings.TrimSpace(last) == "" && hints.Email != "" {
		first, last = email.NameParts(hints.Email)
	}
	return orDefault(first, defaultFirstName) + " " + orDefault(last, defaultLastName)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
