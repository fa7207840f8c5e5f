package challenge

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmerid/internal/enrollment/models"
	id "farmerid/pkg/domain"
)

func TestIssuer_Issue(t *testing.T) {
	issuer := NewIssuer("farmerid.example", "eFarmerID System", 60*time.Second)

	t.Run("challenge carries at least 256 bits", func(t *testing.T) {
		c, err := issuer.Issue(id.NewSessionID(), models.ApplicantHints{})
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(c.Options.Challenge)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(raw), 32)
		assert.Equal(t, raw, c.Value)
	})

	t.Run("options follow the registration shape", func(t *testing.T) {
		c, err := issuer.Issue(id.NewSessionID(), models.ApplicantHints{})
		require.NoError(t, err)

		assert.Equal(t, models.RelyingParty{ID: "farmerid.example", Name: "eFarmerID System"}, c.Options.RP)
		assert.Equal(t, "farmer@example.com", c.Options.User.Name)
		assert.Equal(t, "Farmer User", c.Options.User.DisplayName)
		assert.Equal(t, 60000, c.Options.Timeout)
		assert.Equal(t, "direct", c.Options.Attestation)
		assert.Equal(t, []models.CredentialParameter{
			{Type: "public-key", Alg: -7},
			{Type: "public-key", Alg: -257},
		}, c.Options.PubKeyCredParams)
	})

	t.Run("applicant hints personalise the user entity", func(t *testing.T) {
		c, err := issuer.Issue(id.NewSessionID(), models.ApplicantHints{
			Email: "wanjiru@example.com", FirstName: "Wanjiru", LastName: "Kamau",
		})
		require.NoError(t, err)
		assert.Equal(t, "wanjiru@example.com", c.Options.User.Name)
		assert.Equal(t, "Wanjiru Kamau", c.Options.User.DisplayName)
	})

	t.Run("display name falls back to the email address", func(t *testing.T) {
		c, err := issuer.Issue(id.NewSessionID(), models.ApplicantHints{Email: "otieno.ouma@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "Otieno Ouma", c.Options.User.DisplayName)
	})

	t.Run("challenges and user handles never repeat", func(t *testing.T) {
		sessionID := id.NewSessionID()
		seenChallenges := map[string]bool{}
		seenHandles := map[string]bool{}
		for range 200 {
			c, err := issuer.Issue(sessionID, models.ApplicantHints{})
			require.NoError(t, err)
			require.False(t, seenChallenges[c.Options.Challenge])
			require.False(t, seenHandles[c.Options.User.ID])
			seenChallenges[c.Options.Challenge] = true
			seenHandles[c.Options.User.ID] = true
		}
	})

	t.Run("user handle does not embed the session id", func(t *testing.T) {
		sessionID := id.NewSessionID()
		c, err := issuer.Issue(sessionID, models.ApplicantHints{})
		require.NoError(t, err)
		assert.NotContains(t, c.Options.User.ID, sessionID.String())
		assert.NotEqual(t, sessionID[:], c.UserHandle)
	})
}
