package passkey

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmerid/internal/enrollment/models"
)

const (
	testRPID   = "farmerid.example"
	testOrigin = "https://farmerid.example"
)

func newVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := New(testRPID, "eFarmerID System", []string{testOrigin}, time.Minute)
	require.NoError(t, err)
	return v
}

func TestNew_RejectsIncompleteConfig(t *testing.T) {
	_, err := New("", "", nil, time.Minute)
	assert.Error(t, err)
}

func TestVerify_RejectsMalformedResponses(t *testing.T) {
	v := newVerifier(t)
	challenge := models.PendingChallenge{
		Value:      "q2VgxOZ0PZ6hWfhkQ9CFJbQ6mRAH0Kfa7eJxG7c0nOY",
		UserHandle: []byte("0123456789abcdef"),
		UserName:   "farmer@example.com",
		IssuedAt:   time.Now(),
	}

	tests := []struct {
		name     string
		response string
	}{
		{"empty", ""},
		{"not json", "{bad"},
		{"missing attestation", `{"id":"abc","rawId":"abc","type":"public-key","response":{}}`},
		{"garbage client data", `{"id":"abc","rawId":"abc","type":"public-key","response":{"clientDataJSON":"bm90LWpzb24","attestationObject":"AA"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credentialID, err := v.Verify(context.Background(), challenge, []byte(tt.response))
			assert.Error(t, err)
			assert.Empty(t, credentialID)
		})
	}
}

// attestation builds a registration response with "none" attestation, the
// way a platform authenticator answers navigator.credentials.create.
type attestation struct {
	challenge string
	origin    string
	rpID      string
	credID    []byte
}

func (a attestation) encode(t *testing.T, key *ecdsa.PrivateKey) []byte {
	t.Helper()
	enc, err := cbor.CTAP2EncOptions().EncMode()
	require.NoError(t, err)

	point, err := key.PublicKey.ECDH()
	require.NoError(t, err)
	raw := point.Bytes() // 0x04 || X || Y
	coseKey, err := enc.Marshal(map[int]any{
		1:  2,  // kty: EC2
		3:  -7, // alg: ES256
		-1: 1,  // crv: P-256
		-2: raw[1:33],
		-3: raw[33:65],
	})
	require.NoError(t, err)

	rpIDHash := sha256.Sum256([]byte(a.rpID))
	authData := append([]byte{}, rpIDHash[:]...)
	authData = append(authData, 0x45)                     // UP | UV | AT
	authData = binary.BigEndian.AppendUint32(authData, 0) // sign count
	authData = append(authData, make([]byte, 16)...)      // AAGUID
	authData = binary.BigEndian.AppendUint16(authData, uint16(len(a.credID)))
	authData = append(authData, a.credID...)
	authData = append(authData, coseKey...)

	attObj, err := enc.Marshal(map[string]any{
		"fmt":      "none",
		"attStmt":  map[string]any{},
		"authData": authData,
	})
	require.NoError(t, err)

	clientData, err := json.Marshal(map[string]any{
		"type":      "webauthn.create",
		"challenge": a.challenge,
		"origin":    a.origin,
	})
	require.NoError(t, err)

	b64 := base64.RawURLEncoding.EncodeToString
	body, err := json.Marshal(map[string]any{
		"id":    b64(a.credID),
		"rawId": b64(a.credID),
		"type":  "public-key",
		"response": map[string]string{
			"clientDataJSON":    b64(clientData),
			"attestationObject": b64(attObj),
		},
	})
	require.NoError(t, err)
	return body
}

func TestVerify_Attestation(t *testing.T) {
	v := newVerifier(t)
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	challenge := models.PendingChallenge{
		Value:      "q2VgxOZ0PZ6hWfhkQ9CFJbQ6mRAH0Kfa7eJxG7c0nOY",
		UserHandle: []byte("0123456789abcdef"),
		UserName:   "farmer@example.com",
		IssuedAt:   time.Now(),
	}
	credID := []byte("platform-credential-0001")
	valid := attestation{challenge: challenge.Value, origin: testOrigin, rpID: testRPID, credID: credID}

	t.Run("matching challenge yields the credential id", func(t *testing.T) {
		got, err := v.Verify(context.Background(), challenge, valid.encode(t, key))
		require.NoError(t, err)
		assert.Equal(t, base64.RawURLEncoding.EncodeToString(credID), got)
	})

	rejected := []struct {
		name   string
		mutate func(*attestation)
	}{
		{"response signed for another challenge", func(a *attestation) { a.challenge = "c29tZS1vdGhlci1jaGFsbGVuZ2U" }},
		{"foreign origin", func(a *attestation) { a.origin = "https://phish.example" }},
		{"foreign relying party", func(a *attestation) { a.rpID = "phish.example" }},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			got, err := v.Verify(context.Background(), challenge, a.encode(t, key))
			assert.Error(t, err)
			assert.Empty(t, got)
		})
	}

	t.Run("expired challenge", func(t *testing.T) {
		stale := challenge
		stale.IssuedAt = time.Now().Add(-2 * time.Minute)
		got, err := v.Verify(context.Background(), stale, valid.encode(t, key))
		assert.Error(t, err)
		assert.Empty(t, got)
	})
}
