package devicekey

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Sign produces the response a capture device posts for challenge. It is the
// device-side half of Verify, used by the field kit tooling and in tests.
func Sign(key *ecdsa.PrivateKey, credentialID, challenge, origin string) ([]byte, error) {
	return sign(key, credentialID, ceremonyType, challenge, origin)
}

func sign(key *ecdsa.PrivateKey, credentialID, typ, challenge, origin string) ([]byte, error) {
	cd, err := json.Marshal(clientData{Type: typ, Challenge: challenge, Origin: origin})
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(cd)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign client data: %w", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return json.Marshal(Response{
		CredentialID:   credentialID,
		PublicKey:      base64.RawURLEncoding.EncodeToString(der),
		ClientDataJSON: base64.RawURLEncoding.EncodeToString(cd),
		Signature:      base64.RawURLEncoding.EncodeToString(sig),
	})
}
