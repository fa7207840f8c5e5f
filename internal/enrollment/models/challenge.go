package models

// RelyingParty identifies the registry to the authenticator.
type RelyingParty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserEntity is the per-ceremony user descriptor. ID is a fresh random handle
// for every ceremony so registrations cannot be correlated across sessions.
type UserEntity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type CredentialParameter struct {
	Type string `json:"type"`
	Alg  int    `json:"alg"`
}

// CreationOptions mirrors PublicKeyCredentialCreationOptions.
type CreationOptions struct {
	Challenge        string                `json:"challenge"`
	RP               RelyingParty          `json:"rp"`
	User             UserEntity            `json:"user"`
	PubKeyCredParams []CredentialParameter `json:"pubKeyCredParams"`
	Timeout          int                   `json:"timeout"`
	Attestation      string                `json:"attestation"`
}

// ApplicantHints optionally personalise the user descriptor.
type ApplicantHints struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Challenge is what the issuer hands back: the raw challenge bytes, the
// ceremony user handle, and the options to forward to the client.
type Challenge struct {
	Value      []byte
	UserHandle []byte
	Options    CreationOptions
}
