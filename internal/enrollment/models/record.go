package models

import (
	"strings"
	"time"

	id "farmerid/pkg/domain"
)

// Identity is the applicant data supplied at commit time.
type Identity struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	NationalID  string `json:"idNumber"`
	Phone       string `json:"phone"`
	County      string `json:"county"`
	Village     string `json:"village"`
	FarmSize    string `json:"farmSize"`
	PrimaryCrop string `json:"primaryCrop"`
}

// FirstMissing names the first absent required field, in commit check
// order, or returns "" when all are present.
func (i Identity) FirstMissing() string {
	required := []struct {
		name  string
		value string
	}{
		{"firstName", i.FirstName},
		{"lastName", i.LastName},
		{"idNumber", i.NationalID},
		{"phone", i.Phone},
		{"county", i.County},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return f.name
		}
	}
	return ""
}

// EnrollmentRecord is the immutable output of a successful commit.
type EnrollmentRecord struct {
	ID                id.RecordID `json:"id"`
	Identity          Identity    `json:"identity"`
	Location          Location    `json:"location"`
	Photo             []byte      `json:"photo"`
	CredentialID      string      `json:"credentialId"`
	BiometricVerified bool        `json:"biometricVerified"`
	CaptureDevice     string      `json:"captureDevice,omitempty"`
	RegisteredAt      time.Time   `json:"registrationDate"`
}

// RecordDay formats t as the day component of a record ID.
func RecordDay(t time.Time) string {
	return t.UTC().Format("20060102")
}
