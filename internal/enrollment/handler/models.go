package handler

import (
	"time"

	"farmerid/internal/enrollment/models"
)

type startSessionResponse struct {
	SessionID     string `json:"sessionId"`
	Token         string `json:"token"`
	TokenType     string `json:"tokenType"`
	ExpiresIn     int    `json:"expiresIn"`
	CaptureDevice string `json:"captureDevice"`
}

type statusResponse struct {
	SessionID        string           `json:"sessionId"`
	State            []string         `json:"state"`
	Location         *models.Location `json:"location,omitempty"`
	HasPhoto         bool             `json:"hasPhoto"`
	ChallengePending bool             `json:"challengePending"`
	CredentialID     string           `json:"credentialId,omitempty"`
	CaptureDevice    string           `json:"captureDevice,omitempty"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func toStatusResponse(sess *models.Session) statusResponse {
	return statusResponse{
		SessionID:        sess.ID.String(),
		State:            sess.Flags.Names(),
		Location:         sess.Location,
		HasPhoto:         len(sess.Photo) > 0,
		ChallengePending: sess.PendingChallenge != nil,
		CredentialID:     sess.CredentialID,
		CaptureDevice:    sess.CaptureDevice,
		UpdatedAt:        sess.UpdatedAt,
	}
}

// locationRequest uses pointers so an absent coordinate is distinguishable
// from the equator or the prime meridian.
type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// photoRequest carries the image as a data URL or bare base64.
type photoRequest struct {
	Image string `json:"image"`
}

type messageResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type challengeResponse struct {
	Options *models.CreationOptions `json:"options"`
}

type verifyResponse struct {
	Message      string `json:"message"`
	CredentialID string `json:"credentialId"`
}

type commitResponse struct {
	Message  string         `json:"message"`
	FarmerID string         `json:"farmerId"`
	Data     recordResponse `json:"data"`
}

// recordResponse flattens the identity into the record, matching the field
// names clients submit.
type recordResponse struct {
	ID string `json:"id"`
	models.Identity
	RegistrationDate  time.Time       `json:"registrationDate"`
	Location          models.Location `json:"location"`
	Photo             []byte          `json:"photo"`
	CredentialID      string          `json:"credentialId"`
	BiometricVerified bool            `json:"biometricVerified"`
	CaptureDevice     string          `json:"captureDevice,omitempty"`
}

func toRecordResponse(rec *models.EnrollmentRecord) recordResponse {
	return recordResponse{
		ID:                rec.ID.String(),
		Identity:          rec.Identity,
		RegistrationDate:  rec.RegisteredAt,
		Location:          rec.Location,
		Photo:             rec.Photo,
		CredentialID:      rec.CredentialID,
		BiometricVerified: rec.BiometricVerified,
		CaptureDevice:     rec.CaptureDevice,
	}
}

type recordEnvelope struct {
	Record recordResponse `json:"record"`
}

type recordsEnvelope struct {
	Records []recordResponse `json:"records"`
}
