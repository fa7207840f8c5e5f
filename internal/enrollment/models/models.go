package models

import (
	"time"

	id "farmerid/pkg/domain"
)

// Flag is one bit of gate state. Flags only accumulate until a commit resets
// the session; location/photo capture and the credential ceremony advance
// independently.
type Flag uint8

const (
	FlagLocationCaptured Flag = 1 << iota
	FlagPhotoCaptured
	FlagChallengeIssued
	FlagPossessionProven
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagLocationCaptured, "location_captured"},
	{FlagPhotoCaptured, "photo_captured"},
	{FlagChallengeIssued, "challenge_issued"},
	{FlagPossessionProven, "possession_proven"},
}

// Names lists the set flags, or "fresh" when none are set.
func (f Flag) Names() []string {
	var out []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			out = append(out, fn.name)
		}
	}
	if len(out) == 0 {
		return []string{"fresh"}
	}
	return out
}

// Location is a geolocation claim with its capture time.
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CapturedAt time.Time `json:"timestamp"`
}

// PendingChallenge is the single live challenge of a session. Value is the
// base64url (unpadded) encoding of the random challenge bytes, which is the
// form authenticators echo back in client data.
type PendingChallenge struct {
	Value      string    `json:"value"`
	UserHandle []byte    `json:"user_handle"`
	UserName   string    `json:"user_name"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Session is the server-held state of one enrollment attempt.
type Session struct {
	ID               id.SessionID      `json:"id"`
	Flags            Flag              `json:"flags"`
	PendingChallenge *PendingChallenge `json:"pending_challenge,omitempty"`
	Location         *Location         `json:"location,omitempty"`
	Photo            []byte            `json:"photo,omitempty"`
	CredentialID     string            `json:"credential_id,omitempty"`
	CaptureDevice    string            `json:"capture_device,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewSession returns a Fresh session.
func NewSession(sessionID id.SessionID, now time.Time) *Session {
	return &Session{
		ID:        sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) Has(f Flag) bool {
	return s.Flags&f == f
}

func (s *Session) Set(f Flag) {
	s.Flags |= f
}

// IsFresh reports whether the session holds no evidence and no gate state.
func (s *Session) IsFresh() bool {
	return s.Flags == 0 && s.PendingChallenge == nil && s.Location == nil &&
		len(s.Photo) == 0 && s.CredentialID == ""
}

// TakeChallenge clears and returns the pending challenge.
func (s *Session) TakeChallenge() *PendingChallenge {
	c := s.PendingChallenge
	s.PendingChallenge = nil
	return c
}

// Reset drops every piece of evidence and every gate flag. Capture device
// metadata belongs to the transport session and survives.
func (s *Session) Reset(now time.Time) {
	s.Flags = 0
	s.PendingChallenge = nil
	s.Location = nil
	s.Photo = nil
	s.CredentialID = ""
	s.UpdatedAt = now
}

// Clone returns a deep copy so callers can hold a snapshot outside the lock.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.PendingChallenge != nil {
		pc := *s.PendingChallenge
		pc.UserHandle = append([]byte(nil), s.PendingChallenge.UserHandle...)
		c.PendingChallenge = &pc
	}
	if s.Location != nil {
		loc := *s.Location
		c.Location = &loc
	}
	if s.Photo != nil {
		c.Photo = append([]byte(nil), s.Photo...)
	}
	return &c
}
