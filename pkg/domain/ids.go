package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "farmerid/pkg/domain-errors"
)

// SessionID identifies one enrollment attempt. It is minted by the transport
// layer and carried inside the signed session token.
type SessionID uuid.UUID

// NewSessionID returns a random session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

func (id SessionID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id SessionID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *SessionID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// ParseSessionID validates s at a trust boundary.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session ID")
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be nil")
	}
	return u, nil
}

// RecordID is the public identifier of a committed enrollment record,
// formatted as F-<YYYYMMDD>-<sequence>.
type RecordID string

var recordIDPattern = regexp.MustCompile(`^F-\d{8}-\d{4,}$`)

// NewRecordID formats the identifier for the given day key (YYYYMMDD) and
// sequence number.
func NewRecordID(day string, sequence int64) RecordID {
	return RecordID(fmt.Sprintf("F-%s-%04d", day, sequence))
}

func (id RecordID) String() string {
	return string(id)
}

// ParseRecordID validates s at a trust boundary.
func ParseRecordID(s string) (RecordID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "record ID required")
	}
	if !recordIDPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid record ID")
	}
	return RecordID(s), nil
}
