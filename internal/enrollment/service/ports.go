package service

import (
	"context"

	"farmerid/internal/enrollment/models"
	id "farmerid/pkg/domain"
	audit "farmerid/pkg/platform/audit"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks CredentialVerifier,RecordStore

// SessionStore is the session arena. Execute runs fn with exclusive access to
// the session (creating it if absent) and persists whatever fn left behind,
// returning fn's error.
type SessionStore interface {
	Execute(ctx context.Context, sessionID id.SessionID, fn func(*models.Session) error) (*models.Session, error)
	Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
}

// RecordStore is the durable record store. NextSequence must be atomic and
// monotonic per day.
type RecordStore interface {
	NextSequence(ctx context.Context, day string) (int64, error)
	Put(ctx context.Context, record *models.EnrollmentRecord) error
	FindByID(ctx context.Context, recordID id.RecordID) (*models.EnrollmentRecord, error)
	FindByIDs(ctx context.Context, recordIDs []id.RecordID) ([]*models.EnrollmentRecord, error)
}

// Transactor groups sequence allocation and record persistence.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ChallengeIssuer interface {
	Issue(sessionID id.SessionID, hints models.ApplicantHints) (*models.Challenge, error)
}

// CredentialVerifier validates a registration response against the challenge
// it was issued for and returns the credential ID.
type CredentialVerifier interface {
	Verify(ctx context.Context, challenge models.PendingChallenge, response []byte) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type SubjectHasher interface {
	HashSubject(value string) string
}
