package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal or registry significance,
	// such as a committed enrollment record.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to fraud and abuse monitoring.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine progress through the enrollment flow.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	SessionID string        `json:"session_id"`
	Action    string        `json:"action"`
	Decision  string        `json:"decision,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	RecordID  string        `json:"record_id,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	ClientIP  string        `json:"client_ip,omitempty"`
	// SubjectIDHash is a keyed hash of the applicant's national ID, so audit
	// consumers can correlate enrollments without holding the raw identifier.
	SubjectIDHash string `json:"subject_id_hash,omitempty"`
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

type AuditEvent string

const (
	EventSessionStarted     AuditEvent = "session_started"
	EventLocationCaptured   AuditEvent = "location_captured"
	EventPhotoCaptured      AuditEvent = "photo_captured"
	EventChallengeIssued    AuditEvent = "challenge_issued"
	EventPossessionVerified AuditEvent = "possession_verified"
	EventPossessionFailed   AuditEvent = "possession_failed"
	EventRecordCommitted    AuditEvent = "record_committed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRecordCommitted: CategoryCompliance,

	EventPossessionFailed:   CategorySecurity,
	EventPossessionVerified: CategorySecurity,

	EventSessionStarted:   CategoryOperations,
	EventLocationCaptured: CategoryOperations,
	EventPhotoCaptured:    CategoryOperations,
	EventChallengeIssued:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
