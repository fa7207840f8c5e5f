package service

import (
	"context"

	id "farmerid/pkg/domain"
	audit "farmerid/pkg/platform/audit"
	"farmerid/pkg/requestcontext"
)

type eventOption func(*audit.Event)

func withDecision(decision string) eventOption {
	return func(e *audit.Event) {
		e.Decision = decision
	}
}

func withRecord(recordID id.RecordID) eventOption {
	return func(e *audit.Event) {
		e.RecordID = recordID.String()
	}
}

// withSubject attaches the pseudonymised national ID. Without a hasher the
// event carries no subject at all.
func withSubject(h SubjectHasher, nationalID string) eventOption {
	return func(e *audit.Event) {
		if h == nil {
			return
		}
		e.SubjectIDHash = h.HashSubject(nationalID)
	}
}

// emit publishes best-effort. Audit failures never fail an enrollment
// operation.
func (s *Service) emit(ctx context.Context, action audit.AuditEvent, sessionID id.SessionID, opts ...eventOption) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.Event{
		Category:  action.Category(),
		Timestamp: requestcontext.Now(ctx),
		SessionID: sessionID.String(),
		Action:    string(action),
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
	}
	for _, opt := range opts {
		opt(&event)
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action,
			"session_id", sessionID.String(),
			"error", err,
		)
	}
}
