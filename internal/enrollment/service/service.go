// Package service implements the enrollment session state machine.
//
// Every operation runs inside SessionStore.Execute, which serialises all
// writers of one session. Operations mutate the session only on success,
// except VerifyPossession, which consumes the pending challenge whatever the
// outcome.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/asaskevich/govalidator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"farmerid/internal/enrollment/device"
	"farmerid/internal/enrollment/metrics"
	"farmerid/internal/enrollment/models"
	"farmerid/internal/enrollment/store/record"
	id "farmerid/pkg/domain"
	dErrors "farmerid/pkg/domain-errors"
	audit "farmerid/pkg/platform/audit"
	"farmerid/pkg/platform/sentinel"
	"farmerid/pkg/requestcontext"
)

const tracerName = "farmerid/internal/enrollment/service"

// Service orchestrates enrollment sessions.
type Service struct {
	sessions  SessionStore
	records   RecordStore
	issuer    ChallengeIssuer
	verifier  CredentialVerifier
	committer *Committer
	tx        Transactor

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	hasher         SubjectHasher
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithTransactor makes sequence allocation and record persistence atomic.
// Without it they run as two independent store calls.
func WithTransactor(tx Transactor) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithSubjectHasher enables pseudonymised national IDs in audit events.
func WithSubjectHasher(h SubjectHasher) Option {
	return func(s *Service) {
		s.hasher = h
	}
}

// New constructs a Service.
func New(sessions SessionStore, records RecordStore, issuer ChallengeIssuer, verifier CredentialVerifier, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		records:  records,
		issuer:   issuer,
		verifier: verifier,
		tx:       record.NoTx{},
		logger:   slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.committer = NewCommitter(records, s.tx)
	return s
}

// StartSession opens a Fresh session and records the capture device.
func (s *Service) StartSession(ctx context.Context, userAgent string) (_ *models.Session, err error) {
	sessionID := id.NewSessionID()
	ctx, span := s.start(ctx, "StartSession", sessionID)
	defer func() { s.finish(ctx, span, "start_session", sessionID, err) }()

	sess, err := s.sessions.Execute(ctx, sessionID, func(sess *models.Session) error {
		sess.CaptureDevice = device.DisplayName(userAgent)
		return nil
	})
	if err != nil {
		return nil, s.storeError(err)
	}
	s.emit(ctx, audit.EventSessionStarted, sessionID)
	return sess, nil
}

// Session returns a snapshot of the session state.
func (s *Service) Session(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, s.storeError(err)
	}
	return sess, nil
}

// SubmitLocation stores a geolocation claim. Re-submission overwrites the
// previous claim; gate state is unaffected.
func (s *Service) SubmitLocation(ctx context.Context, sessionID id.SessionID, latitude, longitude *float64) (_ *models.Location, err error) {
	ctx, span := s.start(ctx, "SubmitLocation", sessionID)
	defer func() { s.finish(ctx, span, "submit_location", sessionID, err) }()

	if err := validateCoordinates(latitude, longitude); err != nil {
		return nil, err
	}

	loc := models.Location{
		Latitude:   *latitude,
		Longitude:  *longitude,
		CapturedAt: requestcontext.Now(ctx),
	}
	_, err = s.sessions.Execute(ctx, sessionID, func(sess *models.Session) error {
		captured := loc
		sess.Location = &captured
		sess.Set(models.FlagLocationCaptured)
		sess.UpdatedAt = loc.CapturedAt
		return nil
	})
	if err != nil {
		return nil, s.storeError(err)
	}
	s.emit(ctx, audit.EventLocationCaptured, sessionID)
	return &loc, nil
}

func validateCoordinates(latitude, longitude *float64) error {
	if latitude == nil || longitude == nil {
		return dErrors.New(dErrors.CodeInvalidEvidence, "invalid location data")
	}
	lat, lon := *latitude, *longitude
	if math.IsNaN(lat) || math.IsNaN(lon) ||
		!govalidator.InRangeFloat64(lat, -90, 90) || !govalidator.InRangeFloat64(lon, -180, 180) {
		return dErrors.New(dErrors.CodeInvalidEvidence, "invalid location data")
	}
	return nil
}

// SubmitPhoto stores the photographic claim, replacing any earlier one.
func (s *Service) SubmitPhoto(ctx context.Context, sessionID id.SessionID, payload []byte) (err error) {
	ctx, span := s.start(ctx, "SubmitPhoto", sessionID)
	defer func() { s.finish(ctx, span, "submit_photo", sessionID, err) }()

	if len(payload) == 0 {
		return dErrors.New(dErrors.CodeInvalidEvidence, "no image data received")
	}
	photo := append([]byte(nil), payload...)
	span.SetAttributes(attribute.Int("photo_bytes", len(photo)))

	now := requestcontext.Now(ctx)
	_, err = s.sessions.Execute(ctx, sessionID, func(sess *models.Session) error {
		sess.Photo = photo
		sess.Set(models.FlagPhotoCaptured)
		sess.UpdatedAt = now
		return nil
	})
	if err != nil {
		return s.storeError(err)
	}
	s.emit(ctx, audit.EventPhotoCaptured, sessionID)
	return nil
}

// IssueChallenge replaces any pending challenge with a fresh one and returns
// the options for the client's authenticator ceremony.
func (s *Service) IssueChallenge(ctx context.Context, sessionID id.SessionID, hints models.ApplicantHints) (_ *models.CreationOptions, err error) {
	ctx, span := s.start(ctx, "IssueChallenge", sessionID)
	defer func() { s.finish(ctx, span, "issue_challenge", sessionID, err) }()

	challenge, err := s.issuer.Issue(sessionID, hints)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate challenge")
	}

	now := requestcontext.Now(ctx)
	_, err = s.sessions.Execute(ctx, sessionID, func(sess *models.Session) error {
		sess.PendingChallenge = &models.PendingChallenge{
			Value:      challenge.Options.Challenge,
			UserHandle: challenge.UserHandle,
			UserName:   challenge.Options.User.Name,
			IssuedAt:   now,
		}
		sess.Set(models.FlagChallengeIssued)
		sess.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, s.storeError(err)
	}
	s.emit(ctx, audit.EventChallengeIssued, sessionID)
	return &challenge.Options, nil
}

// VerifyPossession consumes the pending challenge and checks response against
// it. The challenge is gone afterwards whether or not verification passed.
func (s *Service) VerifyPossession(ctx context.Context, sessionID id.SessionID, response []byte) (_ string, err error) {
	ctx, span := s.start(ctx, "VerifyPossession", sessionID)
	defer func() { s.finish(ctx, span, "verify_possession", sessionID, err) }()

	if len(response) == 0 || !json.Valid(response) {
		return "", dErrors.New(dErrors.CodeInvalidEvidence, "malformed credential response")
	}

	var credentialID string
	now := requestcontext.Now(ctx)
	_, err = s.sessions.Execute(ctx, sessionID, func(sess *models.Session) error {
		pending := sess.TakeChallenge()
		if pending == nil {
			return dErrors.New(dErrors.CodeNoChallengeIssued, "no challenge issued for this session")
		}
		sess.UpdatedAt = now

		var verifyErr error
		credentialID, verifyErr = s.verify(ctx, *pending, response)
		if verifyErr != nil {
			return dErrors.Wrap(verifyErr, dErrors.CodeVerificationFailed, "credential verification failed")
		}
		sess.CredentialID = credentialID
		sess.Set(models.FlagPossessionProven)
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeVerificationFailed) {
			s.emit(ctx, audit.EventPossessionFailed, sessionID, withDecision("denied"))
		}
		return "", s.storeError(err)
	}
	s.emit(ctx, audit.EventPossessionVerified, sessionID, withDecision("granted"))
	return credentialID, nil
}

func (s *Service) verify(ctx context.Context, challenge models.PendingChallenge, response []byte) (string, error) {
	if s.metrics != nil {
		defer s.metrics.ObserveVerify(time.Now())
	}
	return s.verifier.Verify(ctx, challenge, response)
}

// Commit builds and persists the enrollment record, then fully resets the
// session. It is refused until possession has been proven.
func (s *Service) Commit(ctx context.Context, sessionID id.SessionID, identity models.Identity) (_ *models.EnrollmentRecord, err error) {
	ctx, span := s.start(ctx, "Commit", sessionID)
	defer func() { s.finish(ctx, span, "commit", sessionID, err) }()
	if s.metrics != nil {
		defer s.metrics.ObserveCommit(time.Now())
	}

	var rec *models.EnrollmentRecord
	_, err = s.sessions.Execute(ctx, sessionID, func(sess *models.Session) error {
		if !sess.Has(models.FlagPossessionProven) {
			return dErrors.New(dErrors.CodeBiometricRequired, "biometric verification required")
		}
		var commitErr error
		rec, commitErr = s.committer.Commit(ctx, sess, identity)
		return commitErr
	})
	if err != nil {
		return nil, s.storeError(err)
	}

	span.SetAttributes(attribute.String("record_id", rec.ID.String()))
	if s.metrics != nil {
		s.metrics.IncrementRecordsCommitted()
	}
	s.emit(ctx, audit.EventRecordCommitted, sessionID,
		withRecord(rec.ID),
		withSubject(s.hasher, identity.NationalID),
	)
	return rec, nil
}

// storeError passes coded errors through and classifies anything else as a
// session store failure.
func (s *Service) storeError(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeStoreFailure, "session store unavailable")
}

func (s *Service) start(ctx context.Context, op string, sessionID id.SessionID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "enrollment."+op,
		trace.WithAttributes(attribute.String("session_id", sessionID.String())),
	)
}

func (s *Service) finish(ctx context.Context, span trace.Span, op string, sessionID id.SessionID, err error) {
	defer span.End()

	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, outcome)
	}

	args := []any{
		"operation", op,
		"outcome", outcome,
		"session_id", sessionID.String(),
		"request_id", requestcontext.RequestID(ctx),
	}
	switch {
	case err == nil:
		s.logger.DebugContext(ctx, "enrollment operation", args...)
	case isServerFault(outcome):
		s.logger.ErrorContext(ctx, "enrollment operation failed", append(args, "error", err)...)
	default:
		// The verifier's reason is logged here and never returned to clients.
		s.logger.WarnContext(ctx, "enrollment operation rejected", append(args, "error", err)...)
	}
}

func isServerFault(outcome string) bool {
	switch dErrors.Code(outcome) {
	case dErrors.CodeStoreFailure, dErrors.CodeInternal, dErrors.CodeUnavailable:
		return true
	}
	return false
}
