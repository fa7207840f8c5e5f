package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"farmerid/internal/enrollment/models"
	"farmerid/internal/platform/middleware"
	"farmerid/internal/platform/ratelimit"
	id "farmerid/pkg/domain"
	dErrors "farmerid/pkg/domain-errors"
	"farmerid/pkg/platform/httputil"
	"farmerid/pkg/platform/middleware/admin"
	strutil "farmerid/pkg/platform/strings"
	"farmerid/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the enrollment operations exposed over HTTP.
type Service interface {
	StartSession(ctx context.Context, userAgent string) (*models.Session, error)
	Session(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	SubmitLocation(ctx context.Context, sessionID id.SessionID, latitude, longitude *float64) (*models.Location, error)
	SubmitPhoto(ctx context.Context, sessionID id.SessionID, payload []byte) error
	IssueChallenge(ctx context.Context, sessionID id.SessionID, hints models.ApplicantHints) (*models.CreationOptions, error)
	VerifyPossession(ctx context.Context, sessionID id.SessionID, response []byte) (string, error)
	Commit(ctx context.Context, sessionID id.SessionID, identity models.Identity) (*models.EnrollmentRecord, error)
	GetRecord(ctx context.Context, recordID id.RecordID) (*models.EnrollmentRecord, error)
	ListRecords(ctx context.Context, recordIDs []id.RecordID) ([]*models.EnrollmentRecord, error)
}

// SessionTokens mints and resolves the bearer tokens that bind a client to
// its enrollment session.
type SessionTokens interface {
	GenerateSessionToken(sessionID id.SessionID, expiresIn time.Duration) (string, error)
	ValidateSessionToken(tokenString string) (id.SessionID, error)
}

const (
	defaultMaxPhotoBytes    = 8 << 20
	defaultMaxResponseBytes = 64 << 10
	maxListedRecords        = 100
)

// Handler handles enrollment endpoints.
type Handler struct {
	service    Service
	tokens     SessionTokens
	logger     *slog.Logger
	tokenTTL   time.Duration
	adminToken string

	maxPhotoBytes    int64
	maxResponseBytes int64

	limiter       *ratelimit.Limiter
	bootstrapRule ratelimit.Rule
	verifyRule    ratelimit.Rule
}

type Option func(*Handler)

// WithAdminToken enables the read-only record routes.
func WithAdminToken(token string) Option {
	return func(h *Handler) {
		h.adminToken = token
	}
}

// WithMaxPhotoBytes caps the photo request body.
func WithMaxPhotoBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxPhotoBytes = n
		}
	}
}

// WithRateLimits throttles session bootstrap per client address and
// credential verification per session.
func WithRateLimits(limiter *ratelimit.Limiter, bootstrap, verify ratelimit.Rule) Option {
	return func(h *Handler) {
		h.limiter = limiter
		h.bootstrapRule = bootstrap
		h.verifyRule = verify
	}
}

// New creates a new enrollment Handler.
func New(service Service, tokens SessionTokens, logger *slog.Logger, tokenTTL time.Duration, opts ...Option) *Handler {
	h := &Handler{
		service:          service,
		tokens:           tokens,
		logger:           logger,
		tokenTTL:         tokenTTL,
		maxPhotoBytes:    defaultMaxPhotoBytes,
		maxResponseBytes: defaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the enrollment and record routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.With(h.limiter.PerClientIP("sessions", h.bootstrapRule)).
			Post("/enrollment/sessions", h.handleStartSession)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(h.tokens, h.logger))
			r.Get("/enrollment/session", h.handleSessionStatus)
			r.Post("/enrollment/location", h.handleSubmitLocation)
			r.Post("/enrollment/photo", h.handleSubmitPhoto)
			r.Post("/enrollment/credential/challenge", h.handleIssueChallenge)
			r.With(h.limiter.PerSession("verify", h.verifyRule)).
				Post("/enrollment/credential/verify", h.handleVerifyPossession)
			r.Post("/enrollment/commit", h.handleCommit)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Get("/records", h.handleListRecords)
		r.Get("/records/{id}", h.handleGetRecord)
	})
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := h.service.StartSession(ctx, requestcontext.UserAgent(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	token, err := h.tokens.GenerateSessionToken(sess.ID, h.tokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to sign session token",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session token"))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, startSessionResponse{
		SessionID:     sess.ID.String(),
		Token:         token,
		TokenType:     "Bearer",
		ExpiresIn:     int(h.tokenTTL.Seconds()),
		CaptureDevice: sess.CaptureDevice,
	})
}

func (h *Handler) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.service.Session(ctx, requestcontext.SessionID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(sess))
}

func (h *Handler) handleSubmitLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req locationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidEvidence, "invalid location data"))
		return
	}

	loc, err := h.service.SubmitLocation(ctx, requestcontext.SessionID(ctx), req.Latitude, req.Longitude)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{
		Message: "Location captured successfully",
		Data:    loc,
	})
}

func (h *Handler) handleSubmitPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxPhotoBytes)

	var req photoRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidEvidence, "image too large"))
			return
		}
		httputil.WriteError(w, err)
		return
	}

	payload, err := decodeImage(req.Image)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.SubmitPhoto(ctx, requestcontext.SessionID(ctx), payload); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Photo saved successfully"})
}

func (h *Handler) handleIssueChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Hints are optional; an empty body is allowed.
	var hints models.ApplicantHints
	if err := httputil.DecodeJSON(r, &hints); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, err)
		return
	}
	sanitize(&hints)

	opts, err := h.service.IssueChallenge(ctx, requestcontext.SessionID(ctx), hints)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, challengeResponse{Options: opts})
}

func (h *Handler) handleVerifyPossession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxResponseBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidEvidence, "malformed credential response"))
		return
	}

	credentialID, err := h.service.VerifyPossession(ctx, requestcontext.SessionID(ctx), body)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verifyResponse{
		Message:      "Biometric registration successful",
		CredentialID: credentialID,
	})
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var identity models.Identity
	if err := httputil.DecodeJSON(r, &identity); err != nil {
		httputil.WriteError(w, err)
		return
	}
	sanitize(&identity)

	rec, err := h.service.Commit(ctx, requestcontext.SessionID(ctx), identity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, commitResponse{
		Message:  "Farmer registered successfully",
		FarmerID: rec.ID.String(),
		Data:     toRecordResponse(rec),
	})
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.service.GetRecord(r.Context(), recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recordEnvelope{Record: toRecordResponse(rec)})
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	raw := strutil.SplitList(r.URL.Query().Get("ids"), ",")
	recordIDs := make([]id.RecordID, 0, len(raw))
	for _, s := range raw {
		recordID, err := id.ParseRecordID(s)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		recordIDs = append(recordIDs, recordID)
	}
	if len(recordIDs) > maxListedRecords {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "too many record IDs"))
		return
	}

	recs, err := h.service.ListRecords(r.Context(), recordIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordResponse(rec))
	}
	httputil.WriteJSON(w, http.StatusOK, recordsEnvelope{Records: out})
}
