package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"farmerid/internal/enrollment/challenge"
	"farmerid/internal/enrollment/handler"
	enrollmentmetrics "farmerid/internal/enrollment/metrics"
	"farmerid/internal/enrollment/service"
	"farmerid/internal/enrollment/store/record"
	"farmerid/internal/enrollment/store/session"
	"farmerid/internal/enrollment/verifier/devicekey"
	"farmerid/internal/enrollment/verifier/passkey"
	jwttoken "farmerid/internal/jwt_token"
	"farmerid/internal/platform/config"
	"farmerid/internal/platform/metrics"
	"farmerid/internal/platform/postgres"
	"farmerid/internal/platform/ratelimit"
	"farmerid/internal/platform/redis"
	httptransport "farmerid/internal/transport/http"
	audit "farmerid/pkg/platform/audit"
	"farmerid/pkg/platform/audit/publisher"
	"farmerid/pkg/platform/audit/publishers/kafka"
	auditmemory "farmerid/pkg/platform/audit/store/memory"
	"farmerid/pkg/platform/privacy"
)

type application struct {
	router http.Handler

	sessionBackend string
	recordBackend  string
	auditBackend   string

	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// wire builds the dependency graph. Backends fall back to in-memory
// implementations when their connection settings are empty.
func wire(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.New(reg)
	enrollMetrics := enrollmentmetrics.New(reg)

	var checks []httptransport.HealthCheck

	sessions, err := buildSessionStore(ctx, cfg, log, app, &checks)
	if err != nil {
		return nil, err
	}
	records, tx, err := buildRecordStore(ctx, cfg, app, &checks)
	if err != nil {
		return nil, err
	}
	auditPublisher, err := buildAuditPublisher(cfg, log, app, &checks)
	if err != nil {
		return nil, err
	}
	verifier, err := buildVerifier(cfg)
	if err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(enrollMetrics),
		service.WithAuditPublisher(auditPublisher),
		service.WithTransactor(tx),
	}
	if key := cfg.Privacy.SubjectHashKey; key != "" {
		hasher, err := privacy.NewHasher([]byte(key))
		if err != nil {
			return nil, fmt.Errorf("subject hasher: %w", err)
		}
		opts = append(opts, service.WithSubjectHasher(hasher))
	}

	svc := service.New(
		sessions,
		records,
		challenge.NewIssuer(cfg.WebAuthn.RPID, cfg.WebAuthn.RPDisplayName, cfg.WebAuthn.Timeout),
		verifier,
		opts...,
	)

	tokens := jwttoken.NewJWTService(cfg.Session.SigningKey, cfg.Session.TokenIssuer, cfg.Session.TokenAudience)
	enrollment := handler.New(svc, tokens, log, cfg.Session.TokenTTL,
		handler.WithAdminToken(cfg.Server.AdminToken),
		handler.WithMaxPhotoBytes(cfg.Server.MaxPhotoBytes),
		buildRateLimits(ctx, cfg, log, app),
	)

	app.router = httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        httpMetrics,
		Gatherer:       reg,
		RequestTimeout: cfg.Server.RequestTimeout,
		HealthChecks:   checks,
	}, enrollment)
	return app, nil
}

func buildSessionStore(ctx context.Context, cfg config.Config, log *slog.Logger, app *application, checks *[]httptransport.HealthCheck) (service.SessionStore, error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		app.sessionBackend = "memory"
		return session.NewInMemory(cfg.Session.IdleTTL), nil
	}
	app.sessionBackend = "redis"
	app.closers = append(app.closers, func() { _ = client.Close() })
	*checks = append(*checks, httptransport.HealthCheck{Name: "redis", Check: client.Health})
	return session.NewRedis(client.Client, cfg.Session.IdleTTL, cfg.Session.LockLease, cfg.Session.LockWait,
		session.WithLogger(log),
	), nil
}

func buildRecordStore(ctx context.Context, cfg config.Config, app *application, checks *[]httptransport.HealthCheck) (service.RecordStore, service.Transactor, error) {
	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if db == nil {
		app.recordBackend = "memory"
		return record.NewInMemory(), record.NoTx{}, nil
	}
	app.recordBackend = "postgres"
	app.closers = append(app.closers, func() { _ = db.Close() })
	*checks = append(*checks, httptransport.HealthCheck{Name: "postgres", Check: db.PingContext})

	store := record.NewPostgres(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, nil, fmt.Errorf("ensure record schema: %w", err)
	}
	return store, record.NewPostgresTx(db), nil
}

func buildAuditPublisher(cfg config.Config, log *slog.Logger, app *application, checks *[]httptransport.HealthCheck) (*publisher.Publisher, error) {
	var store audit.Store
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return nil, err
		}
		app.auditBackend = "kafka"
		*checks = append(*checks, httptransport.HealthCheck{Name: "kafka", Check: sink.Ping})
		store = sink
		// Registered before the publisher's closer so the buffer drains first.
		app.closers = append(app.closers, sink.Close)
	} else {
		app.auditBackend = "memory"
		store = auditmemory.NewInMemoryStore()
	}

	p := publisher.NewPublisher(store,
		publisher.WithAsyncBuffer(cfg.Kafka.AuditBuffer),
		publisher.WithLogger(log),
	)
	app.closers = append(app.closers, p.Close)
	return p, nil
}

func buildRateLimits(ctx context.Context, cfg config.Config, log *slog.Logger, app *application) handler.Option {
	window := cfg.Limits.Window
	store := ratelimit.NewWindowStore()
	limiter := ratelimit.New(store, log, ratelimit.WithDisabled(cfg.Limits.Disabled))
	if !cfg.Limits.Disabled {
		sweepCtx, stop := context.WithCancel(ctx)
		go store.RunSweeper(sweepCtx, window)
		app.closers = append(app.closers, stop)
	}
	return handler.WithRateLimits(limiter,
		ratelimit.Rule{Limit: cfg.Limits.SessionsPerIP, Window: window},
		ratelimit.Rule{Limit: cfg.Limits.VerifyPerSession, Window: window},
	)
}

func buildVerifier(cfg config.Config) (service.CredentialVerifier, error) {
	switch cfg.WebAuthn.Verifier {
	case config.VerifierDeviceKey:
		return devicekey.New(cfg.WebAuthn.Origins), nil
	case config.VerifierPasskey:
		return passkey.New(cfg.WebAuthn.RPID, cfg.WebAuthn.RPDisplayName, cfg.WebAuthn.Origins, cfg.WebAuthn.Timeout)
	default:
		return nil, errors.New("unknown verifier mode " + cfg.WebAuthn.Verifier)
	}
}
