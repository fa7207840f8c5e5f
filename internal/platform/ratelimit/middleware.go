package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	dErrors "farmerid/pkg/domain-errors"
	"farmerid/pkg/platform/httputil"
	"farmerid/pkg/platform/privacy"
	"farmerid/pkg/requestcontext"
)

// Store is the counter backing a Limiter.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Rule is a request budget over a trailing window.
type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) enabled() bool {
	return r.Limit > 0 && r.Window > 0
}

// Limiter builds throttling middleware over a Store.
type Limiter struct {
	store    Store
	logger   *slog.Logger
	disabled bool
}

type Option func(*Limiter)

// WithDisabled turns every middleware into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(l *Limiter) {
		l.disabled = disabled
	}
}

// New creates a Limiter.
func New(store Store, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{store: store, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	if l.disabled {
		logger.Info("rate limiting disabled")
	}
	return l
}

// PerClientIP limits requests by the caller's address.
func (l *Limiter) PerClientIP(scope string, rule Rule) func(http.Handler) http.Handler {
	return l.middleware(scope, rule, requestcontext.ClientIP)
}

// PerSession limits requests by the session bound to the request. It must
// run after the session has been resolved.
func (l *Limiter) PerSession(scope string, rule Rule) func(http.Handler) http.Handler {
	return l.middleware(scope, rule, func(ctx context.Context) string {
		return requestcontext.SessionID(ctx).String()
	})
}

func (l *Limiter) middleware(scope string, rule Rule, keyOf func(context.Context) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil || l.disabled || !rule.enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := keyOf(ctx)

			result, err := l.store.Allow(ctx, scope+":"+key, rule.Limit, rule.Window)
			if err != nil {
				// Fail open; throttling is not worth an outage.
				l.logger.ErrorContext(ctx, "rate limit check failed", "scope", scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			writeHeaders(w, result)
			if !result.Allowed {
				l.logger.WarnContext(ctx, "rate limit exceeded",
					"scope", scope,
					"ip_prefix", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(result.RetryAfter)))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, please try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func retrySeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
