package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "farmerid/pkg/domain"
	"farmerid/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("store down")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/enrollment/sessions", nil)
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, "test-agent"))
}

func TestPerClientIP(t *testing.T) {
	limiter := New(NewWindowStore(), discardLogger())
	h := limiter.PerClientIP("bootstrap", Rule{Limit: 2, Window: time.Minute})(okHandler())

	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.1"))
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"error":"rate_limited"`)

	t.Run("other addresses keep their budget", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.2"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestPerSession(t *testing.T) {
	limiter := New(NewWindowStore(), discardLogger())
	h := limiter.PerSession("verify", Rule{Limit: 1, Window: time.Minute})(okHandler())

	sessionA, sessionB := id.NewSessionID(), id.NewSessionID()
	send := func(sessionID id.SessionID) int {
		req := requestFrom("10.0.0.1")
		req = req.WithContext(requestcontext.WithSessionID(req.Context(), sessionID))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send(sessionA))
	assert.Equal(t, http.StatusTooManyRequests, send(sessionA))
	assert.Equal(t, http.StatusNoContent, send(sessionB))
}

func TestPassThrough(t *testing.T) {
	t.Run("disabled limiter", func(t *testing.T) {
		limiter := New(NewWindowStore(), discardLogger(), WithDisabled(true))
		h := limiter.PerClientIP("bootstrap", Rule{Limit: 1, Window: time.Minute})(okHandler())
		for range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestFrom("10.0.0.1"))
			assert.Equal(t, http.StatusNoContent, rec.Code)
		}
	})

	t.Run("zero rule", func(t *testing.T) {
		limiter := New(NewWindowStore(), discardLogger())
		h := limiter.PerClientIP("bootstrap", Rule{})(okHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.1"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("nil limiter", func(t *testing.T) {
		var limiter *Limiter
		h := limiter.PerClientIP("bootstrap", Rule{Limit: 1, Window: time.Minute})(okHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.1"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("store failure fails open", func(t *testing.T) {
		limiter := New(failingStore{}, discardLogger())
		h := limiter.PerClientIP("bootstrap", Rule{Limit: 1, Window: time.Minute})(okHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.1"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
