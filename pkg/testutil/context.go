package testutil

import (
	"net/http"

	id "farmerid/pkg/domain"
	"farmerid/pkg/requestcontext"
)

// WithSession binds an enrollment session to the request context, as the
// session middleware does after validating a bearer token.
func WithSession(req *http.Request, sessionID id.SessionID) *http.Request {
	return req.WithContext(requestcontext.WithSessionID(req.Context(), sessionID))
}

// WithBearer sets the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
