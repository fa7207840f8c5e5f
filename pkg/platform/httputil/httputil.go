// Package httputil writes the JSON envelopes shared by every handler.
//
// Success responses carry "status":"success" plus the payload fields; error
// responses carry "status":"error", the error kind and, for client-facing
// kinds, a description. Internal and store failures never echo their cause.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "farmerid/pkg/domain-errors"
)

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Status      string `json:"status"`
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Field       string `json:"field,omitempty"`
}

// StatusFor maps a domain code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeValidation,
		dErrors.CodeInvalidEvidence, dErrors.CodeMissingField, dErrors.CodeVerificationFailed:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeNoChallengeIssued, dErrors.CodeBiometricRequired:
		return http.StatusConflict
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeStoreFailure, dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func exposesDescription(code dErrors.Code) bool {
	switch code {
	case dErrors.CodeInternal, dErrors.CodeInvariantViolation, dErrors.CodeStoreFailure, dErrors.CodeUnavailable:
		return false
	}
	return true
}

// WriteError translates err into the error envelope.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{
		Status: "error",
		Error:  string(code),
		Field:  dErrors.FieldOf(err),
	}
	if exposesDescription(code) {
		resp.Description = dErrors.MessageOf(err)
	}
	writeJSON(w, StatusFor(code), resp)
}

// WriteJSON writes payload with the success status marker merged in.
// Payload must marshal to a JSON object.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	body := map[string]any{}
	raw, err := json.Marshal(payload)
	if err == nil && len(raw) > 0 && raw[0] == '{' {
		err = json.Unmarshal(raw, &body)
	}
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode response"))
		return
	}
	body["status"] = "success"
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes the request body into dst, rejecting unknown trailing
// data. Decode failures become CodeInvalidEvidence so the state machine
// boundary reports malformed payloads uniformly.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return dErrors.New(dErrors.CodeInvalidEvidence, "request body required")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidEvidence, "malformed request body")
	}
	return nil
}
