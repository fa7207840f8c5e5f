package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into coded domain errors.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: a unique key (record ID) is already taken
//   - ErrExpired: session or challenge outlived its TTL
//   - ErrBusy: another writer holds the session lease
//   - ErrUnavailable: backing store temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrBusy        = errors.New("busy")
	ErrUnavailable = errors.New("unavailable")
)
