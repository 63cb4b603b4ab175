package similarity

import "errors"

// Typed failures surfaced to the HTTP layer. Controllers map these to
// status codes; per-candidate scoring anomalies never become errors.
var (
	ErrValidation = errors.New("invalid request")
	ErrNotFound   = errors.New("issue not found")
	ErrConflict   = errors.New("issue changed state")
	ErrUpstream   = errors.New("document store unavailable")
)
