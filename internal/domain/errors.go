package domain

import "errors"

// Error taxonomy (§7). Components wrap these with fmt.Errorf("...: %w", ...)
// so callers can classify failures with errors.Is without string matching.
var (
	ErrConfigInvalid = errors.New("config invalid")

	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSourceAuth        = errors.New("source auth failed")
	ErrSourceNotFound    = errors.New("source zone not found")

	ErrReplicaUnavailable = errors.New("replica unavailable")
	ErrReplicaConflict    = errors.New("replica conflict")
	ErrReplicaRejected    = errors.New("replica rejected request")
	ErrReplicaNotFound    = errors.New("replica zone not found")

	ErrGateTimeout = errors.New("gate acquisition timed out")

	ErrAuthFailed       = errors.New("authentication failed")
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrRateLimited      = errors.New("rate limited")
	ErrMalformedPayload = errors.New("malformed payload")
)
