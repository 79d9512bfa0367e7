package service

import "errors"

// Sentinel error kinds for the service.
var (
	ErrMissingCollaborator = errors.New("service collaborator not configured")
	ErrNotStarted          = errors.New("service not started")
	ErrIdempotencyInFlight = errors.New("a request with this idempotency key is in progress")
	ErrLocalStoreRequired  = errors.New("operation requires a local store")
)
