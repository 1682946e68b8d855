package core

import "errors"

// Errors returned by the services in this package. Handlers map them to HTTP statuses.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrNotFound         = errors.New("not found")
	ErrUpstream         = errors.New("upstream provider call failed")
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
	ErrLimitReached     = errors.New("daily message limit reached")
	ErrPersonaLocked    = errors.New("persona requires a subscription")
	ErrInvalidSeverity  = errors.New("invalid severity")
)

func isLimitReached(err error) bool {
	return errors.Is(err, ErrLimitReached)
}
