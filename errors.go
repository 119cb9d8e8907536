package bastion

import (
	"errors"
	"fmt"
)

var (
	// ErrAccessDenied is wrapped by every error Enforce returns.
	ErrAccessDenied = errors.New("bastion: access denied")

	// ErrInvalidRequest is returned when a required identifier is missing.
	ErrInvalidRequest = errors.New("bastion: invalid request")

	// ErrAmbiguousPrincipal is returned when both or neither of user and
	// API key are supplied.
	ErrAmbiguousPrincipal = errors.New("bastion: exactly one of user_id or api_key_id is required")

	// ErrInvalidPermissionKey is returned for an empty permission key.
	ErrInvalidPermissionKey = errors.New("bastion: invalid permission key")

	// ErrInvalidDuration is returned for an elevation duration outside
	// (0, MaxElevationHours].
	ErrInvalidDuration = errors.New("bastion: invalid elevation duration")

	// ErrRateLimited is returned when a user files elevation requests faster
	// than the configured rate.
	ErrRateLimited = errors.New("bastion: too many access requests")

	// ErrAlreadyProcessed is returned when approving or denying a request
	// that is no longer pending.
	ErrAlreadyProcessed = errors.New("bastion: access request already processed")

	// ErrAccessRequestNotFound is returned when an access request does not exist.
	ErrAccessRequestNotFound = errors.New("bastion: access request not found")

	// ErrGrantNotFound is returned when revoking a grant that does not exist.
	ErrGrantNotFound = errors.New("bastion: grant not found")

	// ErrAuditWrite marks audit sink failures in operational logs. It never
	// reaches a caller.
	ErrAuditWrite = errors.New("bastion: audit write failed")
)

// DeniedError is returned by Enforce for any non-allow decision.
type DeniedError struct {
	Decision *Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrAccessDenied, e.Decision.Code, e.Decision.Reason)
}

// Unwrap lets errors.Is match ErrAccessDenied.
func (e *DeniedError) Unwrap() error { return ErrAccessDenied }

// Status returns the gate discriminator of the denial.
func (e *DeniedError) Status() string { return e.Decision.Status() }

// HTTPStatus returns the status code a gate should respond with.
func (e *DeniedError) HTTPStatus() int { return e.Decision.HTTPStatus() }
