package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/store"
)

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, bastion.ErrInvalidRequest) ||
		errors.Is(err, bastion.ErrAmbiguousPrincipal) ||
		errors.Is(err, bastion.ErrInvalidPermissionKey) ||
		errors.Is(err, bastion.ErrInvalidDuration) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, store.ErrConflict) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, bastion.ErrAccessDenied) {
		return forge.Forbidden(err.Error())
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, bastion.ErrAccessRequestNotFound) ||
		errors.Is(err, bastion.ErrGrantNotFound)
}

// workflowStatus picks the status code for an elevation workflow failure
// reported in a {success:false} envelope.
func workflowStatus(err error) int {
	switch {
	case errors.Is(err, bastion.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, bastion.ErrRateLimited):
		return http.StatusTooManyRequests
	case isNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, bastion.ErrInvalidRequest),
		errors.Is(err, bastion.ErrInvalidPermissionKey),
		errors.Is(err, bastion.ErrInvalidDuration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
