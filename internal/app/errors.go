package app

import (
	"errors"
	"fmt"
	"net/http"

	"termbase/api/internal/auth"
	"termbase/api/internal/scopelock"
	"termbase/api/internal/sequencing"
	"termbase/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

var (
	errForbidden = domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	errNotFound  = domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
)

// mapError turns any service error into an HTTP status and code. Backend
// error text is never passed through.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var reorderErr *sequencing.ReorderError
	if errors.As(err, &reorderErr) {
		switch {
		case errors.Is(err, sequencing.ErrItemNotFound):
			return http.StatusNotFound, "ITEM_NOT_FOUND", "Item is no longer in this list", nil
		case errors.Is(err, sequencing.ErrStillListed):
			return http.StatusConflict, "ITEM_STILL_LISTED", "Item must be deleted before the list is renumbered", nil
		case errors.Is(err, sequencing.ErrInvalidPosition):
			return http.StatusUnprocessableEntity, "INVALID_POSITION", "Invalid position", nil
		case errors.Is(err, sequencing.ErrReorderInProgress):
			return http.StatusConflict, "REORDER_IN_PROGRESS", "Another reorder of this list is in progress", nil
		case errors.Is(err, sequencing.ErrPartialReorder):
			return http.StatusConflict, "PARTIAL_REORDER", "Reorder was only partly saved", nil
		default:
			return http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "Ordering could not be saved, try again", nil
		}
	}

	switch {
	case errors.Is(err, sequencing.ErrReorderInProgress), errors.Is(err, scopelock.ErrHeld):
		return http.StatusConflict, "REORDER_IN_PROGRESS", "Another reorder of this list is in progress", nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, sequencing.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "CONFLICT", "Already exists", nil
	case errors.Is(err, store.ErrInvalidReference):
		return http.StatusUnprocessableEntity, "INVALID_REFERENCE", "Referenced record does not exist", nil
	case errors.Is(err, store.ErrUnknownKind):
		return http.StatusNotFound, "UNKNOWN_KIND", "Unknown list kind", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
