package sequencing

import (
	"errors"
	"fmt"
)

var (
	// ErrItemNotFound means the reorder/delete target is no longer in scope.
	ErrItemNotFound = errors.New("item not found in scope")
	// ErrPartialReorder means some but not all planned writes landed.
	ErrPartialReorder = errors.New("reorder partially applied")
	// ErrBackendUnavailable means the persistence backend failed outright.
	ErrBackendUnavailable = errors.New("sequence backend unavailable")
	// ErrInvalidPosition is part of the error taxonomy but the coordinator
	// never returns it: out-of-range indexes are clamped instead.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrStillListed means Delete was asked to renumber around an item whose
	// row has not been removed yet.
	ErrStillListed = errors.New("item still listed in scope")
	// ErrReorderInProgress means another reorder on the scope is in flight.
	ErrReorderInProgress = errors.New("reorder already in progress for scope")
)

// ReorderError is the only error shape the coordinator returns. Kind is one
// of the sentinels above; Err is the underlying cause, if any.
type ReorderError struct {
	Kind    error
	ScopeID string
	ItemID  string
	// Failed lists the item ids whose write failed on a partial reorder.
	Failed []string
	Err    error
}

func (e *ReorderError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%v (scope %s", e.Kind, e.ScopeID)
	if e.ItemID != "" {
		msg += ", item " + e.ItemID
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReorderError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func reorderError(kind error, scopeID, itemID string, cause error) *ReorderError {
	return &ReorderError{Kind: kind, ScopeID: scopeID, ItemID: itemID, Err: cause}
}
