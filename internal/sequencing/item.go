// Package sequencing keeps sibling records in a dense 1..N order per parent
// scope. It plans renumbering after deletes and moves, persists the plan
// through a Store, and reconciles a client-side optimistic view against
// what was actually persisted.
package sequencing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Item is one sequenced sibling inside a scope.
type Item struct {
	ID        string    `json:"id"`
	ScopeID   string    `json:"scopeId"`
	Sequence  int       `json:"sequence"`
	Label     string    `json:"label"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Update assigns a new sequence to one item.
type Update struct {
	ID       string `json:"id"`
	Sequence int    `json:"sequence"`
}

// ErrNotFound is returned by Store.SetSequence when the row does not exist.
var ErrNotFound = errors.New("sequenced item not found")

// Store is scoped read/write access to sequence values.
type Store interface {
	// MaxSequence returns the highest sequence in use for the scope, or 0.
	MaxSequence(ctx context.Context, scopeID string) (int, error)
	// ListOrdered returns every sibling sorted ascending by sequence.
	ListOrdered(ctx context.Context, scopeID string) ([]Item, error)
	SetSequence(ctx context.Context, id string, sequence int) error
	// BatchSetSequence applies each update independently. When some
	// updates fail it returns a *BatchError naming them; the others stay
	// applied.
	BatchSetSequence(ctx context.Context, updates []Update) error
}

// BatchError reports the per-id outcome of a partially applied batch.
type BatchError struct {
	Applied  []string
	Failures map[string]error
}

func (e *BatchError) Error() string {
	if e == nil {
		return ""
	}
	ids := e.FailedIDs()
	return fmt.Sprintf("batch set sequence: %d of %d updates failed (%s)",
		len(ids), len(ids)+len(e.Applied), strings.Join(ids, ", "))
}

// Unwrap exposes the individual failures to errors.Is / errors.As.
func (e *BatchError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, len(e.Failures))
	for _, id := range e.FailedIDs() {
		errs = append(errs, e.Failures[id])
	}
	return errs
}

// FailedIDs returns the ids whose update failed, sorted.
func (e *BatchError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Partial reports whether at least one update was applied.
func (e *BatchError) Partial() bool {
	return e != nil && len(e.Applied) > 0
}

// ApplyBatch runs set for every update and collects failures into a
// *BatchError. Store implementations without a native batch use it to get
// the per-id reporting contract for free.
func ApplyBatch(ctx context.Context, updates []Update, set func(context.Context, string, int) error) error {
	var batchErr *BatchError
	applied := make([]string, 0, len(updates))
	for _, u := range updates {
		if err := set(ctx, u.ID, u.Sequence); err != nil {
			if batchErr == nil {
				batchErr = &BatchError{Failures: make(map[string]error)}
			}
			batchErr.Failures[u.ID] = err
			continue
		}
		applied = append(applied, u.ID)
	}
	if batchErr != nil {
		batchErr.Applied = applied
		return batchErr
	}
	return nil
}

// Clone returns a copy of items that can be mutated freely.
func Clone(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// SortBySequence orders items ascending by sequence, breaking ties by id so
// duplicated sequences still sort deterministically.
func SortBySequence(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Sequence != items[j].Sequence {
			return items[i].Sequence < items[j].Sequence
		}
		return items[i].ID < items[j].ID
	})
}

// IsDense reports whether the sequences of items are exactly {1..N} in
// slice order.
func IsDense(items []Item) bool {
	for i, item := range items {
		if item.Sequence != i+1 {
			return false
		}
	}
	return true
}

// Apply returns a copy of items with plan applied, sorted by sequence.
func Apply(items []Item, plan []Update) []Item {
	next := make(map[string]int, len(plan))
	for _, u := range plan {
		next[u.ID] = u.Sequence
	}
	out := Clone(items)
	for i := range out {
		if seq, ok := next[out[i].ID]; ok {
			out[i].Sequence = seq
		}
	}
	SortBySequence(out)
	return out
}

// IndexOf returns the slice position of id, or -1.
func IndexOf(items []Item, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
