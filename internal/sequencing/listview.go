package sequencing

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// Source is what a ListView needs from the coordinator side. *Coordinator
// satisfies it; a remote client can too.
type Source interface {
	Reorder(ctx context.Context, scopeID, itemID string, newIndex int) ([]Item, error)
	Delete(ctx context.Context, scopeID, itemID string) ([]Item, error)
	ListOrdered(ctx context.Context, scopeID string) ([]Item, error)
}

// NoticeKind classifies what the user should be told after reconciling.
type NoticeKind string

const (
	// NoticeCorrected is a brief, dismissible notice that the shown order
	// was replaced by the persisted one.
	NoticeCorrected NoticeKind = "corrected"
	// NoticeFailed is a retryable error notice; the order was rolled back.
	NoticeFailed NoticeKind = "failed"
)

// Notice is emitted by Reconcile for anything other than a clean success.
type Notice struct {
	Kind    NoticeKind
	ScopeID string
	Err     error
}

// SortKey selects a presentation-only ordering.
type SortKey string

const (
	SortBySequenceKey SortKey = "sequence"
	SortByName        SortKey = "name"
	SortByUpdatedAt   SortKey = "updated_at"
)

// ListView is the client-side ordered list of one scope. It is owned by a
// single view; it applies moves immediately and reconciles afterwards. Only
// one reorder may be outstanding at a time.
type ListView struct {
	mu       sync.Mutex
	scopeID  string
	source   Source
	items    []Item
	lastGood []Item
	inFlight bool
	notify   func(Notice)
}

// NewListView creates a view over items, which must already be in
// persisted order. notify may be nil.
func NewListView(scopeID string, items []Item, source Source, notify func(Notice)) *ListView {
	return &ListView{
		scopeID:  scopeID,
		source:   source,
		items:    Clone(items),
		lastGood: Clone(items),
		notify:   notify,
	}
}

// Items returns a snapshot of what the view currently shows.
func (v *ListView) Items() []Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Clone(v.items)
}

// InFlight reports whether a reorder is awaiting reconciliation.
func (v *ListView) InFlight() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inFlight
}

// ApplyOptimisticMove splices itemID to newIndex locally and marks the view
// busy until Reconcile runs. New gestures are rejected while busy.
func (v *ListView) ApplyOptimisticMove(itemID string, newIndex int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.inFlight {
		return ErrReorderInProgress
	}
	from := IndexOf(v.items, itemID)
	if from < 0 {
		return ErrItemNotFound
	}

	v.lastGood = Clone(v.items)
	v.items = splice(v.items, from, clamp(newIndex, 0, len(v.items)-1))
	v.inFlight = true
	return nil
}

// Reconcile replaces the shown order with the coordinator's answer. On
// success that answer is taken as is. On a partial write the re-fetched
// order carried with the error wins. On any other failure the persisted
// order is fetched again, falling back to the last known-good order if
// that fetch fails too.
func (v *ListView) Reconcile(ctx context.Context, result []Item, err error) []Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	defer func() { v.inFlight = false }()

	if err == nil {
		v.commit(result)
		return Clone(v.items)
	}

	if errors.Is(err, ErrPartialReorder) && result != nil {
		v.commit(result)
		v.emit(NoticeCorrected, err)
		return Clone(v.items)
	}

	truth, fetchErr := v.source.ListOrdered(ctx, v.scopeID)
	if fetchErr != nil {
		v.items = Clone(v.lastGood)
		v.emit(NoticeFailed, errors.Join(err, fetchErr))
		return Clone(v.items)
	}
	v.commit(truth)
	if errors.Is(err, ErrBackendUnavailable) {
		v.emit(NoticeFailed, err)
	} else {
		v.emit(NoticeCorrected, err)
	}
	return Clone(v.items)
}

// Move runs a full optimistic reorder round trip.
func (v *ListView) Move(ctx context.Context, itemID string, newIndex int) ([]Item, error) {
	if err := v.ApplyOptimisticMove(itemID, newIndex); err != nil {
		return v.Items(), err
	}
	result, err := v.source.Reorder(ctx, v.scopeID, itemID, newIndex)
	return v.Reconcile(ctx, result, err), err
}

// Remove drops itemID locally, then asks the source to renumber the scope.
// The owning entity must already have deleted the row.
func (v *ListView) Remove(ctx context.Context, itemID string) ([]Item, error) {
	v.mu.Lock()
	if v.inFlight {
		v.mu.Unlock()
		return v.Items(), ErrReorderInProgress
	}
	v.lastGood = Clone(v.items)
	if idx := IndexOf(v.items, itemID); idx >= 0 {
		v.items = append(Clone(v.items[:idx]), v.items[idx+1:]...)
		for i := range v.items {
			v.items[i].Sequence = i + 1
		}
	}
	v.inFlight = true
	v.mu.Unlock()

	result, err := v.source.Delete(ctx, v.scopeID, itemID)
	return v.Reconcile(ctx, result, err), err
}

// Append adds a newly created item at the end of the view.
func (v *ListView) Append(item Item) Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	item.ScopeID = v.scopeID
	item.Sequence = PlanInsertion(v.items)
	v.items = append(v.items, item)
	v.lastGood = Clone(v.items)
	return item
}

// Sorted returns the items in an alternate presentation order. Sequences are
// left untouched.
func (v *ListView) Sorted(key SortKey) []Item {
	return SortedBy(v.Items(), key)
}

// SortedBy returns a copy of items ordered by key.
func SortedBy(items []Item, key SortKey) []Item {
	out := Clone(items)
	switch key {
	case SortByName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Label) < strings.ToLower(out[j].Label)
		})
	case SortByUpdatedAt:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		})
	default:
		SortBySequence(out)
	}
	return out
}

func (v *ListView) commit(items []Item) {
	v.items = Clone(items)
	v.lastGood = Clone(items)
}

func (v *ListView) emit(kind NoticeKind, err error) {
	if v.notify != nil {
		v.notify(Notice{Kind: kind, ScopeID: v.scopeID, Err: err})
	}
}

// splice removes the element at from and reinserts it at to, then
// renumbers sequences to match the new positions.
func splice(items []Item, from, to int) []Item {
	out := Clone(items)
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]Item{moved}, out[to:]...)...)
	for i := range out {
		out[i].Sequence = i + 1
	}
	return out
}
