package sequencing

import (
	"context"
	"errors"
	"log/slog"
)

// State is the lifecycle of a single reorder or delete call. No state
// survives between calls.
type State string

const (
	StateIdle            State = "idle"
	StatePlanning        State = "planning"
	StatePersisting      State = "persisting"
	StateCommitted       State = "committed"
	StatePartiallyFailed State = "partially_failed"
	StateFailed          State = "failed"
)

// Observer is notified on every state transition.
type Observer func(scopeID string, from, to State)

// Coordinator turns a drag-and-drop result or a delete into sequence writes.
type Coordinator struct {
	store   Store
	logger  *slog.Logger
	observe Observer
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for transitions and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver installs a state transition hook.
func WithObserver(fn Observer) Option {
	return func(c *Coordinator) { c.observe = fn }
}

// NewCoordinator creates a Coordinator over store.
func NewCoordinator(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListOrdered loads the persisted order of a scope.
func (c *Coordinator) ListOrdered(ctx context.Context, scopeID string) ([]Item, error) {
	items, err := c.store.ListOrdered(ctx, scopeID)
	if err != nil {
		return nil, reorderError(ErrBackendUnavailable, scopeID, "", err)
	}
	return items, nil
}

// NextSequence returns the sequence a newly created item in scope receives.
func (c *Coordinator) NextSequence(ctx context.Context, scopeID string) (int, error) {
	highest, err := c.store.MaxSequence(ctx, scopeID)
	if err != nil {
		return 0, reorderError(ErrBackendUnavailable, scopeID, "", err)
	}
	return highest + 1, nil
}

// Reorder moves itemID to the zero-based newIndex within scopeID. An index
// outside the list is clamped to the nearest end. On success the returned
// order is computed locally from the plan. On a partial write the returned
// order is the re-fetched persisted order and the error wraps
// ErrPartialReorder.
func (c *Coordinator) Reorder(ctx context.Context, scopeID, itemID string, newIndex int) ([]Item, error) {
	run := c.start(scopeID)

	items, err := c.store.ListOrdered(ctx, scopeID)
	if err != nil {
		run.to(StateFailed)
		return nil, reorderError(ErrBackendUnavailable, scopeID, itemID, err)
	}
	if IndexOf(items, itemID) < 0 {
		run.to(StateFailed)
		return items, reorderError(ErrItemNotFound, scopeID, itemID, nil)
	}

	// A scope damaged by interleaved writers is compacted as part of the
	// same plan so the move is computed against a dense order.
	base := items
	var heal []Update
	if !IsDense(items) {
		heal = PlanCompaction(items)
		base = Apply(items, heal)
		c.logger.Warn("sequence scope not dense; compacting before move",
			slog.String("scope_id", scopeID),
			slog.Int("fixes", len(heal)))
	}

	from := IndexOf(base, itemID) + 1
	to := clamp(newIndex, 0, len(base)-1) + 1
	plan := mergePlans(items, heal, PlanMove(from, to, base))

	return c.persist(ctx, run, itemID, items, plan)
}

// Delete restores density after itemID has been removed from scopeID by its
// owning entity. The plan is computed from a fresh listing, so a row already
// renumbered by a concurrent delete is a no-op. If itemID is still listed
// nothing is written and the fresh order comes back with ErrStillListed.
func (c *Coordinator) Delete(ctx context.Context, scopeID, itemID string) ([]Item, error) {
	run := c.start(scopeID)

	items, err := c.store.ListOrdered(ctx, scopeID)
	if err != nil {
		run.to(StateFailed)
		return nil, reorderError(ErrBackendUnavailable, scopeID, itemID, err)
	}
	if itemID != "" && IndexOf(items, itemID) >= 0 {
		run.to(StateFailed)
		return items, reorderError(ErrStillListed, scopeID, itemID, nil)
	}

	plan := PlanDeletion(firstGap(items), items)
	if !IsDense(Apply(items, plan)) {
		plan = PlanCompaction(items)
	}

	return c.persist(ctx, run, itemID, items, plan)
}

// Repair compacts scopeID to a dense 1..N keeping the current order.
func (c *Coordinator) Repair(ctx context.Context, scopeID string) ([]Item, error) {
	run := c.start(scopeID)

	items, err := c.store.ListOrdered(ctx, scopeID)
	if err != nil {
		run.to(StateFailed)
		return nil, reorderError(ErrBackendUnavailable, scopeID, "", err)
	}
	return c.persist(ctx, run, "", items, PlanCompaction(items))
}

func (c *Coordinator) persist(ctx context.Context, run *transition, itemID string, items []Item, plan []Update) ([]Item, error) {
	if len(plan) == 0 {
		run.to(StateCommitted)
		return Clone(items), nil
	}

	run.to(StatePersisting)
	if err := c.store.BatchSetSequence(ctx, plan); err != nil {
		return c.recover(ctx, run, itemID, err)
	}

	run.to(StateCommitted)
	return Apply(items, plan), nil
}

// recover decides what a failed batch means. Anything that landed makes the
// optimistic order untrustworthy, so the persisted order is re-fetched and
// returned alongside the error.
func (c *Coordinator) recover(ctx context.Context, run *transition, itemID string, cause error) ([]Item, error) {
	var batchErr *BatchError
	if !errors.As(cause, &batchErr) || (!batchErr.Partial() && !errors.Is(cause, ErrNotFound)) {
		run.to(StateFailed)
		c.logger.Error("sequence batch failed",
			slog.String("scope_id", run.scopeID),
			slog.String("item_id", itemID),
			slog.String("error", cause.Error()))
		return nil, reorderError(ErrBackendUnavailable, run.scopeID, itemID, cause)
	}

	run.to(StatePartiallyFailed)
	truth, err := c.store.ListOrdered(ctx, run.scopeID)
	if err != nil {
		return nil, reorderError(ErrBackendUnavailable, run.scopeID, itemID, errors.Join(cause, err))
	}

	kind := ErrPartialReorder
	if !batchErr.Partial() {
		kind = ErrItemNotFound
	}
	c.logger.Warn("sequence batch partially applied",
		slog.String("scope_id", run.scopeID),
		slog.String("item_id", itemID),
		slog.Int("applied", len(batchErr.Applied)),
		slog.Any("failed", batchErr.FailedIDs()))

	rerr := reorderError(kind, run.scopeID, itemID, cause)
	rerr.Failed = batchErr.FailedIDs()
	return truth, rerr
}

// mergePlans folds successive plans over items into one plan holding each
// item's final sequence. Items that end where they started are dropped.
func mergePlans(items []Item, plans ...[]Update) []Update {
	final := make(map[string]int, len(items))
	for _, item := range items {
		final[item.ID] = item.Sequence
	}
	for _, plan := range plans {
		for _, u := range plan {
			final[u.ID] = u.Sequence
		}
	}

	projected := Clone(items)
	for i := range projected {
		projected[i].Sequence = final[projected[i].ID]
	}
	SortBySequence(projected)

	original := make(map[string]int, len(items))
	for _, item := range items {
		original[item.ID] = item.Sequence
	}
	var merged []Update
	for _, item := range projected {
		if original[item.ID] != item.Sequence {
			merged = append(merged, Update{ID: item.ID, Sequence: item.Sequence})
		}
	}
	return merged
}

// firstGap returns the first position whose sequence is out of place, or
// N+1 when items are dense.
func firstGap(items []Item) int {
	for i, item := range items {
		if item.Sequence != i+1 {
			return i + 1
		}
	}
	return len(items) + 1
}

type transition struct {
	c       *Coordinator
	scopeID string
	state   State
}

func (c *Coordinator) start(scopeID string) *transition {
	t := &transition{c: c, scopeID: scopeID, state: StateIdle}
	t.to(StatePlanning)
	return t
}

func (t *transition) to(next State) {
	prev := t.state
	t.state = next
	t.c.logger.Debug("sequence transition",
		slog.String("scope_id", t.scopeID),
		slog.String("from", string(prev)),
		slog.String("to", string(next)))
	if t.c.observe != nil {
		t.c.observe(t.scopeID, prev, next)
	}
}
