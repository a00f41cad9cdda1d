package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termbase/api/internal/sequencing"
	"termbase/api/internal/store"
	"termbase/api/internal/store/storetest"
)

func glossarySequences(t *testing.T, s *store.Store) *store.SequenceStore {
	t.Helper()
	seq, err := s.Sequences(store.KindGlossary)
	require.NoError(t, err)
	return seq
}

func TestSequenceStore_ListOrderedSortsBySequence(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")
	storetest.Terms(t, s, tree.Project.ID, "T1", "T2", "T3")
	seq := glossarySequences(t, s)

	require.NoError(t, seq.SetSequence(ctx, "T1", 3))
	require.NoError(t, seq.SetSequence(ctx, "T3", 1))

	items, err := seq.ListOrdered(ctx, tree.Project.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"T3", "T2", "T1"}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, "T3", items[0].Label)
	assert.Equal(t, tree.Project.ID, items[0].ScopeID)
	assert.False(t, items[0].UpdatedAt.IsZero())
}

func TestSequenceStore_MaxSequence(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")
	seq := glossarySequences(t, s)

	highest, err := seq.MaxSequence(ctx, tree.Project.ID)
	require.NoError(t, err)
	assert.Zero(t, highest)

	storetest.Terms(t, s, tree.Project.ID, "a", "b", "c")
	highest, err = seq.MaxSequence(ctx, tree.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, highest)
}

func TestSequenceStore_SetSequenceMissingRow(t *testing.T) {
	s := storetest.NewStore(t)
	seq := glossarySequences(t, s)

	err := seq.SetSequence(context.Background(), "nope", 1)
	require.ErrorIs(t, err, sequencing.ErrNotFound)
}

func TestSequenceStore_BatchReportsPerIDFailures(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")
	storetest.Terms(t, s, tree.Project.ID, "a", "b")
	seq := glossarySequences(t, s)

	err := seq.BatchSetSequence(ctx, []sequencing.Update{
		{ID: "b", Sequence: 1},
		{ID: "ghost", Sequence: 2},
		{ID: "a", Sequence: 2},
	})

	var batchErr *sequencing.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, []string{"b", "a"}, batchErr.Applied)
	assert.Equal(t, []string{"ghost"}, batchErr.FailedIDs())
	require.ErrorIs(t, err, sequencing.ErrNotFound)

	items, err := seq.ListOrdered(ctx, tree.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", items[0].ID)
}

func TestSequenceStore_FeaturePolicyLabelIsPolicyTitle(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")
	policy, err := s.CreatePolicy(ctx, store.Policy{ID: "pol-1", ProjectID: tree.Project.ID, Title: "Retention"})
	require.NoError(t, err)
	_, err = s.BindPolicy(ctx, store.FeaturePolicy{ID: "fp-1", FeatureID: tree.Feature.ID, PolicyID: policy.ID, Sequence: 1})
	require.NoError(t, err)

	seq, err := s.Sequences(store.KindFeaturePolicy)
	require.NoError(t, err)
	items, err := seq.ListOrdered(ctx, tree.Feature.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fp-1", items[0].ID)
	assert.Equal(t, "Retention", items[0].Label)
}

func TestStore_ScopeProjectResolvesEveryKind(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")

	cases := map[store.Kind]string{
		store.KindGlossary:      tree.Project.ID,
		store.KindUsecase:       tree.Actor.ID,
		store.KindFeature:       tree.Usecase.ID,
		store.KindFeaturePolicy: tree.Feature.ID,
	}
	for kind, scopeID := range cases {
		projectID, err := s.ScopeProject(ctx, kind, scopeID)
		require.NoError(t, err, "kind %s", kind)
		assert.Equal(t, tree.Project.ID, projectID, "kind %s", kind)
	}

	_, err := s.ScopeProject(ctx, store.KindUsecase, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestParseKind(t *testing.T) {
	for _, kind := range store.Kinds {
		got, err := store.ParseKind(string(kind))
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}
	_, err := store.ParseKind("documents")
	require.ErrorIs(t, err, store.ErrUnknownKind)
}

// The coordinator over real SQL: a write that fails part way leaves the
// earlier rows updated and the returned order matches a fresh read.
func TestCoordinatorOverSQL_PartialFailureMatchesPersisted(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")
	storetest.Terms(t, s, tree.Project.ID, "T1", "T2", "T3")
	seq := glossarySequences(t, s)

	failing := &storetest.FailOnNthWrite{Store: seq, FailOn: 2, Err: errors.New("connection reset")}
	c := sequencing.NewCoordinator(failing)

	got, err := c.Reorder(ctx, tree.Project.ID, "T3", 0)
	require.ErrorIs(t, err, sequencing.ErrPartialReorder)

	persisted, err := seq.ListOrdered(ctx, tree.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, persisted, got)

	repaired, err := sequencing.NewCoordinator(seq).Repair(ctx, tree.Project.ID)
	require.NoError(t, err)
	assert.True(t, sequencing.IsDense(repaired))
}

func TestCoordinatorOverSQL_DeleteRenumbers(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")
	storetest.Terms(t, s, tree.Project.ID, "T1", "T2", "T3")
	seq := glossarySequences(t, s)

	scopeID, err := s.DeleteGlossaryTerm(ctx, "T2")
	require.NoError(t, err)
	require.Equal(t, tree.Project.ID, scopeID)

	_, err = sequencing.NewCoordinator(seq).Delete(ctx, scopeID, "T2")
	require.NoError(t, err)

	terms, err := s.ListGlossaryTerms(ctx, tree.Project.ID)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "T1", terms[0].ID)
	assert.Equal(t, 1, terms[0].Sequence)
	assert.Equal(t, "T3", terms[1].ID)
	assert.Equal(t, 2, terms[1].Sequence)
}
