package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termbase/api/internal/store"
	"termbase/api/internal/store/storetest"
)

func TestStore_OrganizationAndProjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	org, err := s.CreateOrganization(ctx, store.Organization{ID: "org-1", Name: "Acme", Slug: "acme"})
	require.NoError(t, err)
	_, err = s.CreateProject(ctx, store.Project{ID: "p-1", OrgID: org.ID, Name: "Billing"})
	require.NoError(t, err)

	got, err := s.GetProject(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Billing", got.Name)
	assert.True(t, fixed.Equal(got.CreatedAt), "created_at = %v", got.CreatedAt)

	require.NoError(t, s.UpdateProject(ctx, "p-1", "Billing v2", "invoices"))
	projects, err := s.ListProjects(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "invoices", projects[0].Description)

	_, err = s.GetOrganization(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.UpdateProject(ctx, "missing", "x", ""), store.ErrNotFound)
}

func TestStore_ConstraintErrorsAreClassified(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")

	_, err := s.CreateOrganization(ctx, store.Organization{ID: "org-2", Name: "Dup", Slug: "acme"})
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = s.CreateActor(ctx, store.Actor{ID: "a-x", ProjectID: "missing", Name: "Ghost"})
	require.ErrorIs(t, err, store.ErrInvalidReference)

	storetest.Terms(t, s, tree.Project.ID, "invoice")
	_, err = s.CreateGlossaryTerm(ctx, store.GlossaryTerm{ID: "t-2", ProjectID: tree.Project.ID, Term: "invoice", Sequence: 2})
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestStore_ContentEditsLeaveSequenceAlone(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")
	_, err := s.CreateUsecase(ctx, store.Usecase{ID: "uc-2", ActorID: tree.Actor.ID, Name: "Audit", Sequence: 2})
	require.NoError(t, err)

	require.NoError(t, s.UpdateUsecase(ctx, "uc-2", "Audit trail", "who did what"))
	require.NoError(t, s.UpdateFeature(ctx, tree.Feature.ID, "Export CSV", "", "downloads"))

	uc, err := s.GetUsecase(ctx, "uc-2")
	require.NoError(t, err)
	assert.Equal(t, 2, uc.Sequence)
	assert.Equal(t, "Audit trail", uc.Name)

	f, err := s.GetFeature(ctx, tree.Feature.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Sequence)
	assert.Equal(t, "downloads", f.AcceptanceCriteria)
}

func TestStore_DeleteUsecaseReturnsScopeAndCascades(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")

	scopeID, err := s.DeleteUsecase(ctx, tree.Usecase.ID)
	require.NoError(t, err)
	assert.Equal(t, tree.Actor.ID, scopeID)

	_, err = s.GetFeature(ctx, tree.Feature.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.DeleteUsecase(ctx, tree.Usecase.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_DeletePolicyReportsAffectedFeatures(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")
	other, err := s.CreateFeature(ctx, store.Feature{ID: "f-2", UsecaseID: tree.Usecase.ID, Name: "Import", Sequence: 2})
	require.NoError(t, err)

	policy, err := s.CreatePolicy(ctx, store.Policy{ID: "pol-1", ProjectID: tree.Project.ID, Title: "GDPR"})
	require.NoError(t, err)
	_, err = s.BindPolicy(ctx, store.FeaturePolicy{ID: "fp-1", FeatureID: tree.Feature.ID, PolicyID: policy.ID, Sequence: 1})
	require.NoError(t, err)
	_, err = s.BindPolicy(ctx, store.FeaturePolicy{ID: "fp-2", FeatureID: other.ID, PolicyID: policy.ID, Sequence: 1})
	require.NoError(t, err)

	_, err = s.BindPolicy(ctx, store.FeaturePolicy{ID: "fp-3", FeatureID: other.ID, PolicyID: policy.ID, Sequence: 2})
	require.ErrorIs(t, err, store.ErrConflict)

	features, err := s.DeletePolicy(ctx, policy.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{tree.Feature.ID, other.ID}, features)

	bindings, err := s.ListFeaturePolicies(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, bindings)
}

func TestStore_GlossaryLinks(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")
	storetest.Terms(t, s, tree.Project.ID, "invoice", "ledger")
	policy, err := s.CreatePolicy(ctx, store.Policy{ID: "pol-1", ProjectID: tree.Project.ID, Title: "Billing"})
	require.NoError(t, err)

	_, err = s.LinkTerm(ctx, policy.ID, "ledger")
	require.NoError(t, err)
	link, err := s.LinkTerm(ctx, policy.ID, "invoice")
	require.NoError(t, err)
	assert.Equal(t, "invoice", link.Term.Term)

	links, err := s.ListPolicyTerms(ctx, policy.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "invoice", links[0].TermID, "links follow glossary order")

	require.NoError(t, s.UnlinkTerm(ctx, policy.ID, "ledger"))
	require.ErrorIs(t, s.UnlinkTerm(ctx, policy.ID, "ledger"), store.ErrNotFound)

	_, err = s.DeleteGlossaryTerm(ctx, "invoice")
	require.NoError(t, err)
	links, err = s.ListPolicyTerms(ctx, policy.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestStore_SearchFallback(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")
	_, err := s.CreateGlossaryTerm(ctx, store.GlossaryTerm{ID: "t-1", ProjectID: tree.Project.ID, Term: "Invoice", Definition: "A bill", Sequence: 1})
	require.NoError(t, err)
	_, err = s.CreateGlossaryTerm(ctx, store.GlossaryTerm{ID: "t-2", ProjectID: tree.Project.ID, Term: "Ledger", Definition: "Books of invoices", Sequence: 2})
	require.NoError(t, err)
	_, err = s.CreatePolicy(ctx, store.Policy{ID: "pol-1", ProjectID: tree.Project.ID, Title: "Retention", Content: "Keep invoices 7 years"})
	require.NoError(t, err)

	terms, err := s.SearchGlossaryTerms(ctx, tree.Project.ID, "INVOICE", 10)
	require.NoError(t, err)
	assert.Len(t, terms, 2)

	policies, err := s.SearchPolicies(ctx, tree.Project.ID, "invoice", 10)
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "pol-1", policies[0].ID)

	terms, err = s.SearchGlossaryTerms(ctx, "other-project", "invoice", 10)
	require.NoError(t, err)
	assert.Empty(t, terms)
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewStore(t)
	tree := storetest.Seed(t, s, "acme")
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx *store.Store) error {
		if _, err := tx.DeleteFeature(ctx, tree.Feature.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetFeature(ctx, tree.Feature.ID)
	require.NoError(t, err, "feature must survive a rolled back delete")

	err = s.WithinTx(ctx, func(ctx context.Context, tx *store.Store) error {
		_, err := tx.DeleteFeature(ctx, tree.Feature.ID)
		return err
	})
	require.NoError(t, err)
	_, err = s.GetFeature(ctx, tree.Feature.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
