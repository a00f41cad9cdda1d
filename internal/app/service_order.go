package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"termbase/api/internal/scopelock"
	"termbase/api/internal/search"
	"termbase/api/internal/sequencing"
	"termbase/api/internal/store"
	"termbase/api/internal/util"
)

// OrderResult is the persisted order of one scope after a change to it.
// Corrected is set when the order differs from what the caller asked for
// because only part of the change was saved.
type OrderResult struct {
	Items     []sequencing.Item `json:"items"`
	Corrected bool              `json:"corrected"`
}

// DeleteResult reports a removed item and the renumbered remainder.
type DeleteResult struct {
	ID string `json:"id"`
	OrderResult
}

func orderResult(items []sequencing.Item, corrected bool) OrderResult {
	if items == nil {
		items = []sequencing.Item{}
	}
	return OrderResult{Items: items, Corrected: corrected}
}

// renumber closes the gap left by itemID. The row is already gone, so a
// failure here cannot undo the delete; it is logged and reported as a
// correction and the next reorder of the scope compacts it.
//
// Deletes do not take the scope lock, so a renumber is not serialized
// against a reorder of the same scope. Whichever runs second sees a
// non-dense listing and compacts it.
func (s *Service) renumber(ctx context.Context, kind store.Kind, scopeID, itemID string) OrderResult {
	items, err := s.coords[kind].Delete(ctx, scopeID, itemID)
	if err != nil {
		s.logger.Warn("renumber after delete failed",
			slog.String("kind", string(kind)),
			slog.String("scope_id", scopeID),
			slog.String("item_id", itemID),
			slog.String("error", err.Error()))
		return orderResult(items, true)
	}
	return orderResult(items, false)
}

// Reorder moves itemID to newIndex within one scope. Only one reorder per
// scope runs at a time; a partial write answers with the persisted order
// marked as corrected.
func (s *Service) Reorder(ctx context.Context, p Principal, kindName, scopeID, itemID string, newIndex int) (OrderResult, error) {
	if err := required("itemId", itemID); err != nil {
		return OrderResult{}, err
	}
	kind, err := store.ParseKind(kindName)
	if err != nil {
		return OrderResult{}, err
	}
	if _, err := s.scope(ctx, p, kind, scopeID); err != nil {
		return OrderResult{}, err
	}

	var result OrderResult
	err = s.withScopeLock(ctx, kind, scopeID, func() error {
		items, err := s.coords[kind].Reorder(ctx, scopeID, itemID, newIndex)
		switch {
		case err == nil:
			result = orderResult(items, false)
		case errors.Is(err, sequencing.ErrPartialReorder):
			result = orderResult(items, true)
		case errors.Is(err, sequencing.ErrItemNotFound):
			return domainError(http.StatusNotFound, "ITEM_NOT_FOUND", "Item is no longer in this list",
				map[string]any{"items": orderResult(items, true).Items})
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return OrderResult{}, err
	}

	if kind == store.KindGlossary {
		s.reindexGlossary(ctx, scopeID)
	}
	return result, nil
}

// Repair compacts a damaged scope back to 1..N, keeping its current order.
func (s *Service) Repair(ctx context.Context, p Principal, kindName, scopeID string) (OrderResult, error) {
	kind, err := store.ParseKind(kindName)
	if err != nil {
		return OrderResult{}, err
	}
	if _, err := s.scope(ctx, p, kind, scopeID); err != nil {
		return OrderResult{}, err
	}

	var result OrderResult
	err = s.withScopeLock(ctx, kind, scopeID, func() error {
		items, err := s.coords[kind].Repair(ctx, scopeID)
		if errors.Is(err, sequencing.ErrPartialReorder) {
			result = orderResult(items, true)
			return nil
		}
		if err != nil {
			return err
		}
		result = orderResult(items, false)
		return nil
	})
	return result, err
}

func (s *Service) withScopeLock(ctx context.Context, kind store.Kind, scopeID string, fn func() error) error {
	release, err := s.locks.Acquire(ctx, scopelock.Key(string(kind), scopeID))
	if errors.Is(err, scopelock.ErrHeld) {
		return domainError(http.StatusConflict, "REORDER_IN_PROGRESS", "Another reorder of this list is in progress", nil)
	}
	if err != nil {
		s.logger.Error("acquire scope lock", slog.String("scope_id", scopeID), slog.String("error", err.Error()))
		return domainError(http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "Ordering could not be saved, try again", nil)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release scope lock", slog.String("scope_id", scopeID), slog.String("error", err.Error()))
		}
	}()
	return fn()
}

// ListScope returns the persisted order of any scope.
func (s *Service) ListScope(ctx context.Context, p Principal, kindName, scopeID string, sortKey string) ([]sequencing.Item, error) {
	kind, err := store.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	key, err := parseSortKey(sortKey)
	if err != nil {
		return nil, err
	}
	if _, err := s.scope(ctx, p, kind, scopeID); err != nil {
		return nil, err
	}
	items, err := s.coords[kind].ListOrdered(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	return sequencing.SortedBy(items, key), nil
}

func parseSortKey(value string) (sequencing.SortKey, error) {
	switch sequencing.SortKey(value) {
	case "", sequencing.SortBySequenceKey:
		return sequencing.SortBySequenceKey, nil
	case sequencing.SortByName, sequencing.SortByUpdatedAt:
		return sequencing.SortKey(value), nil
	}
	return "", validationError("sort must be sequence, name or updated_at")
}

// Glossary

func (s *Service) CreateTerm(ctx context.Context, p Principal, projectID, term, definition string) (store.GlossaryTerm, error) {
	term = strings.TrimSpace(term)
	if err := required("term", term); err != nil {
		return store.GlossaryTerm{}, err
	}
	if _, err := s.project(ctx, p, projectID); err != nil {
		return store.GlossaryTerm{}, err
	}
	next, err := s.coords[store.KindGlossary].NextSequence(ctx, projectID)
	if err != nil {
		return store.GlossaryTerm{}, err
	}
	created, err := s.store.CreateGlossaryTerm(ctx, store.GlossaryTerm{
		ID:         util.NewID("term"),
		ProjectID:  projectID,
		Term:       term,
		Definition: strings.TrimSpace(definition),
		Sequence:   next,
	})
	if err != nil {
		return store.GlossaryTerm{}, err
	}
	s.search.IndexTerm(search.TermRecordFrom(created))
	return created, nil
}

// ListTerms returns the glossary in persisted order, or in a presentation
// order when sortKey names one. Sequences are never changed by sorting.
func (s *Service) ListTerms(ctx context.Context, p Principal, projectID, sortKey string) ([]store.GlossaryTerm, error) {
	key, err := parseSortKey(sortKey)
	if err != nil {
		return nil, err
	}
	if _, err := s.project(ctx, p, projectID); err != nil {
		return nil, err
	}
	terms, err := s.store.ListGlossaryTerms(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if key == sequencing.SortBySequenceKey {
		return terms, nil
	}

	byID := make(map[string]store.GlossaryTerm, len(terms))
	items := make([]sequencing.Item, 0, len(terms))
	for _, term := range terms {
		byID[term.ID] = term
		items = append(items, sequencing.Item{
			ID:        term.ID,
			ScopeID:   projectID,
			Sequence:  term.Sequence,
			Label:     term.Term,
			UpdatedAt: term.UpdatedAt,
		})
	}
	sorted := make([]store.GlossaryTerm, 0, len(terms))
	for _, item := range sequencing.SortedBy(items, key) {
		sorted = append(sorted, byID[item.ID])
	}
	return sorted, nil
}

func (s *Service) term(ctx context.Context, p Principal, termID string) (store.GlossaryTerm, error) {
	term, err := s.store.GetGlossaryTerm(ctx, termID)
	if err != nil {
		return store.GlossaryTerm{}, err
	}
	if _, err := s.project(ctx, p, term.ProjectID); err != nil {
		return store.GlossaryTerm{}, err
	}
	return term, nil
}

func (s *Service) UpdateTerm(ctx context.Context, p Principal, termID, term, definition string) (store.GlossaryTerm, error) {
	term = strings.TrimSpace(term)
	if err := required("term", term); err != nil {
		return store.GlossaryTerm{}, err
	}
	if _, err := s.term(ctx, p, termID); err != nil {
		return store.GlossaryTerm{}, err
	}
	if err := s.store.UpdateGlossaryTerm(ctx, termID, term, strings.TrimSpace(definition)); err != nil {
		return store.GlossaryTerm{}, err
	}
	updated, err := s.store.GetGlossaryTerm(ctx, termID)
	if err != nil {
		return store.GlossaryTerm{}, err
	}
	s.search.IndexTerm(search.TermRecordFrom(updated))
	return updated, nil
}

func (s *Service) DeleteTerm(ctx context.Context, p Principal, termID string) (DeleteResult, error) {
	if _, err := s.term(ctx, p, termID); err != nil {
		return DeleteResult{}, err
	}
	var projectID string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx *store.Store) error {
		var err error
		projectID, err = tx.DeleteGlossaryTerm(ctx, termID)
		return err
	})
	if err != nil {
		return DeleteResult{}, err
	}
	s.search.DeleteTerm(termID)
	result := s.renumber(ctx, store.KindGlossary, projectID, termID)
	s.reindexGlossary(ctx, projectID)
	return DeleteResult{ID: termID, OrderResult: result}, nil
}

// reindexGlossary pushes fresh sequences for a project's terms to the
// search index.
func (s *Service) reindexGlossary(ctx context.Context, projectID string) {
	if !s.search.Indexing() {
		return
	}
	terms, err := s.store.ListGlossaryTerms(ctx, projectID)
	if err != nil {
		s.logger.Warn("reindex glossary", slog.String("project_id", projectID), slog.String("error", err.Error()))
		return
	}
	for _, term := range terms {
		s.search.IndexTerm(search.TermRecordFrom(term))
	}
}

// Usecases

func (s *Service) CreateUsecase(ctx context.Context, p Principal, actorID, name, description string) (store.Usecase, error) {
	name = strings.TrimSpace(name)
	if err := required("name", name); err != nil {
		return store.Usecase{}, err
	}
	if _, err := s.scope(ctx, p, store.KindUsecase, actorID); err != nil {
		return store.Usecase{}, err
	}
	next, err := s.coords[store.KindUsecase].NextSequence(ctx, actorID)
	if err != nil {
		return store.Usecase{}, err
	}
	return s.store.CreateUsecase(ctx, store.Usecase{
		ID:          util.NewID("uc"),
		ActorID:     actorID,
		Name:        name,
		Description: strings.TrimSpace(description),
		Sequence:    next,
	})
}

func (s *Service) ListUsecases(ctx context.Context, p Principal, actorID string) ([]store.Usecase, error) {
	if _, err := s.scope(ctx, p, store.KindUsecase, actorID); err != nil {
		return nil, err
	}
	return s.store.ListUsecases(ctx, actorID)
}

func (s *Service) usecase(ctx context.Context, p Principal, usecaseID string) (store.Usecase, error) {
	usecase, err := s.store.GetUsecase(ctx, usecaseID)
	if err != nil {
		return store.Usecase{}, err
	}
	if _, err := s.scope(ctx, p, store.KindUsecase, usecase.ActorID); err != nil {
		return store.Usecase{}, err
	}
	return usecase, nil
}

func (s *Service) UpdateUsecase(ctx context.Context, p Principal, usecaseID, name, description string) (store.Usecase, error) {
	name = strings.TrimSpace(name)
	if err := required("name", name); err != nil {
		return store.Usecase{}, err
	}
	if _, err := s.usecase(ctx, p, usecaseID); err != nil {
		return store.Usecase{}, err
	}
	if err := s.store.UpdateUsecase(ctx, usecaseID, name, strings.TrimSpace(description)); err != nil {
		return store.Usecase{}, err
	}
	return s.store.GetUsecase(ctx, usecaseID)
}

func (s *Service) DeleteUsecase(ctx context.Context, p Principal, usecaseID string) (DeleteResult, error) {
	if _, err := s.usecase(ctx, p, usecaseID); err != nil {
		return DeleteResult{}, err
	}
	var actorID string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx *store.Store) error {
		var err error
		actorID, err = tx.DeleteUsecase(ctx, usecaseID)
		return err
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{ID: usecaseID, OrderResult: s.renumber(ctx, store.KindUsecase, actorID, usecaseID)}, nil
}

// Features

func (s *Service) CreateFeature(ctx context.Context, p Principal, usecaseID, name, description, acceptance string) (store.Feature, error) {
	name = strings.TrimSpace(name)
	if err := required("name", name); err != nil {
		return store.Feature{}, err
	}
	if _, err := s.scope(ctx, p, store.KindFeature, usecaseID); err != nil {
		return store.Feature{}, err
	}
	next, err := s.coords[store.KindFeature].NextSequence(ctx, usecaseID)
	if err != nil {
		return store.Feature{}, err
	}
	return s.store.CreateFeature(ctx, store.Feature{
		ID:                 util.NewID("feat"),
		UsecaseID:          usecaseID,
		Name:               name,
		Description:        strings.TrimSpace(description),
		AcceptanceCriteria: strings.TrimSpace(acceptance),
		Sequence:           next,
	})
}

func (s *Service) ListFeatures(ctx context.Context, p Principal, usecaseID string) ([]store.Feature, error) {
	if _, err := s.scope(ctx, p, store.KindFeature, usecaseID); err != nil {
		return nil, err
	}
	return s.store.ListFeatures(ctx, usecaseID)
}

func (s *Service) feature(ctx context.Context, p Principal, featureID string) (store.Feature, string, error) {
	feature, err := s.store.GetFeature(ctx, featureID)
	if err != nil {
		return store.Feature{}, "", err
	}
	projectID, err := s.scope(ctx, p, store.KindFeature, feature.UsecaseID)
	if err != nil {
		return store.Feature{}, "", err
	}
	return feature, projectID, nil
}

func (s *Service) UpdateFeature(ctx context.Context, p Principal, featureID, name, description, acceptance string) (store.Feature, error) {
	name = strings.TrimSpace(name)
	if err := required("name", name); err != nil {
		return store.Feature{}, err
	}
	if _, _, err := s.feature(ctx, p, featureID); err != nil {
		return store.Feature{}, err
	}
	if err := s.store.UpdateFeature(ctx, featureID, name, strings.TrimSpace(description), strings.TrimSpace(acceptance)); err != nil {
		return store.Feature{}, err
	}
	return s.store.GetFeature(ctx, featureID)
}

func (s *Service) DeleteFeature(ctx context.Context, p Principal, featureID string) (DeleteResult, error) {
	if _, _, err := s.feature(ctx, p, featureID); err != nil {
		return DeleteResult{}, err
	}
	var usecaseID string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx *store.Store) error {
		var err error
		usecaseID, err = tx.DeleteFeature(ctx, featureID)
		return err
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{ID: featureID, OrderResult: s.renumber(ctx, store.KindFeature, usecaseID, featureID)}, nil
}

// Policy library

func (s *Service) CreatePolicy(ctx context.Context, p Principal, projectID, title, content string) (store.Policy, error) {
	title = strings.TrimSpace(title)
	if err := required("title", title); err != nil {
		return store.Policy{}, err
	}
	if _, err := s.project(ctx, p, projectID); err != nil {
		return store.Policy{}, err
	}
	created, err := s.store.CreatePolicy(ctx, store.Policy{
		ID:        util.NewID("pol"),
		ProjectID: projectID,
		Title:     title,
		Content:   content,
	})
	if err != nil {
		return store.Policy{}, err
	}
	s.search.IndexPolicy(search.PolicyRecordFrom(created))
	return created, nil
}

func (s *Service) ListPolicies(ctx context.Context, p Principal, projectID string) ([]store.Policy, error) {
	if _, err := s.project(ctx, p, projectID); err != nil {
		return nil, err
	}
	return s.store.ListPolicies(ctx, projectID)
}

func (s *Service) policy(ctx context.Context, p Principal, policyID string) (store.Policy, error) {
	policy, err := s.store.GetPolicy(ctx, policyID)
	if err != nil {
		return store.Policy{}, err
	}
	if _, err := s.project(ctx, p, policy.ProjectID); err != nil {
		return store.Policy{}, err
	}
	return policy, nil
}

func (s *Service) UpdatePolicy(ctx context.Context, p Principal, policyID, title, content string) (store.Policy, error) {
	title = strings.TrimSpace(title)
	if err := required("title", title); err != nil {
		return store.Policy{}, err
	}
	if _, err := s.policy(ctx, p, policyID); err != nil {
		return store.Policy{}, err
	}
	if err := s.store.UpdatePolicy(ctx, policyID, title, content); err != nil {
		return store.Policy{}, err
	}
	updated, err := s.store.GetPolicy(ctx, policyID)
	if err != nil {
		return store.Policy{}, err
	}
	s.search.IndexPolicy(search.PolicyRecordFrom(updated))
	return updated, nil
}

// PolicyDeleteResult maps each feature that lost a binding to its
// renumbered binding order.
type PolicyDeleteResult struct {
	ID       string                 `json:"id"`
	Features map[string]OrderResult `json:"features"`
}

func (s *Service) DeletePolicy(ctx context.Context, p Principal, policyID string) (PolicyDeleteResult, error) {
	if _, err := s.policy(ctx, p, policyID); err != nil {
		return PolicyDeleteResult{}, err
	}
	var features []string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx *store.Store) error {
		var err error
		features, err = tx.DeletePolicy(ctx, policyID)
		return err
	})
	if err != nil {
		return PolicyDeleteResult{}, err
	}
	s.search.DeletePolicy(policyID)

	result := PolicyDeleteResult{ID: policyID, Features: make(map[string]OrderResult, len(features))}
	for _, featureID := range features {
		result.Features[featureID] = s.renumber(ctx, store.KindFeaturePolicy, featureID, "")
	}
	return result, nil
}

// Feature policy bindings

func (s *Service) BindPolicy(ctx context.Context, p Principal, featureID, policyID string) (store.FeaturePolicy, error) {
	if err := required("policyId", policyID); err != nil {
		return store.FeaturePolicy{}, err
	}
	projectID, err := s.scope(ctx, p, store.KindFeaturePolicy, featureID)
	if err != nil {
		return store.FeaturePolicy{}, err
	}
	policy, err := s.store.GetPolicy(ctx, policyID)
	if errors.Is(err, store.ErrNotFound) {
		return store.FeaturePolicy{}, validationError("policy does not exist")
	}
	if err != nil {
		return store.FeaturePolicy{}, err
	}
	if policy.ProjectID != projectID {
		return store.FeaturePolicy{}, validationError("policy belongs to another project")
	}
	next, err := s.coords[store.KindFeaturePolicy].NextSequence(ctx, featureID)
	if err != nil {
		return store.FeaturePolicy{}, err
	}
	return s.store.BindPolicy(ctx, store.FeaturePolicy{
		ID:        util.NewID("fp"),
		FeatureID: featureID,
		PolicyID:  policyID,
		Sequence:  next,
	})
}

func (s *Service) ListFeaturePolicies(ctx context.Context, p Principal, featureID string) ([]store.FeaturePolicy, error) {
	if _, err := s.scope(ctx, p, store.KindFeaturePolicy, featureID); err != nil {
		return nil, err
	}
	return s.store.ListFeaturePolicies(ctx, featureID)
}

func (s *Service) UnbindPolicy(ctx context.Context, p Principal, bindingID string) (DeleteResult, error) {
	binding, err := s.store.GetFeaturePolicy(ctx, bindingID)
	if err != nil {
		return DeleteResult{}, err
	}
	if _, err := s.scope(ctx, p, store.KindFeaturePolicy, binding.FeatureID); err != nil {
		return DeleteResult{}, err
	}
	var featureID string
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx *store.Store) error {
		var err error
		featureID, err = tx.UnbindPolicy(ctx, bindingID)
		return err
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{ID: bindingID, OrderResult: s.renumber(ctx, store.KindFeaturePolicy, featureID, bindingID)}, nil
}

// Glossary links

func (s *Service) LinkTerm(ctx context.Context, p Principal, policyID, termID string) (store.GlossaryLink, error) {
	if err := required("termId", termID); err != nil {
		return store.GlossaryLink{}, err
	}
	policy, err := s.policy(ctx, p, policyID)
	if err != nil {
		return store.GlossaryLink{}, err
	}
	term, err := s.store.GetGlossaryTerm(ctx, termID)
	if errors.Is(err, store.ErrNotFound) {
		return store.GlossaryLink{}, validationError("glossary term does not exist")
	}
	if err != nil {
		return store.GlossaryLink{}, err
	}
	if term.ProjectID != policy.ProjectID {
		return store.GlossaryLink{}, validationError("glossary term belongs to another project")
	}
	return s.store.LinkTerm(ctx, policyID, termID)
}

func (s *Service) UnlinkTerm(ctx context.Context, p Principal, policyID, termID string) error {
	if err := required("termId", termID); err != nil {
		return err
	}
	if _, err := s.policy(ctx, p, policyID); err != nil {
		return err
	}
	return s.store.UnlinkTerm(ctx, policyID, termID)
}

func (s *Service) ListPolicyTerms(ctx context.Context, p Principal, policyID string) ([]store.GlossaryLink, error) {
	if _, err := s.policy(ctx, p, policyID); err != nil {
		return nil, err
	}
	return s.store.ListPolicyTerms(ctx, policyID)
}

// Search

func (s *Service) Search(ctx context.Context, p Principal, projectID, text, filterType string, limit, offset int) (search.Response, error) {
	if _, err := s.project(ctx, p, projectID); err != nil {
		return search.Response{}, err
	}
	rtype := search.ResultType(filterType)
	switch rtype {
	case "", search.ResultTerm, search.ResultPolicy:
	default:
		return search.Response{}, validationError("type must be term or policy")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.search.Search(search.Query{
		Text:       strings.TrimSpace(text),
		ProjectID:  projectID,
		FilterType: rtype,
		Limit:      limit,
		Offset:     offset,
	}), nil
}
