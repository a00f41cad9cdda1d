package search

import (
	"context"
	"fmt"
	"strings"

	"termbase/api/internal/store"
)

// recordStore is the slice of store.Store the SQL fallback reads.
type recordStore interface {
	SearchGlossaryTerms(ctx context.Context, projectID, text string, limit int) ([]store.GlossaryTerm, error)
	SearchPolicies(ctx context.Context, projectID, text string, limit int) ([]store.Policy, error)
	AllGlossaryTerms(ctx context.Context) ([]store.GlossaryTerm, error)
	AllPolicies(ctx context.Context) ([]store.Policy, error)
}

// SQL implements Searcher with substring matching in the primary database.
// It works on both Postgres and SQLite and is used whenever Meilisearch is
// absent or unhealthy.
type SQL struct {
	store recordStore
}

func NewSQL(s recordStore) *SQL {
	return &SQL{store: s}
}

// Healthy always returns true; if the database is down the whole app is down.
func (p *SQL) Healthy() bool {
	return true
}

func (p *SQL) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	ctx := context.Background()
	var results []Result

	if q.FilterType == "" || q.FilterType == ResultTerm {
		terms, err := p.store.SearchGlossaryTerms(ctx, q.ProjectID, q.Text, offset+limit)
		if err != nil {
			return nil, 0, fmt.Errorf("sql search terms: %w", err)
		}
		for _, t := range terms {
			results = append(results, Result{
				Type:      ResultTerm,
				ID:        t.ID,
				Title:     t.Term,
				Snippet:   snippet(t.Definition),
				ProjectID: t.ProjectID,
				Sequence:  t.Sequence,
			})
		}
	}

	if q.FilterType == "" || q.FilterType == ResultPolicy {
		policies, err := p.store.SearchPolicies(ctx, q.ProjectID, q.Text, offset+limit)
		if err != nil {
			return nil, 0, fmt.Errorf("sql search policies: %w", err)
		}
		for _, pol := range policies {
			results = append(results, Result{
				Type:      ResultPolicy,
				ID:        pol.ID,
				Title:     pol.Title,
				Snippet:   snippet(pol.Content),
				ProjectID: pol.ProjectID,
			})
		}
	}

	total := len(results)
	if offset >= len(results) {
		return nil, total, nil
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, total, nil
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *SQL) LoadAllRecords(ctx context.Context) ([]TermRecord, []PolicyRecord, error) {
	terms, err := p.store.AllGlossaryTerms(ctx)
	if err != nil {
		return nil, nil, err
	}
	policies, err := p.store.AllPolicies(ctx)
	if err != nil {
		return nil, nil, err
	}

	termRecords := make([]TermRecord, 0, len(terms))
	for _, t := range terms {
		termRecords = append(termRecords, TermRecordFrom(t))
	}
	policyRecords := make([]PolicyRecord, 0, len(policies))
	for _, pol := range policies {
		policyRecords = append(policyRecords, PolicyRecordFrom(pol))
	}
	return termRecords, policyRecords, nil
}

func TermRecordFrom(t store.GlossaryTerm) TermRecord {
	return TermRecord{ID: t.ID, ProjectID: t.ProjectID, Term: t.Term, Definition: t.Definition, Sequence: t.Sequence}
}

func PolicyRecordFrom(p store.Policy) PolicyRecord {
	return PolicyRecord{ID: p.ID, ProjectID: p.ProjectID, Title: p.Title, Content: p.Content}
}

func snippet(text string) string {
	const maxRunes = 160
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxRunes {
		return string(runes)
	}
	return string(runes[:maxRunes]) + "…"
}
