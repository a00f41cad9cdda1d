package search

import (
	"context"
	"log/slog"
	"sync"
)

// Service is the facade that tries Meilisearch first and falls back to SQL.
type Service struct {
	meili    *Meili
	fallback *SQL
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback *SQL, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{meili: meili, fallback: fallback, logger: logger.With(slog.String("component", "search"))}
}

func (s *Service) indexing() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Indexing reports whether index updates currently reach Meilisearch.
func (s *Service) Indexing() bool {
	return s.indexing()
}

// Search tries Meilisearch if healthy, otherwise falls back to SQL.
func (s *Service) Search(q Query) Response {
	if s.indexing() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "meilisearch"}
		}
		s.logger.Warn("meilisearch error, falling back to sql", slog.String("error", err.Error()))
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text, Backend: "none"}
	}
	results, total, err := s.fallback.Search(q)
	if err != nil {
		s.logger.Error("sql search failed", slog.String("error", err.Error()))
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Backend: "sql"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "sql"}
}

// IndexTerm indexes a glossary term (fire-and-forget to Meilisearch).
func (s *Service) IndexTerm(t TermRecord) {
	s.async("index term", t.ID, func() error { return s.meili.IndexTerm(t) })
}

// IndexPolicy indexes a policy (fire-and-forget to Meilisearch).
func (s *Service) IndexPolicy(p PolicyRecord) {
	s.async("index policy", p.ID, func() error { return s.meili.IndexPolicy(p) })
}

// DeleteTerm removes a glossary term from the search index (fire-and-forget).
func (s *Service) DeleteTerm(id string) {
	s.async("delete term", id, func() error { return s.meili.DeleteTerm(id) })
}

// DeletePolicy removes a policy from the search index (fire-and-forget).
func (s *Service) DeletePolicy(id string) {
	s.async("delete policy", id, func() error { return s.meili.DeletePolicy(id) })
}

func (s *Service) async(op, id string, fn func() error) {
	if !s.indexing() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil {
			s.logger.Warn(op+" failed", slog.String("id", id), slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until in-flight index updates finish. Used on shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

// ReindexAll reads every term and policy from the database and pushes them
// to Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAll(ctx context.Context) {
	if !s.indexing() || s.fallback == nil {
		return
	}
	terms, policies, err := s.fallback.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Error("reindex load failed", slog.String("error", err.Error()))
		return
	}
	if err := s.meili.IndexTerms(terms); err != nil {
		s.logger.Warn("reindex terms", slog.String("error", err.Error()))
	}
	if err := s.meili.IndexPolicies(policies); err != nil {
		s.logger.Warn("reindex policies", slog.String("error", err.Error()))
	}
	s.logger.Info("search reindexed", slog.Int("terms", len(terms)), slog.Int("policies", len(policies)))
}

// Close stops the Meilisearch health monitor.
func (s *Service) Close() {
	s.Wait()
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
