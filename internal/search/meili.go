package search

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxTerms    = "termbase_glossary_terms"
	idxPolicies = "termbase_policies"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *slog.Logger
	healthy atomic.Bool
	done    chan struct{}
	every   time.Duration
}

// NewMeili creates a Meilisearch client and configures indexes. The client
// is returned even when the first health check fails; it keeps probing in
// the background and reports Healthy once the server answers.
func NewMeili(url, apiKey string, logger *slog.Logger) *Meili {
	if logger == nil {
		logger = slog.Default()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: logger.With(slog.String("component", "search.meili")),
		done:   make(chan struct{}),
		every:  10 * time.Second,
	}

	if _, err := client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", slog.String("url", url), slog.String("error", err.Error()))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
		sortable   []string
	}{
		{
			uid:        idxTerms,
			filterable: []string{"projectId"},
			searchable: []string{"term", "definition"},
			sortable:   []string{"sequence"},
		},
		{
			uid:        idxPolicies,
			filterable: []string{"projectId"},
			searchable: []string{"title", "content"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			m.logger.Debug("create index (may already exist)", slog.String("index", idx.uid), slog.String("error", err.Error()))
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.logger.Warn("update filterable attributes", slog.String("index", idx.uid), slog.String("error", err.Error()))
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.logger.Warn("update searchable attributes", slog.String("index", idx.uid), slog.String("error", err.Error()))
		}
		if len(idx.sortable) > 0 {
			if _, err := index.UpdateSortableAttributes(&idx.sortable); err != nil {
				m.logger.Warn("update sortable attributes", slog.String("index", idx.uid), slog.String("error", err.Error()))
			}
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(m.every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			switch {
			case err == nil && !wasHealthy:
				m.logger.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			case err != nil && wasHealthy:
				m.logger.Warn("meilisearch lost", slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the term and policy indexes (or one of them) within the
// query's project and merges the hits.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxTerms, ResultTerm},
		{idxPolicies, ResultPolicy},
	}

	var queries []*meili.SearchRequest
	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              ti.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			Filter:                fmt.Sprintf("projectId = %q", q.ProjectID),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxTerms:
		return ResultTerm
	case idxPolicies:
		return ResultPolicy
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.ProjectID = decodeString(hit, "projectId")

	switch rtyp {
	case ResultTerm:
		r.Title = firstNonBlank(decodeFormattedString(hit, "term"), decodeString(hit, "term"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "definition"), decodeString(hit, "definition"))
		r.Sequence = decodeInt(hit, "sequence")
	case ResultPolicy:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "content"), decodeString(hit, "content"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt(hit meili.Hit, key string) int {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexTerm adds or updates a glossary term in the search index.
func (m *Meili) IndexTerm(t TermRecord) error {
	_, err := m.client.Index(idxTerms).AddDocuments([]TermRecord{t}, nil)
	return err
}

// IndexPolicy adds or updates a policy in the search index.
func (m *Meili) IndexPolicy(p PolicyRecord) error {
	_, err := m.client.Index(idxPolicies).AddDocuments([]PolicyRecord{p}, nil)
	return err
}

// DeleteTerm removes a glossary term from the search index.
func (m *Meili) DeleteTerm(id string) error {
	_, err := m.client.Index(idxTerms).DeleteDocument(id, nil)
	return err
}

// DeletePolicy removes a policy from the search index.
func (m *Meili) DeletePolicy(id string) error {
	_, err := m.client.Index(idxPolicies).DeleteDocument(id, nil)
	return err
}

// IndexTerms bulk-indexes glossary terms.
func (m *Meili) IndexTerms(terms []TermRecord) error {
	if len(terms) == 0 {
		return nil
	}
	_, err := m.client.Index(idxTerms).AddDocuments(terms, nil)
	return err
}

// IndexPolicies bulk-indexes policies.
func (m *Meili) IndexPolicies(policies []PolicyRecord) error {
	if len(policies) == 0 {
		return nil
	}
	_, err := m.client.Index(idxPolicies).AddDocuments(policies, nil)
	return err
}
