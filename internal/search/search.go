package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTerm   ResultType = "term"
	ResultPolicy ResultType = "policy"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	ProjectID string     `json:"projectId"`
	Sequence  int        `json:"sequence,omitempty"`
}

// Query describes a search request. Every search is confined to one project.
type Query struct {
	Text       string
	ProjectID  string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexTerm(t TermRecord) error
	IndexPolicy(p PolicyRecord) error
	DeleteTerm(id string) error
	DeletePolicy(id string) error
}

// TermRecord is the data we index for a glossary term.
type TermRecord struct {
	ID         string `json:"id"`
	ProjectID  string `json:"projectId"`
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Sequence   int    `json:"sequence"`
}

// PolicyRecord is the data we index for a policy.
type PolicyRecord struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}
