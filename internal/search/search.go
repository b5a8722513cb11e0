package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultIssue ResultType = "issue"
	ResultWiki  ResultType = "wiki"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Key       string     `json:"key,omitempty"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	ProjectID string     `json:"projectId"`
	Tags      []string   `json:"tags,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	ProjectID  string
	Tag        string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// IssueRecord is the data we index for an issue. Desc is plain text.
type IssueRecord struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Title     string `json:"title"`
	Desc      string `json:"desc"`
	ProjectID string `json:"projectId"`
	Status    string `json:"status"`
	Assignee  string `json:"assignee"`
}

// WikiRecord is the data we index for a wiki page. Content is plain text.
type WikiRecord struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	ProjectID string   `json:"projectId"`
	Author    string   `json:"author"`
}

const defaultLimit = 20
