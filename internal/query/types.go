// Package query orchestrates retrieval over the indexed store: sparse
// full-text search, hybrid and vector-first profiles, and simhash
// similarity lookups, with response shaping to fixed byte budgets.
package query

// Intent classifies what the caller is trying to do with the query.
type Intent string

const (
	IntentSearch        Intent = "Search"
	IntentNavigation    Intent = "Navigation"
	IntentRelations     Intent = "Relations"
	IntentDocumentation Intent = "Documentation"
	IntentExamples      Intent = "Examples"
	IntentSimilar       Intent = "Similar"
)

// Retrieval profiles. Fast is sparse-only, Hybrid reranks sparse hits
// with cosine similarity, Semantic is vector-first.
const (
	ProfileFast     = "fast"
	ProfileHybrid   = "hybrid"
	ProfileSemantic = "semantic"
)

// Request is the wire query request.
type Request struct {
	Query      string `json:"query"`
	Repository string `json:"repository"`
	Branch     string `json:"branch,omitempty"`
	Language   string `json:"language,omitempty"`
	MaxResults int    `json:"maxResults,omitempty"`
	Profile    string `json:"profile,omitempty"`

	QueryEmbeddingBase64 string `json:"queryEmbeddingBase64,omitempty"`
	QueryEmbeddingDims   int    `json:"queryEmbeddingDims,omitempty"`
	QueryEmbeddingModel  string `json:"queryEmbeddingModel,omitempty"`
}

// SearchResult is one wire result row.
type SearchResult struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Repository    string   `json:"repository"`
	Branch        string   `json:"branch"`
	FilePath      string   `json:"filePath"`
	Language      string   `json:"language,omitempty"`
	SymbolName    string   `json:"symbolName"`
	Qualified     string   `json:"qualified,omitempty"`
	SymbolKind    string   `json:"symbolKind,omitempty"`
	Content       string   `json:"content"`
	StartLine     int      `json:"startLine"`
	EndLine       int      `json:"endLine"`
	Score         float64  `json:"score"`
	Signature     string   `json:"signature,omitempty"`
	Documentation string   `json:"documentation,omitempty"`
	Why           []string `json:"why,omitempty"`
}

// Response is the wire query response. Metadata carries the observable
// execution facts: profile, fallback chain, embedding usage, error
// codes.
type Response struct {
	Query           string          `json:"query"`
	Intent          Intent          `json:"intent"`
	Results         []*SearchResult `json:"results"`
	TotalResults    int             `json:"totalResults"`
	ExecutionTimeMs int64           `json:"executionTimeMs"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// maxWhyReasons caps explain reasons per result.
const maxWhyReasons = 3

func appendReason(why []string, reason string) []string {
	if len(why) >= maxWhyReasons {
		return why
	}
	for _, r := range why {
		if r == reason {
			return why
		}
	}
	return append(why, reason)
}
