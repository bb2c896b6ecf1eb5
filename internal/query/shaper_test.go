package query

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeResults(n, contentLen int) []*SearchResult {
	out := make([]*SearchResult, n)
	for i := range out {
		out[i] = &SearchResult{
			ID:         fmt.Sprintf("sym-%02d", i),
			Type:       "symbol",
			SymbolName: fmt.Sprintf("Symbol%02d", i),
			Content:    strings.Repeat("x", contentLen),
			Score:      float64(n - i),
		}
	}
	return out
}

func TestShape_CompactionBudgets(t *testing.T) {
	resp := &Response{
		Query:   "q",
		Intent:  IntentSearch,
		Results: makeResults(25, 1000),
	}
	shape(resp, shapeOptions{MaxResults: 10, MaxSnippetChars: 8000, MaxJSONBytes: 16384})

	assert.LessOrEqual(t, len(resp.Results), 10)

	total := 0
	for _, r := range resp.Results {
		total += len(r.Content)
	}
	assert.LessOrEqual(t, total, 8000)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), 16384)
}

func TestShape_TopRankGetsLargestSlot(t *testing.T) {
	resp := &Response{Results: makeResults(4, 5000)}
	shape(resp, shapeOptions{MaxResults: 10, MaxSnippetChars: 1000})

	require.Len(t, resp.Results, 4)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, len(resp.Results[i-1].Content), len(resp.Results[i].Content))
	}
	assert.Greater(t, len(resp.Results[0].Content), len(resp.Results[3].Content))
}

func TestShape_DropsTailUntilUnderByteCap(t *testing.T) {
	resp := &Response{Results: makeResults(20, 200)}
	shape(resp, shapeOptions{MaxResults: 20, MaxSnippetChars: 4000, MaxJSONBytes: 2000})

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), 2000)
	assert.Less(t, len(resp.Results), 20)
	// The survivors are the highest ranked.
	assert.Equal(t, "sym-00", resp.Results[0].ID)
}

func TestShape_SingleOversizedResultLosesContent(t *testing.T) {
	resp := &Response{Results: makeResults(1, 5000)}
	shape(resp, shapeOptions{MaxResults: 10, MaxSnippetChars: 100000, MaxJSONBytes: 1024})

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), 1024)
	require.Len(t, resp.Results, 1)
}

func TestShape_TruncatesOnRuneBoundary(t *testing.T) {
	// Multi-byte content must never be cut mid-rune; the marshalled JSON
	// would otherwise carry replacement characters.
	resp := &Response{Results: []*SearchResult{{
		ID: "sym-0", Type: "symbol", SymbolName: "Grüße",
		Content: strings.Repeat("ü", 600),
	}}}
	shape(resp, shapeOptions{MaxResults: 10, MaxSnippetChars: 501})

	got := resp.Results[0].Content
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 501)
}

func TestTruncateToRune(t *testing.T) {
	assert.Equal(t, "aü", truncateToRune("aüb", 3))
	assert.Equal(t, "a", truncateToRune("aüb", 2))
	assert.Equal(t, "aüb", truncateToRune("aüb", 10))
	assert.Equal(t, "", truncateToRune("ü", 1))
}

func TestShape_MetadataPassthrough(t *testing.T) {
	resp := &Response{
		Results: makeResults(1, 10),
		Metadata: map[string]any{
			"profile":       "Fast",
			"repository":    "repo",
			"errorCode":     "seed_not_found",
			"internalDebug": "should vanish",
		},
	}
	shape(resp, shapeOptions{MaxResults: 10})

	assert.Equal(t, "Fast", resp.Metadata["profile"])
	assert.Equal(t, "seed_not_found", resp.Metadata["errorCode"])
	assert.NotContains(t, resp.Metadata, "internalDebug")
}
