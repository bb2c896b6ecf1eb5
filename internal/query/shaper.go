package query

import (
	"encoding/json"
	"unicode/utf8"
)

// shapeOptions caps the emitted response.
type shapeOptions struct {
	MaxResults      int
	MaxSnippetChars int
	MaxJSONBytes    int
}

// metadataPassthrough lists the metadata keys that survive shaping.
var metadataPassthrough = []string{
	"errorCode", "error", "fallback",
	"embeddingUsed", "embeddingModel", "embeddingCandidateCount",
	"profile", "repository", "branch",
}

// shape compacts a response in place: truncate to MaxResults, divide the
// snippet budget across results by rank weight, then drop tail results
// until the serialized form fits MaxJSONBytes.
func shape(resp *Response, opts shapeOptions) {
	resp.Metadata = filterMetadata(resp.Metadata)

	if opts.MaxResults > 0 && len(resp.Results) > opts.MaxResults {
		resp.Results = resp.Results[:opts.MaxResults]
	}
	if opts.MaxSnippetChars > 0 {
		allocateSnippetBudget(resp.Results, opts.MaxSnippetChars)
	}
	if opts.MaxJSONBytes <= 0 {
		return
	}

	for {
		data, err := json.Marshal(resp)
		if err != nil || len(data) <= opts.MaxJSONBytes {
			return
		}
		if len(resp.Results) > 1 {
			resp.Results = resp.Results[:len(resp.Results)-1]
			continue
		}
		// A lone oversized result loses content instead.
		r := resp.Results[0]
		overage := len(data) - opts.MaxJSONBytes
		if len(r.Content) <= overage {
			r.Content = ""
			return
		}
		r.Content = truncateToRune(r.Content, len(r.Content)-overage)
	}
}

// truncateToRune cuts s to at most n bytes, backing off to the previous
// rune boundary so the slice never splits a UTF-8 sequence.
func truncateToRune(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// allocateSnippetBudget splits the total snippet budget by rank weight
// 1/(rank+1): the top result gets the largest slot.
func allocateSnippetBudget(results []*SearchResult, budget int) {
	if len(results) == 0 {
		return
	}
	var totalWeight float64
	for i := range results {
		totalWeight += 1.0 / float64(i+1)
	}
	for i, r := range results {
		slot := int(float64(budget) * (1.0 / float64(i+1)) / totalWeight)
		if len(r.Content) > slot {
			r.Content = truncateToRune(r.Content, slot)
		}
	}
}

func filterMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(metadataPassthrough))
	for _, key := range metadataPassthrough {
		if v, ok := meta[key]; ok {
			out[key] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
