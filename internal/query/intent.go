package query

import "strings"

// similarPrefix triggers the similarity path: "similar:<symbolId>" with
// an optional textual filter after the id.
const similarPrefix = "similar:"

// intentKeywords maps phrases to intents; first match in table order
// wins, with Search taking precedence over the narrower intents.
// Built once, read-only.
var intentKeywords = []struct {
	intent Intent
	words  []string
}{
	{IntentSearch, []string{"find", "where", "locate", "search"}},
	{IntentNavigation, []string{"go to", "definition", "declare", "implement"}},
	{IntentRelations, []string{"who calls", "references", "uses", "depends"}},
	{IntentDocumentation, []string{"docs", "doc", "explain", "what does"}},
	{IntentExamples, []string{"example", "usage", "how to use"}},
}

// detectIntent classifies the query text; unknown text is a Search.
func detectIntent(query string) Intent {
	q := strings.ToLower(strings.TrimSpace(query))
	if strings.HasPrefix(q, similarPrefix) {
		return IntentSimilar
	}
	for _, entry := range intentKeywords {
		for _, w := range entry.words {
			if containsWord(q, w) {
				return entry.intent
			}
		}
	}
	return IntentSearch
}

// containsWord matches the keyword at word boundaries so "finder" does
// not read as "find".
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}

// parseSimilarQuery splits "similar:<symbolId> [filter text]" into the
// seed id and the optional filter.
func parseSimilarQuery(query string) (seedID, filter string) {
	rest := strings.TrimSpace(query)
	if len(rest) < len(similarPrefix) || !strings.EqualFold(rest[:len(similarPrefix)], similarPrefix) {
		return "", ""
	}
	rest = strings.TrimSpace(rest[len(similarPrefix):])
	if rest == "" {
		return "", ""
	}
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		return rest[:i], strings.TrimSpace(rest[i+1:])
	}
	return rest, ""
}
