// Package token provides the identifier-aware tokenizer shared by the
// search builder and the fingerprint service. Both operations are pure and
// deterministic for identical inputs.
package token

import (
	"strings"
	"unicode"
)

// MinTokenLength is the minimum length for tokens emitted by Tokenize.
const MinTokenLength = 2

// MinIdentifierLength is the minimum length for identifiers kept by
// ExtractIdentifierTokens.
const MinIdentifierLength = 3

// Tokenize splits text into lowercase sub-tokens with code-aware rules.
// It splits on runs of non-alphanumeric characters, then splits each
// segment on camelCase/PascalCase/acronym/digit boundaries. Duplicates are
// removed keeping first-seen order; tokens shorter than two characters are
// dropped.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var tokens []string
	seen := make(map[string]struct{})

	emit := func(t string) {
		lower := strings.ToLower(t)
		if len(lower) < MinTokenLength {
			return
		}
		if _, dup := seen[lower]; dup {
			return
		}
		seen[lower] = struct{}{}
		tokens = append(tokens, lower)
	}

	var segment []rune
	flush := func() {
		if len(segment) == 0 {
			return
		}
		for _, sub := range splitSegment(segment) {
			emit(sub)
		}
		segment = segment[:0]
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			segment = append(segment, r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// splitSegment splits one alphanumeric segment into sub-tokens: acronym
// runs ([A-Z]+ not followed by lowercase), capitalised or lowercase word
// runs ([A-Z]?[a-z]+), and digit runs.
func splitSegment(runes []rune) []string {
	var result []string
	i := 0
	n := len(runes)
	for i < n {
		switch {
		case unicode.IsDigit(runes[i]):
			j := i
			for j < n && unicode.IsDigit(runes[j]) {
				j++
			}
			result = append(result, string(runes[i:j]))
			i = j
		case unicode.IsUpper(runes[i]):
			j := i
			for j < n && unicode.IsUpper(runes[j]) {
				j++
			}
			if j < n && unicode.IsLower(runes[j]) {
				// The last upper rune starts the next word ("HTTPServer"
				// splits as "HTTP" + "Server").
				if j-i > 1 {
					result = append(result, string(runes[i:j-1]))
					i = j - 1
				}
				k := i + 1
				for k < n && unicode.IsLower(runes[k]) {
					k++
				}
				result = append(result, string(runes[i:k]))
				i = k
			} else {
				result = append(result, string(runes[i:j]))
				i = j
			}
		default:
			j := i
			for j < n && unicode.IsLower(runes[j]) {
				j++
			}
			result = append(result, string(runes[i:j]))
			i = j
		}
	}
	return result
}

// ExtractIdentifierTokens scans at most maxChars characters of source text
// and returns up to maxTokens distinct identifier tokens in first-seen
// order. Language keywords, numeric lexemes, identifiers shorter than three
// characters and lexemes that produce no Tokenize output are rejected.
func ExtractIdentifierTokens(source string, maxChars, maxTokens int) []string {
	if source == "" || maxTokens <= 0 {
		return nil
	}
	if maxChars > 0 && len(source) > maxChars {
		source = source[:maxChars]
	}

	var tokens []string
	seen := make(map[string]struct{})

	runes := []rune(source)
	n := len(runes)
	i := 0
	for i < n && len(tokens) < maxTokens {
		r := runes[i]
		if !isIdentStart(r) {
			// Skip over identifier tails so "9abc" is not re-entered at 'a'.
			for i < n && isIdentPart(runes[i]) {
				i++
			}
			if i < n && !isIdentPart(runes[i]) {
				i++
			}
			continue
		}

		j := i
		for j < n && isIdentPart(runes[j]) {
			j++
		}
		lexeme := string(runes[i:j])
		i = j

		lower := strings.ToLower(lexeme)
		if len(lower) < MinIdentifierLength {
			continue
		}
		if _, stop := keywordSet[lower]; stop {
			continue
		}
		if isNumeric(lexeme) {
			continue
		}
		if len(Tokenize(lexeme)) == 0 {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		tokens = append(tokens, lower)
	}

	return tokens
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
