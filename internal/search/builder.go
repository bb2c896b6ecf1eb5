// Package search builds per-symbol inverted-index entries. The storage
// layer materialises the weighted full-text vector from the token buckets;
// this package only decides what goes into each bucket.
package search

import (
	"strings"

	"github.com/codelens-dev/codelens/internal/parse"
	"github.com/codelens-dev/codelens/internal/token"
)

// MaxSnippetChars caps the stored snippet so search rows stay dense.
const MaxSnippetChars = 2048

// Entry is one symbol's search row: five token buckets plus a short
// snippet. Entry id equals the symbol id.
type Entry struct {
	SymbolID        string
	NameTokens      []string
	QualifiedTokens []string
	SignatureTokens []string
	DocTokens       []string
	LiteralTokens   []string
	Snippet         string
}

// Builder builds search entries from parsed files.
type Builder struct{}

// NewBuilder returns a search entry builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildEntries produces one entry per symbol in the file. Token buckets
// come from Tokenize over the respective fields; the snippet is the raw
// source slice of the symbol span, truncated to MaxSnippetChars.
func (b *Builder) BuildEntries(file *parse.ParsedFile) []*Entry {
	if file == nil || len(file.Symbols) == 0 {
		return nil
	}

	lines := strings.Split(file.Source, "\n")

	entries := make([]*Entry, 0, len(file.Symbols))
	for _, sym := range file.Symbols {
		entries = append(entries, &Entry{
			SymbolID:        sym.ID,
			NameTokens:      token.Tokenize(sym.Name),
			QualifiedTokens: token.Tokenize(sym.QualifiedName),
			SignatureTokens: token.Tokenize(sym.Signature),
			DocTokens:       token.Tokenize(sym.Documentation),
			LiteralTokens:   normalizeLiterals(sym.LiteralTokens),
			Snippet:         snippet(lines, sym.StartLine, sym.EndLine),
		})
	}
	return entries
}

// normalizeLiterals lowercases and dedups literal tokens in first-seen
// order; they arrive pre-split from the parser.
func normalizeLiterals(literals []string) []string {
	if len(literals) == 0 {
		return nil
	}
	out := make([]string, 0, len(literals))
	seen := make(map[string]struct{}, len(literals))
	for _, l := range literals {
		lower := strings.ToLower(strings.TrimSpace(l))
		if lower == "" {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, lower)
	}
	return out
}

// snippet returns the raw source slice for the 1-based inclusive range,
// truncated to MaxSnippetChars.
func snippet(lines []string, startLine, endLine int) string {
	if len(lines) == 0 {
		return ""
	}
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return ""
	}
	s := strings.Join(lines[startLine-1:endLine], "\n")
	if len(s) > MaxSnippetChars {
		s = s[:MaxSnippetChars]
	}
	return s
}

// Tokens returns the union of all buckets, used for match-reason
// computation on the query path.
func (e *Entry) Tokens() map[string]struct{} {
	set := make(map[string]struct{})
	for _, bucket := range [][]string{
		e.NameTokens, e.QualifiedTokens, e.SignatureTokens, e.DocTokens, e.LiteralTokens,
	} {
		for _, t := range bucket {
			set[t] = struct{}{}
		}
	}
	return set
}
