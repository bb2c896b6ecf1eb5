package fingerprint

import (
	"strings"

	"github.com/codelens-dev/codelens/internal/parse"
	"github.com/codelens-dev/codelens/internal/token"
)

// Snippet extraction bounds for the per-symbol token bag.
const (
	snippetMaxChars  = 4000
	snippetMaxTokens = 256
)

// Entry is one symbol's fingerprint, ready for persistence.
type Entry struct {
	SymbolID        string
	Language        string
	Kind            parse.SymbolKind
	FingerprintKind string
	Fingerprint     Fingerprint
}

// Builder forms token bags for symbols and fingerprints them.
type Builder struct {
	service *Service
}

// NewBuilder returns a builder using the given fingerprint service.
func NewBuilder(service *Service) *Builder {
	return &Builder{service: service}
}

// BuildEntries produces one fingerprint entry per symbol in the file whose
// token bag is non-empty. The bag combines tokens from the symbol's name,
// qualified name, signature, documentation and literal tokens with
// identifier tokens extracted from its source snippet.
func (b *Builder) BuildEntries(file *parse.ParsedFile) []*Entry {
	if file == nil || len(file.Symbols) == 0 {
		return nil
	}

	lines := strings.Split(file.Source, "\n")

	entries := make([]*Entry, 0, len(file.Symbols))
	for _, sym := range file.Symbols {
		bag := b.tokenBag(sym, lines)
		if len(bag) == 0 {
			continue
		}
		entries = append(entries, &Entry{
			SymbolID:        sym.ID,
			Language:        sym.Language,
			Kind:            sym.Kind,
			FingerprintKind: KindSimHash64,
			Fingerprint:     b.service.Compute(bag),
		})
	}
	return entries
}

// tokenBag collects the distinct tokens describing one symbol.
func (b *Builder) tokenBag(sym *parse.Symbol, lines []string) []string {
	var bag []string
	seen := make(map[string]struct{})

	add := func(tokens []string) {
		for _, t := range tokens {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			bag = append(bag, t)
		}
	}

	add(token.Tokenize(sym.Name))
	add(token.Tokenize(sym.QualifiedName))
	add(token.Tokenize(sym.Signature))
	add(token.Tokenize(sym.Documentation))
	add(sym.LiteralTokens)

	snippet := sourceSlice(lines, sym.StartLine, sym.EndLine)
	add(token.ExtractIdentifierTokens(snippet, snippetMaxChars, snippetMaxTokens))

	return bag
}

// sourceSlice joins the 1-based inclusive line range, clamped to the file.
func sourceSlice(lines []string, startLine, endLine int) string {
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
	return strings.Join(lines[startLine-1:endLine], "\n")
}
