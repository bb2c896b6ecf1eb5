// Package chunk materialises per-symbol source slices for embedding and
// display. One chunk per chunk-eligible symbol, ±context lines, with a
// truncation ladder and content-hash dedup.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/codelens-dev/codelens/internal/parse"
)

// Options configures chunk materialisation.
type Options struct {
	// ContextLinesBefore/After extend the slice beyond the symbol span.
	ContextLinesBefore int
	ContextLinesAfter  int

	// MaxChunkChars caps chunk content length. Oversized chunks first drop
	// context, then truncate.
	MaxChunkChars int
}

// DefaultOptions mirrors the server defaults.
func DefaultOptions() Options {
	return Options{
		ContextLinesBefore: 5,
		ContextLinesAfter:  5,
		MaxChunkChars:      30000,
	}
}

// Chunk is one materialised slice keyed to a symbol.
type Chunk struct {
	ID               string
	SymbolID         string
	SymbolName       string // qualified name preferred
	SymbolKind       parse.SymbolKind
	ParentSymbolName string
	Signature        string
	Documentation    string
	Language         string
	FilePath         string
	Content          string
	ContentHash      string
	StartLine        int // symbol span
	EndLine          int
	ChunkStartLine   int // materialised slice after context/truncation
	ChunkEndLine     int
	TokenCount       int
}

// ChunkedFile is the result of chunking one parsed file.
type ChunkedFile struct {
	Path    string
	Chunks  []*Chunk
	Success bool
	Error   string
}

// Chunker materialises chunks from parsed files.
type Chunker struct {
	opts Options
}

// NewChunker returns a chunker with the given options, falling back to
// defaults for zero values.
func NewChunker(opts Options) *Chunker {
	def := DefaultOptions()
	if opts.ContextLinesBefore < 0 {
		opts.ContextLinesBefore = 0
	}
	if opts.ContextLinesAfter < 0 {
		opts.ContextLinesAfter = 0
	}
	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = def.MaxChunkChars
	}
	return &Chunker{opts: opts}
}

// ChunkFile materialises one chunk per chunk-eligible symbol in file order.
// Chunks that collapse to the same (path, span, content hash) key are
// deduplicated keeping the first. A file without source text fails as a
// whole; no partial chunks are emitted.
func (c *Chunker) ChunkFile(file *parse.ParsedFile) *ChunkedFile {
	if file.Source == "" {
		return &ChunkedFile{Path: file.Path, Success: false, Error: "source missing"}
	}

	lines := strings.Split(file.Source, "\n")
	fileLineCount := len(lines)

	out := &ChunkedFile{Path: file.Path, Success: true}
	seen := make(map[string]struct{})

	for _, sym := range file.Symbols {
		if !parse.ChunkEligible(sym.Kind) {
			continue
		}

		content, startLine, endLine := c.materialise(lines, fileLineCount, sym.StartLine, sym.EndLine)
		hash := sha256.Sum256([]byte(content))
		contentHash := hex.EncodeToString(hash[:])

		key := fmt.Sprintf("%s:%d:%d:%s", file.Path, startLine, endLine, contentHash)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		name := sym.QualifiedName
		if name == "" {
			name = sym.Name
		}

		out.Chunks = append(out.Chunks, &Chunk{
			ID:               uuid.NewString(),
			SymbolID:         sym.ID,
			SymbolName:       name,
			SymbolKind:       sym.Kind,
			ParentSymbolName: parentName(file, sym),
			Signature:        sym.Signature,
			Documentation:    sym.Documentation,
			Language:         file.Language,
			FilePath:         file.Path,
			Content:          content,
			ContentHash:      contentHash,
			StartLine:        sym.StartLine,
			EndLine:          sym.EndLine,
			ChunkStartLine:   startLine,
			ChunkEndLine:     endLine,
			TokenCount:       len(content) / 4,
		})
	}

	return out
}

// materialise builds the content slice for one symbol span, applying the
// truncation ladder: with context, then without context, then a hard cut.
func (c *Chunker) materialise(lines []string, fileLineCount, symStart, symEnd int) (content string, startLine, endLine int) {
	startLine = max(1, symStart-c.opts.ContextLinesBefore)
	endLine = min(fileLineCount, symEnd+c.opts.ContextLinesAfter)

	content = joinLines(lines, startLine, endLine)
	if len(content) <= c.opts.MaxChunkChars {
		return content, startLine, endLine
	}

	// Retry without context.
	startLine = max(1, symStart)
	endLine = min(fileLineCount, symEnd)
	content = joinLines(lines, startLine, endLine)
	if len(content) <= c.opts.MaxChunkChars {
		return content, startLine, endLine
	}

	// Hard truncation; endLine reflects the surviving lines.
	content = content[:c.opts.MaxChunkChars]
	endLine = startLine + strings.Count(content, "\n")
	return content, startLine, endLine
}

func joinLines(lines []string, startLine, endLine int) string {
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

// parentName resolves the enclosing symbol's name within the same file.
func parentName(file *parse.ParsedFile, sym *parse.Symbol) string {
	if sym.ParentID == "" {
		return ""
	}
	for _, other := range file.Symbols {
		if other.ID == sym.ParentID {
			if other.QualifiedName != "" {
				return other.QualifiedName
			}
			return other.Name
		}
	}
	return ""
}
