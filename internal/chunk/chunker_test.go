package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/parse"
)

func testFile(lineCount int) *parse.ParsedFile {
	lines := make([]string, lineCount)
	for i := range lines {
		lines[i] = strings.Repeat("x", 10)
	}
	return &parse.ParsedFile{
		Path:     "src/service.go",
		Language: "go",
		Source:   strings.Join(lines, "\n"),
	}
}

func TestChunkFile_AddsContextLines(t *testing.T) {
	file := testFile(40)
	file.Symbols = []*parse.Symbol{{
		ID: "sym-1", Name: "Login", Kind: parse.KindMethod,
		StartLine: 15, EndLine: 20,
	}}

	chunker := NewChunker(Options{ContextLinesBefore: 5, ContextLinesAfter: 5, MaxChunkChars: 30000})
	out := chunker.ChunkFile(file)

	require.True(t, out.Success)
	require.Len(t, out.Chunks, 1)
	c := out.Chunks[0]
	assert.Equal(t, 10, c.ChunkStartLine)
	assert.Equal(t, 25, c.ChunkEndLine)
	assert.Equal(t, 15, c.StartLine)
	assert.Equal(t, 20, c.EndLine)
	assert.Equal(t, 16, strings.Count(c.Content, "\n")+1)
}

func TestChunkFile_ClampsToFileBounds(t *testing.T) {
	file := testFile(10)
	file.Symbols = []*parse.Symbol{{
		ID: "sym-1", Name: "Top", Kind: parse.KindFunction,
		StartLine: 1, EndLine: 9,
	}}

	chunker := NewChunker(Options{ContextLinesBefore: 5, ContextLinesAfter: 5, MaxChunkChars: 30000})
	out := chunker.ChunkFile(file)

	require.Len(t, out.Chunks, 1)
	assert.Equal(t, 1, out.Chunks[0].ChunkStartLine)
	assert.Equal(t, 10, out.Chunks[0].ChunkEndLine)
}

func TestChunkFile_SkipsIneligibleKinds(t *testing.T) {
	file := testFile(10)
	file.Symbols = []*parse.Symbol{
		{ID: "s1", Name: "Pkg", Kind: parse.KindNamespace, StartLine: 1, EndLine: 10},
		{ID: "s2", Name: "count", Kind: parse.KindField, StartLine: 2, EndLine: 2},
		{ID: "s3", Name: "Run", Kind: parse.KindFunction, StartLine: 3, EndLine: 5},
	}

	out := NewChunker(DefaultOptions()).ChunkFile(file)

	require.Len(t, out.Chunks, 1)
	assert.Equal(t, "s3", out.Chunks[0].SymbolID)
}

func TestChunkFile_DedupsIdenticalSpans(t *testing.T) {
	// Two symbols sharing a span collapse to one chunk, keeping the first.
	file := testFile(20)
	file.Symbols = []*parse.Symbol{
		{ID: "s1", Name: "Ctor", Kind: parse.KindConstructor, StartLine: 4, EndLine: 8},
		{ID: "s2", Name: "Init", Kind: parse.KindMethod, StartLine: 4, EndLine: 8},
	}

	out := NewChunker(DefaultOptions()).ChunkFile(file)

	require.Len(t, out.Chunks, 1)
	assert.Equal(t, "s1", out.Chunks[0].SymbolID)
}

func TestChunkFile_TruncationLadder(t *testing.T) {
	// Each line is 10 chars + newline. Symbol spans 4 lines (43 chars),
	// with context it spans 8 lines (87 chars).
	file := testFile(20)
	file.Symbols = []*parse.Symbol{{
		ID: "s1", Name: "Big", Kind: parse.KindMethod,
		StartLine: 5, EndLine: 8,
	}}

	t.Run("context dropped first", func(t *testing.T) {
		chunker := NewChunker(Options{ContextLinesBefore: 2, ContextLinesAfter: 2, MaxChunkChars: 50})
		out := chunker.ChunkFile(file)
		require.Len(t, out.Chunks, 1)
		c := out.Chunks[0]
		assert.Equal(t, 5, c.ChunkStartLine)
		assert.Equal(t, 8, c.ChunkEndLine)
		assert.LessOrEqual(t, len(c.Content), 50)
	})

	t.Run("hard truncation", func(t *testing.T) {
		chunker := NewChunker(Options{ContextLinesBefore: 2, ContextLinesAfter: 2, MaxChunkChars: 25})
		out := chunker.ChunkFile(file)
		require.Len(t, out.Chunks, 1)
		c := out.Chunks[0]
		assert.Len(t, c.Content, 25)
		assert.Equal(t, 5, c.ChunkStartLine)
		assert.Equal(t, c.ChunkStartLine+strings.Count(c.Content, "\n"), c.ChunkEndLine)
	})

	t.Run("exactly at cap is kept", func(t *testing.T) {
		chunker := NewChunker(Options{MaxChunkChars: 43})
		out := chunker.ChunkFile(file)
		require.Len(t, out.Chunks, 1)
		assert.Len(t, out.Chunks[0].Content, 43)
	})
}

func TestChunkFile_MissingSource(t *testing.T) {
	out := NewChunker(DefaultOptions()).ChunkFile(&parse.ParsedFile{Path: "gone.go"})

	assert.False(t, out.Success)
	assert.Equal(t, "source missing", out.Error)
	assert.Empty(t, out.Chunks)
}

func TestChunkFile_TokenCountEstimate(t *testing.T) {
	file := testFile(10)
	file.Symbols = []*parse.Symbol{{
		ID: "s1", Name: "Fn", Kind: parse.KindFunction, StartLine: 1, EndLine: 10,
	}}

	out := NewChunker(Options{MaxChunkChars: 30000}).ChunkFile(file)

	require.Len(t, out.Chunks, 1)
	c := out.Chunks[0]
	assert.Equal(t, len(c.Content)/4, c.TokenCount)
}

func TestChunkFile_PreferredSymbolName(t *testing.T) {
	file := testFile(10)
	file.Symbols = []*parse.Symbol{
		{ID: "p", Name: "Svc", QualifiedName: "App.Svc", Kind: parse.KindClass, StartLine: 1, EndLine: 10},
		{ID: "m", Name: "Run", QualifiedName: "App.Svc.Run", Kind: parse.KindMethod, ParentID: "p", StartLine: 2, EndLine: 4},
	}

	out := NewChunker(Options{MaxChunkChars: 30000}).ChunkFile(file)

	require.Len(t, out.Chunks, 2)
	assert.Equal(t, "App.Svc.Run", out.Chunks[1].SymbolName)
	assert.Equal(t, "App.Svc", out.Chunks[1].ParentSymbolName)
}
