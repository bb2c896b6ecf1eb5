// Package parse defines the parsed-file contract the indexing pipeline
// consumes. Language-specific parsers live outside the core; they hand the
// pipeline a ParsedFile and the pipeline never touches raw syntax trees.
package parse

import "context"

// SymbolKind classifies a parsed symbol.
type SymbolKind string

const (
	KindNamespace   SymbolKind = "namespace"
	KindClass       SymbolKind = "class"
	KindInterface   SymbolKind = "interface"
	KindStruct      SymbolKind = "struct"
	KindEnum        SymbolKind = "enum"
	KindMethod      SymbolKind = "method"
	KindFunction    SymbolKind = "function"
	KindConstructor SymbolKind = "constructor"
	KindProperty    SymbolKind = "property"
	KindField       SymbolKind = "field"
	KindVariable    SymbolKind = "variable"
	KindParameter   SymbolKind = "parameter"
)

// EdgeKind classifies a relationship between two symbols.
type EdgeKind string

const (
	EdgeImport     EdgeKind = "import"
	EdgeInherits   EdgeKind = "inherits"
	EdgeImplements EdgeKind = "implements"
	EdgeCalls      EdgeKind = "calls"
	EdgeReferences EdgeKind = "references"
	EdgeDefines    EdgeKind = "defines"
	EdgeContains   EdgeKind = "contains"
	EdgeOverrides  EdgeKind = "overrides"
	EdgeTypeOf     EdgeKind = "type_of"
	EdgeReturns    EdgeKind = "returns"
)

// Symbol is one declaration extracted from a source file.
// Positions are 1-based; EndCol may be half-open depending on the parser.
type Symbol struct {
	ID            string
	Name          string
	QualifiedName string
	Kind          SymbolKind
	Language      string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	Signature     string
	Documentation string
	Modifiers     []string

	// ParentID points to the enclosing symbol in the same file, or is empty.
	ParentID string

	// LiteralTokens are identifier-grade tokens lifted from string literals
	// inside method and constructor bodies.
	LiteralTokens []string
}

// Edge is a relationship from a symbol to another symbol or, when the
// target does not resolve inside the repository, to a qualified name.
type Edge struct {
	SourceID   string
	TargetID   string // empty when unresolved
	TargetName string // qualified name, set when TargetID is empty
	Kind       EdgeKind
}

// ParsedFile is the unit of work the pipeline receives per source file.
type ParsedFile struct {
	Path     string
	Language string
	Source   string
	Symbols  []*Symbol
	Edges    []*Edge
}

// LineCount reports the number of lines in the file's source text.
func (f *ParsedFile) LineCount() int {
	if f.Source == "" {
		return 0
	}
	n := 1
	for _, r := range f.Source {
		if r == '\n' {
			n++
		}
	}
	return n
}

// ChangeType describes what happened to a file between two commits.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// FileChange is one element of the change stream the version-control
// collaborator feeds into the pipeline.
type FileChange struct {
	Repo   string
	Branch string
	Commit string
	Path   string
	Type   ChangeType
}

// Parser turns one file's source text into a ParsedFile. Implementations
// are external to the core.
type Parser interface {
	ParseFile(ctx context.Context, path, language, source string) (*ParsedFile, error)
}

// BlobReader fetches file contents at a commit. Implementations are
// external to the core (the version-control collaborator).
type BlobReader interface {
	ReadBlob(ctx context.Context, repo, commit, path string) (string, error)
}

// ChunkEligible reports whether symbols of this kind become code chunks.
func ChunkEligible(kind SymbolKind) bool {
	switch kind {
	case KindClass, KindInterface, KindStruct, KindEnum,
		KindMethod, KindFunction, KindConstructor, KindProperty:
		return true
	}
	return false
}
