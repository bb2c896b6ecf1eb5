package token

import "strings"

// keywordList is a multi-language keyword stop-list. Identifier extraction
// rejects these so fingerprints and literal buckets carry signal tokens,
// not syntax.
var keywordList = []string{
	// Shared across most languages
	"abstract", "break", "case", "catch", "class", "const", "continue",
	"default", "delete", "else", "enum", "export", "extends", "false",
	"final", "finally", "for", "function", "goto", "import", "instanceof",
	"interface", "namespace", "new", "null", "operator", "override",
	"package", "private", "protected", "public", "return", "static",
	"struct", "super", "switch", "this", "throw", "true", "try", "typeof",
	"var", "virtual", "void", "while", "with", "yield",

	// Primitive and common type names
	"bool", "boolean", "byte", "char", "decimal", "double", "float", "int",
	"long", "object", "sbyte", "short", "string", "uint", "ulong", "ushort",

	// C#/Java/Kotlin
	"async", "await", "base", "checked", "readonly", "sealed", "using",
	"internal", "partial", "record", "lock", "unsafe", "volatile",
	"implements", "synchronized", "throws", "transient", "extern",

	// Go
	"chan", "defer", "fallthrough", "func", "map", "range", "select",
	"type",

	// Python / Ruby / JS
	"and", "def", "del", "elif", "except", "from", "global", "lambda",
	"none", "nonlocal", "not", "pass", "raise", "self", "then", "undefined",
	"let",
}

// keywordSet is built once at package init; lookups never rebuild it.
var keywordSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(keywordList))
	for _, w := range keywordList {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}()

// IsKeyword reports whether the lexeme is on the stop-list.
func IsKeyword(lexeme string) bool {
	_, ok := keywordSet[strings.ToLower(lexeme)]
	return ok
}
