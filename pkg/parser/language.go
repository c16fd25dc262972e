package parser

import (
	"path/filepath"
	"strings"
)

// Language represents a supported grammar family.
type Language int

const (
	// LanguageTypeScript covers .ts, .mts, .cts and .tsx files
	LanguageTypeScript Language = iota
	// LanguageJavaScript covers .js, .jsx, .mjs and .cjs files (JSX included)
	LanguageJavaScript
	// LanguageUnknown represents an unsupported extension
	LanguageUnknown
)

// String returns the string representation of the language.
func (l Language) String() string {
	switch l {
	case LanguageTypeScript:
		return "typescript"
	case LanguageJavaScript:
		return "javascript"
	default:
		return "unknown"
	}
}

// DetectLanguage detects the grammar family from a file path.
// Returns LanguageUnknown if the file extension is not recognized.
func DetectLanguage(filePath string) Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".mts", ".cts", ".tsx":
		return LanguageTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	default:
		return LanguageUnknown
	}
}

// IsTSXFile reports whether the TypeScript grammar must be the TSX variant.
func IsTSXFile(filePath string) bool {
	return strings.EqualFold(filepath.Ext(filePath), ".tsx")
}
