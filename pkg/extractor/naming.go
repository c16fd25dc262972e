package extractor

import (
	"unicode"
	"unicode/utf8"
)

// IsPascalCase reports whether name starts with an uppercase letter.
func IsPascalCase(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return name != "" && unicode.IsUpper(r)
}

// IsCamelCase reports whether name starts with a lowercase letter.
func IsCamelCase(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return name != "" && unicode.IsLower(r)
}

// IsConstantCase reports whether every character of name is an uppercase
// letter, a digit or '_' (MAX_RETRIES, API_V2).
func IsConstantCase(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// isReactWrapper matches the callee names that turn a const binding into a
// component: memo(...), forwardRef(...) and their React.* forms.
func isReactWrapper(callee string) bool {
	switch callee {
	case "memo", "forwardRef", "React.memo", "React.forwardRef":
		return true
	}
	return false
}
