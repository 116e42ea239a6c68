package transctl

import "regexp"

var (
	// PlaceholderPattern matches interpolation placeholders such as {{name}}.
	PlaceholderPattern = regexp.MustCompile(`\{\{.*?\}\}`)

	// EmailPattern matches email addresses. The local part may contain
	// placeholders, as in {{user}}@example.com.
	EmailPattern = regexp.MustCompile(`(?i)(?:\{\{[^{}]*\}\}|\b[A-Z0-9._%+-])(?:\{\{[^{}]*\}\}|[A-Z0-9._%+-])*@[A-Z0-9.-]+\.[A-Z]{2,}\b`)

	// URLPattern matches http(s) URLs.
	URLPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s<>()]+`)
)

// DefaultPatterns returns the protection patterns in the order they are applied.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{PlaceholderPattern, EmailPattern, URLPattern}
}
