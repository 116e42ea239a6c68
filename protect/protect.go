// Package protect implements the text protection strategies used before a
// string is handed to a translation engine.
//
// Non-translatable spans (placeholders, emails, URLs and, for engines that
// honour inline markup, glossary terms) are wrapped in a marker the engine is
// known to leave alone. Spans are located by byte offset on the original
// text, so markers are never matched by a pattern and never nested.
package protect

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ZaguanLabs/transctl"
)

// Span is a half-open byte range [Start, End) of protected text.
type Span struct {
	Start int
	End   int
}

// Spans returns the byte ranges of text matched by patterns, sorted by
// position. Matches that overlap, whichever pattern produced them, are
// merged so their union is protected as one span. Empty matches are ignored.
func Spans(text string, patterns []*regexp.Regexp) []Span {
	var matches []Span
	for _, re := range patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if loc[0] < loc[1] {
				matches = append(matches, Span{Start: loc[0], End: loc[1]})
			}
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	spans := []Span{matches[0]}
	for _, m := range matches[1:] {
		last := &spans[len(spans)-1]
		if m.Start < last.End {
			last.End = max(last.End, m.End)
			continue
		}
		spans = append(spans, m)
	}
	return spans
}

// marker renders and recognises one engine's protection markup.
type marker struct {
	open  string
	close string
	// span matches a whole marker with its content in group 1.
	span *regexp.Regexp
}

func (m marker) wrap(s string) string {
	return m.open + s + m.close
}

func (m marker) protect(text string, patterns []*regexp.Regexp) string {
	spans := Spans(text, patterns)
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(spans)*(len(m.open)+len(m.close)))
	last := 0
	for _, s := range spans {
		b.WriteString(text[last:s.Start])
		b.WriteString(m.wrap(text[s.Start:s.End]))
		last = s.End
	}
	b.WriteString(text[last:])
	return b.String()
}

func (m marker) unprotect(text string) string {
	if text == "" {
		return text
	}
	return m.span.ReplaceAllString(text, "$1")
}

func (m marker) isPlaceholderOnly(protected string) bool {
	return transctl.NormalizeText(m.span.ReplaceAllString(protected, "")) == ""
}

// ForEngine returns the protector used with the named translation engine.
func ForEngine(engine string) (transctl.Protector, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "deepl":
		return NewTagProtector(DefaultKeepTag), nil
	case "azure", "google", "openai", "open-ai", "mock":
		return NewSpanProtector(DefaultNoTranslateClass), nil
	default:
		return nil, &transctl.ConfigError{Message: fmt.Sprintf("no protector for engine %q", engine)}
	}
}
