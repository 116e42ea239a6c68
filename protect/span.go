package protect

import (
	"regexp"
	"strings"

	"github.com/ZaguanLabs/transctl"
)

// DefaultNoTranslateClass is the class honoured by HTML-aware engines.
const DefaultNoTranslateClass = "notranslate"

var (
	wordRun = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

	// Only the characters that change HTML text content are escaped.
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

// SpanProtector wraps protected spans in <span class="notranslate">…</span>.
// It works with engines that translate HTML and skip that class (Azure,
// Google), and with LLM engines instructed to do the same.
type SpanProtector struct {
	class string
	m     marker
	// any matches a marker span whatever its other attributes are.
	any *regexp.Regexp
}

var (
	_ transctl.Protector       = (*SpanProtector)(nil)
	_ transctl.GlossaryApplier = (*SpanProtector)(nil)
)

// NewSpanProtector creates a protector using the given class name.
func NewSpanProtector(class string) *SpanProtector {
	q := regexp.QuoteMeta(class)
	return &SpanProtector{
		class: class,
		m: marker{
			open:  `<span class="` + class + `">`,
			close: "</span>",
			span:  regexp.MustCompile(`(?is)<span\s+class="` + q + `"\s*>(.*?)</span>`),
		},
		any: regexp.MustCompile(`(?is)<span[^>]*\bclass="` + q + `"[^>]*>.*?</span>`),
	}
}

// Class returns the class name.
func (p *SpanProtector) Class() string { return p.class }

// Protect wraps every pattern match in a notranslate span.
func (p *SpanProtector) Protect(text string, patterns []*regexp.Regexp) string {
	return p.m.protect(text, patterns)
}

// Unprotect replaces each span it created with its content.
func (p *SpanProtector) Unprotect(text string) string {
	return p.m.unprotect(text)
}

// IsPlaceholderOnly reports whether protected has no text outside spans of
// the protector's class, ignoring whitespace.
func (p *SpanProtector) IsPlaceholderOnly(protected string) bool {
	return transctl.NormalizeText(p.any.ReplaceAllString(protected, "")) == ""
}

// ApplyGlossary pins glossary terms in protected text. Text outside existing
// marker spans is split into word and non-word runs; every word that is a
// glossary key is replaced by a marker wrapping the escaped glossary value.
// Existing spans are kept as they are and the original order is preserved.
func (p *SpanProtector) ApplyGlossary(protected string, glossary transctl.Glossary) string {
	if len(glossary) == 0 || protected == "" {
		return protected
	}

	var b strings.Builder
	last := 0
	for _, loc := range p.any.FindAllStringIndex(protected, -1) {
		b.WriteString(p.replaceTerms(protected[last:loc[0]], glossary))
		b.WriteString(protected[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(p.replaceTerms(protected[last:], glossary))
	return b.String()
}

func (p *SpanProtector) replaceTerms(chunk string, glossary transctl.Glossary) string {
	return wordRun.ReplaceAllStringFunc(chunk, func(word string) string {
		repl, ok := glossary[word]
		if !ok {
			return word
		}
		return p.m.wrap(textEscaper.Replace(repl))
	})
}
