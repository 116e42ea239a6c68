package protect

import (
	"regexp"

	"github.com/ZaguanLabs/transctl"
)

// DefaultKeepTag is the XML element DeepL is told to ignore.
const DefaultKeepTag = "keep"

// TagProtector wraps protected spans in a bare XML element such as
// <keep>…</keep>. It is meant for engines with XML tag handling and an
// ignore-tags option (DeepL).
type TagProtector struct {
	tag   string
	m     marker
	strip *regexp.Regexp
}

var _ transctl.Protector = (*TagProtector)(nil)

// NewTagProtector creates a protector using the given element name.
func NewTagProtector(tag string) *TagProtector {
	q := regexp.QuoteMeta(tag)
	return &TagProtector{
		tag: tag,
		m: marker{
			open:  "<" + tag + ">",
			close: "</" + tag + ">",
			span:  regexp.MustCompile(`(?s)<` + q + `>(.*?)</` + q + `>`),
		},
		strip: regexp.MustCompile(`</?` + q + `>`),
	}
}

// Tag returns the element name.
func (p *TagProtector) Tag() string { return p.tag }

// Protect wraps every pattern match in the protector's element.
func (p *TagProtector) Protect(text string, patterns []*regexp.Regexp) string {
	return p.m.protect(text, patterns)
}

// Unprotect drops every opening and closing tag, including unbalanced ones
// an engine may leave behind.
func (p *TagProtector) Unprotect(text string) string {
	return p.strip.ReplaceAllString(text, "")
}

// IsPlaceholderOnly reports whether protected is nothing but elements and
// whitespace.
func (p *TagProtector) IsPlaceholderOnly(protected string) bool {
	return p.m.isPlaceholderOnly(protected)
}
