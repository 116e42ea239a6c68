package transctl

import (
	"fmt"
	"strings"
)

// ResourceType identifies a document format handled by an Extractor.
type ResourceType string

const (
	// ResourceHTML is an HTML document (".html").
	ResourceHTML ResourceType = "html"
	// ResourceJSON is a JSON document whose top-level value is an object (".json").
	ResourceJSON ResourceType = "json"
)

// ResourceTypes lists every supported resource type in display order.
var ResourceTypes = []ResourceType{ResourceHTML, ResourceJSON}

// Extension returns the file extension expected for the resource type.
func (t ResourceType) Extension() string {
	return "." + string(t)
}

// ParseResourceType converts a configuration key ("html", " JSON ") to a ResourceType.
func ParseResourceType(s string) (ResourceType, error) {
	t := ResourceType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ResourceTypes {
		if t == known {
			return t, nil
		}
	}
	return "", &ConfigError{Message: fmt.Sprintf("unknown resource type %q", s)}
}

// DefaultTag is the placeholder replaced by the target language in output paths.
const DefaultTag = "[source]"

// Resource maps one source file to its per-language output path template.
type Resource struct {
	Type   ResourceType
	Input  string // Source document path
	Output string // Output path template, Tag is replaced by the target language
	Tag    string // Placeholder inside Output (default: DefaultTag)
}

// OutputFor resolves the output path for a target language.
func (r Resource) OutputFor(lang string) string {
	tag := r.Tag
	if tag == "" {
		tag = DefaultTag
	}
	return strings.ReplaceAll(r.Output, tag, lang)
}

// OutputPair is one (input, output) file pair known to the configuration.
type OutputPair struct {
	Input  string
	Output string
}

// Locator addresses a translatable string inside a document.
//
// Index is the position in extraction order and is always set. Path holds the
// key/index path from the document root for tree formats (string keys, int
// indices); it is nil for HTML, where the text node is identified by Index.
type Locator struct {
	Index int
	Path  []any
}

// String renders the locator as "$.a[0].b" for paths or "#3" otherwise.
func (l Locator) String() string {
	if l.Path == nil {
		return fmt.Sprintf("#%d", l.Index)
	}
	var b strings.Builder
	b.WriteString("$")
	for _, part := range l.Path {
		switch v := part.(type) {
		case int:
			fmt.Fprintf(&b, "[%d]", v)
		default:
			fmt.Fprintf(&b, ".%v", v)
		}
	}
	return b.String()
}

// Segment is a translatable string and the place it was extracted from.
type Segment struct {
	Locator Locator
	Text    string
}

// Glossary maps source terms to the translation they must keep.
type Glossary map[string]string

// FileResult summarises the processing of one resource.
type FileResult struct {
	Input           string
	Written         []string // Output paths written
	Skipped         []string // Output paths already up to date
	Segments        int      // Translatable strings in the source
	TranslatedCount int      // Strings sent to the translator successfully
	CachedCount     int      // Translation memory hits
	PlaceholderOnly int      // Strings that needed no translation
	FailedCount     int      // Strings left untranslated after a provider error
}

// RunResult aggregates the FileResults of a pipeline run.
type RunResult struct {
	Files []*FileResult
}

// Written returns every output path written during the run.
func (r *RunResult) Written() []string {
	var out []string
	for _, f := range r.Files {
		out = append(out, f.Written...)
	}
	return out
}

// Totals sums the per-file counters.
func (r *RunResult) Totals() FileResult {
	var t FileResult
	for _, f := range r.Files {
		t.Segments += f.Segments
		t.TranslatedCount += f.TranslatedCount
		t.CachedCount += f.CachedCount
		t.PlaceholderOnly += f.PlaceholderOnly
		t.FailedCount += f.FailedCount
		t.Written = append(t.Written, f.Written...)
		t.Skipped = append(t.Skipped, f.Skipped...)
	}
	return t
}

// IgnoredTags contains HTML elements whose descendants are never translated.
var IgnoredTags = map[string]bool{
	"style":    true,
	"script":   true,
	"head":     true,
	"title":    true,
	"meta":     true,
	"link":     true,
	"noscript": true,
}
