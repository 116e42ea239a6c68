package transctl

import (
	"context"
	"regexp"
)

// Translator is the interface for translation backends. Implementations
// translate one protected string at a time and must leave protection markers
// intact.
type Translator interface {
	Translate(ctx context.Context, req TranslateRequest) (string, error)
}

// TranslateRequest contains the parameters for a translation request.
type TranslateRequest struct {
	SourceLang string
	TargetLang string
	Text       string // Protected text
	Glossary   Glossary
}

// TranslatorFunc adapts a plain function to the Translator interface.
type TranslatorFunc func(ctx context.Context, req TranslateRequest) (string, error)

// Translate calls f(ctx, req).
func (f TranslatorFunc) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	return f(ctx, req)
}

// Protector wraps non-translatable spans in engine-specific markers.
type Protector interface {
	// Protect wraps every match of patterns, applied in order, in a marker.
	Protect(text string, patterns []*regexp.Regexp) string
	// Unprotect removes markers and keeps their content.
	Unprotect(text string) string
	// IsPlaceholderOnly reports whether nothing translatable remains once
	// the marked spans are removed.
	IsPlaceholderOnly(protected string) bool
}

// GlossaryApplier is implemented by protectors whose engine honours inline
// markup, so glossary terms can be pinned by wrapping them in markers.
type GlossaryApplier interface {
	ApplyGlossary(protected string, glossary Glossary) string
}

// Extractor parses one resource format into a Document.
type Extractor interface {
	Extract(content string) (Document, error)
	ContentType() ResourceType
}

// Document is a parsed resource. Segments are returned in a fixed traversal
// order and Reinsert expects exactly one translation per segment, in that
// order. Reinsert never mutates the Document, so it can be called once per
// target language.
type Document interface {
	Segments() []Segment
	Reinsert(translations []string) (string, error)
}

// TranslationMemory is a persistent cache of translations keyed by CacheKey.
type TranslationMemory interface {
	Session(ctx context.Context) (MemorySession, error)
}

// MemorySession groups the lookups and writes done for one source file.
// Nothing written through a session is visible to other sessions before
// Commit.
type MemorySession interface {
	// Lookup returns the stored translation and refreshes its last use time.
	Lookup(ctx context.Context, key CacheKey) (string, bool, error)
	// Upsert stores translation under key, replacing any previous value.
	Upsert(ctx context.Context, key CacheKey, translation string) error
	Commit() error
	Rollback() error
}

// Manifest tracks which outputs are up to date with their source content.
type Manifest interface {
	// BindSource hashes the source file and selects its manifest entry.
	BindSource(path string) error
	// IsOutputValid reports whether path exists and matches the hash recorded
	// for the bound source.
	IsOutputValid(path string) bool
	// MarkUpdated records that at least one output was (re)computed.
	MarkUpdated()
	// Rebuild recomputes the manifest from the given pairs and persists it
	// when something was updated or force is set.
	Rebuild(pairs []OutputPair, force bool) error
}
