package transctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
)

// Pipeline translates resources into every target language, consulting the
// translation memory for each string and the manifest for each output.
type Pipeline struct {
	sourceLang string
	targets    []string
	translator Translator
	protector  Protector
	memory     TranslationMemory
	manifest   Manifest
	extractors map[ResourceType]Extractor
	patterns   []*regexp.Regexp
	glossary   Glossary
	logger     *slog.Logger
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithMemory sets the translation memory. Without one every string goes to
// the translator.
func WithMemory(m TranslationMemory) PipelineOption {
	return func(p *Pipeline) {
		p.memory = m
	}
}

// WithManifest sets the run manifest. Without one no output is ever skipped.
func WithManifest(m Manifest) PipelineOption {
	return func(p *Pipeline) {
		p.manifest = m
	}
}

// WithExtractor registers an extractor for its content type.
func WithExtractor(e Extractor) PipelineOption {
	return func(p *Pipeline) {
		p.extractors[e.ContentType()] = e
	}
}

// WithPatterns replaces the protection patterns (default: DefaultPatterns).
func WithPatterns(patterns ...*regexp.Regexp) PipelineOption {
	return func(p *Pipeline) {
		p.patterns = patterns
	}
}

// WithGlossary sets the glossary passed along with every translation request.
func WithGlossary(g Glossary) PipelineOption {
	return func(p *Pipeline) {
		p.glossary = g
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// NewPipeline creates a Pipeline translating from sourceLang into targets.
// Language codes are normalized, so "en_US" and "en-US" name the same
// target. Duplicates and targets equal to the source language are ignored.
func NewPipeline(sourceLang string, targets []string, translator Translator, protector Protector, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		sourceLang: NormalizeLocale(sourceLang),
		targets:    TargetLanguages(sourceLang, targets),
		translator: translator,
		protector:  protector,
		extractors: make(map[ResourceType]Extractor),
		patterns:   DefaultPatterns(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Targets returns the normalized target languages.
func (p *Pipeline) Targets() []string {
	return append([]string(nil), p.targets...)
}

// Pairs lists every (input, output) pair of resources across the targets.
func (p *Pipeline) Pairs(resources []Resource) []OutputPair {
	targets := p.Targets()
	pairs := make([]OutputPair, 0, len(resources)*len(targets))
	for _, r := range resources {
		for _, t := range targets {
			pairs = append(pairs, OutputPair{Input: r.Input, Output: r.OutputFor(t)})
		}
	}
	return pairs
}

// Run processes every resource in order and then rebuilds the manifest.
// The first file-level error stops the run; the manifest is left untouched
// in that case and the results gathered so far are returned with the error.
func (p *Pipeline) Run(ctx context.Context, resources []Resource) (*RunResult, error) {
	result := &RunResult{}

	for _, r := range resources {
		fr, err := p.ProcessFile(ctx, r)
		if fr != nil {
			result.Files = append(result.Files, fr)
		}
		if err != nil {
			return result, err
		}
	}

	if p.manifest != nil {
		if err := p.manifest.Rebuild(p.Pairs(resources), false); err != nil {
			return result, err
		}
	}

	return result, nil
}

// ProcessFile translates one resource into every target language whose
// output is not already up to date. Per-string translator failures leave the
// source text in place; everything else aborts the file.
func (p *Pipeline) ProcessFile(ctx context.Context, r Resource) (_ *FileResult, err error) {
	fr := &FileResult{Input: r.Input}
	log := p.logger.With("file", r.Input)

	extractor, ok := p.extractors[r.Type]
	if !ok {
		return fr, &ConfigError{Message: fmt.Sprintf("no extractor registered for %s resources", r.Type)}
	}
	if ext := filepath.Ext(r.Input); ext != r.Type.Extension() {
		return fr, &ConfigError{Message: fmt.Sprintf("file %s does not have the expected extension %s", r.Input, r.Type.Extension())}
	}

	if p.manifest != nil {
		if err := p.manifest.BindSource(r.Input); err != nil {
			return fr, err
		}
	}

	session, err := p.openSession(ctx)
	if err != nil {
		return fr, err
	}
	defer func() {
		if session == nil {
			return
		}
		if err != nil {
			if rbErr := session.Rollback(); rbErr != nil {
				log.Warn("translation memory rollback failed", "error", rbErr)
			}
			return
		}
		err = session.Commit()
	}()

	var doc Document
	for _, target := range p.Targets() {
		out := r.OutputFor(target)
		tlog := log.With("target", target)

		if p.manifest != nil && p.manifest.IsOutputValid(out) {
			tlog.Info("output up to date", "output", out)
			fr.Skipped = append(fr.Skipped, out)
			continue
		}
		if p.manifest != nil {
			p.manifest.MarkUpdated()
		}

		if doc == nil {
			doc, err = p.extract(extractor, r.Input)
			if err != nil {
				return fr, err
			}
			fr.Segments = len(doc.Segments())
		}

		tlog.Info("localization in progress", "segments", fr.Segments)
		translations, err := p.translateSegments(ctx, session, target, doc.Segments(), fr, tlog)
		if err != nil {
			return fr, err
		}

		content, err := doc.Reinsert(translations)
		if err != nil {
			return fr, err
		}
		if err := writeOutput(out, content); err != nil {
			return fr, &TranslationError{Message: "write output", Path: out, Cause: err}
		}

		fr.Written = append(fr.Written, out)
		tlog.Info("localization done", "output", out)
	}

	return fr, nil
}

func (p *Pipeline) openSession(ctx context.Context) (MemorySession, error) {
	if p.memory == nil {
		return nil, nil
	}
	return p.memory.Session(ctx)
}

func (p *Pipeline) extract(e Extractor, path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &TranslationError{Message: "read source", Path: path, Cause: err}
	}
	doc, err := e.Extract(string(data))
	if err != nil {
		return nil, &TranslationError{Message: "extract segments", Path: path, Cause: err}
	}
	return doc, nil
}

// translateSegments returns one translation per segment, in segment order.
func (p *Pipeline) translateSegments(ctx context.Context, session MemorySession, target string, segments []Segment, fr *FileResult, log *slog.Logger) ([]string, error) {
	translations := make([]string, len(segments))

	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		protected := p.protector.Protect(seg.Text, p.patterns)
		if p.protector.IsPlaceholderOnly(protected) {
			translations[i] = p.protector.Unprotect(protected)
			fr.PlaceholderOnly++
			continue
		}

		key := NewCacheKey(target, protected)
		if session != nil {
			cached, ok, err := session.Lookup(ctx, key)
			if err != nil {
				return nil, err
			}
			if ok {
				translations[i] = cached
				fr.CachedCount++
				continue
			}
		}

		translated, err := p.translator.Translate(ctx, TranslateRequest{
			SourceLang: p.sourceLang,
			TargetLang: target,
			Text:       protected,
			Glossary:   p.glossary,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			log.Warn("translation failed, keeping source text",
				"locator", seg.Locator.String(), "text", seg.Text, "error", err)
			translations[i] = seg.Text
			fr.FailedCount++
			continue
		}

		translated = p.protector.Unprotect(translated)
		if session != nil {
			if err := session.Upsert(ctx, key, translated); err != nil {
				return nil, err
			}
		}
		translations[i] = translated
		fr.TranslatedCount++
	}

	return translations, nil
}

func writeOutput(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
