package transctl

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/abadojack/whatlanggo"
)

// PlanResult describes what a Run over the same resources would do.
type PlanResult struct {
	Files []*FilePlan
}

// FilePlan is the plan for one resource.
type FilePlan struct {
	Input        string
	Segments     int
	DetectedLang string // ISO 639-1 code guessed from the segments, "" if unsure
	Targets      []TargetPlan
}

// TargetPlan is the plan for one output of a resource.
type TargetPlan struct {
	Lang            string
	Output          string
	UpToDate        bool // Output matches the manifest and would be skipped
	Cached          int  // Strings already in the translation memory
	PlaceholderOnly int  // Strings that need no translation
	ToTranslate     int  // Strings that would be sent to the translator
}

// Stats sums the per-target counters of the plan.
func (r *PlanResult) Stats() PlanStats {
	var s PlanStats
	for _, f := range r.Files {
		for _, t := range f.Targets {
			if t.UpToDate {
				s.UpToDate++
				continue
			}
			s.Outputs++
			s.Cached += t.Cached
			s.ToTranslate += t.ToTranslate
		}
	}
	return s
}

// PlanStats contains summary statistics for a plan.
type PlanStats struct {
	Outputs     int // Outputs that would be written
	UpToDate    int
	Cached      int
	ToTranslate int
}

// HasChanges returns true if a run would write anything.
func (r *PlanResult) HasChanges() bool {
	return r.Stats().Outputs > 0
}

// Plan reports, without calling the translator or writing any file, which
// outputs are up to date and how many strings would hit the translation
// memory. A string that repeats an earlier one counts as cached, since a
// run translates it once. Lookups happen in a session that is always rolled
// back, so the memory is left exactly as it was.
func (p *Pipeline) Plan(ctx context.Context, resources []Resource) (*PlanResult, error) {
	result := &PlanResult{}

	session, err := p.openSession(ctx)
	if err != nil {
		return nil, err
	}
	if session != nil {
		defer session.Rollback()
	}

	// Keys a run would already have translated by the time it reaches them.
	queued := make(map[CacheKey]bool)
	for _, r := range resources {
		fp, err := p.planFile(ctx, session, queued, r)
		if err != nil {
			return result, err
		}
		result.Files = append(result.Files, fp)
	}

	return result, nil
}

func (p *Pipeline) planFile(ctx context.Context, session MemorySession, queued map[CacheKey]bool, r Resource) (*FilePlan, error) {
	fp := &FilePlan{Input: r.Input}

	extractor, ok := p.extractors[r.Type]
	if !ok {
		return nil, &ConfigError{Message: fmt.Sprintf("no extractor registered for %s resources", r.Type)}
	}
	if ext := filepath.Ext(r.Input); ext != r.Type.Extension() {
		return nil, &ConfigError{Message: fmt.Sprintf("file %s does not have the expected extension %s", r.Input, r.Type.Extension())}
	}
	if p.manifest != nil {
		if err := p.manifest.BindSource(r.Input); err != nil {
			return nil, err
		}
	}

	doc, err := p.extract(extractor, r.Input)
	if err != nil {
		return nil, err
	}
	segments := doc.Segments()
	fp.Segments = len(segments)
	fp.DetectedLang = detectLanguage(segments)

	if fp.DetectedLang != "" && fp.DetectedLang != BaseLanguage(p.sourceLang) {
		p.logger.Warn("source text does not look like the source language",
			"file", r.Input, "source", p.sourceLang, "detected", fp.DetectedLang)
	}

	for _, target := range p.Targets() {
		tp := TargetPlan{Lang: target, Output: r.OutputFor(target)}
		if p.manifest != nil && p.manifest.IsOutputValid(tp.Output) {
			tp.UpToDate = true
			fp.Targets = append(fp.Targets, tp)
			continue
		}

		for _, seg := range segments {
			protected := p.protector.Protect(seg.Text, p.patterns)
			if p.protector.IsPlaceholderOnly(protected) {
				tp.PlaceholderOnly++
				continue
			}
			if session != nil {
				key := NewCacheKey(target, protected)
				_, hit, err := session.Lookup(ctx, key)
				if err != nil {
					return nil, err
				}
				if hit || queued[key] {
					tp.Cached++
					continue
				}
				queued[key] = true
			}
			tp.ToTranslate++
		}
		fp.Targets = append(fp.Targets, tp)
	}

	return fp, nil
}

// detectLanguage guesses the language of the segments taken together.
func detectLanguage(segments []Segment) string {
	if len(segments) == 0 {
		return ""
	}
	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}

	info := whatlanggo.Detect(strings.Join(texts, "\n"))
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
