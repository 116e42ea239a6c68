package transctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/ZaguanLabs/transctl"
	"github.com/ZaguanLabs/transctl/cache"
	"github.com/ZaguanLabs/transctl/processor"
	"github.com/ZaguanLabs/transctl/protect"
)

// recordingTranslator prefixes texts with the target language and records
// every request. Texts listed in fail return the matching error.
type recordingTranslator struct {
	mu       sync.Mutex
	requests []transctl.TranslateRequest
	fail     map[string]error
}

func (r *recordingTranslator) Translate(ctx context.Context, req transctl.TranslateRequest) (string, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()

	if err, ok := r.fail[req.Text]; ok {
		return "", err
	}
	return "[" + req.TargetLang + "] " + req.Text, nil
}

func (r *recordingTranslator) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.requests))
	for i, req := range r.requests {
		out[i] = req.Text
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func htmlResource(dir, name string) transctl.Resource {
	return transctl.Resource{
		Type:   transctl.ResourceHTML,
		Input:  filepath.Join(dir, "en", name),
		Output: filepath.Join(dir, transctl.DefaultTag, name),
	}
}

func newTestPipeline(tr transctl.Translator, opts ...transctl.PipelineOption) *transctl.Pipeline {
	opts = append([]transctl.PipelineOption{
		transctl.WithExtractor(processor.NewHTMLExtractor()),
		transctl.WithExtractor(processor.NewJSONExtractor()),
	}, opts...)
	return transctl.NewPipeline("en", []string{"de", "en", "fr"}, tr, protect.NewSpanProtector(protect.DefaultNoTranslateClass), opts...)
}

func TestPipeline_Targets(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		targets []string
		want    []string
	}{
		{"drops source", "en_US", []string{"de", "en-US", "pt-BR"}, []string{"de", "pt-BR"}},
		{"normalizes spelling", "en", []string{"pt_br", "ZH-tw"}, []string{"pt-BR", "zh-TW"}},
		{"merges duplicates", "en", []string{"en_US", "en-US", "de", "DE"}, []string{"en-US", "de"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := transctl.NewPipeline(tt.source, tt.targets, &recordingTranslator{}, protect.NewSpanProtector("notranslate"))
			if got := p.Targets(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Targets() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPipeline_TargetSpellingsShareOutputs(t *testing.T) {
	dir := t.TempDir()
	r := htmlResource(dir, "index.html")
	writeFile(t, r.Input, "<p>Hello</p>")

	store := cache.NewMemoryStore()
	tr := &recordingTranslator{}
	opts := []transctl.PipelineOption{
		transctl.WithExtractor(processor.NewHTMLExtractor()),
		transctl.WithMemory(store),
	}
	ctx := context.Background()

	for _, target := range []string{"pt_BR", "pt-BR", "pt-br"} {
		p := transctl.NewPipeline("en", []string{target}, tr, protect.NewSpanProtector("notranslate"), opts...)
		if _, err := p.Run(ctx, []transctl.Resource{r}); err != nil {
			t.Fatalf("Run(%s) failed: %v", target, err)
		}
	}

	if got := len(tr.texts()); got != 1 {
		t.Errorf("translator called %d times, want 1", got)
	}
	if got := readFile(t, r.OutputFor("pt-BR")); !strings.Contains(got, "[pt-BR] Hello") {
		t.Errorf("unexpected output: %s", got)
	}
	if _, err := os.Stat(r.OutputFor("pt_BR")); !os.IsNotExist(err) {
		t.Error("output written under the unnormalized spelling")
	}
}

func TestPipeline_Pairs(t *testing.T) {
	dir := t.TempDir()
	p := newTestPipeline(&recordingTranslator{})

	pairs := p.Pairs([]transctl.Resource{htmlResource(dir, "index.html")})
	want := []transctl.OutputPair{
		{Input: filepath.Join(dir, "en", "index.html"), Output: filepath.Join(dir, "de", "index.html")},
		{Input: filepath.Join(dir, "en", "index.html"), Output: filepath.Join(dir, "fr", "index.html")},
	}
	if len(pairs) != len(want) {
		t.Fatalf("Pairs() = %v, want %v", pairs, want)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pair %d = %v, want %v", i, pairs[i], want[i])
		}
	}
}

func TestPipeline_ProcessFile(t *testing.T) {
	dir := t.TempDir()
	r := htmlResource(dir, "index.html")
	writeFile(t, r.Input, `<html><body><h1>Welcome</h1><p>Write to support@example.com</p><p>{{user}}</p><script>var x = "no";</script></body></html>`)

	tr := &recordingTranslator{}
	p := newTestPipeline(tr)

	fr, err := p.ProcessFile(context.Background(), r)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	if fr.Segments != 3 {
		t.Errorf("Segments = %d, want 3", fr.Segments)
	}
	if fr.TranslatedCount != 4 || fr.PlaceholderOnly != 2 || fr.FailedCount != 0 {
		t.Errorf("unexpected counters: %+v", fr)
	}
	if len(fr.Written) != 2 {
		t.Errorf("Written = %v, want two outputs", fr.Written)
	}

	de := readFile(t, r.OutputFor("de"))
	for _, want := range []string{"<h1>[de] Welcome</h1>", "[de] Write to support@example.com", "<p>{{user}}</p>", `var x = "no";`} {
		if !strings.Contains(de, want) {
			t.Errorf("de output missing %q:\n%s", want, de)
		}
	}
	if strings.Contains(de, "notranslate") {
		t.Errorf("protection markers leaked into output:\n%s", de)
	}

	for _, text := range tr.texts() {
		if strings.Contains(text, "{{user}}") {
			t.Errorf("placeholder-only text sent to translator: %q", text)
		}
		if strings.Contains(text, "support@example.com") && !strings.Contains(text, `<span class="notranslate">support@example.com</span>`) {
			t.Errorf("email not protected in request: %q", text)
		}
	}
}

func TestPipeline_ProcessFileErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "en", "page.htm"), "<p>Hi</p>")

	tests := []struct {
		name     string
		resource transctl.Resource
		pipeline *transctl.Pipeline
	}{
		{
			name:     "wrong extension",
			resource: htmlResource(dir, "page.htm"),
			pipeline: newTestPipeline(&recordingTranslator{}),
		},
		{
			name:     "no extractor",
			resource: htmlResource(dir, "index.html"),
			pipeline: transctl.NewPipeline("en", []string{"de"}, &recordingTranslator{}, protect.NewTagProtector(protect.DefaultKeepTag)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.pipeline.ProcessFile(context.Background(), tt.resource)
			var cfgErr *transctl.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if _, statErr := os.Stat(tt.resource.OutputFor("de")); !os.IsNotExist(statErr) {
				t.Error("no output should be written")
			}
		})
	}
}

func TestPipeline_MissingSource(t *testing.T) {
	dir := t.TempDir()
	p := newTestPipeline(&recordingTranslator{})

	_, err := p.ProcessFile(context.Background(), htmlResource(dir, "missing.html"))
	var trErr *transctl.TranslationError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TranslationError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error should wrap os.ErrNotExist: %v", err)
	}
}

func TestPipeline_FailureIsolation(t *testing.T) {
	dir := t.TempDir()
	r := htmlResource(dir, "index.html")
	writeFile(t, r.Input, "<p>Good</p><p>Broken</p><p>Fine</p>")

	tr := &recordingTranslator{fail: map[string]error{
		"Broken": &transctl.ProviderError{Message: "quota exceeded"},
	}}
	store := cache.NewMemoryStore()
	p := newTestPipeline(tr, transctl.WithMemory(store))

	fr, err := p.ProcessFile(context.Background(), r)
	if err != nil {
		t.Fatalf("a failing string must not fail the file: %v", err)
	}
	if fr.FailedCount != 2 || fr.TranslatedCount != 4 {
		t.Errorf("unexpected counters: %+v", fr)
	}

	de := readFile(t, r.OutputFor("de"))
	if !strings.Contains(de, "<p>Broken</p>") || !strings.Contains(de, "<p>[de] Good</p>") || !strings.Contains(de, "<p>[de] Fine</p>") {
		t.Errorf("failed string should stay in the source language:\n%s", de)
	}

	if store.Len() != 4 {
		t.Errorf("store has %d rows, want 4 (failures are not cached)", store.Len())
	}
}

func TestPipeline_CanceledRollsBack(t *testing.T) {
	dir := t.TempDir()
	r := htmlResource(dir, "index.html")
	writeFile(t, r.Input, "<p>First</p><p>Second</p>")

	tr := &recordingTranslator{fail: map[string]error{"Second": context.Canceled}}
	store := cache.NewMemoryStore()
	p := newTestPipeline(tr, transctl.WithMemory(store))

	_, err := p.ProcessFile(context.Background(), r)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("aborted file must not commit anything, store has %d rows", store.Len())
	}
	if _, statErr := os.Stat(r.OutputFor("de")); !os.IsNotExist(statErr) {
		t.Error("aborted file must not write outputs")
	}
}

func TestPipeline_MemoryServesRepeats(t *testing.T) {
	dir := t.TempDir()
	a := htmlResource(dir, "a.html")
	b := htmlResource(dir, "b.html")
	writeFile(t, a.Input, "<p>Shared</p><p>Only A</p>")
	writeFile(t, b.Input, "<p>Shared</p><p>  Shared  </p>")

	tr := &recordingTranslator{}
	p := newTestPipeline(tr, transctl.WithMemory(cache.NewMemoryStore()))

	res, err := p.Run(context.Background(), []transctl.Resource{a, b})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	totals := res.Totals()
	if totals.TranslatedCount != 4 || totals.CachedCount != 4 {
		t.Errorf("translated=%d cached=%d, want 4 and 4", totals.TranslatedCount, totals.CachedCount)
	}
	if len(tr.texts()) != 4 {
		t.Errorf("translator called %d times, want 4", len(tr.texts()))
	}
}

func TestPipeline_Glossary(t *testing.T) {
	dir := t.TempDir()
	r := htmlResource(dir, "index.html")
	writeFile(t, r.Input, "<p>Open the Dashboard</p>")

	tr := &recordingTranslator{}
	g := transctl.Glossary{"Dashboard": "Cockpit"}
	p := newTestPipeline(tr, transctl.WithGlossary(g))

	if _, err := p.ProcessFile(context.Background(), r); err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	for _, req := range tr.requests {
		if req.Glossary["Dashboard"] != "Cockpit" {
			t.Errorf("glossary not passed with request: %+v", req)
		}
		if req.SourceLang != "en" {
			t.Errorf("SourceLang = %q, want en", req.SourceLang)
		}
	}
}

func TestPipeline_TagProtectorJSON(t *testing.T) {
	dir := t.TempDir()
	r := transctl.Resource{
		Type:   transctl.ResourceJSON,
		Input:  filepath.Join(dir, "en.json"),
		Output: filepath.Join(dir, transctl.DefaultTag+".json"),
	}
	writeFile(t, r.Input, `{"title": "Hi {{name}}", "links": ["https://example.com"], "n": 1}`)

	tr := &recordingTranslator{}
	p := transctl.NewPipeline("en", []string{"de"}, tr, protect.NewTagProtector(protect.DefaultKeepTag),
		transctl.WithExtractor(processor.NewJSONExtractor()))

	fr, err := p.ProcessFile(context.Background(), r)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if fr.TranslatedCount != 1 || fr.PlaceholderOnly != 1 {
		t.Errorf("unexpected counters: %+v", fr)
	}
	if got := tr.texts(); len(got) != 1 || got[0] != "Hi <keep>{{name}}</keep>" {
		t.Errorf("requests = %q", got)
	}

	want := "{\n  \"title\": \"[de] Hi {{name}}\",\n  \"links\": [\n    \"https://example.com\"\n  ],\n  \"n\": 1\n}\n"
	if got := readFile(t, r.OutputFor("de")); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}
