package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ZaguanLabs/transctl"
	"github.com/ZaguanLabs/transctl/protect"
)

const (
	deeplFreeURL = "https://api-free.deepl.com"
	deeplProURL  = "https://api.deepl.com"
)

// DeepLConfig holds configuration for the DeepL provider.
type DeepLConfig struct {
	APIKey  string        // DeepL auth key; keys ending in ":fx" use the free API
	BaseURL string        // Custom base URL (optional)
	KeepTag string        // XML tag DeepL must not translate (default: "keep")
	Timeout time.Duration // HTTP timeout (default: 30s)
}

// DeepLProvider translates through the DeepL v2 API with XML tag handling,
// so text inside the keep tag is left untouched. Glossaries are uploaded to
// DeepL once per language pair and deleted on Close.
type DeepLProvider struct {
	apiKey  string
	baseURL string
	keepTag string
	client  *http.Client

	mu         sync.Mutex
	glossaries map[string]string // pair and content key -> glossary ID
}

var _ Provider = (*DeepLProvider)(nil)

// NewDeepLProvider creates a new DeepL provider.
func NewDeepLProvider(cfg DeepLConfig) *DeepLProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = deeplProURL
		if strings.HasSuffix(cfg.APIKey, ":fx") {
			baseURL = deeplFreeURL
		}
	}
	keep := cfg.KeepTag
	if keep == "" {
		keep = protect.DefaultKeepTag
	}

	return &DeepLProvider{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		keepTag:    keep,
		client:     newHTTPClient(cfg.Timeout),
		glossaries: make(map[string]string),
	}
}

type deeplTranslateRequest struct {
	Text        []string `json:"text"`
	SourceLang  string   `json:"source_lang,omitempty"`
	TargetLang  string   `json:"target_lang"`
	TagHandling string   `json:"tag_handling"`
	IgnoreTags  []string `json:"ignore_tags"`
	GlossaryID  string   `json:"glossary_id,omitempty"`
}

type deeplTranslateResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// Translate translates one protected string.
func (p *DeepLProvider) Translate(ctx context.Context, req transctl.TranslateRequest) (string, error) {
	if req.Text == "" {
		return "", nil
	}

	body := deeplTranslateRequest{
		Text:        []string{req.Text},
		TargetLang:  deeplTarget(req.TargetLang),
		TagHandling: "xml",
		IgnoreTags:  []string{p.keepTag},
	}
	if req.SourceLang != "" {
		body.SourceLang = deeplSource(req.SourceLang)
	}
	if len(req.Glossary) > 0 && req.SourceLang != "" {
		id, err := p.glossaryID(ctx, req.SourceLang, req.TargetLang, req.Glossary)
		if err != nil {
			return "", err
		}
		body.GlossaryID = id
	}

	var out deeplTranslateResponse
	if err := p.do(ctx, http.MethodPost, "/v2/translate", body, &out); err != nil {
		return "", err
	}
	if len(out.Translations) == 0 {
		return "", &transctl.ProviderError{Message: "no translation returned by deepl", Retryable: true}
	}
	return out.Translations[0].Text, nil
}

// glossaryID returns the ID of a DeepL glossary holding g for the language
// pair, creating it on first use.
func (p *DeepLProvider) glossaryID(ctx context.Context, source, target string, g transctl.Glossary) (string, error) {
	entries := glossaryTSV(g)
	src, tgt := deeplSource(source), deeplSource(target)
	key := src + ">" + tgt + ":" + transctl.HashText(entries)

	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.glossaries[key]; ok {
		return id, nil
	}

	var out struct {
		GlossaryID string `json:"glossary_id"`
	}
	err := p.do(ctx, http.MethodPost, "/v2/glossaries", map[string]string{
		"name":           "transctl-" + key[len(key)-12:],
		"source_lang":    strings.ToLower(src),
		"target_lang":    strings.ToLower(tgt),
		"entries":        entries,
		"entries_format": "tsv",
	}, &out)
	if err != nil {
		return "", err
	}
	if out.GlossaryID == "" {
		return "", &transctl.ProviderError{Message: "deepl returned no glossary id"}
	}

	p.glossaries[key] = out.GlossaryID
	return out.GlossaryID, nil
}

// glossaryTSV renders g as sorted tab separated entries.
func glossaryTSV(g transctl.Glossary) string {
	terms := make([]string, 0, len(g))
	for term := range g {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var b strings.Builder
	for _, term := range terms {
		fmt.Fprintf(&b, "%s\t%s\n", term, g[term])
	}
	return b.String()
}

// Close deletes the glossaries created by this provider.
func (p *DeepLProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for key, id := range p.glossaries {
		if err := p.do(context.Background(), http.MethodDelete, "/v2/glossaries/"+id, nil, nil); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.glossaries, key)
	}
	return firstErr
}

func (p *DeepLProvider) do(ctx context.Context, method, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return &transctl.ProviderError{Message: "encode deepl request", Cause: err}
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, &body)
	if err != nil {
		return &transctl.ProviderError{Message: "create deepl request", Cause: err}
	}
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+p.apiKey)
	httpReq.Header.Set("User-Agent", transctl.UserAgent())
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return requestError("deepl", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("deepl", resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &transctl.ProviderError{Message: "decode deepl response", Cause: err}
	}
	return nil
}
