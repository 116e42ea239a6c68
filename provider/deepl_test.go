package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaguanLabs/transctl"
)

func TestDeepLProvider_Translate(t *testing.T) {
	var got deeplTranslateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/translate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "DeepL-Auth-Key secret" {
			t.Errorf("unexpected Authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"translations":[{"detected_source_language":"EN","text":"Hallo <keep>{{name}}</keep>"}]}`))
	}))
	defer server.Close()

	p := NewDeepLProvider(DeepLConfig{APIKey: "secret", BaseURL: server.URL})
	out, err := p.Translate(context.Background(), transctl.TranslateRequest{
		SourceLang: "en",
		TargetLang: "de",
		Text:       "Hello <keep>{{name}}</keep>",
	})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	if out != "Hallo <keep>{{name}}</keep>" {
		t.Errorf("unexpected translation %q", out)
	}
	if got.SourceLang != "EN" || got.TargetLang != "DE" {
		t.Errorf("unexpected languages %s -> %s", got.SourceLang, got.TargetLang)
	}
	if got.TagHandling != "xml" {
		t.Errorf("expected xml tag handling, got %q", got.TagHandling)
	}
	if len(got.IgnoreTags) != 1 || got.IgnoreTags[0] != "keep" {
		t.Errorf("expected ignore_tags [keep], got %v", got.IgnoreTags)
	}
	if got.GlossaryID != "" {
		t.Errorf("expected no glossary, got %q", got.GlossaryID)
	}
}

func TestDeepLProvider_FreeKeyEndpoint(t *testing.T) {
	if p := NewDeepLProvider(DeepLConfig{APIKey: "abc:fx"}); p.baseURL != deeplFreeURL {
		t.Errorf("expected free endpoint, got %s", p.baseURL)
	}
	if p := NewDeepLProvider(DeepLConfig{APIKey: "abc"}); p.baseURL != deeplProURL {
		t.Errorf("expected pro endpoint, got %s", p.baseURL)
	}
}

func TestDeepLProvider_Glossary(t *testing.T) {
	var created, deleted atomic.Int32
	var translateGlossary string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/glossaries":
			created.Add(1)
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["entries"] != "Cart\tWarenkorb\nShop\tLaden\n" {
				t.Errorf("unexpected entries %q", body["entries"])
			}
			if body["source_lang"] != "en" || body["target_lang"] != "de" {
				t.Errorf("unexpected glossary pair %s -> %s", body["source_lang"], body["target_lang"])
			}
			w.Write([]byte(`{"glossary_id":"g-1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v2/translate":
			var body deeplTranslateRequest
			json.NewDecoder(r.Body).Decode(&body)
			translateGlossary = body.GlossaryID
			w.Write([]byte(`{"translations":[{"text":"ok"}]}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/v2/glossaries/g-1":
			deleted.Add(1)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	p := NewDeepLProvider(DeepLConfig{APIKey: "k", BaseURL: server.URL})
	req := transctl.TranslateRequest{
		SourceLang: "en",
		TargetLang: "de",
		Text:       "Shop",
		Glossary:   transctl.Glossary{"Shop": "Laden", "Cart": "Warenkorb"},
	}
	for i := 0; i < 2; i++ {
		if _, err := p.Translate(context.Background(), req); err != nil {
			t.Fatalf("Translate failed: %v", err)
		}
	}

	if created.Load() != 1 {
		t.Errorf("expected glossary created once, got %d", created.Load())
	}
	if translateGlossary != "g-1" {
		t.Errorf("expected glossary_id g-1, got %q", translateGlossary)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if deleted.Load() != 1 {
		t.Errorf("expected glossary deleted once, got %d", deleted.Load())
	}
}

func TestDeepLProvider_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		retryable  bool
		wantDelay  time.Duration
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, retryAfter: "3", retryable: true, wantDelay: 3 * time.Second},
		{name: "server error", status: http.StatusServiceUnavailable, retryable: true},
		{name: "quota exceeded", status: 456, retryable: false},
		{name: "forbidden", status: http.StatusForbidden, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte("nope"))
			}))
			defer server.Close()

			p := NewDeepLProvider(DeepLConfig{APIKey: "k", BaseURL: server.URL})
			_, err := p.Translate(context.Background(), transctl.TranslateRequest{TargetLang: "de", Text: "Hello"})

			var provErr *transctl.ProviderError
			if !errors.As(err, &provErr) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if provErr.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", provErr.Retryable, tt.retryable)
			}
			if provErr.RetryAfter != tt.wantDelay {
				t.Errorf("RetryAfter = %v, want %v", provErr.RetryAfter, tt.wantDelay)
			}
			if !strings.Contains(provErr.Error(), "nope") {
				t.Errorf("expected response body in error, got %q", provErr.Error())
			}
		})
	}
}

func TestDeepLProvider_EmptyText(t *testing.T) {
	p := NewDeepLProvider(DeepLConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	out, err := p.Translate(context.Background(), transctl.TranslateRequest{TargetLang: "de"})
	if err != nil || out != "" {
		t.Errorf("expected empty result without a request, got %q, %v", out, err)
	}
}

func TestGlossaryTSV(t *testing.T) {
	got := glossaryTSV(transctl.Glossary{"b": "2", "a": "1"})
	if got != "a\t1\nb\t2\n" {
		t.Errorf("unexpected TSV %q", got)
	}
}
