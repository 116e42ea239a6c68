package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZaguanLabs/transctl"
)

func TestAzureProvider_Translate(t *testing.T) {
	var body []azureText
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("api-version") != "3.0" || q.Get("textType") != "html" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("from") != "en" || q.Get("to") != "pt" {
			t.Errorf("unexpected languages %s -> %s", q.Get("from"), q.Get("to"))
		}
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "secret" {
			t.Errorf("missing subscription key")
		}
		if r.Header.Get("Ocp-Apim-Subscription-Region") != "westeurope" {
			t.Errorf("missing region")
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`[{"translations":[{"text":"Olá","to":"pt"}]}]`))
	}))
	defer server.Close()

	p := NewAzureProvider(AzureConfig{APIKey: "secret", Region: "westeurope", BaseURL: server.URL})
	out, err := p.Translate(context.Background(), transctl.TranslateRequest{
		SourceLang: "en",
		TargetLang: "pt-BR",
		Text:       "Hello",
	})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if out != "Olá" {
		t.Errorf("unexpected translation %q", out)
	}
	if len(body) != 1 || body[0].Text != "Hello" {
		t.Errorf("unexpected request body %+v", body)
	}
}

func TestAzureProvider_AppliesGlossary(t *testing.T) {
	var sent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []azureText
		json.NewDecoder(r.Body).Decode(&body)
		sent = body[0].Text
		w.Write([]byte(`[{"translations":[{"text":"x","to":"de"}]}]`))
	}))
	defer server.Close()

	p := NewAzureProvider(AzureConfig{APIKey: "k", Region: "r", BaseURL: server.URL})
	_, err := p.Translate(context.Background(), transctl.TranslateRequest{
		TargetLang: "de",
		Text:       `Open the Shop at <span class="notranslate">https://shop.io</span>`,
		Glossary:   transctl.Glossary{"Shop": "Laden"},
	})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	want := `Open the <span class="notranslate">Laden</span> at <span class="notranslate">https://shop.io</span>`
	if sent != want {
		t.Errorf("glossary not applied:\n got %q\nwant %q", sent, want)
	}
}

func TestAzureProvider_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewAzureProvider(AzureConfig{APIKey: "k", Region: "r", BaseURL: server.URL})
	_, err := p.Translate(context.Background(), transctl.TranslateRequest{TargetLang: "de", Text: "Hello"})

	var provErr *transctl.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Retryable {
		t.Error("401 should not be retryable")
	}
}

func TestAzureProvider_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	p := NewAzureProvider(AzureConfig{APIKey: "k", Region: "r", BaseURL: server.URL})
	_, err := p.Translate(context.Background(), transctl.TranslateRequest{TargetLang: "de", Text: "Hello"})
	if err == nil {
		t.Fatal("expected error for empty response")
	}
}
