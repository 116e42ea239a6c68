package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ZaguanLabs/transctl"
)

const azureURL = "https://api.cognitive.microsofttranslator.com"

// AzureConfig holds configuration for the Azure Translator provider.
type AzureConfig struct {
	APIKey  string        // Subscription key
	Region  string        // Resource region, e.g. "westeurope"
	BaseURL string        // Custom base URL (optional)
	Timeout time.Duration // HTTP timeout (default: 30s)
}

// AzureProvider translates through the Azure Translator v3 API with
// textType=html, so notranslate spans are kept. Glossary terms are pinned by
// wrapping them in notranslate spans before the request.
type AzureProvider struct {
	apiKey   string
	region   string
	baseURL  string
	client   *http.Client
	glossary transctl.GlossaryApplier
}

var _ Provider = (*AzureProvider)(nil)

// NewAzureProvider creates a new Azure provider.
func NewAzureProvider(cfg AzureConfig) *AzureProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = azureURL
	}
	return &AzureProvider{
		apiKey:   cfg.APIKey,
		region:   cfg.Region,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   newHTTPClient(cfg.Timeout),
		glossary: spanGlossary,
	}
}

type azureText struct {
	Text string `json:"Text"`
}

type azureResponse []struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

// Translate translates one protected string.
func (p *AzureProvider) Translate(ctx context.Context, req transctl.TranslateRequest) (string, error) {
	if req.Text == "" {
		return "", nil
	}

	text := req.Text
	if len(req.Glossary) > 0 {
		text = p.glossary.ApplyGlossary(text, req.Glossary)
	}

	q := url.Values{}
	q.Set("api-version", "3.0")
	q.Set("to", azureCode(req.TargetLang))
	q.Set("textType", "html")
	if req.SourceLang != "" {
		q.Set("from", azureCode(req.SourceLang))
	}

	payload, err := json.Marshal([]azureText{{Text: text}})
	if err != nil {
		return "", &transctl.ProviderError{Message: "encode azure request", Cause: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/translate?"+q.Encode(), bytes.NewReader(payload))
	if err != nil {
		return "", &transctl.ProviderError{Message: "create azure request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.apiKey)
	httpReq.Header.Set("Ocp-Apim-Subscription-Region", p.region)
	httpReq.Header.Set("User-Agent", transctl.UserAgent())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", requestError("azure", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("azure", resp)
	}

	var out azureResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &transctl.ProviderError{Message: "decode azure response", Cause: err}
	}
	if len(out) == 0 || len(out[0].Translations) == 0 {
		return "", &transctl.ProviderError{Message: "no translation returned by azure", Retryable: true}
	}
	return out[0].Translations[0].Text, nil
}

// Close is a no-op.
func (p *AzureProvider) Close() error {
	return nil
}
