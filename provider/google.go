package provider

import (
	"context"
	"errors"
	"net/http"

	"cloud.google.com/go/translate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ZaguanLabs/transctl"
)

// GoogleConfig holds configuration for the Google Cloud Translation provider.
// Without an API key or credentials file the client uses Application Default
// Credentials (GOOGLE_APPLICATION_CREDENTIALS).
type GoogleConfig struct {
	APIKey          string
	CredentialsFile string
	BaseURL         string       // Custom endpoint (optional)
	HTTPClient      *http.Client // Custom client, replaces authentication
}

// GoogleProvider translates through Google Cloud Translation (v2) in HTML
// format, so notranslate spans are kept. Glossary terms are pinned like for
// Azure.
type GoogleProvider struct {
	client   *translate.Client
	glossary transctl.GlossaryApplier
}

var _ Provider = (*GoogleProvider)(nil)

// NewGoogleProvider creates a client for the Translation API.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, &transctl.ConfigError{Message: "create google translate client", Cause: err}
	}
	return &GoogleProvider{client: client, glossary: spanGlossary}, nil
}

// Translate translates one protected string.
func (p *GoogleProvider) Translate(ctx context.Context, req transctl.TranslateRequest) (string, error) {
	if req.Text == "" {
		return "", nil
	}

	target, err := googleTag(req.TargetLang)
	if err != nil {
		return "", &transctl.ProviderError{Message: "invalid target language " + req.TargetLang, Cause: err}
	}
	opts := &translate.Options{Format: translate.HTML}
	if req.SourceLang != "" {
		source, err := googleTag(req.SourceLang)
		if err != nil {
			return "", &transctl.ProviderError{Message: "invalid source language " + req.SourceLang, Cause: err}
		}
		opts.Source = source
	}

	text := req.Text
	if len(req.Glossary) > 0 {
		text = p.glossary.ApplyGlossary(text, req.Glossary)
	}

	translations, err := p.client.Translate(ctx, []string{text}, target, opts)
	if err != nil {
		return "", googleError(err)
	}
	if len(translations) == 0 {
		return "", &transctl.ProviderError{Message: "no translation returned by google", Retryable: true}
	}
	return translations[0].Text, nil
}

func googleError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &transctl.ProviderError{
			Message:   "google translate call failed",
			Cause:     err,
			Retryable: apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500,
		}
	}
	return requestError("google", err)
}

// Close releases the client.
func (p *GoogleProvider) Close() error {
	return p.client.Close()
}
