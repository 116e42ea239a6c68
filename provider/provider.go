// Package provider implements transctl.Translator for the supported
// translation engines: DeepL, Azure Translator, Google Cloud Translation,
// OpenAI and an in-process mock.
//
// Every provider translates one protected string per call and keeps the
// engine's protection markers intact. Errors are returned as
// *transctl.ProviderError; Retryable is set for rate limits, timeouts and
// server errors so callers can wrap a provider in transctl.RetryableTranslator.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ZaguanLabs/transctl"
	"github.com/ZaguanLabs/transctl/protect"
)

// Engine names accepted by New.
const (
	EngineDeepL  = "deepl"
	EngineAzure  = "azure"
	EngineGoogle = "google"
	EngineOpenAI = "openai"
	EngineMock   = "mock"
)

// Engines lists every engine name in display order.
var Engines = []string{EngineDeepL, EngineAzure, EngineGoogle, EngineOpenAI, EngineMock}

// APIKeyEnv maps an engine to the environment variable holding its secret.
var APIKeyEnv = map[string]string{
	EngineDeepL:  "DEEPL_API_KEY",
	EngineAzure:  "AZURE_TRANSLATE_API_KEY",
	EngineGoogle: "GOOGLE_APPLICATION_CREDENTIALS",
	EngineOpenAI: "OPENAI_API_KEY",
}

// Config selects and configures an engine.
type Config struct {
	Engine          string
	APIKey          string
	Region          string // Azure resource region
	Model           string // OpenAI model
	BaseURL         string // Endpoint override
	CredentialsFile string // Google service account file
	Timeout         time.Duration
}

// Provider is a Translator that holds resources to release.
type Provider interface {
	transctl.Translator
	Close() error
}

// New creates the provider named by cfg.Engine.
func New(ctx context.Context, cfg Config) (Provider, error) {
	engine := strings.ToLower(strings.TrimSpace(cfg.Engine))
	if engine == "open-ai" {
		engine = EngineOpenAI
	}

	if env, ok := APIKeyEnv[engine]; ok && engine != EngineGoogle && cfg.APIKey == "" {
		return nil, &transctl.ConfigError{Message: fmt.Sprintf("missing API key, set %s in your environment", env)}
	}

	switch engine {
	case EngineDeepL:
		return NewDeepLProvider(DeepLConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}), nil
	case EngineAzure:
		if cfg.Region == "" {
			return nil, &transctl.ConfigError{Message: "azure region is not set"}
		}
		return NewAzureProvider(AzureConfig{APIKey: cfg.APIKey, Region: cfg.Region, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}), nil
	case EngineGoogle:
		return NewGoogleProvider(ctx, GoogleConfig{APIKey: cfg.APIKey, CredentialsFile: cfg.CredentialsFile, BaseURL: cfg.BaseURL})
	case EngineOpenAI:
		return NewOpenAIProvider(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL}), nil
	case EngineMock:
		return NewMockProvider(), nil
	case "":
		return nil, &transctl.ConfigError{Message: "no provider found in the engine configuration"}
	}
	return nil, &transctl.ConfigError{Message: fmt.Sprintf("unsupported provider %q", cfg.Engine)}
}

// spanGlossary pins glossary terms for engines that honour notranslate spans.
var spanGlossary transctl.GlossaryApplier = protect.NewSpanProtector(protect.DefaultNoTranslateClass)

const defaultTimeout = 30 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// statusError converts a non-2xx response into a ProviderError. 429 and 5xx
// are retryable; Retry-After, when given in seconds, is honoured.
func statusError(engine string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	err := &transctl.ProviderError{
		Message:   fmt.Sprintf("%s returned status %d: %s", engine, resp.StatusCode, strings.TrimSpace(string(body))),
		Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
	}
	if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
		err.RetryAfter = time.Duration(secs) * time.Second
	}
	return err
}

// requestError wraps a transport failure. Timeouts and cancellations keep
// their cause so errors.Is sees context errors.
func requestError(engine string, err error) error {
	return &transctl.ProviderError{
		Message:   engine + " request failed",
		Cause:     err,
		Retryable: isRetryableError(err),
	}
}
