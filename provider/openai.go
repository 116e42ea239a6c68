package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ZaguanLabs/transctl"
	"github.com/ZaguanLabs/transctl/protect"
)

// OpenAIProvider translates with an OpenAI chat model instructed to keep
// notranslate spans verbatim.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	class       string
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string  // OpenAI API key
	Model       string  // Model to use (default: "gpt-4o-mini")
	Temperature float32 // Temperature for generation (default: 0.3)
	BaseURL     string  // Custom base URL (optional)
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
		class:       protect.DefaultNoTranslateClass,
	}
}

// Translate translates one protected string.
func (p *OpenAIProvider) Translate(ctx context.Context, req transctl.TranslateRequest) (string, error) {
	if req.Text == "" {
		return "", nil
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.buildSystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: req.Text},
		},
		Temperature: p.temperature,
	})
	if err != nil {
		return "", &transctl.ProviderError{
			Message:   "OpenAI API call failed",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}

	if len(resp.Choices) == 0 {
		return "", &transctl.ProviderError{
			Message:   "no response from OpenAI",
			Retryable: true,
		}
	}

	return cleanResponse(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) buildSystemPrompt(req transctl.TranslateRequest) string {
	sourceName := "the source language"
	if req.SourceLang != "" {
		sourceName = transctl.GetLanguageName(req.SourceLang)
	}
	targetName := transctl.GetLanguageName(req.TargetLang)

	prompt := fmt.Sprintf(`# Role
You are an expert native translator. You translate content from %s to %s with the fluency and nuance of a highly educated native speaker.

# Task
Translate the text sent by the user into idiomatic %s. The text is a single string taken from an HTML or JSON document.

# Style Guide
- **Natural Flow**: Avoid literal translations. Rephrase sentences to sound completely natural to a native speaker.
- **Protected Spans**: Copy every <span class="%s">...</span> element exactly as it appears, tags and content, and keep it at the grammatically correct position.
- **HTML Safety**: Do NOT translate HTML tags, attributes, URLs or email addresses.
- **Formatting**: Preserve meaningful whitespace. Use idiomatic punctuation for the target language.`, sourceName, targetName, targetName, p.class)

	if len(req.Glossary) > 0 {
		terms := make([]string, 0, len(req.Glossary))
		for term := range req.Glossary {
			terms = append(terms, term)
		}
		sort.Strings(terms)

		prompt += "\n\n# Glossary\nTranslate these terms exactly as given:"
		for _, term := range terms {
			prompt += fmt.Sprintf("\n- \"%s\" → %s", term, req.Glossary[term])
		}
	}

	prompt += `

# Format
Reply with the translated text only.
- Do NOT wrap it in Markdown code blocks or quotes.
- Do NOT add explanations.`

	return prompt
}

// cleanResponse strips a Markdown code fence some models add despite the
// instructions.
func cleanResponse(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return content
	}
	trimmed = strings.TrimSuffix(strings.TrimPrefix(trimmed, "```"), "```")
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 && !strings.Contains(trimmed[:i], " ") {
		trimmed = trimmed[i+1:]
	}
	return strings.TrimSpace(trimmed)
}

// Close is a no-op.
func (p *OpenAIProvider) Close() error {
	return nil
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}

	// Check for common retryable conditions
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"rate limit",
		"timeout",
		"connection refused",
		"connection reset",
		"temporary",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
