package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codemarcinu/OCR/internal/catalog"
)

// DefaultModel is the Polish instruction model served by a local Ollama.
const DefaultModel = "SpeakLeash/bielik-11b-v2.3-instruct:Q6_K"

var (
	ErrEmptyResponse = errors.New("llm: empty response")
	ErrNoAPIKey      = errors.New("llm: api key not configured")
)

// OpenAIConfig configures an OpenAI-compatible chat endpoint. Ollama exposes
// one under /v1, which is the default.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	// RequireKey makes Generate fail fast without an APIKey. Ollama needs none.
	RequireKey bool
}

// OpenAIProvider talks to any OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	client  *openai.Client
	cfg     OpenAIConfig
	catalog *catalog.Catalog
}

func NewOpenAIProvider(cfg OpenAIConfig, cat *catalog.Catalog) *OpenAIProvider {
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	oc := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		oc.BaseURL = strings.TrimRight(base, "/")
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(oc), cfg: cfg, catalog: cat}
}

func (p *OpenAIProvider) Model() string { return p.cfg.Model }

// Generate sends one system+user exchange and returns the first choice.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	if p.cfg.RequireKey && strings.TrimSpace(p.cfg.APIKey) == "" {
		return "", ErrNoAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	temp := req.Temperature
	if temp == 0 {
		temp = p.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Temperature: temp,
		TopP:        0.9,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// Classify asks the model to standardize one product name.
func (p *OpenAIProvider) Classify(ctx context.Context, name string) (Classification, error) {
	system, user := ClassificationPrompt(p.catalog, name)
	text, err := p.Generate(ctx, Request{System: system, User: user, MaxTokens: 200})
	if err != nil {
		return Classification{}, err
	}
	var raw struct {
		StandardizedName *string `json:"standardized_name"`
		Category         *string `json:"category"`
		IsFrozen         *bool   `json:"is_frozen"`
	}
	if err := decodeJSON(text, &raw); err != nil {
		return Classification{}, fmt.Errorf("llm: parse classification: %w", err)
	}
	if raw.StandardizedName == nil || raw.Category == nil || raw.IsFrozen == nil {
		return Classification{}, fmt.Errorf("llm: classification missing fields in %q", text)
	}
	return Classification{
		StandardizedName: strings.TrimSpace(*raw.StandardizedName),
		Category:         strings.ToUpper(strings.TrimSpace(*raw.Category)),
		IsFrozen:         *raw.IsFrozen,
	}, nil
}
