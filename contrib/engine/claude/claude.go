package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/sweetpotato0/batchsum/contrib/engine"
	"github.com/sweetpotato0/batchsum/rag/summarizer"
)

// Config holds Claude provider configuration
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxRetries  int
}

// DefaultConfig returns default Claude configuration
func DefaultConfig(apiKey, baseURL string) *Config {
	return &Config{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       "claude-sonnet-4-5-20250929",
		Temperature: 0.2,
		MaxRetries:  2,
	}
}

// Provider summarizes spans with the Claude messages API.
type Provider struct {
	config *Config
	client anthropic.Client
}

var _ engine.Generator = (*Provider)(nil)

// New creates a new Claude provider using official SDK
func New(config *Config) *Provider {
	if config.Model == "" {
		config.Model = "claude-sonnet-4-5-20250929"
	}

	options := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithAuthToken(""),
		option.WithMaxRetries(config.MaxRetries),
	}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Provider{
		config: config,
		client: anthropic.NewClient(options...),
	}
}

// NewEngine wraps a provider built from config in a batched engine.
func NewEngine(config *Config, opts ...engine.Option) *engine.Engine {
	return engine.New(New(config), opts...)
}

// Summarize implements engine.Generator.
func (p *Provider) Summarize(ctx context.Context, span string, params summarizer.GenerateParams) (string, error) {
	maxTokens := int64(params.MaxLength)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: engine.Prompt(params)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(span)),
		},
	}
	if p.config.Temperature > 0 {
		req.Temperature = param.NewOpt(p.config.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("Claude API error: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("Claude returned no text content")
	}
	return b.String(), nil
}
