package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/sweetpotato0/batchsum/contrib/engine"
	"github.com/sweetpotato0/batchsum/rag/summarizer"
)

// Config holds OpenAI provider configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxRetries  int
}

// WithBaseURL set BaseURL.
func (cfg *Config) WithBaseURL(url string) *Config {
	cfg.BaseURL = url
	return cfg
}

// WithAPIKey set api key.
func (cfg *Config) WithAPIKey(apiKey string) *Config {
	cfg.APIKey = apiKey
	return cfg
}

// WithModel set model.
func (cfg *Config) WithModel(model string) *Config {
	cfg.Model = model
	return cfg
}

// DefaultConfig returns default OpenAI configuration
func DefaultConfig() *Config {
	return &Config{
		Model:       string(openai.ChatModelGPT4oMini),
		Temperature: 0.2,
		MaxRetries:  2,
	}
}

// Provider summarizes spans with OpenAI chat completions.
type Provider struct {
	config *Config
	client openai.Client
}

var _ engine.Generator = (*Provider)(nil)

// New creates a new OpenAI provider using official SDK
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Model == "" {
		config.Model = string(openai.ChatModelGPT4oMini)
	}

	options := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(config.MaxRetries),
	}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Provider{
		config: config,
		client: openai.NewClient(options...),
	}
}

// NewEngine wraps a provider built from config in a batched engine.
func NewEngine(config *Config, opts ...engine.Option) *engine.Engine {
	return engine.New(New(config), opts...)
}

// Summarize implements engine.Generator.
func (p *Provider) Summarize(ctx context.Context, span string, params summarizer.GenerateParams) (string, error) {
	req := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(engine.Prompt(params)),
			openai.UserMessage(span),
		},
	}
	if p.config.Temperature > 0 {
		req.Temperature = param.NewOpt(p.config.Temperature)
	}
	if params.MaxLength > 0 {
		req.MaxCompletionTokens = param.NewOpt(int64(params.MaxLength))
	}

	completion, err := p.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}
	return completion.Choices[0].Message.Content, nil
}
