package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sweetpotato0/batchsum/contrib/engine"
	"github.com/sweetpotato0/batchsum/rag/summarizer"
)

// Config holds Gemini provider configuration
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// DefaultConfig returns default Gemini configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "gemini-1.5-flash",
		Temperature: 0.2,
	}
}

// Provider summarizes spans with Google Gemini.
type Provider struct {
	config *Config
	client *genai.Client
}

var _ engine.Generator = (*Provider)(nil)

// New creates a Gemini provider. The client holds a connection; call Close when done.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil || config.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &Provider{config: config, client: client}, nil
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Summarize implements engine.Generator.
func (p *Provider) Summarize(ctx context.Context, span string, params summarizer.GenerateParams) (string, error) {
	model := p.client.GenerativeModel(p.config.Model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(engine.Prompt(params)))
	if params.MaxLength > 0 {
		model.SetMaxOutputTokens(int32(params.MaxLength))
	}
	if p.config.Temperature > 0 {
		model.SetTemperature(p.config.Temperature)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(span))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
