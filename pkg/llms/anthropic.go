package llms

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/httpclient"
)

const (
	defaultAnthropicURL     = "https://api.anthropic.com/v1/messages"
	anthropicVersionHeader  = "2023-06-01"
	defaultAnthropicMaxToks = 1024
)

type AnthropicProvider struct {
	config *config.LLMConfig
	client *httpclient.Client
	url    string
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func NewAnthropicProvider(cfg *config.LLMConfig) *AnthropicProvider {
	url := defaultAnthropicURL
	if cfg.Host != "" && cfg.Host != "http://localhost:11434" {
		url = cfg.Host + "/v1/messages"
	}
	return &AnthropicProvider{
		config: cfg,
		client: httpclient.New(
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}),
		),
		url: url,
	}
}

func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxToks
	}
	headers := map[string]string{
		"x-api-key":         p.config.APIKey,
		"anthropic-version": anthropicVersionHeader,
	}
	request := anthropicRequest{
		Model:       p.config.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	}

	var response anthropicResponse
	if err := p.client.PostJSON(ctx, p.url, headers, request, &response); err != nil {
		return "", fmt.Errorf("anthropic generation failed: %w", err)
	}
	for _, block := range response.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic returned no text content")
}

func (p *AnthropicProvider) Available() bool { return p.config.APIKey != "" }

func (p *AnthropicProvider) Close() error { return nil }

// Ensure AnthropicProvider implements LLM.
var _ LLM = (*AnthropicProvider)(nil)
