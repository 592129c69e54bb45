package llms

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/httpclient"
)

const defaultOpenAIChatURL = "https://api.openai.com/v1/chat/completions"

type OpenAIProvider struct {
	config *config.LLMConfig
	client *httpclient.Client
	url    string
}

type openaiChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
}

func NewOpenAIProvider(cfg *config.LLMConfig) *OpenAIProvider {
	url := defaultOpenAIChatURL
	if cfg.Host != "" && cfg.Host != "http://localhost:11434" {
		url = cfg.Host + "/v1/chat/completions"
	}
	return &OpenAIProvider{
		config: cfg,
		client: httpclient.New(
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}),
		),
		url: url,
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	headers := map[string]string{"Authorization": "Bearer " + p.config.APIKey}
	request := openaiChatRequest{
		Model:       p.config.Model,
		Messages:    []openaiMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	var response openaiChatResponse
	if err := p.client.PostJSON(ctx, p.url, headers, request, &response); err != nil {
		return "", fmt.Errorf("openai generation failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Available() bool { return p.config.APIKey != "" }

func (p *OpenAIProvider) Close() error { return nil }

// Ensure OpenAIProvider implements LLM.
var _ LLM = (*OpenAIProvider)(nil)
