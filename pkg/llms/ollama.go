package llms

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/httpclient"
)

type OllamaProvider struct {
	config *config.LLMConfig
	client *httpclient.Client
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewOllamaProvider(cfg *config.LLMConfig) *OllamaProvider {
	return &OllamaProvider{
		config: cfg,
		client: httpclient.New(
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}),
		),
	}
}

func (p *OllamaProvider) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	request := ollamaGenerateRequest{
		Model:  p.config.Model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}

	var response ollamaGenerateResponse
	if err := p.client.PostJSON(ctx, p.config.Host+"/api/generate", nil, request, &response); err != nil {
		return "", fmt.Errorf("ollama generation failed: %w", err)
	}
	return response.Response, nil
}

func (p *OllamaProvider) Available() bool {
	resp, err := http.Get(p.config.Host + "/api/tags")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *OllamaProvider) Close() error { return nil }

// Ensure OllamaProvider implements LLM.
var _ LLM = (*OllamaProvider)(nil)
