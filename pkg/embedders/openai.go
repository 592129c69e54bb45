package embedders

import (
	"context"
	"fmt"

	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/httpclient"
)

const defaultOpenAIEmbedURL = "https://api.openai.com/v1/embeddings"

type OpenAIEmbedder struct {
	config *config.EmbedderConfig
	client *httpclient.Client
	url    string
}

type openaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func NewOpenAIEmbedder(cfg *config.EmbedderConfig) *OpenAIEmbedder {
	url := defaultOpenAIEmbedURL
	if cfg.Host != "" {
		url = cfg.Host + "/v1/embeddings"
	}
	return &OpenAIEmbedder{
		config: cfg,
		client: httpclient.New(
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHTTPClient(httpTimeoutClient(cfg.Timeout)),
		),
		url: url,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	headers := map[string]string{"Authorization": "Bearer " + e.config.APIKey}

	var response openaiEmbedResponse
	err := e.client.PostJSON(ctx, e.url, headers,
		openaiEmbedRequest{Model: e.config.Model, Input: texts}, &response)
	if err != nil {
		return nil, fmt.Errorf("failed to embed with openai: %w", err)
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(response.Data), len(texts))
	}

	// Responses carry an index; order by it rather than trusting wire order.
	out := make([][]float32, len(texts))
	for _, d := range response.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai returned out-of-range embedding index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (e *OpenAIEmbedder) Dimension() int { return e.config.Dimension }

func (e *OpenAIEmbedder) Close() error { return nil }

// Ensure OpenAIEmbedder implements Embedder.
var _ Embedder = (*OpenAIEmbedder)(nil)
