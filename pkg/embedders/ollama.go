package embedders

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/httpclient"
)

// Global mutex to serialize Ollama embedding requests.
// Ollama's llama runner crashes when receiving concurrent embedding requests.
var ollamaEmbedMu sync.Mutex

type OllamaEmbedder struct {
	config *config.EmbedderConfig
	client *httpclient.Client
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func NewOllamaEmbedder(cfg *config.EmbedderConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		config: cfg,
		client: httpclient.New(
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHTTPClient(httpTimeoutClient(cfg.Timeout)),
		),
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	// Serialize all Ollama embedding requests to prevent runner crashes.
	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	slog.Debug("ollama embedding request", "model", e.config.Model, "text_length", len(text))

	var response ollamaEmbedResponse
	err := e.client.PostJSON(ctx, e.config.Host+"/api/embeddings", nil,
		ollamaEmbedRequest{Model: e.config.Model, Prompt: text}, &response)
	if err != nil {
		slog.Error("ollama embedding failed", "error", err, "model", e.config.Model)
		return nil, fmt.Errorf("failed to embed with ollama: %w", err)
	}

	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding from ollama")
	}
	return response.Embedding, nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *OllamaEmbedder) Dimension() int { return e.config.Dimension }

func (e *OllamaEmbedder) Close() error { return nil }

func httpTimeoutClient(seconds int) *http.Client {
	return &http.Client{Timeout: time.Duration(seconds) * time.Second}
}

// Ensure OllamaEmbedder implements Embedder.
var _ Embedder = (*OllamaEmbedder)(nil)
