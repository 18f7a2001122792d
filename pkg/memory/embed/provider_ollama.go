package embed

import (
	"context"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaProvider implements the `router_cpu` local-model provider backed by
// a locally-running Ollama daemon (§6 wire protocol).
type OllamaProvider struct {
	client *ollama.Client
	model  string
}

func NewOllamaProvider(host, model string) (*OllamaProvider, error) {
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaProvider{client: ollama.NewClient(u, &http.Client{Timeout: 60 * time.Second}), model: model}, nil
}

func (p *OllamaProvider) Name() string { return "router_cpu:ollama" }

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := p.client.Embed(ctx, &ollama.EmbedRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		return nil, ErrNotSupported
	}
	return res.Embeddings[0], nil
}
