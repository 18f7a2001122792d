package embed

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotSupported is returned by providers whose response carries no
// embedding values.
var ErrNotSupported = errors.New("embed: provider does not support embeddings")

// OpenAIProvider implements the `remote_batch` provider against an
// OpenAI-compatible embeddings endpoint (§6 wire protocol).
type OpenAIProvider struct {
	client *openai.Client
	model  string
	dim    int
}

func NewOpenAIProvider(apiKey, model string, dim int) *OpenAIProvider {
	if model == "" {
		model = "text-embedding-3-small"
	}
	cfg := openai.DefaultConfig(apiKey)
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), model: model, dim: dim}
}

func (p *OpenAIProvider) Name() string { return "remote_batch:openai" }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.model),
	}
	if p.dim > 0 {
		req.Dimensions = p.dim
	}
	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrNotSupported
	}
	return resp.Data[0].Embedding, nil
}
