package embed

import (
	"context"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider implements the `remote_batch` provider against Google's
// generativelanguage embedding API (§6), one EmbedContent call per text.
// Calls are serialized by the
// Router's single-flight mutex to avoid 429 amplification.
type GeminiProvider struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	cli, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "embedding-001"
	}
	return &GeminiProvider{client: cli, model: cli.EmbeddingModel(model)}, nil
}

func (p *GeminiProvider) Name() string { return "remote_batch:gemini" }

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, ErrNotSupported
	}
	return resp.Embedding.Values, nil
}
