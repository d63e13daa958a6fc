package azure

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// EmbeddingClient wraps one Azure embedding deployment behind the
// OpenAI-compatible SDK client.
type EmbeddingClient struct {
	client *openai.Client
	model  string
	dim    int
}

// NewEmbeddingClient creates an embedding client for the given resolved role.
// dim is the expected vector length; pass 0 to skip dimension validation.
func NewEmbeddingClient(cfg RoleConfig, dim int) *EmbeddingClient {
	return &EmbeddingClient{
		client: newSDKClient(cfg),
		model:  cfg.Model,
		dim:    dim,
	}
}

// Embed returns one vector per input text, in input order. Vectors that do
// not match the configured dimension are reported as a ParseError, distinct
// from transport failures.
func (c *EmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.model),
		Input: texts,
	})
	if err != nil {
		return nil, wrapTransport(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, &ParseError{
			Reason: fmt.Sprintf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts)),
		}
	}

	vectors := make([][]float32, len(resp.Data))
	for i, dp := range resp.Data {
		if c.dim > 0 && len(dp.Embedding) != c.dim {
			return nil, &ParseError{
				Reason: fmt.Sprintf("embedding %d has dimension %d, want %d", i, len(dp.Embedding), c.dim),
			}
		}
		vectors[i] = dp.Embedding
	}

	return vectors, nil
}

// Dimension reports the expected embedding vector length.
func (c *EmbeddingClient) Dimension() int { return c.dim }
