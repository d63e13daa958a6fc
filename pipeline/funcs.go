package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/langgraphgo/rag"
	"github.com/tmc/langchaingo/llms"

	"github.com/lijie-ai/azurerag/azure"
)

// CompleteFunc produces a completion for a prompt.
type CompleteFunc func(ctx context.Context, prompt string) (string, error)

// EmbedFunc produces one vector per input text, in input order.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// ModelFuncs bundles the completion callable, the embedding callable and the
// embedding dimension the retrieval engine needs. A plain struct replaces the
// upstream pattern of attaching extra attributes onto function objects.
type ModelFuncs struct {
	Complete CompleteFunc
	Embed    EmbedFunc
	Dim      int
}

// Validate reports the first missing piece of the bundle.
func (f ModelFuncs) Validate() error {
	if f.Complete == nil {
		return fmt.Errorf("pipeline: completion function is required")
	}
	if f.Embed == nil {
		return fmt.Errorf("pipeline: embedding function is required")
	}
	if f.Dim <= 0 {
		return fmt.Errorf("pipeline: embedding dimension must be positive")
	}
	return nil
}

// FuncsFromConfig builds the model bundle from a resolved Azure
// configuration.
//
// Example:
//
//	cfg, _ := azure.LoadConfig()
//	p, _ := pipeline.New(pipeline.FuncsFromConfig(cfg), pipeline.Options{})
func FuncsFromConfig(cfg *azure.Config) ModelFuncs {
	chat := azure.NewChatClient(cfg.LLM)
	embed := azure.NewEmbeddingClient(cfg.Embedding, cfg.EmbeddingDim)

	return ModelFuncs{
		Complete: func(ctx context.Context, prompt string) (string, error) {
			return chat.Complete(ctx, prompt, nil)
		},
		Embed: embed.Embed,
		Dim:   cfg.EmbeddingDim,
	}
}

// embedderAdapter exposes ModelFuncs as the rag.Embedder the downstream
// engine expects.
type embedderAdapter struct {
	funcs ModelFuncs
}

func (a *embedderAdapter) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	vectors, err := a.funcs.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("pipeline: embedding returned no vectors")
	}
	return vectors[0], nil
}

func (a *embedderAdapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return a.funcs.Embed(ctx, texts)
}

func (a *embedderAdapter) GetDimension() int {
	return a.funcs.Dim
}

// llmAdapter exposes ModelFuncs as the rag.LLMInterface the graph engine
// uses for entity and relationship extraction. The bundle's completion
// callable carries no generation knobs, so the config variant ignores them
// and the system variant prepends the system text to the prompt.
type llmAdapter struct {
	funcs ModelFuncs
}

var _ rag.LLMInterface = (*llmAdapter)(nil)

func (a *llmAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	return a.funcs.Complete(ctx, prompt)
}

func (a *llmAdapter) GenerateWithConfig(ctx context.Context, prompt string, config map[string]any) (string, error) {
	return a.funcs.Complete(ctx, prompt)
}

func (a *llmAdapter) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	if system == "" {
		return a.funcs.Complete(ctx, prompt)
	}
	return a.funcs.Complete(ctx, system+"\n\n"+prompt)
}

// chatModel exposes ModelFuncs as the langchaingo model the downstream
// pipeline's generation node calls.
type chatModel struct {
	funcs ModelFuncs
}

func (m *chatModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	var sb strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				sb.WriteString(text.Text)
				sb.WriteString("\n")
			}
		}
	}

	answer, err := m.funcs.Complete(ctx, strings.TrimSpace(sb.String()))
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: answer}},
	}, nil
}

func (m *chatModel) Call(ctx context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	return m.funcs.Complete(ctx, prompt)
}
