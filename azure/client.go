package azure

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// CallOptions are the optional request fields forwarded to the chat
// completions API. Anything not listed here never reaches the wire, which
// replaces the keyword filtering the downstream library otherwise needs.
type CallOptions struct {
	// SystemPrompt is prepended as a system message when non-empty.
	SystemPrompt string

	// History is inserted between the system message and the user prompt.
	History []openai.ChatCompletionMessage

	Temperature float32
	MaxTokens   int
	TopP        float32
}

// ChatClient wraps one Azure chat deployment behind the OpenAI-compatible SDK
// client. The SDK rebuilds the deployment-style URL from the endpoint root,
// so the client is constructed from a resolved RoleConfig, never from the raw
// binding URL.
type ChatClient struct {
	client *openai.Client
	model  string
}

// NewChatClient creates a chat client for the given resolved role.
//
// Example:
//
//	cfg, _ := azure.LoadConfig()
//	chat := azure.NewChatClient(cfg.LLM)
//	answer, err := chat.Complete(ctx, "Say 'Hello World'", nil)
func NewChatClient(cfg RoleConfig) *ChatClient {
	return &ChatClient{
		client: newSDKClient(cfg),
		model:  cfg.Model,
	}
}

// Complete sends a chat completion request and returns the first choice's
// content.
func (c *ChatClient) Complete(ctx context.Context, prompt string, opts *CallOptions) (string, error) {
	if opts == nil {
		opts = &CallOptions{}
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(opts.History)+2)
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	messages = append(messages, opts.History...)
	if prompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		TopP:        opts.TopP,
	})
	if err != nil {
		return "", wrapTransport(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// newSDKClient builds the SDK client for a resolved role. The model-to-
// deployment mapper pins every request to the role's deployment, matching
// Azure's URL scheme.
func newSDKClient(cfg RoleConfig) *openai.Client {
	clientCfg := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint())
	if cfg.APIVersion != "" {
		clientCfg.APIVersion = cfg.APIVersion
	}
	deployment := cfg.Deployment
	clientCfg.AzureModelMapperFunc = func(string) string {
		return deployment
	}
	return openai.NewClientWithConfig(clientCfg)
}

// wrapTransport converts SDK errors into TransportError so every remote
// failure carries the status and whatever body detail the endpoint returned.
func wrapTransport(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{
			Status: apiErr.HTTPStatusCode,
			Body:   apiErr.Message,
			Err:    err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &TransportError{
			Status: reqErr.HTTPStatusCode,
			Body:   string(reqErr.Body),
			Err:    err,
		}
	}
	return &TransportError{Err: err}
}
