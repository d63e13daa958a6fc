package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RestClient issues requests against the untouched full deployment URL, the
// way the downstream library does, bypassing the SDK's URL handling entirely.
// The debug tooling uses it to reproduce that request shape against a live
// endpoint.
type RestClient struct {
	httpClient *http.Client
	apiKey     string
}

// NewRestClient creates a direct-URL client authenticating with the api-key
// header.
func NewRestClient(apiKey string) *RestClient {
	return &RestClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
	}
}

// Embed posts an embeddings request to the full URL and returns one vector
// per input.
func (c *RestClient) Embed(ctx context.Context, fullURL, model string, input []string) ([][]float32, error) {
	var resp EmbeddingResponse
	err := c.post(ctx, fullURL, EmbeddingRequest{Input: input, Model: model}, &resp)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Data))
	for i, dp := range resp.Data {
		vectors[i] = dp.Embedding
	}
	return vectors, nil
}

// Complete posts a chat completion request to the full URL and returns the
// first choice's content.
func (c *RestClient) Complete(ctx context.Context, fullURL, model string, messages []ChatMessage, maxTokens int) (string, error) {
	var resp ChatResponse
	err := c.post(ctx, fullURL, ChatRequest{Messages: messages, Model: model, MaxTokens: maxTokens}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *RestClient) post(ctx context.Context, fullURL string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &TransportError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			return parseErr
		}
		return &ParseError{Reason: "malformed response body", Err: err}
	}
	return nil
}
