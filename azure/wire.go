package azure

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Wire types for the direct-URL request path. They mirror the
// OpenAI-compatible payloads Azure accepts on deployment URLs, without any
// SDK reshaping in between.

// ChatMessage is one message of a chat completion request or response.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for a chat/completions operation.
type ChatRequest struct {
	Messages  []ChatMessage `json:"messages"`
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// ChatResponse is the response body for a chat/completions operation.
type ChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
}

// EmbeddingRequest is the request body for an embeddings operation.
type EmbeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format,omitempty"` // "float" or "base64"
}

// EmbeddingData is one vector of an embeddings response.
type EmbeddingData struct {
	Embedding EmbeddingVector `json:"embedding"`
	Index     int             `json:"index"`
}

// EmbeddingResponse is the response body for an embeddings operation.
type EmbeddingResponse struct {
	Data  []EmbeddingData `json:"data"`
	Model string          `json:"model"`
}

// EmbeddingVector decodes the embedding field of an embeddings response.
// Azure delivers it either as a JSON array of numbers or as a base64 string
// packing little-endian float32 values; both forms decode to the same vector.
// Any other shape is a ParseError.
type EmbeddingVector []float32

func (v *EmbeddingVector) UnmarshalJSON(data []byte) error {
	var floats []float32
	if err := json.Unmarshal(data, &floats); err == nil {
		*v = floats
		return nil
	}

	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return &ParseError{Reason: "embedding is neither a number array nor a base64 string"}
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return &ParseError{Reason: "invalid base64 embedding", Err: err}
	}
	if len(raw)%4 != 0 {
		return &ParseError{Reason: fmt.Sprintf("base64 embedding has %d bytes, not a float32 buffer", len(raw))}
	}

	floats = make([]float32, len(raw)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	*v = floats
	return nil
}
