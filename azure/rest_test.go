package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestClientEmbedPreservesURL(t *testing.T) {
	want := []float32{0.5, 1.5, -2}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The full deployment URL goes through untouched, query string included.
		assert.Equal(t, "/openai/deployments/embed-prod/embeddings", r.URL.Path)
		assert.Equal(t, "2023-05-15", r.URL.Query().Get("api-version"))
		assert.Equal(t, "rest-key", r.Header.Get("api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a test sentence"}, req.Input)

		fmt.Fprintf(w, `{"data":[{"embedding":%q,"index":0}],"model":"text-embedding-3-small"}`, packFloats(want))
	}))
	defer srv.Close()

	client := NewRestClient("rest-key")
	fullURL := srv.URL + "/openai/deployments/embed-prod/embeddings?api-version=2023-05-15"
	vectors, err := client.Embed(context.Background(), fullURL, "text-embedding-3-small", []string{"a test sentence"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, want, vectors[0])
}

func TestRestClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 50, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello World"}}],"model":"gpt-4o-mini"}`))
	}))
	defer srv.Close()

	client := NewRestClient("rest-key")
	answer, err := client.Complete(context.Background(), srv.URL, "gpt-4o-mini",
		[]ChatMessage{{Role: "user", Content: "Say 'Hello World'"}}, 50)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", answer)
}

func TestRestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"DeploymentNotFound","message":"The API deployment for this resource does not exist."}}`))
	}))
	defer srv.Close()

	client := NewRestClient("rest-key")
	_, err := client.Embed(context.Background(), srv.URL, "m", []string{"x"})
	require.Error(t, err)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusNotFound, transportErr.Status)
	assert.Equal(t, "The API deployment for this resource does not exist.", transportErr.Message())
}

func TestRestClientParseErrorIsNotTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":{"bogus":true},"index":0}]}`))
	}))
	defer srv.Close()

	client := NewRestClient("rest-key")
	_, err := client.Embed(context.Background(), srv.URL, "m", []string{"x"})
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
	var transportErr *TransportError
	assert.False(t, errors.As(err, &transportErr))
}
