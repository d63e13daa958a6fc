package azure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadConfig reads so tests never pick up the
// host machine's configuration.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"LLM_BINDING_HOST", "LLM_BINDING_API_KEY", "LLM_MODEL",
		"EMBEDDING_BINDING_HOST", "EMBEDDING_BINDING_API_KEY", "EMBEDDING_MODEL", "EMBEDDING_DIM",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT",
		"AZURE_OPENAI_LLM_DEPLOYMENT", "AZURE_OPENAI_EMBEDDING_DEPLOYMENT",
		"AZURE_LLM_API_VERSION", "AZURE_EMBEDDING_API_VERSION",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadConfigBindingStyle(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_BINDING_HOST", "https://acme-east2.cognitiveservices.azure.com/openai/deployments/gpt-4o-mini/chat/completions?api-version=2025-01-01-preview")
	t.Setenv("LLM_BINDING_API_KEY", "llm-secret")
	t.Setenv("EMBEDDING_BINDING_HOST", "https://acme-east2.cognitiveservices.azure.com/openai/deployments/text-embedding-3-small/embeddings?api-version=2023-05-15")
	t.Setenv("EMBEDDING_BINDING_API_KEY", "embed-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://acme-east2.cognitiveservices.azure.com/openai/", cfg.LLM.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Deployment)
	assert.Equal(t, "llm-secret", cfg.LLM.APIKey)
	assert.Equal(t, DefaultChatAPIVersion, cfg.LLM.APIVersion)
	assert.Equal(t, DefaultChatModel, cfg.LLM.Model)
	assert.Equal(t, "https://acme-east2.cognitiveservices.azure.com", cfg.LLM.Endpoint())

	assert.Equal(t, "https://acme-east2.cognitiveservices.azure.com/openai/", cfg.Embedding.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Deployment)
	assert.Equal(t, "embed-secret", cfg.Embedding.APIKey)
	assert.Equal(t, DefaultEmbeddingAPIVersion, cfg.Embedding.APIVersion)

	// Dimension defaults when EMBEDDING_DIM is unset.
	assert.Equal(t, 1536, cfg.EmbeddingDim)
}

func TestLoadConfigResourceStyle(t *testing.T) {
	clearEnv(t)
	t.Setenv("AZURE_OPENAI_API_KEY", "shared-secret")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://acme.openai.azure.com")
	t.Setenv("AZURE_OPENAI_LLM_DEPLOYMENT", "chat-prod")
	t.Setenv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT", "embed-prod")
	t.Setenv("AZURE_LLM_API_VERSION", "2024-02-01")
	t.Setenv("EMBEDDING_DIM", "3072")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://acme.openai.azure.com/openai/", cfg.LLM.BaseURL)
	assert.Equal(t, "chat-prod", cfg.LLM.Deployment)
	assert.Equal(t, "shared-secret", cfg.LLM.APIKey)
	assert.Equal(t, "2024-02-01", cfg.LLM.APIVersion)
	assert.Equal(t, "embed-prod", cfg.Embedding.Deployment)
	assert.Equal(t, 3072, cfg.EmbeddingDim)
}

func TestLoadConfigBindingWinsOverResource(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_BINDING_HOST", "https://binding.openai.azure.com/openai/deployments/from-url/chat/completions")
	t.Setenv("LLM_BINDING_API_KEY", "binding-key")
	t.Setenv("AZURE_OPENAI_API_KEY", "resource-key")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://resource.openai.azure.com")
	t.Setenv("AZURE_OPENAI_LLM_DEPLOYMENT", "from-env")
	t.Setenv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT", "embed-prod")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://binding.openai.azure.com/openai/", cfg.LLM.BaseURL)
	assert.Equal(t, "from-url", cfg.LLM.Deployment)
	assert.Equal(t, "binding-key", cfg.LLM.APIKey)

	// The embedding role had no binding URL, so the resource variables fill it.
	assert.Equal(t, "https://resource.openai.azure.com/openai/", cfg.Embedding.BaseURL)
	assert.Equal(t, "embed-prod", cfg.Embedding.Deployment)
	assert.Equal(t, "resource-key", cfg.Embedding.APIKey)
}

func TestLoadConfigMissingFields(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_BINDING_HOST", "https://acme.openai.azure.com/openai/deployments/gpt-4o-mini/chat/completions")

	_, err := LoadConfig()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Error(), "LLM_BINDING_API_KEY")
	assert.Contains(t, cfgErr.Error(), "EMBEDDING_BINDING_HOST")
	assert.Contains(t, cfgErr.Error(), "EMBEDDING_BINDING_API_KEY")
}

func TestOperationURL(t *testing.T) {
	full := "https://acme.openai.azure.com/openai/deployments/gpt-4o-mini/chat/completions?api-version=2024-02-01"
	role := RoleConfig{
		BaseURL:    "https://acme.openai.azure.com/openai/",
		Deployment: "gpt-4o-mini",
		APIVersion: "2024-02-01",
		FullURL:    full,
	}
	assert.Equal(t, full, role.OperationURL("chat/completions"))

	role.FullURL = ""
	assert.Equal(t,
		"https://acme.openai.azure.com/openai/deployments/gpt-4o-mini/chat/completions?api-version=2024-02-01",
		role.OperationURL("chat/completions"))
}
