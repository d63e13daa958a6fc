package azure

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Default API versions differ per operation type: Azure's stable embedding API
// version lags behind the chat one.
const (
	DefaultChatAPIVersion      = "2024-08-01-preview"
	DefaultEmbeddingAPIVersion = "2023-05-15"

	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultEmbeddingDim matches text-embedding-3-small.
	DefaultEmbeddingDim = 1536
)

// rawEnv is the environment contract. Binding-style variables carry full
// deployment URLs; the resource-style equivalents carry the endpoint root and
// deployment names separately. Binding-style values win, resource-style fills
// the gaps.
type rawEnv struct {
	LLMBindingHost   string `env:"LLM_BINDING_HOST"`
	LLMBindingAPIKey string `env:"LLM_BINDING_API_KEY"`
	LLMModel         string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

	EmbeddingBindingHost   string `env:"EMBEDDING_BINDING_HOST"`
	EmbeddingBindingAPIKey string `env:"EMBEDDING_BINDING_API_KEY"`
	EmbeddingModel         string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDim           int    `env:"EMBEDDING_DIM" envDefault:"1536"`

	AzureAPIKey              string `env:"AZURE_OPENAI_API_KEY"`
	AzureEndpoint            string `env:"AZURE_OPENAI_ENDPOINT"`
	AzureLLMDeployment       string `env:"AZURE_OPENAI_LLM_DEPLOYMENT"`
	AzureEmbeddingDeployment string `env:"AZURE_OPENAI_EMBEDDING_DEPLOYMENT"`
	LLMAPIVersion            string `env:"AZURE_LLM_API_VERSION" envDefault:"2024-08-01-preview"`
	EmbeddingAPIVersion      string `env:"AZURE_EMBEDDING_API_VERSION" envDefault:"2023-05-15"`
}

// RoleConfig is the resolved endpoint record for one operation role (chat or
// embedding).
type RoleConfig struct {
	// BaseURL is the endpoint root through the /openai/ path segment.
	BaseURL string

	// Deployment is the name extracted from the deployments path segment, or
	// supplied directly by the resource-style variables.
	Deployment string

	// APIKey is the credential sent in the api-key header.
	APIKey string

	// APIVersion is the api-version query parameter value.
	APIVersion string

	// Model is the logical model identifier, independent of the deployment
	// name.
	Model string

	// FullURL is the deployment URL exactly as the environment supplied it,
	// empty when the endpoint was configured resource-style.
	FullURL string
}

// Endpoint reports the Azure resource root without the trailing /openai/
// segment, the form the SDK client expects.
func (r RoleConfig) Endpoint() string {
	return strings.TrimSuffix(r.BaseURL, "/openai/")
}

// OperationURL reconstructs the full deployment URL for the given operation
// suffix ("chat/completions" or "embeddings"), preferring the URL the
// environment supplied verbatim.
func (r RoleConfig) OperationURL(op string) string {
	if r.FullURL != "" {
		return r.FullURL
	}
	return fmt.Sprintf("%sdeployments/%s/%s?api-version=%s", r.BaseURL, r.Deployment, op, r.APIVersion)
}

// Config is the resolved endpoint configuration for both roles. It is built
// once at startup from environment variables and immutable thereafter.
type Config struct {
	LLM       RoleConfig
	Embedding RoleConfig

	// EmbeddingDim is the expected embedding vector length, used for
	// downstream validation only.
	EmbeddingDim int
}

// LoadConfig reads the environment, resolves the two full deployment URLs and
// fills in per-operation defaults. It returns a ConfigError naming every
// missing required field, so an invalid configuration is never used to build a
// client.
func LoadConfig() (*Config, error) {
	var raw rawEnv
	if err := env.Parse(&raw); err != nil {
		return nil, err
	}
	return buildConfig(raw)
}

func buildConfig(raw rawEnv) (*Config, error) {
	llm, err := resolveRole(roleInput{
		fullURL:    raw.LLMBindingHost,
		apiKey:     firstNonEmpty(raw.LLMBindingAPIKey, raw.AzureAPIKey),
		endpoint:   raw.AzureEndpoint,
		deployment: raw.AzureLLMDeployment,
		apiVersion: firstNonEmpty(raw.LLMAPIVersion, DefaultChatAPIVersion),
		model:      firstNonEmpty(raw.LLMModel, DefaultChatModel),
	})
	if err != nil {
		return nil, fmt.Errorf("parse LLM_BINDING_HOST: %w", err)
	}

	embedding, err := resolveRole(roleInput{
		fullURL:    raw.EmbeddingBindingHost,
		apiKey:     firstNonEmpty(raw.EmbeddingBindingAPIKey, raw.AzureAPIKey),
		endpoint:   raw.AzureEndpoint,
		deployment: raw.AzureEmbeddingDeployment,
		apiVersion: firstNonEmpty(raw.EmbeddingAPIVersion, DefaultEmbeddingAPIVersion),
		model:      firstNonEmpty(raw.EmbeddingModel, DefaultEmbeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("parse EMBEDDING_BINDING_HOST: %w", err)
	}

	dim := raw.EmbeddingDim
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}

	var missing []string
	if llm.BaseURL == "" {
		missing = append(missing, "LLM_BINDING_HOST or AZURE_OPENAI_ENDPOINT")
	}
	if llm.APIKey == "" {
		missing = append(missing, "LLM_BINDING_API_KEY or AZURE_OPENAI_API_KEY")
	}
	if llm.Deployment == "" {
		missing = append(missing, "LLM deployment (LLM_BINDING_HOST path or AZURE_OPENAI_LLM_DEPLOYMENT)")
	}
	if embedding.BaseURL == "" {
		missing = append(missing, "EMBEDDING_BINDING_HOST or AZURE_OPENAI_ENDPOINT")
	}
	if embedding.APIKey == "" {
		missing = append(missing, "EMBEDDING_BINDING_API_KEY or AZURE_OPENAI_API_KEY")
	}
	if embedding.Deployment == "" {
		missing = append(missing, "embedding deployment (EMBEDDING_BINDING_HOST path or AZURE_OPENAI_EMBEDDING_DEPLOYMENT)")
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Missing: missing}
	}

	return &Config{LLM: llm, Embedding: embedding, EmbeddingDim: dim}, nil
}

type roleInput struct {
	fullURL    string
	apiKey     string
	endpoint   string
	deployment string
	apiVersion string
	model      string
}

func resolveRole(in roleInput) (RoleConfig, error) {
	baseURL, deployment, err := Resolve(in.fullURL)
	if err != nil {
		return RoleConfig{}, err
	}

	if baseURL == "" && in.endpoint != "" {
		baseURL, _, err = Resolve(in.endpoint)
		if err != nil {
			return RoleConfig{}, err
		}
	}
	if deployment == "" {
		deployment = in.deployment
	}

	return RoleConfig{
		BaseURL:    baseURL,
		Deployment: deployment,
		APIKey:     in.apiKey,
		APIVersion: in.apiVersion,
		Model:      in.model,
		FullURL:    in.fullURL,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
