package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEmbeddingClientUnconfigured(t *testing.T) {
	client, err := CreateEmbeddingClient(&EmbeddingSettings{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestCreateEmbeddingClientUnknownProvider(t *testing.T) {
	_, err := CreateEmbeddingClient(&EmbeddingSettings{Provider: "acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown embedding provider")
}

func TestCreateEmbeddingClientOllama(t *testing.T) {
	client, err := CreateEmbeddingClient(&EmbeddingSettings{
		Provider:   "ollama",
		Model:      "nomic-embed-text",
		Dimensions: 768,
	})
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "nomic-embed-text", client.ModelName())
	assert.Equal(t, 768, client.Dimensions())
}

func TestCreateEmbeddingClientOpenAIRequiresKey(t *testing.T) {
	_, err := CreateEmbeddingClient(&EmbeddingSettings{Provider: "openai"})
	require.Error(t, err)
}

func TestCreateGenerationClientUnconfigured(t *testing.T) {
	client, err := CreateGenerationClient(&GenerationSettings{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestCreateGenerationClientUnknownProvider(t *testing.T) {
	_, err := CreateGenerationClient(&GenerationSettings{Provider: "acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown generation provider")
}

func TestCreateGenerationClientAnthropic(t *testing.T) {
	client, err := CreateGenerationClient(&GenerationSettings{
		Provider: "anthropic",
		APIKey:   "sk-test",
	})
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NotEmpty(t, client.ModelName())
}

func TestCreateGenerationClientOllama(t *testing.T) {
	client, err := CreateGenerationClient(&GenerationSettings{
		Provider: "ollama",
		Model:    "llama3.2",
	})
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "llama3.2", client.ModelName())
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := &stubConfig{values: map[string]any{
		"embedding.provider":   "openai",
		"embedding.api_key":    "sk-embed",
		"embedding.model":      "text-embedding-3-small",
		"embedding.dimensions": 1536,
		"generation.provider":  "anthropic",
		"generation.api_key":   "sk-gen",
		"generation.model":     "claude-sonnet-4-5",
		"generation.base_url":  "https://example.test",
	}}

	embed := EmbeddingSettingsFromConfig(cfg)
	assert.Equal(t, "openai", embed.Provider)
	assert.Equal(t, "sk-embed", embed.APIKey)
	assert.Equal(t, "text-embedding-3-small", embed.Model)
	assert.Equal(t, 1536, embed.Dimensions)
	assert.True(t, embed.IsConfigured())

	gen := GenerationSettingsFromConfig(cfg)
	assert.Equal(t, "anthropic", gen.Provider)
	assert.Equal(t, "sk-gen", gen.APIKey)
	assert.Equal(t, "claude-sonnet-4-5", gen.Model)
	assert.Equal(t, "https://example.test", gen.BaseURL)
	assert.True(t, gen.IsConfigured())
}

type stubConfig struct {
	values map[string]any
}

func (s *stubConfig) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *stubConfig) GetString(key string) string {
	if v, ok := s.values[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

func (s *stubConfig) GetInt(key string) int {
	if v, ok := s.values[key]; ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return 0
}

func (s *stubConfig) Set(key string, value any) { s.values[key] = value }
func (s *stubConfig) Save() error               { return nil }
func (s *stubConfig) Load() error               { return nil }
