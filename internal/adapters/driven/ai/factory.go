// Package ai provides factory functions for creating the embedding and
// generation clients from configuration, plus rate-limiting and caching
// wrappers shared by all providers.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/codewiki/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/codewiki/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/codewiki/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/codewiki/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/codewiki/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// EmbeddingSettings selects and configures an embedding provider.
type EmbeddingSettings struct {
	// Provider is "openai" or "ollama".
	Provider string

	// APIKey is the provider API key (openai only).
	APIKey string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// Model is the embedding model name.
	Model string

	// Dimensions overrides the embedding vector size.
	Dimensions int
}

// IsConfigured reports whether a provider has been selected.
func (s *EmbeddingSettings) IsConfigured() bool {
	return s != nil && s.Provider != ""
}

// GenerationSettings selects and configures a generation provider.
type GenerationSettings struct {
	// Provider is "anthropic", "openai" or "ollama".
	Provider string

	// APIKey is the provider API key (anthropic and openai).
	APIKey string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// Model is the model name.
	Model string
}

// IsConfigured reports whether a provider has been selected.
func (s *GenerationSettings) IsConfigured() bool {
	return s != nil && s.Provider != ""
}

// EmbeddingSettingsFromConfig reads the embedding provider settings.
func EmbeddingSettingsFromConfig(cfg driven.ConfigStore) *EmbeddingSettings {
	return &EmbeddingSettings{
		Provider:   cfg.GetString("embedding.provider"),
		APIKey:     cfg.GetString("embedding.api_key"),
		BaseURL:    cfg.GetString("embedding.base_url"),
		Model:      cfg.GetString("embedding.model"),
		Dimensions: cfg.GetInt("embedding.dimensions"),
	}
}

// GenerationSettingsFromConfig reads the generation provider settings.
func GenerationSettingsFromConfig(cfg driven.ConfigStore) *GenerationSettings {
	return &GenerationSettings{
		Provider: cfg.GetString("generation.provider"),
		APIKey:   cfg.GetString("generation.api_key"),
		BaseURL:  cfg.GetString("generation.base_url"),
		Model:    cfg.GetString("generation.model"),
	}
}

// CreateEmbeddingClient creates the appropriate embedding client based
// on settings. Returns nil if no provider is configured.
func CreateEmbeddingClient(settings *EmbeddingSettings) (driven.EmbeddingClient, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case "openai":
		return openaiembed.NewEmbeddingClient(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})
	case "ollama":
		return ollamaembed.NewEmbeddingClient(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", settings.Provider)
	}
}

// CreateGenerationClient creates the appropriate generation client based
// on settings. Returns nil if no provider is configured.
func CreateGenerationClient(settings *GenerationSettings) (driven.GenerationClient, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case "anthropic":
		return anthropicllm.NewGenerationClient(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	case "openai":
		return openaillm.NewGenerationClient(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	case "ollama":
		return ollamallm.NewGenerationClient(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %q", settings.Provider)
	}
}

// CreateAndValidateEmbeddingClient creates an embedding client and
// validates connectivity with a bounded ping.
func CreateAndValidateEmbeddingClient(settings *EmbeddingSettings) (driven.EmbeddingClient, error) {
	client, err := CreateEmbeddingClient(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if client == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return client, nil
}

// CreateAndValidateGenerationClient creates a generation client and
// validates connectivity with a bounded ping.
func CreateAndValidateGenerationClient(settings *GenerationSettings) (driven.GenerationClient, error) {
	client, err := CreateGenerationClient(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
	if client == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrGenerationUnavailable, err)
	}
	return client, nil
}
