package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"pdpl_assistant/assistant"
	"pdpl_assistant/config"
	"pdpl_assistant/generator"
	"pdpl_assistant/index"
)

// buildLLM picks the backend for the configured provider and wraps it with the
// client-side rate limit and retry policy.
func buildLLM(ctx context.Context, c config.LLMConfig) (generator.Client, error) {
	settings := &generator.LLMSettings{
		Provider: c.Provider,
		Model:    c.Model,
		APIKey:   c.APIKey,
		BaseURL:  c.BaseURL,
	}
	var base generator.Client
	switch c.Provider {
	case "openai", "openrouter":
		llm, err := generator.NewOpenAILLMFromConfig(settings)
		if err != nil {
			return nil, err
		}
		base = llm
	case "deepseek":
		if c.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		llm, err := generator.NewOpenAILLMFromConfig(settings)
		if err != nil {
			return nil, err
		}
		base = llm
	case "gemini":
		llm, err := generator.NewGeminiLLMFromConfig(ctx, settings)
		if err != nil {
			return nil, err
		}
		base = llm
	default:
		return nil, fmt.Errorf("llm provider %s not supported", c.Provider)
	}

	limited := generator.WithRateLimit(base, rate.NewLimiter(rate.Limit(c.RequestsPerSecond), c.Burst))
	return generator.WithRetry(limited, generator.RetryPolicy{
		Attempts:    c.MaxAttempts,
		Backoff:     c.Backoff(),
		CallTimeout: c.CallTimeout(),
	}), nil
}

// newEmbedder shares the LLM call timeout and attempt budget with the embeddings client.
func newEmbedder(c config.Config) (*index.OpenAIEmbedder, error) {
	return index.NewOpenAIEmbedder(index.EmbedderSettings{
		Model:      c.Embedding.Model,
		APIKey:     c.Embedding.APIKey,
		BaseURL:    c.Embedding.BaseURL,
		Timeout:    c.LLM.CallTimeout(),
		MaxRetries: c.LLM.MaxAttempts - 1,
	})
}

func openIndex(ctx context.Context, c config.Config) (*index.Store, error) {
	embedder, err := newEmbedder(c)
	if err != nil {
		return nil, err
	}
	return index.Open(ctx, c.IndexPath, embedder, c.Embedding.Model)
}

// buildAgent wires the process-wide clients into a pipeline. The caller closes the store.
func buildAgent(ctx context.Context, c config.Config, reg prometheus.Registerer) (*assistant.Agent, *index.Store, error) {
	llm, err := buildLLM(ctx, c.LLM)
	if err != nil {
		return nil, nil, err
	}
	store, err := openIndex(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	prompts, err := assistant.LoadPrompts(c.PromptsPath)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	agent, err := assistant.NewAgent(assistant.Config{
		LLM:     llm,
		Index:   store,
		Prompts: prompts,
		Metrics: assistant.NewMetrics(reg),
		TopK:    c.TopK,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return agent, store, nil
}
