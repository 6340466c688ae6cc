package main

import (
	"fmt"
	"os"

	"github.com/loomrun/loom/internal/agentloop"
	"github.com/loomrun/loom/providers/anthropicprovider"
	"github.com/loomrun/loom/providers/openaiprovider"
)

// buildProvider constructs the LLMProvider named by providerName, reading
// its API key from the conventional environment variable.
func buildProvider(providerName, model string) (agentloop.LLMProvider, error) {
	switch providerName {
	case "", "anthropic":
		p, err := anthropicprovider.New(anthropicprovider.Config{
			APIKey:       os.Getenv("ANTHROPIC_API_KEY"),
			DefaultModel: model,
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		return p, nil

	case "openai":
		p, err := openaiprovider.New(os.Getenv("OPENAI_API_KEY"), model)
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown provider %q (want anthropic or openai)", providerName)
	}
}
