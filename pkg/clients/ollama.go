package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/mikeboe/agent-lab/pkg/config"
)

// ModelType is an enum for the locally hosted models the course modules use.
type ModelType string

const (
	// DefaultModel is the model used when none is specified.
	DefaultModel ModelType = "qwen3:8b"
	SmallModel   ModelType = "qwen2.5:3b"
	Llama3Model  ModelType = "llama3"
)

// Ollama creates a langchaingo client for a locally hosted Ollama server.
// The base URL comes from configuration (OLLAMA_BASE_URL).
func Ollama(cfg *config.Config, model ModelType) (*ollama.LLM, error) {
	var modelName string
	switch model {
	case DefaultModel, SmallModel, Llama3Model:
		modelName = string(model)
	case "":
		modelName = cfg.LLMModel
	default:
		return nil, fmt.Errorf("invalid model type: %s", model)
	}

	llm, err := ollama.New(
		ollama.WithModel(modelName),
		ollama.WithServerURL(cfg.OllamaBaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	return llm, nil
}
