package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/anthropic"
)

const (
	Claude4Sonnet ModelType = "claude-sonnet-4-20250514"
	Claude4Opus   ModelType = "claude-opus-4-20250514"
	Claude35Haiku ModelType = "claude-3-5-haiku-20241022"
)

// ClaudeModel maps a configured model name onto a Claude model. Anything that is not a
// known Claude model (including the Gemini defaults) becomes Claude4Sonnet.
func ClaudeModel(model ModelType) ModelType {
	switch model {
	case Claude4Sonnet, Claude4Opus, Claude35Haiku:
		return model
	default:
		return Claude4Sonnet
	}
}

func AnthropicAI(apiKey string, model ModelType) (*anthropic.LLM, error) {
	model = ClaudeModel(model)
	llm, err := anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(string(model)))
	if err != nil {
		return nil, fmt.Errorf("failed to init anthropic: %w", err)
	}
	return llm, nil
}
