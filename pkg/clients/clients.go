package clients

import (
	"context"
	"fmt"

	"github.com/mikeboe/research-studio/pkg/config"
	"github.com/mikeboe/research-studio/pkg/research"
)

// NewGenerator returns the report backend selected by REPORT_BACKEND.
func NewGenerator(ctx context.Context, cfg *config.Config) (research.Generator, error) {
	switch cfg.ReportBackend {
	case config.BackendLangchain:
		llm, err := GoogleAi(ctx, cfg.GoogleApiKey, ModelType(cfg.ReportModel))
		if err != nil {
			return nil, err
		}
		return NewLangchainGenerator(llm), nil
	case config.BackendAnthropic:
		model := ClaudeModel(ModelType(cfg.ReportModel))
		llm, err := AnthropicAI(cfg.AnthropicApiKey, model)
		if err != nil {
			return nil, err
		}
		gen := NewLangchainGenerator(llm)
		gen.Model = string(model)
		return gen, nil
	case config.BackendGenAI, "":
		return NewGenAIGenerator(ctx, cfg.GoogleApiKey)
	default:
		return nil, fmt.Errorf("unknown report backend: %s", cfg.ReportBackend)
	}
}
