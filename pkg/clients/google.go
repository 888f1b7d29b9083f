package clients

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/mikeboe/research-studio/pkg/research"
)

// ModelType is an enum for the available Google AI models.
type ModelType string

const (
	// DefaultModel is the default model to use if none is specified
	DefaultModel ModelType = "gemini-2.5-flash"
	ProModel     ModelType = "gemini-2.5-pro"
)

var errConsumerStopped = errors.New("consumer stopped reading")

func GoogleAi(ctx context.Context, apiKey string, model ModelType) (*googleai.GoogleAI, error) {
	if model == "" {
		model = DefaultModel
	}
	modelName := string(model)

	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(modelName))
	if err != nil {
		return nil, fmt.Errorf("failed to init googleai: %w", err)
	}
	return llm, nil
}

// LangchainGenerator streams plain text through a langchaingo model. It has no search
// grounding, so fragments never carry citations.
type LangchainGenerator struct {
	LLM llms.Model
	// Model, when set, replaces the model named in each request.
	Model string
}

func NewLangchainGenerator(llm llms.Model) *LangchainGenerator {
	return &LangchainGenerator{LLM: llm}
}

func (g *LangchainGenerator) GenerateStream(ctx context.Context, req research.Request) iter.Seq2[research.Fragment, error] {
	return func(yield func(research.Fragment, error) bool) {
		stopped := false
		var msgs []llms.MessageContent
		if req.SystemInstruction != "" {
			msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemInstruction))
		}
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

		opts := []llms.CallOption{
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				if !yield(research.Fragment{Text: string(chunk)}, nil) {
					stopped = true
					return errConsumerStopped
				}
				return nil
			}),
		}
		model := req.Model
		if g.Model != "" {
			model = g.Model
		}
		if model != "" {
			opts = append(opts, llms.WithModel(model))
		}

		_, err := g.LLM.GenerateContent(ctx, msgs, opts...)
		if err != nil && !stopped {
			yield(research.Fragment{}, fmt.Errorf("langchaingo stream: %w", err))
		}
	}
}
