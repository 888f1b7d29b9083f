package clients

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"

	"github.com/mikeboe/research-studio/pkg/research"
)

// GenAIGenerator streams grounded reports through the Gemini API.
type GenAIGenerator struct {
	client *genai.Client
}

func NewGenAIGenerator(ctx context.Context, apiKey string) (*GenAIGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIGenerator{client: client}, nil
}

func (g *GenAIGenerator) GenerateStream(ctx context.Context, req research.Request) iter.Seq2[research.Fragment, error] {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.Grounding {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	return func(yield func(research.Fragment, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(ctx, req.Model, genai.Text(req.Prompt), cfg) {
			if err != nil {
				yield(research.Fragment{}, fmt.Errorf("gemini stream: %w", err))
				return
			}
			if !yield(fragmentFromResponse(resp), nil) {
				return
			}
		}
	}
}

// fragmentFromResponse pulls the text delta and grounding chunks out of one streamed response.
func fragmentFromResponse(resp *genai.GenerateContentResponse) research.Fragment {
	if resp == nil || len(resp.Candidates) == 0 {
		return research.Fragment{}
	}

	frag := research.Fragment{Text: resp.Text()}

	cand := resp.Candidates[0]
	if cand == nil || cand.GroundingMetadata == nil {
		return frag
	}
	for _, chunk := range cand.GroundingMetadata.GroundingChunks {
		if chunk == nil {
			continue
		}
		c := research.Citation{}
		if chunk.Web != nil {
			c.Web = &research.WebCitation{URI: chunk.Web.URI, Title: chunk.Web.Title}
		}
		frag.Citations = append(frag.Citations, c)
	}
	return frag
}
