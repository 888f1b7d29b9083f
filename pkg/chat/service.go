package chat

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	adksession "google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/mikeboe/research-studio/pkg/config"
	"github.com/mikeboe/research-studio/pkg/session"
)

const (
	appName   = "research-studio"
	agentName = "research_assistant"
	userID    = "user" // Single user for now

	instruction = "You are a helpful research assistant. Your job is to acknowledge the user's research request and provide brief updates or answer clarification questions. Do not generate the full report here; the report is generated in a separate view. Keep responses concise and encouraging."
)

// Service answers follow-up chat messages with an ADK agent. It implements session.Responder.
type Service struct {
	Agent  agent.Agent
	Logger *slog.Logger
}

func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	if cfg.GoogleApiKey == "" {
		return nil, config.ErrMissingAPIKey
	}
	modelClient, err := gemini.NewModel(ctx, cfg.ChatModel, &genai.ClientConfig{
		APIKey: cfg.GoogleApiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	assistant, err := llmagent.New(llmagent.Config{
		Name:        agentName,
		Model:       modelClient,
		Description: "A research assistant that answers questions about the current research session.",
		Instruction: instruction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	return &Service{
		Agent:  assistant,
		Logger: slog.Default(),
	}, nil
}

// Respond runs the agent once with the prior transcript as session history.
func (s *Service) Respond(ctx context.Context, history []session.Message, content string) (string, error) {
	sessionSvc := adksession.InMemoryService()
	sessionID := uuid.NewString()

	createRes, err := sessionSvc.Create(ctx, &adksession.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat session: %w", err)
	}

	for _, msg := range history {
		c, author, ok := toContent(msg)
		if !ok {
			continue
		}
		evt := adksession.NewEvent(uuid.NewString())
		evt.Author = author
		evt.LLMResponse = model.LLMResponse{Content: c}
		if err := sessionSvc.AppendEvent(ctx, createRes.Session, evt); err != nil {
			return "", fmt.Errorf("failed to hydrate chat history: %w", err)
		}
	}

	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          s.Agent,
		SessionService: sessionSvc,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create runner: %w", err)
	}

	s.Logger.Info("Starting agent run", "history", len(history))
	userContent := genai.NewContentFromText(content, genai.RoleUser)
	reply, err := collectReply(r.Run(ctx, userID, sessionID, userContent, agent.RunConfig{
		StreamingMode: agent.StreamingModeSSE,
	}))
	if err != nil {
		return "", err
	}
	s.Logger.Info("Agent run completed", "length", len(reply))
	return reply, nil
}

// toContent maps a transcript message onto an agent history turn. System messages and
// thinking placeholders are not part of the conversation.
func toContent(msg session.Message) (*genai.Content, string, bool) {
	if msg.IsThinking || strings.TrimSpace(msg.Content) == "" {
		return nil, "", false
	}
	switch msg.Role {
	case session.RoleUser:
		return genai.NewContentFromText(msg.Content, genai.RoleUser), userID, true
	case session.RoleAssistant:
		return genai.NewContentFromText(msg.Content, genai.RoleModel), agentName, true
	default:
		return nil, "", false
	}
}

// collectReply drains an agent run. Partial events carry streamed deltas; a final event
// carries the aggregated text and takes precedence.
func collectReply(events iter.Seq2[*adksession.Event, error]) (string, error) {
	var partial, final strings.Builder
	for event, err := range events {
		if err != nil {
			return "", fmt.Errorf("agent run failed: %w", err)
		}
		if event == nil || event.LLMResponse.Content == nil {
			continue
		}
		for _, part := range event.LLMResponse.Content.Parts {
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			if event.LLMResponse.Partial {
				partial.WriteString(part.Text)
			} else {
				final.WriteString(part.Text)
			}
		}
	}
	if final.Len() > 0 {
		return final.String(), nil
	}
	if partial.Len() > 0 {
		return partial.String(), nil
	}
	return "", fmt.Errorf("agent returned an empty reply")
}
