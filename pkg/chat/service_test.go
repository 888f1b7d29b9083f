package chat

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	adksession "google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/mikeboe/research-studio/pkg/session"
)

func events(evs []*adksession.Event, err error) iter.Seq2[*adksession.Event, error] {
	return func(yield func(*adksession.Event, error) bool) {
		for _, e := range evs {
			if !yield(e, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

func textEvent(text string, partial bool) *adksession.Event {
	return &adksession.Event{LLMResponse: model.LLMResponse{
		Content: genai.NewContentFromText(text, genai.RoleModel),
		Partial: partial,
	}}
}

func TestCollectReply(t *testing.T) {
	tests := []struct {
		name    string
		events  []*adksession.Event
		err     error
		want    string
		wantErr bool
	}{
		{
			name:   "Final supersedes partials",
			events: []*adksession.Event{textEvent("Hel", true), textEvent("lo", true), textEvent("Hello", false)},
			want:   "Hello",
		},
		{
			name:   "Partials only",
			events: []*adksession.Event{textEvent("Hel", true), textEvent("lo", true)},
			want:   "Hello",
		},
		{
			name:   "Skips empty events",
			events: []*adksession.Event{nil, {}, textEvent("ok", false)},
			want:   "ok",
		},
		{
			name:    "Empty reply",
			events:  []*adksession.Event{{}},
			wantErr: true,
		},
		{
			name:    "Run error",
			events:  []*adksession.Event{textEvent("partial", true)},
			err:     errors.New("quota"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collectReply(events(tt.events, tt.err))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectReplySkipsThoughts(t *testing.T) {
	evt := &adksession.Event{LLMResponse: model.LLMResponse{Content: &genai.Content{
		Role: genai.RoleModel,
		Parts: []*genai.Part{
			{Text: "thinking...", Thought: true},
			{Text: "answer"},
		},
	}}}
	got, err := collectReply(events([]*adksession.Event{evt}, nil))
	require.NoError(t, err)
	assert.Equal(t, "answer", got)
}

func TestToContent(t *testing.T) {
	tests := []struct {
		name       string
		msg        session.Message
		wantOK     bool
		wantRole   genai.Role
		wantAuthor string
	}{
		{"User", session.Message{Role: session.RoleUser, Content: "bees"}, true, genai.RoleUser, userID},
		{"Assistant", session.Message{Role: session.RoleAssistant, Content: "ok"}, true, genai.RoleModel, agentName},
		{"System", session.Message{Role: session.RoleSystem, Content: "x"}, false, "", ""},
		{"Thinking", session.Message{Role: session.RoleAssistant, Content: "...", IsThinking: true}, false, "", ""},
		{"Blank", session.Message{Role: session.RoleUser, Content: "  "}, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, author, ok := toContent(tt.msg)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, string(tt.wantRole), c.Role)
			assert.Equal(t, tt.wantAuthor, author)
			assert.Equal(t, tt.msg.Content, c.Parts[0].Text)
		})
	}
}
