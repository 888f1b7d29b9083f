package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/mikeboe/research-studio/pkg/research"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type ArtifactStatus string

const (
	StatusIdle      ArtifactStatus = "idle"
	StatusStreaming ArtifactStatus = "streaming"
	StatusCompleted ArtifactStatus = "completed"
	StatusError     ArtifactStatus = "error"
)

// SidebarState controls whether the artifact panel is hidden, shown, or takes the whole view.
type SidebarState string

const (
	SidebarHidden   SidebarState = "HIDDEN"
	SidebarVisible  SidebarState = "VISIBLE"
	SidebarExpanded SidebarState = "EXPANDED"
)

// ParseSidebarState accepts the three state names, case-insensitively.
func ParseSidebarState(s string) (SidebarState, error) {
	switch st := SidebarState(strings.ToUpper(strings.TrimSpace(s))); st {
	case SidebarHidden, SidebarVisible, SidebarExpanded:
		return st, nil
	default:
		return "", fmt.Errorf("invalid sidebar state %q", s)
	}
}

// Toggled flips between VISIBLE and EXPANDED. A hidden panel becomes visible.
func (s SidebarState) Toggled() SidebarState {
	if s == SidebarExpanded {
		return SidebarVisible
	}
	return SidebarExpanded
}

// Message is one chat turn. Messages are never edited after they are appended.
type Message struct {
	ID         string                     `json:"id"`
	Role       Role                       `json:"role"`
	Content    string                     `json:"content"`
	Timestamp  time.Time                  `json:"timestamp"`
	IsThinking bool                       `json:"isThinking,omitempty"`
	Sources    []research.GroundingSource `json:"groundingSources,omitempty"`
}

// Artifact is the report under construction. Content always holds the full text so far.
type Artifact struct {
	ID          string         `json:"id"`
	Topic       string         `json:"topic"`
	Content     string         `json:"content"`
	Status      ArtifactStatus `json:"status"`
	LastUpdated time.Time      `json:"lastUpdated"`
}

// Streaming reports whether the artifact still accepts deltas.
func (a *Artifact) Streaming() bool {
	return a != nil && a.Status == StatusStreaming
}

const (
	// ErrorAnnotation is appended to partial content when a stream fails.
	ErrorAnnotation = "\n\n**Error: Research interrupted.**"

	errorReply = "I encountered an error while conducting the research. Please try again."
)

func startReply(topic string) string {
	return fmt.Sprintf("I'm starting a deep research session on %q. I'll scan the web for broad context and deep dive into specific details. The full report is being generated in the panel on the right.", topic)
}

func completeReply(topic string) string {
	return fmt.Sprintf("Research complete. I've compiled a report covering key aspects of %q with referenced sources. Let me know if you'd like to explore a specific section further.", topic)
}

// State is the whole UI-facing state: transcript, current artifact and its sources.
// Transitions return a new State and never modify slices reachable from the old one.
type State struct {
	Messages []Message                  `json:"messages"`
	Artifact *Artifact                  `json:"artifact"`
	Sources  []research.GroundingSource `json:"sources"`
	Sidebar  SidebarState               `json:"sidebar"`
}

func NewState() State {
	return State{
		Messages: []Message{},
		Sources:  []research.GroundingSource{},
		Sidebar:  SidebarVisible,
	}
}

// AppendMessage adds a message to the end of the transcript.
func (s State) AppendMessage(m Message) State {
	msgs := make([]Message, len(s.Messages), len(s.Messages)+1)
	copy(msgs, s.Messages)
	s.Messages = append(msgs, m)
	return s
}

// Start replaces any artifact with a fresh streaming one and clears the sources.
func (s State) Start(id, topic string, now time.Time) State {
	s.Artifact = &Artifact{
		ID:          id,
		Topic:       topic,
		Content:     "",
		Status:      StatusStreaming,
		LastUpdated: now,
	}
	s.Sources = []research.GroundingSource{}
	s.Sidebar = SidebarVisible
	return s
}

// ApplyDelta replaces the artifact content with the cumulative text.
func (s State) ApplyDelta(text string, now time.Time) State {
	if !s.Artifact.Streaming() {
		return s
	}
	a := *s.Artifact
	a.Content = text
	a.LastUpdated = now
	s.Artifact = &a
	return s
}

// ApplySources replaces the source list with the accumulated list.
func (s State) ApplySources(sources []research.GroundingSource) State {
	if !s.Artifact.Streaming() {
		return s
	}
	out := make([]research.GroundingSource, len(sources))
	copy(out, sources)
	s.Sources = out
	return s
}

// Complete marks a streaming artifact as completed.
func (s State) Complete(now time.Time) State {
	if !s.Artifact.Streaming() {
		return s
	}
	a := *s.Artifact
	a.Status = StatusCompleted
	a.LastUpdated = now
	s.Artifact = &a
	return s
}

// Fail marks a streaming artifact as failed, keeping whatever content already arrived.
func (s State) Fail(now time.Time) State {
	if !s.Artifact.Streaming() {
		return s
	}
	a := *s.Artifact
	a.Status = StatusError
	a.Content += ErrorAnnotation
	a.LastUpdated = now
	s.Artifact = &a
	return s
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s State) Clone() State {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	out.Sources = make([]research.GroundingSource, len(s.Sources))
	copy(out.Sources, s.Sources)
	if s.Artifact != nil {
		a := *s.Artifact
		out.Artifact = &a
	}
	return out
}
