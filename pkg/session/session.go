package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/research-studio/pkg/research"
)

var (
	ErrEmptyTopic   = errors.New("topic must not be empty")
	ErrEmptyMessage = errors.New("message must not be empty")
	ErrNoResponder  = errors.New("no chat responder configured")
	ErrClosed       = errors.New("session is closed")
	// ErrSuperseded is returned by Submit when a newer research request replaced this one.
	ErrSuperseded = errors.New("research superseded by a newer request")
)

// ReportStreamer produces the event stream for one research topic.
type ReportStreamer interface {
	Events(ctx context.Context, topic string) iter.Seq[research.Event]
}

// Responder answers follow-up chat messages given the transcript so far.
type Responder interface {
	Respond(ctx context.Context, history []Message, content string) (string, error)
}

// Snapshot is a read-only copy of the session state handed to observers.
type Snapshot struct {
	State
	Generation uint64 `json:"generation"`
	Generating bool   `json:"generating"`
}

// Session owns the research state. Every mutation goes through the session mutex, which acts
// as the single dispatch point for user commands and stream events.
//
// Each research request gets a new generation number. Events tagged with an older generation
// are dropped, so a superseded stream can never touch the artifact that replaced it.
type Session struct {
	Streamer  ReportStreamer
	Responder Responder
	Logger    *slog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	generating bool
	cancel     context.CancelFunc
	closed     bool
	subs       map[uint64]chan Snapshot
	nextSub    uint64
	wg         sync.WaitGroup

	now   func() time.Time
	newID func() string
}

func New(streamer ReportStreamer) *Session {
	return &Session{
		Streamer: streamer,
		Logger:   slog.Default(),
		state:    NewState(),
		subs:     make(map[uint64]chan Snapshot),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Submit runs one research session to completion. It returns the stream error when the
// report failed, and ErrSuperseded when a newer request took over.
func (s *Session) Submit(ctx context.Context, topic string) error {
	gen, runCtx, _, err := s.begin(ctx, topic, false)
	if err != nil {
		return err
	}
	return s.run(runCtx, gen, topic)
}

// SubmitAsync starts a research session and streams it in the background. The returned
// snapshot already contains the new artifact and the acknowledgment messages.
func (s *Session) SubmitAsync(topic string) (Snapshot, error) {
	gen, runCtx, snap, err := s.begin(context.Background(), topic, true)
	if err != nil {
		return Snapshot{}, err
	}
	go func() {
		defer s.wg.Done()
		if err := s.run(runCtx, gen, topic); err != nil && !errors.Is(err, ErrSuperseded) {
			s.Logger.Warn("Research session ended with error", "topic", topic, "generation", gen, "error", err)
		}
	}()
	return snap, nil
}

func (s *Session) begin(parent context.Context, topic string, async bool) (uint64, context.Context, Snapshot, error) {
	if strings.TrimSpace(topic) == "" {
		return 0, nil, Snapshot{}, ErrEmptyTopic
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, nil, Snapshot{}, ErrClosed
	}

	if s.cancel != nil {
		s.Logger.Info("Superseding in-flight research", "generation", s.generation)
		s.cancel()
	}
	s.generation++
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	if async {
		s.wg.Add(1)
	}

	now := s.now()
	artifactID := s.newID()
	s.state = s.state.AppendMessage(Message{ID: s.newID(), Role: RoleUser, Content: topic, Timestamp: now})
	s.state = s.state.Start(artifactID, topic, now)
	s.state = s.state.AppendMessage(Message{ID: s.newID(), Role: RoleAssistant, Content: startReply(topic), Timestamp: now})
	s.generating = true

	s.Logger.Info("Starting research", "topic", topic, "artifact_id", artifactID, "generation", s.generation)

	snap := s.snapshotLocked()
	s.publishLocked(snap)
	return s.generation, ctx, snap, nil
}

func (s *Session) run(ctx context.Context, gen uint64, topic string) error {
	for ev := range s.Streamer.Events(ctx, topic) {
		if !s.dispatch(gen, ev) {
			return ErrSuperseded
		}
		if f, ok := ev.(research.Failed); ok {
			return fmt.Errorf("research %q failed: %w", topic, f.Err)
		}
	}
	return nil
}

// dispatch applies one stream event. It reports false when the event belongs to a stale generation.
func (s *Session) dispatch(gen uint64, ev research.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.Logger.Debug("Dropping stale stream event", "event_generation", gen, "current_generation", s.generation)
		return false
	}

	now := s.now()
	switch ev := ev.(type) {
	case research.TextDelta:
		s.state = s.state.ApplyDelta(ev.Text, now)
	case research.SourceBatch:
		s.state = s.state.ApplySources(ev.Sources)
	case research.Done:
		s.state = s.state.ApplySources(ev.Sources)
		s.state = s.state.Complete(now)
		s.state = s.state.AppendMessage(Message{
			ID:        s.newID(),
			Role:      RoleAssistant,
			Content:   completeReply(s.topicLocked()),
			Timestamp: now,
			Sources:   ev.Sources,
		})
		s.finishLocked()
		s.Logger.Info("Research complete", "artifact_id", s.artifactIDLocked(), "length", len(ev.Text), "sources", len(ev.Sources))
	case research.Failed:
		s.state = s.state.Fail(now)
		s.state = s.state.AppendMessage(Message{ID: s.newID(), Role: RoleAssistant, Content: errorReply, Timestamp: now})
		s.finishLocked()
		s.Logger.Error("Research failed", "artifact_id", s.artifactIDLocked(), "error", ev.Err)
	}

	s.publishLocked(s.snapshotLocked())
	return true
}

func (s *Session) finishLocked() {
	s.generating = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) topicLocked() string {
	if s.state.Artifact == nil {
		return ""
	}
	return s.state.Artifact.Topic
}

func (s *Session) artifactIDLocked() string {
	if s.state.Artifact == nil {
		return ""
	}
	return s.state.Artifact.ID
}

// Ask sends a follow-up chat message. The assistant reply, or the generic error reply when the
// responder fails, is appended to the transcript and returned.
func (s *Session) Ask(ctx context.Context, content string) (Message, error) {
	if s.Responder == nil {
		return Message{}, ErrNoResponder
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Message{}, ErrClosed
	}
	history := s.state.Clone().Messages
	s.state = s.state.AppendMessage(Message{ID: s.newID(), Role: RoleUser, Content: content, Timestamp: s.now()})
	s.publishLocked(s.snapshotLocked())
	s.mu.Unlock()

	reply, err := s.Responder.Respond(ctx, history, content)

	msg := Message{ID: s.newID(), Role: RoleAssistant, Content: reply, Timestamp: s.now()}
	if err != nil {
		s.Logger.Error("Chat response failed", "error", err)
		msg.Content = errorReply
		err = fmt.Errorf("chat response failed: %w", err)
	}

	s.mu.Lock()
	s.state = s.state.AppendMessage(msg)
	s.publishLocked(s.snapshotLocked())
	s.mu.Unlock()

	return msg, err
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) SetSidebar(st SidebarState) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Sidebar = st
	snap := s.snapshotLocked()
	s.publishLocked(snap)
	return snap
}

func (s *Session) ToggleSidebar() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Sidebar = s.state.Sidebar.Toggled()
	snap := s.snapshotLocked()
	s.publishLocked(snap)
	return snap
}

// Subscribe returns a channel of snapshots, starting with the current one. Slow readers only
// see the latest snapshot. The channel is closed by the returned cancel func or by Close.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Close cancels any in-flight stream, waits for background sessions and closes all subscriptions.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.generating = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:      s.state.Clone(),
		Generation: s.generation,
		Generating: s.generating,
	}
}

func (s *Session) publishLocked(snap Snapshot) {
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
