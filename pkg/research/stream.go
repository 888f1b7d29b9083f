package research

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
)

// Generator performs one streaming generation call.
type Generator interface {
	GenerateStream(ctx context.Context, req Request) iter.Seq2[Fragment, error]
}

// Event is one step of a report stream: TextDelta, SourceBatch, Done or Failed.
type Event interface {
	isEvent()
}

// TextDelta carries the full cumulative report text after new text arrived.
type TextDelta struct {
	Text string
}

// SourceBatch carries the full accumulated source list after it grew.
type SourceBatch struct {
	Sources []GroundingSource
}

// Done is the final event of a successful stream.
type Done struct {
	Text    string
	Sources []GroundingSource
}

// Failed is the final event of a stream that broke. Text and Sources hold what was delivered before the error.
type Failed struct {
	Err     error
	Text    string
	Sources []GroundingSource
}

func (TextDelta) isEvent()   {}
func (SourceBatch) isEvent() {}
func (Done) isEvent()        {}
func (Failed) isEvent()      {}

// Streamer runs research report exchanges against a Generator.
type Streamer struct {
	Config    Config
	Generator Generator
	Logger    *slog.Logger
}

func NewStreamer(cfg Config, gen Generator) *Streamer {
	return &Streamer{
		Config:    cfg,
		Generator: gen,
		Logger:    slog.Default(),
	}
}

// Events streams the report for topic. The sequence always ends with a Done or a Failed
// event unless the consumer stops early.
func (s *Streamer) Events(ctx context.Context, topic string) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		req := NewReportRequest(s.Config.Model, topic)
		s.Logger.Info("Starting report stream", "topic", topic, "model", req.Model)

		var text strings.Builder
		sources := NewSourceSet()
		fragments := 0

		for frag, err := range s.Generator.GenerateStream(ctx, req) {
			if err != nil {
				s.Logger.Error("Error generating research report", "topic", topic, "error", err, "fragments", fragments)
				yield(Failed{Err: err, Text: text.String(), Sources: sources.Sources()})
				return
			}
			fragments++

			if frag.Text != "" {
				text.WriteString(frag.Text)
				if !yield(TextDelta{Text: text.String()}) {
					return
				}
			}

			if len(frag.Citations) > 0 && sources.Merge(ExtractSources(frag.Citations)) {
				if !yield(SourceBatch{Sources: sources.Sources()}) {
					return
				}
			}
		}

		s.Logger.Info("Report stream finished", "topic", topic, "fragments", fragments, "length", text.Len(), "sources", sources.Len())
		yield(Done{Text: text.String(), Sources: sources.Sources()})
	}
}

// Stream runs one exchange and reports progress through callbacks. onText receives the whole
// text so far and onSources the whole source list so far. Either callback may be nil.
func (s *Streamer) Stream(ctx context.Context, topic string, onText func(string), onSources func([]GroundingSource)) (Report, error) {
	for ev := range s.Events(ctx, topic) {
		switch ev := ev.(type) {
		case TextDelta:
			if onText != nil {
				onText(ev.Text)
			}
		case SourceBatch:
			if onSources != nil {
				onSources(ev.Sources)
			}
		case Done:
			return Report{Text: ev.Text, Sources: ev.Sources}, nil
		case Failed:
			return Report{}, fmt.Errorf("report stream failed: %w", ev.Err)
		}
	}
	return Report{}, fmt.Errorf("report stream ended without a result")
}
