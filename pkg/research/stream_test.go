package research

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator replays fragments and optionally fails after them.
type scriptedGenerator struct {
	fragments []Fragment
	err       error
	got       Request
}

func (g *scriptedGenerator) GenerateStream(ctx context.Context, req Request) iter.Seq2[Fragment, error] {
	g.got = req
	return func(yield func(Fragment, error) bool) {
		for _, f := range g.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if g.err != nil {
			yield(Fragment{}, g.err)
		}
	}
}

func TestStreamBuildsGroundedRequest(t *testing.T) {
	gen := &scriptedGenerator{}
	s := NewStreamer(Config{Model: "gemini-test"}, gen)

	_, err := s.Stream(context.Background(), "solar panels", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "gemini-test", gen.got.Model)
	assert.Equal(t, "Research topic: solar panels", gen.got.Prompt)
	assert.True(t, gen.got.Grounding)
	for _, section := range []string{"Executive Summary", "Key Findings", "Context & Background", "Analysis", "Conclusion"} {
		assert.Contains(t, gen.got.SystemInstruction, section)
	}
}

func TestStreamTwoFragments(t *testing.T) {
	gen := &scriptedGenerator{fragments: []Fragment{
		{Text: "# Solar\n"},
		{Text: "## Findings\n", Citations: []Citation{web("A", "http://a")}},
	}}
	s := NewStreamer(Config{Model: "m"}, gen)

	var texts []string
	var batches [][]GroundingSource
	report, err := s.Stream(context.Background(), "solar panels",
		func(text string) { texts = append(texts, text) },
		func(sources []GroundingSource) { batches = append(batches, sources) },
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"# Solar\n", "# Solar\n## Findings\n"}, texts)
	assert.Equal(t, [][]GroundingSource{{{Title: "A", URI: "http://a"}}}, batches)
	assert.Equal(t, "# Solar\n## Findings\n", report.Text)
	assert.Equal(t, []GroundingSource{{Title: "A", URI: "http://a"}}, report.Sources)
}

func TestStreamFragmentShapes(t *testing.T) {
	gen := &scriptedGenerator{fragments: []Fragment{
		{},
		{Citations: []Citation{web("A", "http://a")}},
		{Text: "x"},
		{Citations: []Citation{web("A again", "http://a")}},
		{Text: "y", Citations: []Citation{web("B", "http://b"), {}}},
		{Citations: []Citation{{}}},
	}}
	s := NewStreamer(Config{}, gen)

	var events []Event
	for ev := range s.Events(context.Background(), "t") {
		events = append(events, ev)
	}

	a := GroundingSource{Title: "A", URI: "http://a"}
	b := GroundingSource{Title: "B", URI: "http://b"}
	assert.Equal(t, []Event{
		SourceBatch{Sources: []GroundingSource{a}},
		TextDelta{Text: "x"},
		TextDelta{Text: "xy"},
		SourceBatch{Sources: []GroundingSource{a, b}},
		Done{Text: "xy", Sources: []GroundingSource{a, b}},
	}, events)
}

func TestStreamCumulativeTextGrowsMonotonically(t *testing.T) {
	parts := []string{"a", "bc", "", "def", "g"}
	var frags []Fragment
	for _, p := range parts {
		frags = append(frags, Fragment{Text: p})
	}
	s := NewStreamer(Config{}, &scriptedGenerator{fragments: frags})

	prev := ""
	_, err := s.Stream(context.Background(), "t", func(text string) {
		assert.True(t, strings.HasPrefix(text, prev), "%q does not extend %q", text, prev)
		assert.Greater(t, len(text), len(prev))
		prev = text
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "abcdefg", prev)
}

func TestStreamErrorAfterPartialContent(t *testing.T) {
	boom := errors.New("connection reset")
	gen := &scriptedGenerator{
		fragments: []Fragment{{Text: "# Partial", Citations: []Citation{web("A", "http://a")}}},
		err:       boom,
	}
	s := NewStreamer(Config{}, gen)

	var last string
	_, err := s.Stream(context.Background(), "t", func(text string) { last = text }, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "# Partial", last)

	var final Event
	for ev := range s.Events(context.Background(), "t") {
		final = ev
	}
	failed, ok := final.(Failed)
	require.True(t, ok, "last event is %T", final)
	assert.Equal(t, "# Partial", failed.Text)
	assert.Len(t, failed.Sources, 1)
}

func TestStreamConnectionError(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("dial tcp: refused")}
	s := NewStreamer(Config{}, gen)

	called := false
	_, err := s.Stream(context.Background(), "t", func(string) { called = true }, func([]GroundingSource) { called = true })
	require.Error(t, err)
	assert.False(t, called)
}

func TestEventsStopsWhenConsumerStops(t *testing.T) {
	gen := &scriptedGenerator{fragments: []Fragment{{Text: "a"}, {Text: "b"}, {Text: "c"}}}
	s := NewStreamer(Config{}, gen)

	n := 0
	for range s.Events(context.Background(), "t") {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
