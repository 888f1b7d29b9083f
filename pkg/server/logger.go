package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mikeboe/research-studio/pkg/database"
)

// LogSink stores log records. *database.PostgresDB implements it.
type LogSink interface {
	InsertLog(ctx context.Context, rec database.LogRecord) error
}

// DBLogHandler is a slog.Handler that writes records to the database.
// The "artifact_id" attribute, if present, goes to its own column.
type DBLogHandler struct {
	Sink  LogSink
	Level slog.Leveler

	attrs  []slog.Attr
	groups []string
}

func NewDBLogHandler(sink LogSink, level slog.Leveler) *DBLogHandler {
	return &DBLogHandler{
		Sink:  sink,
		Level: level,
	}
}

func (h *DBLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.Level == nil {
		return true
	}
	return level >= h.Level.Level()
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	meta, artifactID := h.collect(r)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		// Fallback for marshal error
		metaJSON = []byte("{}")
	}

	// Use background context for insert to ensure logs persist even if request context cancels
	return h.Sink.InsertLog(context.Background(), database.LogRecord{
		ArtifactID: artifactID,
		Timestamp:  r.Time,
		Level:      r.Level.String(),
		Message:    r.Message,
		Metadata:   metaJSON,
	})
}

// collect flattens handler and record attributes into a metadata map.
func (h *DBLogHandler) collect(r slog.Record) (map[string]any, string) {
	meta := make(map[string]any)
	artifactID := ""

	add := func(a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Key == "" {
			return
		}
		key := a.Key
		for i := len(h.groups) - 1; i >= 0; i-- {
			key = h.groups[i] + "." + key
		}
		if a.Key == "artifact_id" && len(h.groups) == 0 {
			artifactID = a.Value.String()
		}
		switch v := a.Value.Any().(type) {
		case error:
			meta[key] = v.Error()
		default:
			meta[key] = v
		}
	}

	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(a)
		return true
	})
	return meta, artifactID
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

// TeeHandler sends each record to every handler that accepts it.
type TeeHandler []slog.Handler

func (t TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (t TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(TeeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t TeeHandler) WithGroup(name string) slog.Handler {
	out := make(TeeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
