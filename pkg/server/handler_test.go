package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-studio/pkg/research"
	"github.com/mikeboe/research-studio/pkg/session"
)

type replayStreamer []research.Event

func (r replayStreamer) Events(ctx context.Context, topic string) iter.Seq[research.Event] {
	return func(yield func(research.Event) bool) {
		for _, ev := range r {
			if !yield(ev) {
				return
			}
		}
	}
}

type echoResponder struct{}

func (echoResponder) Respond(ctx context.Context, history []session.Message, content string) (string, error) {
	return "echo: " + content, nil
}

func newTestServer(t *testing.T, events ...research.Event) (*gin.Engine, *session.Session) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := session.New(replayStreamer(events))
	s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	t.Cleanup(s.Close)

	r := gin.New()
	NewHandler(s).RegisterRoutes(r)
	return r, s
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetStateEmpty(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(r, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Nil(t, snap.Artifact)
	assert.Empty(t, snap.Messages)
	assert.Equal(t, session.SidebarVisible, snap.Sidebar)
}

func TestStartResearch(t *testing.T) {
	r, s := newTestServer(t,
		research.TextDelta{Text: "# Solar\n"},
		research.SourceBatch{Sources: []research.GroundingSource{{Title: "A", URI: "http://a"}}},
		research.Done{Text: "# Solar\n", Sources: []research.GroundingSource{{Title: "A", URI: "http://a"}}},
	)

	w := do(r, http.MethodPost, "/api/research", `{"topic":"solar panels"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.NotNil(t, snap.Artifact)
	assert.Equal(t, "solar panels", snap.Artifact.Topic)
	assert.Equal(t, session.StatusStreaming, snap.Artifact.Status)
	assert.Len(t, snap.Messages, 2)

	require.Eventually(t, func() bool {
		a := s.Snapshot().Artifact
		return a != nil && a.Status == session.StatusCompleted
	}, time.Second, 5*time.Millisecond)

	w = do(r, http.MethodGet, "/api/artifact/markdown", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# Solar\n", w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/markdown"))
}

func TestStartResearchBadRequests(t *testing.T) {
	r, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"Empty topic", `{"topic":""}`},
		{"Blank topic", `{"topic":"   "}`},
		{"Invalid JSON", `{"topic":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/research", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestMarkdownWithoutArtifact(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(r, http.MethodGet, "/api/artifact/markdown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSidebarRoutes(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(r, http.MethodPut, "/api/sidebar", `{"state":"hidden"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, session.SidebarHidden, snap.Sidebar)

	w = do(r, http.MethodPut, "/api/sidebar", `{"state":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/sidebar/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, session.SidebarExpanded, snap.Sidebar)
}

func TestChatRoute(t *testing.T) {
	r, s := newTestServer(t)

	w := do(r, http.MethodPost, "/api/chat", `{"content":"hi"}`)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	s.Responder = echoResponder{}

	w = do(r, http.MethodPost, "/api/chat", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/chat", `{"content":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var msg session.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, session.RoleAssistant, msg.Role)
	assert.Equal(t, "echo: hi", msg.Content)
}

func TestStreamEventsSendsSnapshots(t *testing.T) {
	r, _ := newTestServer(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	sc := bufio.NewScanner(resp.Body)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		}
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			break
		}
	}
	assert.Equal(t, "state", event)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal([]byte(data), &snap))
	assert.Equal(t, session.SidebarVisible, snap.Sidebar)
}
