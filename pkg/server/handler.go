package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mikeboe/research-studio/pkg/session"
)

type Handler struct {
	Session *session.Session
	MCP     http.Handler
	Logger  *slog.Logger
}

func NewHandler(s *session.Session) *Handler {
	return &Handler{
		Session: s,
		MCP:     NewMCPHandler(s),
		Logger:  slog.Default(),
	}
}

type researchRequest struct {
	Topic string `json:"topic"`
}

type sidebarRequest struct {
	State string `json:"state"`
}

type chatRequest struct {
	Content string `json:"content"`
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.healthz)
	r.Any("/mcp", gin.WrapH(h.MCP))

	api := r.Group("/api")
	{
		api.GET("/state", h.getState)
		api.GET("/events", h.streamEvents)
		api.POST("/research", h.startResearch)
		api.GET("/artifact/markdown", h.getMarkdown)
		api.PUT("/sidebar", h.setSidebar)
		api.POST("/sidebar/toggle", h.toggleSidebar)
		api.POST("/chat", h.sendChat)
	}
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getState(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.Snapshot())
}

func (h *Handler) startResearch(c *gin.Context) {
	var req researchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.Session.SubmitAsync(req.Topic)
	switch {
	case errors.Is(err, session.ErrEmptyTopic):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, session.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, snap)
}

// streamEvents pushes a "state" event with the full snapshot after every change.
func (h *Handler) streamEvents(c *gin.Context) {
	updates, cancel := h.Session.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("state", snap)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// getMarkdown returns the raw report so clients can copy or download it.
func (h *Handler) getMarkdown(c *gin.Context) {
	snap := h.Session.Snapshot()
	if snap.Artifact == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active research"})
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(snap.Artifact.Content))
}

func (h *Handler) setSidebar(c *gin.Context) {
	var req sidebarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := session.ParseSidebarState(req.State)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Session.SetSidebar(st))
}

func (h *Handler) toggleSidebar(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.ToggleSidebar())
}

func (h *Handler) sendChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Session.Ask(c.Request.Context(), req.Content)
	switch {
	case errors.Is(err, session.ErrNoResponder):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
		return
	case errors.Is(err, session.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, session.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.Logger.Error("Chat request failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "message": msg})
		return
	}

	c.JSON(http.StatusOK, msg)
}
