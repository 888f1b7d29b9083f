package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/research-studio/pkg/research"
	"github.com/mikeboe/research-studio/pkg/session"
)

type StartResearchArgs struct {
	Topic string `json:"topic" jsonschema:"The research topic to write a report about."`
}

type GetResearchArgs struct{}

// ResearchStatus is the MCP view of the current artifact.
type ResearchStatus struct {
	Topic      string                     `json:"topic"`
	Status     string                     `json:"status"`
	Content    string                     `json:"content"`
	Sources    []research.GroundingSource `json:"sources"`
	Generating bool                       `json:"generating"`
}

type mcpTools struct {
	session *session.Session
}

func statusOf(snap session.Snapshot) ResearchStatus {
	st := ResearchStatus{
		Status:     string(session.StatusIdle),
		Sources:    snap.Sources,
		Generating: snap.Generating,
	}
	if snap.Artifact != nil {
		st.Topic = snap.Artifact.Topic
		st.Status = string(snap.Artifact.Status)
		st.Content = snap.Artifact.Content
	}
	return st
}

func textResult(st ResearchStatus) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal research status: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

func (t *mcpTools) startResearch(ctx context.Context, req *mcp.CallToolRequest, args StartResearchArgs) (*mcp.CallToolResult, ResearchStatus, error) {
	snap, err := t.session.SubmitAsync(args.Topic)
	if err != nil {
		return nil, ResearchStatus{}, err
	}
	st := statusOf(snap)
	res, err := textResult(st)
	return res, st, err
}

func (t *mcpTools) getResearch(ctx context.Context, req *mcp.CallToolRequest, args GetResearchArgs) (*mcp.CallToolResult, ResearchStatus, error) {
	st := statusOf(t.session.Snapshot())
	res, err := textResult(st)
	return res, st, err
}

// NewMCPServer exposes the research session as MCP tools.
func NewMCPServer(s *session.Session) *mcp.Server {
	tools := &mcpTools{session: s}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "research-studio-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_research",
		Description: "Start a grounded research report on a topic. Replaces the current report.",
	}, tools.startResearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_research",
		Description: "Get the current research report, its status and its sources.",
	}, tools.getResearch)

	return server
}

// NewMCPHandler serves the MCP server over streamable HTTP.
func NewMCPHandler(s *session.Session) http.Handler {
	server := NewMCPServer(s)
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}
