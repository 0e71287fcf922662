// Package mcp exposes the planner as an MCP server so agent hosts can call
// mission decomposition as a tool.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	sdk_mcp "github.com/mark3labs/mcp-go/mcp"
	sdk_server "github.com/mark3labs/mcp-go/server"
	"github.com/pocketomega/pocket-planner/internal/artifact"
	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/pocketomega/pocket-planner/internal/planner"
	"github.com/pocketomega/pocket-planner/internal/session"
)

// Tool and resource names.
const (
	ToolPlanMission = "plan_mission"
	ToolChat        = "chat"
	ToolListCatalog = "list_catalog"
	ResourceRecent  = "planner://runs/recent"
	serverName      = "pocket-planner"
	recentRunsLimit = 20
	maxQueryRunes   = 4000
)

// RunLister reads the run index.
type RunLister interface {
	List(ctx context.Context, limit int) ([]*artifact.Run, error)
}

// Options wires the server. Runner is required.
type Options struct {
	Version  string
	Runner   *planner.Runner // linear planning
	Sessions *session.Store  // optional: enables the chat tool
	Runs     RunLister       // optional: enables the recent-runs resource
}

// Server wraps an mcp-go server exposing planner tools.
type Server struct {
	opts  Options
	inner *sdk_server.MCPServer
}

// NewServer registers the planner tools and resources.
func NewServer(opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "0.1.0"
	}
	s := &Server{
		opts:  opts,
		inner: sdk_server.NewMCPServer(serverName, opts.Version, sdk_server.WithToolCapabilities(false)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for in-process clients.
func (s *Server) MCPServer() *sdk_server.MCPServer { return s.inner }

// ServeStdio serves on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	log.Printf("[MCP] Serving %s over stdio", serverName)
	return sdk_server.ServeStdio(s.inner)
}

func (s *Server) registerTools() {
	s.inner.AddTool(sdk_mcp.NewTool(ToolPlanMission,
		sdk_mcp.WithDescription("Decompose a natural-language robot mission into subgoals, task steps and primitive skill calls."),
		sdk_mcp.WithString("query", sdk_mcp.Required(), sdk_mcp.Description("The mission, e.g. \"bring the apple to the table\"")),
		sdk_mcp.WithString("context", sdk_mcp.Description("Optional extra context for task planning")),
	), s.handlePlanMission)

	s.inner.AddTool(sdk_mcp.NewTool(ToolListCatalog,
		sdk_mcp.WithDescription("Show the objects, groups and robot skills the planner may use."),
	), s.handleListCatalog)

	if s.opts.Sessions != nil {
		s.inner.AddTool(sdk_mcp.NewTool(ToolChat,
			sdk_mcp.WithDescription("Send one message to an interactive planning session. Omit session_id to start a new one."),
			sdk_mcp.WithString("message", sdk_mcp.Required(), sdk_mcp.Description("The user message")),
			sdk_mcp.WithString("session_id", sdk_mcp.Description("Session to continue")),
		), s.handleChat)
	}
}

func (s *Server) registerResources() {
	if s.opts.Runs == nil {
		return
	}
	s.inner.AddResource(sdk_mcp.NewResource(ResourceRecent, "Recent planner runs",
		sdk_mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, _ sdk_mcp.ReadResourceRequest) ([]sdk_mcp.ResourceContents, error) {
		runs, err := s.opts.Runs.List(ctx, recentRunsLimit)
		if err != nil {
			return nil, fmt.Errorf("mcp: list runs: %w", err)
		}
		data, err := json.Marshal(runs)
		if err != nil {
			return nil, err
		}
		return []sdk_mcp.ResourceContents{
			sdk_mcp.TextResourceContents{URI: ResourceRecent, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

// planResult is the tool-facing view of an Outcome.
type planResult struct {
	RunID    string   `json:"run_id"`
	Mission  string   `json:"mission"`
	Subgoals []string `json:"subgoals"`
	Tasks    any      `json:"tasks"`
	Actions  []string `json:"actions"`
	RunDir   string   `json:"run_dir,omitempty"`
	Tokens   int      `json:"total_tokens"`
}

func toPlanResult(out *planner.Outcome) planResult {
	return planResult{
		RunID:    out.RunID,
		Mission:  out.UserQuery,
		Subgoals: out.Subgoals,
		Tasks:    out.Tasks,
		Actions:  out.Actions,
		RunDir:   out.RunDir,
		Tokens:   out.Usage.TotalTokens,
	}
}

func (s *Server) handlePlanMission(ctx context.Context, req sdk_mcp.CallToolRequest) (*sdk_mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return sdk_mcp.NewToolResultError("query is required"), nil
	}
	if len([]rune(query)) > maxQueryRunes {
		return sdk_mcp.NewToolResultError(fmt.Sprintf("query exceeds %d characters", maxQueryRunes)), nil
	}

	out, err := s.opts.Runner.Run(ctx, query, req.GetString("context", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(toPlanResult(out))
}

func (s *Server) handleListCatalog(ctx context.Context, _ sdk_mcp.CallToolRequest) (*sdk_mcp.CallToolResult, error) {
	catalog, err := s.opts.Runner.Maker().Catalog(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]string{
		"objects": catalog.Objects,
		"groups":  catalog.Groups,
		"skills":  catalog.Skills,
	})
}

type chatResult struct {
	SessionID       string      `json:"session_id"`
	Intent          string      `json:"intent"`
	Ended           bool        `json:"ended"`
	QuestionAnswers []string    `json:"question_answers,omitempty"`
	Plan            *planResult `json:"plan,omitempty"`
}

func (s *Server) handleChat(ctx context.Context, req sdk_mcp.CallToolRequest) (*sdk_mcp.CallToolResult, error) {
	message := strings.TrimSpace(req.GetString("message", ""))
	if message == "" {
		return sdk_mcp.NewToolResultError("message is required"), nil
	}

	var (
		sess *planner.Session
		err  error
	)
	if id := req.GetString("session_id", ""); id != "" {
		sess, err = s.opts.Sessions.Get(id)
	} else {
		sess, err = s.opts.Sessions.Create("")
	}
	if err != nil {
		return sdk_mcp.NewToolResultError(err.Error()), nil
	}

	out, err := sess.Send(ctx, message)
	if err != nil {
		return errorResult(err), nil
	}
	res := chatResult{
		SessionID:       sess.ID,
		Intent:          out.Intent,
		Ended:           sess.Ended(),
		QuestionAnswers: out.QuestionAnswers,
	}
	if out.Decomposed() {
		p := toPlanResult(out)
		res.Plan = &p
	}
	return jsonResult(res)
}

func jsonResult(v any) (*sdk_mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: encode result: %w", err)
	}
	return sdk_mcp.NewToolResultText(string(data)), nil
}

// errorResult reports a planner failure to the caller as a tool error
// carrying the structured payload.
func errorResult(err error) *sdk_mcp.CallToolResult {
	data, merr := json.Marshal(errs.Payload(err))
	if merr != nil {
		return sdk_mcp.NewToolResultError(err.Error())
	}
	return sdk_mcp.NewToolResultError(string(data))
}
