package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdk_client "github.com/mark3labs/mcp-go/client"
	sdk_mcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/pocketomega/pocket-planner/internal/artifact"
	"github.com/pocketomega/pocket-planner/internal/env"
	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/pocketomega/pocket-planner/internal/llm"
	"github.com/pocketomega/pocket-planner/internal/planner"
	"github.com/pocketomega/pocket-planner/internal/session"
	"github.com/pocketomega/pocket-planner/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fakeGen = llm.GeneratorFunc(func(_ context.Context, p string) (llm.Generation, error) {
	switch {
	case strings.Contains(p, "Goal-Level Planner"):
		return llm.Generation{Text: "1. Bring the apple to the table"}, nil
	case strings.Contains(p, "Task-Level Planner"):
		return llm.Generation{Text: "1. PickObject(apple)\n2. PlaceObject(apple, table)"}, nil
	case strings.Contains(p, "Action-Level Planner"):
		return llm.Generation{Text: "1. PickObject(apple)"}, nil
	case strings.Contains(p, "You classify the latest message"):
		return llm.Generation{Text: `{"intent": "question"}`}, nil
	case strings.Contains(p, "You answer questions"):
		return llm.Generation{Text: "An apple."}, nil
	}
	return llm.Generation{}, errs.NewLLM("unexpected prompt", nil, nil)
})

func newTestServer(t *testing.T) (*Server, *artifact.Index) {
	t.Helper()
	dir := t.TempDir()
	idx, err := artifact.OpenIndex(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	maker := state.NewMaker(state.StaticCatalog(env.Catalog{Objects: "apple", Groups: "fridge", Skills: "PickObject"}), nil)
	deps := &planner.Deps{Generator: fakeGen}
	linear, err := planner.Build(planner.WorkflowLinear, deps)
	require.NoError(t, err)
	interactive, err := planner.Build(planner.WorkflowInteractive, deps)
	require.NoError(t, err)

	chat := planner.NewRunner(interactive, maker, nil, idx)
	store := session.NewStore(time.Minute, func(id, runContext string) (*planner.Session, error) {
		return planner.NewSession(id, chat, runContext)
	})
	t.Cleanup(store.Close)

	return NewServer(Options{
		Runner:   planner.NewRunner(linear, maker, artifact.NewFileStore(dir), idx),
		Sessions: store,
		Runs:     idx,
	}), idx
}

func callRequest(name string, args map[string]any) sdk_mcp.CallToolRequest {
	req := sdk_mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *sdk_mcp.CallToolResult) string {
	t.Helper()
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(sdk_mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func TestPlanMission(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handlePlanMission(context.Background(), callRequest(ToolPlanMission, map[string]any{"query": "bring the apple"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var out planResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, "bring the apple", out.Mission)
	assert.Equal(t, []string{"Bring the apple to the table"}, out.Subgoals)
	assert.Equal(t, []string{"PickObject(apple)", "PickObject(apple)"}, out.Actions)
	assert.NotEmpty(t, out.RunDir)
}

func TestPlanMission_Validation(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handlePlanMission(context.Background(), callRequest(ToolPlanMission, map[string]any{"query": " "}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handlePlanMission(context.Background(), callRequest(ToolPlanMission, map[string]any{"query": strings.Repeat("a", maxQueryRunes+1)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestChat_StartsAndContinuesSession(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleChat(ctx, callRequest(ToolChat, map[string]any{"message": "what is in the fridge?"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	var first chatResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &first))
	assert.NotEmpty(t, first.SessionID)
	assert.Equal(t, planner.IntentQuestion, first.Intent)
	assert.Equal(t, []string{"An apple."}, first.QuestionAnswers)
	assert.Nil(t, first.Plan)

	res, err = s.handleChat(ctx, callRequest(ToolChat, map[string]any{"message": "and now?", "session_id": first.SessionID}))
	require.NoError(t, err)
	var second chatResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &second))
	assert.Equal(t, first.SessionID, second.SessionID)

	res, err = s.handleChat(ctx, callRequest(ToolChat, map[string]any{"message": "hi", "session_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestInProcessClient(t *testing.T) {
	s, idx := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cli, err := sdk_client.NewInProcessClient(s.MCPServer())
	require.NoError(t, err)
	defer cli.Close()
	require.NoError(t, cli.Start(ctx))

	_, err = cli.Initialize(ctx, sdk_mcp.InitializeRequest{
		Params: sdk_mcp.InitializeParams{
			ProtocolVersion: sdk_mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      sdk_mcp.Implementation{Name: "test", Version: "0"},
		},
	})
	require.NoError(t, err)

	tools, err := cli.ListTools(ctx, sdk_mcp.ListToolsRequest{})
	require.NoError(t, err)
	var names []string
	for _, tl := range tools.Tools {
		names = append(names, tl.Name)
	}
	assert.ElementsMatch(t, []string{ToolPlanMission, ToolListCatalog, ToolChat}, names)

	res, err := cli.CallTool(ctx, callRequest(ToolListCatalog, nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"objects": "apple"`)

	res, err = cli.CallTool(ctx, callRequest(ToolPlanMission, map[string]any{"query": "bring the apple"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	runs, err := idx.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	rr := sdk_mcp.ReadResourceRequest{}
	rr.Params.URI = ResourceRecent
	contents, err := cli.ReadResource(ctx, rr)
	require.NoError(t, err)
	require.Len(t, contents.Contents, 1)
	raw, err := json.Marshal(contents.Contents[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), runs[0].ID)
}
