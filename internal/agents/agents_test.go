package agents

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/example/creative-orchestrator/internal/models"
	"github.com/example/creative-orchestrator/internal/providers/llm"
	"github.com/example/creative-orchestrator/internal/tools"
)

// scriptedClient replays canned responses in call order and records what it
// was asked.
type scriptedClient struct {
	responses []*llm.Response
	errs      []error

	calls       int
	lastSystem  string
	lastHistory []models.Message
	lastTools   []llm.ToolSpec
}

func (c *scriptedClient) Invoke(_ context.Context, system string, history []models.Message, specs []llm.ToolSpec) (*llm.Response, error) {
	idx := c.calls
	c.calls++
	c.lastSystem = system
	c.lastHistory = history
	c.lastTools = specs
	if idx < len(c.errs) && c.errs[idx] != nil {
		return nil, c.errs[idx]
	}
	if idx < len(c.responses) {
		return c.responses[idx], nil
	}
	return &llm.Response{Text: ""}, nil
}

var errProvider = errors.New("provider unavailable")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog() *tools.Catalog {
	return tools.NewCatalog(map[string][]string{
		models.RoleImageExecutor:   {"text_to_image_create_task", "image_edit_create_task"},
		models.RoleVideoExecutor:   {"text_to_video_create_task"},
		models.RoleGeneralExecutor: {"get_task_status", "update_global_config"},
		models.RoleReporter:        nil,
	})
}

// stubCapability is a scriptable tool for executor tests.
type stubCapability struct {
	name   string
	params map[string]any
	result any
	err    error

	gotArgs map[string]any
	gotCtx  context.Context
}

func (s *stubCapability) Name() string        { return s.name }
func (s *stubCapability) Description() string { return s.name }

func (s *stubCapability) Parameters() map[string]any {
	if s.params != nil {
		return s.params
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt":       map[string]any{"type": "string"},
			"aspect_ratio": map[string]any{"type": "string"},
			"seed":         map[string]any{"type": "integer"},
		},
	}
}

func (s *stubCapability) Execute(ctx context.Context, args map[string]any) (any, error) {
	s.gotArgs = args
	s.gotCtx = ctx
	return s.result, s.err
}

func stateWithPlan(steps ...models.Step) *models.ConversationState {
	state := models.NewConversationState()
	state.BeginTurn("make me something", nil)
	state.CommitPlan(&models.Plan{Title: "test plan", Steps: steps})
	return state
}
