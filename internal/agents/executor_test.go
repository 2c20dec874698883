package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/creative-orchestrator/internal/models"
	"github.com/example/creative-orchestrator/internal/providers/llm"
	"github.com/example/creative-orchestrator/internal/tools"
)

func newTestExecutor(role string, client llm.Client, caps ...tools.Capability) *Executor {
	reg := tools.NewRegistry()
	for _, c := range caps {
		reg.Register(c)
	}
	return &Executor{
		Role:     role,
		Client:   client,
		Registry: reg,
		Catalog:  testCatalog(),
		Logger:   testLogger(),
	}
}

func TestExecutorRunsToolCallAndRecordsResult(t *testing.T) {
	cap := &stubCapability{
		name:   "text_to_image_create_task",
		result: map[string]any{"task_id": "task-1", "status": "Task created successfully!"},
	}
	client := &scriptedClient{responses: []*llm.Response{{
		ToolCalls: []models.ToolCall{{Name: cap.name, Args: map[string]any{"prompt": "a cat"}}},
	}}}
	exec := newTestExecutor(models.RoleImageExecutor, client, cap)
	state := stateWithPlan(models.Step{Executor: models.RoleImageExecutor, Title: "Draw", Description: "a cat"})

	out, err := exec.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, StageSupervisor, out.Next)
	require.NotNil(t, out.Delta.StepResult)
	assert.Equal(t, models.StepSuccess, out.Delta.StepResult.Status)
	assert.Equal(t, "task-1", out.Delta.StepResult.TaskID)
	assert.Equal(t, 0, out.Delta.StepResult.StepIndex)

	require.NotNil(t, out.Delta.LastTask)
	assert.Equal(t, "task-1", out.Delta.LastTask.TaskID)
	assert.Equal(t, cap.name, out.Delta.LastTask.ToolName)

	require.Len(t, out.Delta.Messages, 1)
	assert.Equal(t, models.RoleTool, out.Delta.Messages[0].Role)
	assert.Contains(t, out.Delta.Messages[0].Content, "<response>")

	// Only this role's capabilities were offered to the model.
	require.Len(t, client.lastTools, 1)
	assert.Equal(t, cap.name, client.lastTools[0].Name)
}

func TestExecutorMergesSessionDefaults(t *testing.T) {
	cap := &stubCapability{
		name:   "text_to_image_create_task",
		result: map[string]any{"task_id": "task-2"},
	}
	client := &scriptedClient{responses: []*llm.Response{{
		ToolCalls: []models.ToolCall{{Name: cap.name, Args: map[string]any{"prompt": "a cat"}}},
	}}}
	exec := newTestExecutor(models.RoleImageExecutor, client, cap)
	state := stateWithPlan(models.Step{Executor: models.RoleImageExecutor, Title: "Draw", Description: "a cat"})
	state.GlobalConfig = map[string]any{
		"aspect_ratio": "portrait_9_16", // declared parameter, filled in
		"watermark":    "off",           // undeclared, ignored
	}

	_, err := exec.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "portrait_9_16", cap.gotArgs["aspect_ratio"])
	assert.NotContains(t, cap.gotArgs, "watermark")
	assert.Equal(t, "a cat", cap.gotArgs["prompt"])
}

func TestExecutorExplicitArgsBeatDefaults(t *testing.T) {
	cap := &stubCapability{name: "text_to_image_create_task", result: map[string]any{"task_id": "t"}}
	client := &scriptedClient{responses: []*llm.Response{{
		ToolCalls: []models.ToolCall{{Name: cap.name, Args: map[string]any{"prompt": "x", "aspect_ratio": "square"}}},
	}}}
	exec := newTestExecutor(models.RoleImageExecutor, client, cap)
	state := stateWithPlan(models.Step{Executor: models.RoleImageExecutor, Title: "Draw", Description: "x"})
	state.GlobalConfig = map[string]any{"aspect_ratio": "portrait_9_16"}

	_, err := exec.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "square", cap.gotArgs["aspect_ratio"])
}

func TestExecutorRollsSeedOnRepeatedArgs(t *testing.T) {
	cap := &stubCapability{name: "image_edit_create_task", result: map[string]any{"task_id": "t-next"}}
	args := map[string]any{"prompt": "same edit", "seed": 7}
	client := &scriptedClient{responses: []*llm.Response{{
		ToolCalls: []models.ToolCall{{Name: cap.name, Args: map[string]any{"prompt": "same edit", "seed": 7}}},
	}}}
	exec := newTestExecutor(models.RoleImageExecutor, client, cap)
	state := stateWithPlan(models.Step{Executor: models.RoleImageExecutor, Title: "Edit", Description: "same edit"})
	state.LastTask = &models.TaskSnapshot{TaskID: "t-prev", ToolName: cap.name, Config: args}

	_, err := exec.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "same edit", cap.gotArgs["prompt"])
	assert.NotEqual(t, 7, cap.gotArgs["seed"])
}

func TestExecutorCapabilityErrorBecomesFailedResult(t *testing.T) {
	cap := &stubCapability{name: "text_to_image_create_task", err: errProvider}
	client := &scriptedClient{responses: []*llm.Response{{
		ToolCalls: []models.ToolCall{{Name: cap.name, Args: map[string]any{"prompt": "x"}}},
	}}}
	exec := newTestExecutor(models.RoleImageExecutor, client, cap)
	state := stateWithPlan(models.Step{Executor: models.RoleImageExecutor, Title: "Draw", Description: "x"})

	out, err := exec.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, StageSupervisor, out.Next)
	require.NotNil(t, out.Delta.StepResult)
	assert.Equal(t, models.StepFailed, out.Delta.StepResult.Status)
	assert.Nil(t, out.Delta.LastTask)
}

func TestExecutorModelErrorBecomesFailedResult(t *testing.T) {
	cap := &stubCapability{name: "text_to_image_create_task"}
	client := &scriptedClient{errs: []error{errProvider}}
	exec := newTestExecutor(models.RoleImageExecutor, client, cap)
	state := stateWithPlan(models.Step{Executor: models.RoleImageExecutor, Title: "Draw", Description: "x"})

	out, err := exec.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, models.StepFailed, out.Delta.StepResult.Status)
}

func TestExecutorMissingCapabilityAdvancesCursor(t *testing.T) {
	client := &scriptedClient{}
	exec := newTestExecutor(models.RoleImageExecutor, client) // empty registry
	state := stateWithPlan(models.Step{Executor: models.RoleImageExecutor, Title: "Draw", Description: "x"})

	out, err := exec.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, StageSupervisor, out.Next)
	require.NotNil(t, out.Delta.StepResult)
	assert.Equal(t, models.StepFailed, out.Delta.StepResult.Status)
	assert.Equal(t, 0, client.calls)

	out.Delta.Apply(state)
	assert.Equal(t, 1, state.CurrentStepIndex)
}

func TestExecutorMissingCapabilityTerminates(t *testing.T) {
	client := &scriptedClient{}
	exec := newTestExecutor(models.RoleImageExecutor, client)
	exec.TerminateOnMissing = true
	state := stateWithPlan(models.Step{Executor: models.RoleImageExecutor, Title: "Draw", Description: "x"})

	out, err := exec.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, StageReporter, out.Next)
}

func TestExecutorCursorPastPlanIsFatal(t *testing.T) {
	cap := &stubCapability{name: "text_to_image_create_task"}
	exec := newTestExecutor(models.RoleImageExecutor, &scriptedClient{}, cap)
	state := stateWithPlan(models.Step{Executor: models.RoleImageExecutor, Title: "Draw", Description: "x"})
	state.RecordStepResult(models.StepResult{StepIndex: 0, Executor: models.RoleImageExecutor, Status: models.StepSuccess})

	_, err := exec.Run(context.Background(), state)
	require.Error(t, err)
}

func TestExecutorNoInvocationIsFailedResult(t *testing.T) {
	cap := &stubCapability{name: "get_task_status"}
	client := &scriptedClient{responses: []*llm.Response{{Text: "I think this is already done."}}}
	exec := newTestExecutor(models.RoleGeneralExecutor, client, cap)
	state := stateWithPlan(models.Step{Executor: models.RoleGeneralExecutor, Title: "Check", Description: "status"})

	out, err := exec.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, models.StepFailed, out.Delta.StepResult.Status)
	assert.Equal(t, "no execution performed", out.Delta.StepResult.Summary)
}

func TestExecutorFirstTaskIDWinsAcrossInvocations(t *testing.T) {
	first := &stubCapability{name: "text_to_image_create_task", result: map[string]any{"task_id": "t-first"}}
	second := &stubCapability{name: "image_edit_create_task", result: map[string]any{"task_id": "t-second"}}
	client := &scriptedClient{responses: []*llm.Response{{
		ToolCalls: []models.ToolCall{
			{Name: first.name, Args: map[string]any{"prompt": "a"}},
			{Name: second.name, Args: map[string]any{"prompt": "b"}},
		},
	}}}
	exec := newTestExecutor(models.RoleImageExecutor, client, first, second)
	state := stateWithPlan(models.Step{Executor: models.RoleImageExecutor, Title: "Draw", Description: "a"})

	out, err := exec.Run(context.Background(), state)
	require.NoError(t, err)

	// Both invocations ran, the first task id is the one recorded.
	assert.NotNil(t, first.gotArgs)
	assert.NotNil(t, second.gotArgs)
	assert.Equal(t, "t-first", out.Delta.StepResult.TaskID)
	assert.Equal(t, "t-first", out.Delta.LastTask.TaskID)
}

func TestExecutorCollectsConfigUpdates(t *testing.T) {
	cap := &configCapability{}
	client := &scriptedClient{responses: []*llm.Response{{
		ToolCalls: []models.ToolCall{{Name: cap.Name(), Args: map[string]any{"config": map[string]any{"aspect_ratio": "portrait_9_16"}}}},
	}}}
	exec := newTestExecutor(models.RoleGeneralExecutor, client, cap)
	state := stateWithPlan(models.Step{Executor: models.RoleGeneralExecutor, Title: "Defaults", Description: "portrait from now on"})

	out, err := exec.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "portrait_9_16", out.Delta.GlobalConfig["aspect_ratio"])
	out.Delta.Apply(state)
	assert.Equal(t, "portrait_9_16", state.GlobalConfig["aspect_ratio"])
}

// configCapability pushes its config argument through the context sink, the
// way the real session-defaults tool does.
type configCapability struct{}

func (c *configCapability) Name() string        { return "update_global_config" }
func (c *configCapability) Description() string { return "set defaults" }

func (c *configCapability) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"config": map[string]any{"type": "object"}},
	}
}

func (c *configCapability) Execute(ctx context.Context, args map[string]any) (any, error) {
	return (&tools.UpdateGlobalConfig{}).Execute(ctx, args)
}
