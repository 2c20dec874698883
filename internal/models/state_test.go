package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginTurnResetsPerTurnFields(t *testing.T) {
	s := NewConversationState()
	s.ModelCallCount = 5
	s.NextExecutor = RoleImageExecutor
	s.References = []Reference{{URL: "https://old.example/a.png"}}

	s.BeginTurn("make it blue", nil)

	assert.Zero(t, s.ModelCallCount)
	assert.Empty(t, s.NextExecutor)
	assert.Empty(t, s.References)
	require.Len(t, s.History, 1)
	assert.Equal(t, RoleUser, s.History[0].Role)
}

func TestAddReferenceRejectsEmptyURL(t *testing.T) {
	s := NewConversationState()
	s.AddReference(Reference{URL: "  ", Description: "blank"})
	s.AddReference(Reference{URL: "https://cdn.example/x.png"})
	require.Len(t, s.References, 1)
	assert.Equal(t, "https://cdn.example/x.png", s.References[0].URL)
}

func TestRecordStepResultAdvancesCursorMonotonically(t *testing.T) {
	s := NewConversationState()
	s.CommitPlan(&Plan{Title: "t", Steps: []Step{
		{Executor: RoleImageExecutor, Title: "a"},
		{Executor: RoleVideoExecutor, Title: "b"},
	}})
	require.Equal(t, 0, s.CurrentStepIndex)
	require.Equal(t, 2, s.TotalSteps)

	for i := 0; i < 2; i++ {
		s.RecordStepResult(StepResult{StepIndex: i, Executor: RoleImageExecutor, Status: StepSuccess, Summary: "ok"})
		assert.Equal(t, i+1, s.CurrentStepIndex)
	}

	// One result per executor invocation, never more than totalSteps advances.
	s.RecordStepResult(StepResult{StepIndex: 2, Executor: RoleGeneralExecutor, Status: StepFailed, Summary: "late"})
	assert.Equal(t, 2, s.CurrentStepIndex)
	assert.LessOrEqual(t, s.CurrentStepIndex, s.TotalSteps)

	seen := map[int]bool{}
	last := -1
	for _, r := range s.StepResults {
		assert.False(t, seen[r.StepIndex], "duplicate step index %d", r.StepIndex)
		assert.Greater(t, r.StepIndex, last)
		seen[r.StepIndex] = true
		last = r.StepIndex
	}
}

func TestCommitPlanResetsBookkeeping(t *testing.T) {
	s := NewConversationState()
	s.CommitPlan(&Plan{Steps: []Step{{Executor: RoleImageExecutor}}})
	s.RecordStepResult(StepResult{StepIndex: 0, Status: StepSuccess, Summary: "done"})

	s.CommitPlan(&Plan{Steps: []Step{{Executor: RoleVideoExecutor}, {Executor: RoleReporter}}})
	assert.Zero(t, s.CurrentStepIndex)
	assert.Equal(t, 2, s.TotalSteps)
	assert.Empty(t, s.StepResults)
}

func TestCurrentStepOutOfRange(t *testing.T) {
	s := NewConversationState()
	_, ok := s.CurrentStep()
	assert.False(t, ok)

	s.CommitPlan(&Plan{Steps: []Step{{Executor: RoleImageExecutor, Title: "only"}}})
	step, ok := s.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, "only", step.Title)

	s.RecordStepResult(StepResult{StepIndex: 0, Status: StepSuccess, Summary: "ok"})
	_, ok = s.CurrentStep()
	assert.False(t, ok)
}

func TestStepResultRoundTrip(t *testing.T) {
	in := StepResult{
		StepIndex: 3,
		Executor:  RoleVideoExecutor,
		Status:    StepFailed,
		TaskID:    "task-77f",
		ResultURL: "https://cdn.example/out.mp4",
		Summary:   "backend rejected the request",
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out StepResult
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in.TaskID, out.TaskID)
	assert.Equal(t, in.Status, out.Status)
	assert.Equal(t, in, out)
}

func TestRegenerateArgsRollsNewSeed(t *testing.T) {
	cfg := map[string]any{"prompt": "X", "seed": 42, "aspect_ratio": "16:9"}
	out := RegenerateArgs(cfg)

	assert.Equal(t, "X", out["prompt"])
	assert.Equal(t, "16:9", out["aspect_ratio"])
	assert.NotEqual(t, 42, out["seed"])
	// Original config untouched.
	assert.Equal(t, 42, cfg["seed"])
}

func TestLastUserMessage(t *testing.T) {
	s := NewConversationState()
	assert.Nil(t, s.LastUserMessage())
	s.History = append(s.History,
		Message{Role: RoleUser, Content: "first"},
		Message{Role: RoleAssistant, Content: "reply"},
		Message{Role: RoleUser, Content: "second"},
	)
	msg := s.LastUserMessage()
	require.NotNil(t, msg)
	assert.Equal(t, "second", msg.Content)
}
