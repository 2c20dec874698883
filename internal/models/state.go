package models

import (
	"math/rand"
	"strings"
)

// ConversationState is the single mutable record threaded through every stage
// of a turn. It is owned by exactly one in-flight turn; callers serialize
// concurrent turns on the same session.
type ConversationState struct {
	History    []Message   `json:"history"`
	References []Reference `json:"references,omitempty"`

	LastTask     *TaskSnapshot  `json:"last_task,omitempty"`
	GlobalConfig map[string]any `json:"global_config,omitempty"`

	Plan             *Plan        `json:"plan,omitempty"`
	CurrentStepIndex int          `json:"current_step_index"`
	TotalSteps       int          `json:"total_steps"`
	StepResults      []StepResult `json:"step_results,omitempty"`

	NextExecutor   string `json:"next_executor,omitempty"`
	ModelCallCount int    `json:"model_call_count"`
	EnablePlanning bool   `json:"enable_planning"`

	FinalReport string `json:"final_report,omitempty"`
}

func NewConversationState() *ConversationState {
	return &ConversationState{}
}

// BeginTurn appends the user utterance and resets the per-turn fields.
// References reset to empty unless the carryover subsystem repopulates them.
// GlobalConfig and LastTask survive according to the caller's reset policy.
func (s *ConversationState) BeginTurn(utterance string, refs []Reference) {
	s.History = append(s.History, Message{Role: RoleUser, Content: utterance})
	s.References = nil
	for _, r := range refs {
		s.AddReference(r)
	}
	s.ModelCallCount = 0
	s.NextExecutor = ""
	s.EnablePlanning = false
	s.FinalReport = ""
}

// AddReference appends a reference, dropping entries without a URL.
func (s *ConversationState) AddReference(r Reference) {
	if strings.TrimSpace(r.URL) == "" {
		return
	}
	s.References = append(s.References, r)
}

// CommitPlan installs a validated plan and resets step bookkeeping. This is
// the only place the plan cursor and result log are reset.
func (s *ConversationState) CommitPlan(p *Plan) {
	s.Plan = p
	s.CurrentStepIndex = 0
	s.TotalSteps = len(p.Steps)
	s.StepResults = nil
}

// CurrentStep returns the step at the plan cursor, or false when the cursor
// has run off the plan.
func (s *ConversationState) CurrentStep() (Step, bool) {
	if s.Plan == nil || s.CurrentStepIndex < 0 || s.CurrentStepIndex >= len(s.Plan.Steps) {
		return Step{}, false
	}
	return s.Plan.Steps[s.CurrentStepIndex], true
}

// RecordStepResult appends one result and advances the cursor. Indices in the
// result log stay unique and monotonic because this is the only append path.
func (s *ConversationState) RecordStepResult(r StepResult) {
	s.StepResults = append(s.StepResults, r)
	if s.CurrentStepIndex < s.TotalSteps {
		s.CurrentStepIndex++
	}
}

// LastUserMessage returns a pointer to the most recent user message, or nil.
func (s *ConversationState) LastUserMessage() *Message {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == RoleUser {
			return &s.History[i]
		}
	}
	return nil
}

// RegenerateArgs copies a prior task config and rolls a new seed, guaranteed
// to differ from the recorded one, so a retried generation produces a new
// result for the same prompt.
func RegenerateArgs(cfg map[string]any) map[string]any {
	out := make(map[string]any, len(cfg)+1)
	for k, v := range cfg {
		out[k] = v
	}
	old, _ := toInt(cfg["seed"])
	seed := rand.Intn(1 << 30)
	for seed == old {
		seed = rand.Intn(1 << 30)
	}
	out["seed"] = seed
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
