package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/creative-orchestrator/internal/models"
	"github.com/example/creative-orchestrator/internal/providers/llm"
)

// Supervisor routes between plan steps. Its decision set is closed: a team
// member name or FINISH. Anything it emits outside that set fails closed to
// FINISH, so a confused model can stall a plan but never derail it.
type Supervisor struct {
	Client llm.Client
	Logger *slog.Logger
}

func (s *Supervisor) Name() StageName { return StageSupervisor }

func (s *Supervisor) Run(ctx context.Context, state *models.ConversationState) (Outcome, error) {
	history := append([]models.Message{}, state.History...)
	history = append(history, models.Message{Role: models.RoleUser, Content: routingContext(state)})

	resp, err := s.Client.Invoke(ctx, supervisorPrompt, history, nil)
	if err != nil {
		// A routing decision cannot be guessed; the turn is over.
		return Outcome{}, fmt.Errorf("supervisor: %w", err)
	}

	next := parseDecision(resp.Text)
	if next == "" {
		s.Logger.Warn("unroutable supervisor decision", "raw", resp.Text)
		next = models.Finish
	}

	if next == models.Finish {
		return Outcome{
			Next:  StageReporter,
			Delta: Delta{NextExecutor: strPtr(models.Finish)},
		}, nil
	}
	Emit(ctx, "route", next)
	return Outcome{
		Next:  StageName(next),
		Delta: Delta{NextExecutor: strPtr(next)},
	}, nil
}

// parseDecision accepts {"next": "..."} or a bare option name, matched
// case-insensitively against the closed decision set. Unknown input yields "".
func parseDecision(raw string) string {
	text := normalizeJSONObject(raw)
	var decision struct {
		Next string `json:"next"`
	}
	candidate := text
	if err := json.Unmarshal([]byte(text), &decision); err == nil && decision.Next != "" {
		candidate = decision.Next
	}
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	for _, opt := range models.SupervisorOptions {
		if candidate == strings.ToLower(opt) {
			return opt
		}
	}
	// Tolerate prose around the option name, first match wins.
	for _, opt := range models.SupervisorOptions {
		if strings.Contains(candidate, strings.ToLower(opt)) {
			return opt
		}
	}
	return ""
}

// routingContext summarises the plan position for the routing call.
func routingContext(state *models.ConversationState) string {
	var b strings.Builder
	if state.Plan != nil {
		payload, _ := json.Marshal(state.Plan)
		fmt.Fprintf(&b, "Plan: %s\n", payload)
	}
	fmt.Fprintf(&b, "Completed steps: %d of %d\n", len(state.StepResults), state.TotalSteps)
	for _, r := range state.StepResults {
		payload, _ := json.Marshal(r)
		fmt.Fprintf(&b, "- %s\n", payload)
	}
	if step, ok := state.CurrentStep(); ok {
		fmt.Fprintf(&b, "Next unfinished step: %q assigned to %s\n", step.Title, step.Executor)
	} else {
		b.WriteString("All steps have results.\n")
	}
	return b.String()
}
