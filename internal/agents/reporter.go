package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/creative-orchestrator/internal/models"
	"github.com/example/creative-orchestrator/internal/providers/llm"
)

// Reporter writes the closing reply of a planned turn. It is terminal: it
// always ends the turn, regardless of how the plan went.
type Reporter struct {
	Client llm.Client
}

func (r *Reporter) Name() StageName { return StageReporter }

func (r *Reporter) Run(ctx context.Context, state *models.ConversationState) (Outcome, error) {
	prompt := reporterPrompt(state.Plan, state.StepResults)
	history := append([]models.Message{}, state.History...)

	var report string
	if streamer, ok := r.Client.(llm.Streamer); ok {
		resp, err := streamer.InvokeStream(ctx, prompt, history, func(delta string) {
			Emit(ctx, "token", delta)
		})
		if err == nil {
			report = resp.Text
		}
	} else {
		resp, err := r.Client.Invoke(ctx, prompt, history, nil)
		if err == nil {
			report = resp.Text
		}
	}

	report = strings.TrimSpace(report)
	if report == "" {
		report = fallbackReport(state.StepResults)
	}

	Emit(ctx, "message", report)
	return Outcome{
		Next: StageEnd,
		Delta: Delta{
			FinalReport: report,
			Messages:    []models.Message{{Role: models.RoleAssistant, Name: "reporter", Content: report}},
		},
	}, nil
}

// fallbackReport is the deterministic summary used when the model is
// unavailable; plain but complete.
func fallbackReport(results []models.StepResult) string {
	if len(results) == 0 {
		return "Nothing was executed this turn. Tell me what you would like to create."
	}
	var b strings.Builder
	b.WriteString("Here is what happened:\n")
	for _, r := range results {
		switch {
		case r.ResultURL != "":
			fmt.Fprintf(&b, "- Done: %s\n", r.ResultURL)
		case r.Status == models.StepFailed:
			fmt.Fprintf(&b, "- One step did not complete; you may want to try it again.\n")
		case r.TaskID != "":
			fmt.Fprintf(&b, "- A task was started and is still processing; ask me for its status in a moment.\n")
		default:
			fmt.Fprintf(&b, "- %s\n", r.Summary)
		}
	}
	return strings.TrimSpace(b.String())
}
