package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/creative-orchestrator/internal/models"
	"github.com/example/creative-orchestrator/internal/providers/llm"
)

// Coordinator classifies each turn: small talk is answered directly and ends
// the turn; creative requests hand off to the planner.
type Coordinator struct {
	Client llm.Client
}

func (c *Coordinator) Name() StageName { return StageCoordinator }

func (c *Coordinator) Run(ctx context.Context, state *models.ConversationState) (Outcome, error) {
	resp, err := c.Client.Invoke(ctx, coordinatorPrompt, state.History, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("coordinator: %w", err)
	}

	if strings.Contains(resp.Text, "handoff_to_planner") {
		return Outcome{
			Next:  StagePlanner,
			Delta: Delta{EnablePlanning: boolPtr(true)},
		}, nil
	}

	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		reply = "Hello! Tell me what you would like to create."
	}
	Emit(ctx, "message", reply)
	return Outcome{
		Next: StageEnd,
		Delta: Delta{
			Messages: []models.Message{{Role: models.RoleAssistant, Name: "coordinator", Content: reply}},
		},
	}, nil
}
