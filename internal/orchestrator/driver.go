package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/creative-orchestrator/internal/agents"
	"github.com/example/creative-orchestrator/internal/models"
)

const apologyReply = "Sorry, something went wrong while working on that. Please try again."

// TurnInput is one user turn entering the state machine.
type TurnInput struct {
	SessionID    string
	Utterance    string
	References   []models.Reference
	GlobalConfig map[string]any
}

// TurnResult is what a finished turn hands back to the transport layer.
type TurnResult struct {
	Reply       string              `json:"reply"`
	Plan        *models.Plan        `json:"plan,omitempty"`
	StepResults []models.StepResult `json:"step_results,omitempty"`
}

// Driver walks the conversation state through the stage machine until a
// terminal stage, applying each stage's delta in one place. The iteration cap
// fails closed: a cycling machine produces an apology, never a hung turn.
type Driver struct {
	stages map[agents.StageName]agents.Stage
	hub    *Hub
	logger *slog.Logger

	maxIterations       int
	preserveOnPlainText bool
}

func NewDriver(hub *Hub, logger *slog.Logger, maxIterations int, preserveOnPlainText bool, stages ...agents.Stage) *Driver {
	m := make(map[agents.StageName]agents.Stage, len(stages))
	for _, s := range stages {
		m[s.Name()] = s
	}
	return &Driver{
		stages:              m,
		hub:                 hub,
		logger:              logger,
		maxIterations:       maxIterations,
		preserveOnPlainText: preserveOnPlainText,
	}
}

// RunTurn executes one user turn to completion. The caller serializes turns
// on the same state.
func (d *Driver) RunTurn(ctx context.Context, state *models.ConversationState, in TurnInput) TurnResult {
	state.BeginTurn(in.Utterance, in.References)
	if len(in.GlobalConfig) > 0 {
		agents.Delta{GlobalConfig: in.GlobalConfig}.Apply(state)
	}

	appender := d.hub.TokenAppender(in.SessionID)
	defer d.hub.StopTokenAppender(in.SessionID)
	ctx = agents.WithEvents(ctx, &hubSink{hub: d.hub, sessionID: in.SessionID, appendToken: appender})

	current := agents.StageCoordinator
	for i := 0; i < d.maxIterations; i++ {
		stage, ok := d.stages[current]
		if !ok {
			d.logger.Error("no stage registered", "stage", current)
			return d.failTurn(state, in.SessionID, fmt.Sprintf("unroutable stage %q", current))
		}
		d.hub.Publish(in.SessionID, Event{Event: "stage", SessionID: in.SessionID, Payload: string(current)})

		out, err := stage.Run(ctx, state)
		if err != nil {
			d.logger.Error("stage failed", "stage", current, "error", err)
			return d.failTurn(state, in.SessionID, err.Error())
		}
		out.Delta.Apply(state)

		if out.Next == agents.StageEnd {
			d.endTurn(state)
			return d.result(state)
		}
		current = out.Next
	}

	d.logger.Error("turn iteration cap reached", "session_id", in.SessionID, "cap", d.maxIterations)
	return d.failTurn(state, in.SessionID, "iteration cap reached")
}

// failTurn closes the turn with an apology. The internal reason goes to the
// event stream for operators, never into the user-facing reply.
func (d *Driver) failTurn(state *models.ConversationState, sessionID, reason string) TurnResult {
	d.hub.Publish(sessionID, Event{Event: "error", SessionID: sessionID, Payload: reason})
	agents.Delta{
		Messages: []models.Message{{Role: models.RoleAssistant, Content: apologyReply}},
	}.Apply(state)
	d.endTurn(state)
	return d.result(state)
}

// endTurn applies the reset policy: with preservation off, a turn that never
// reached planning drops the carryover snapshot and session defaults.
func (d *Driver) endTurn(state *models.ConversationState) {
	if !d.preserveOnPlainText && !state.EnablePlanning {
		state.LastTask = nil
		state.GlobalConfig = nil
	}
}

func (d *Driver) result(state *models.ConversationState) TurnResult {
	reply := state.FinalReport
	if reply == "" {
		for i := len(state.History) - 1; i >= 0; i-- {
			if state.History[i].Role == models.RoleAssistant {
				reply = state.History[i].Content
				break
			}
		}
	}
	if !state.EnablePlanning {
		// Small-talk turn: the surviving plan belongs to an earlier turn.
		return TurnResult{Reply: reply}
	}
	return TurnResult{Reply: reply, Plan: state.Plan, StepResults: state.StepResults}
}

// hubSink adapts the hub to the stage-level event interface. Report tokens go
// through the coalescer; everything else publishes directly.
type hubSink struct {
	hub         *Hub
	sessionID   string
	appendToken func(string)
}

func (s *hubSink) Emit(event string, payload any) {
	if event == "token" {
		if chunk, ok := payload.(string); ok {
			s.appendToken(chunk)
		}
		return
	}
	s.hub.Publish(s.sessionID, Event{Event: event, SessionID: s.sessionID, Payload: payload})
}
