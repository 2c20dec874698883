package agents

import (
	"context"

	"github.com/example/creative-orchestrator/internal/models"
)

// StageName identifies one node of the turn state machine. Executor stages
// are named after their role so the supervisor's routing decision is the
// stage name directly.
type StageName string

const (
	StageCoordinator StageName = "coordinator"
	StagePlanner     StageName = "planner"
	StageSupervisor  StageName = "supervisor"
	StageReporter    StageName = "reporter"

	StageImageExecutor   StageName = StageName(models.RoleImageExecutor)
	StageVideoExecutor   StageName = StageName(models.RoleVideoExecutor)
	StageGeneralExecutor StageName = StageName(models.RoleGeneralExecutor)

	// StageEnd terminates the turn.
	StageEnd StageName = "end"
)

// Stage is one node of the turn state machine. A stage never mutates the
// conversation state directly; it returns the next stage plus a delta the
// driver applies, so every state transition happens in one place.
type Stage interface {
	Name() StageName
	Run(ctx context.Context, state *models.ConversationState) (Outcome, error)
}

// Outcome is a stage's decision: where to go next and what changed.
type Outcome struct {
	Next  StageName
	Delta Delta
}

// Delta is the set of state changes a stage requests. Zero-valued fields are
// left untouched by Apply.
type Delta struct {
	Messages       []models.Message
	Plan           *models.Plan
	StepResult     *models.StepResult
	LastTask       *models.TaskSnapshot
	References     []models.Reference
	NextExecutor   *string
	EnablePlanning *bool
	FinalReport    string
	GlobalConfig   map[string]any
}

// Apply folds the delta into the state. Plan commit and step-result append go
// through the state's own methods so their bookkeeping invariants hold.
func (d Delta) Apply(s *models.ConversationState) {
	s.History = append(s.History, d.Messages...)
	if d.Plan != nil {
		s.CommitPlan(d.Plan)
	}
	if d.StepResult != nil {
		s.RecordStepResult(*d.StepResult)
	}
	if d.LastTask != nil {
		s.LastTask = d.LastTask
	}
	for _, r := range d.References {
		s.AddReference(r)
	}
	if d.NextExecutor != nil {
		s.NextExecutor = *d.NextExecutor
	}
	if d.EnablePlanning != nil {
		s.EnablePlanning = *d.EnablePlanning
	}
	if d.FinalReport != "" {
		s.FinalReport = d.FinalReport
	}
	if len(d.GlobalConfig) > 0 {
		if s.GlobalConfig == nil {
			s.GlobalConfig = map[string]any{}
		}
		for k, v := range d.GlobalConfig {
			s.GlobalConfig[k] = v
		}
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// Preparer runs before a stage's model call; the cross-turn carryover loader
// implements it. A nil Preparer is a no-op.
type Preparer interface {
	Prepare(ctx context.Context, state *models.ConversationState)
}

// EventSink receives progress events for streaming to the client.
type EventSink interface {
	Emit(event string, payload any)
}

type eventSinkKey struct{}

// WithEvents attaches an event sink to the context for the stages below.
func WithEvents(ctx context.Context, sink EventSink) context.Context {
	return context.WithValue(ctx, eventSinkKey{}, sink)
}

// Emit sends an event to the sink on the context, if any.
func Emit(ctx context.Context, event string, payload any) {
	if sink, ok := ctx.Value(eventSinkKey{}).(EventSink); ok && sink != nil {
		sink.Emit(event, payload)
	}
}
