package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/example/creative-orchestrator/internal/models"
	"github.com/example/creative-orchestrator/internal/providers/llm"
	"github.com/example/creative-orchestrator/internal/tools"
)

// stepResultTail bounds how many prior results the instruction carries.
const stepResultTail = 3

// Executor runs the current plan step with the capabilities bound to its
// role. Capability failures become failed step results and route back to the
// supervisor; only a cursor past the end of the plan is a turn-level error.
type Executor struct {
	Role     string
	Client   llm.Client
	Registry *tools.Registry
	Catalog  *tools.Catalog
	Prepare  Preparer
	Logger   *slog.Logger

	// TerminateOnMissing routes straight to the reporter when the role has no
	// usable capability, instead of letting the supervisor retry the plan.
	TerminateOnMissing bool
}

func (e *Executor) Name() StageName { return StageName(e.Role) }

func (e *Executor) Run(ctx context.Context, state *models.ConversationState) (Outcome, error) {
	step, ok := state.CurrentStep()
	if !ok {
		return Outcome{}, fmt.Errorf("%s: plan cursor %d out of range", e.Role, state.CurrentStepIndex)
	}

	caps := e.Registry.ForRole(e.Role, e.Catalog)
	if len(caps) == 0 {
		e.Logger.Warn("no capability for role", "role", e.Role)
		next := StageSupervisor
		if e.TerminateOnMissing {
			next = StageReporter
		}
		return e.failed(ctx, state, next, "no capability available for this step"), nil
	}

	if e.Prepare != nil {
		e.Prepare.Prepare(ctx, state)
	}

	instruction := fmt.Sprintf("Current step: %s\n%s\n%s", step.Title, step.Description, contextBlock(state, stepResultTail))
	history := append([]models.Message{}, state.History...)
	history = append(history, models.Message{Role: models.RoleUser, Content: instruction})

	resp, err := e.Client.Invoke(ctx, executorPrompt(e.Role), history, toolSpecs(caps))
	if err != nil {
		e.Logger.Warn("executor model call failed", "role", e.Role, "error", err)
		return e.failed(ctx, state, StageSupervisor, "the model call for this step failed"), nil
	}
	if len(resp.ToolCalls) == 0 {
		e.Logger.Warn("no invocation requested", "role", e.Role, "step", step.Title)
		return e.failed(ctx, state, StageSupervisor, "no execution performed"), nil
	}

	collected := map[string]any{}
	callCtx := tools.WithLastTask(ctx, state.LastTask)
	callCtx = tools.WithConfigSink(callCtx, func(cfg map[string]any) {
		for k, v := range cfg {
			collected[k] = v
		}
	})

	// Every requested invocation runs; the step yields exactly one result.
	// The first invocation producing a task identifier becomes the snapshot.
	sr := models.StepResult{
		StepIndex: state.CurrentStepIndex,
		Executor:  e.Role,
		Status:    models.StepFailed,
		Summary:   "no execution performed",
	}
	var snap *models.TaskSnapshot
	for _, call := range resp.ToolCalls {
		cap, ok := findCapability(caps, call.Name)
		if !ok {
			e.Logger.Warn("model chose unbound capability", "role", e.Role, "capability", call.Name)
			continue
		}

		args := mergeDefaults(call.Args, cap.Parameters(), state.GlobalConfig)
		if prev := state.LastTask; prev != nil && prev.ToolName == cap.Name() && reflect.DeepEqual(args, prev.Config) {
			// Same tool, same arguments: the user wants another take, not a
			// cache hit. Roll a fresh seed.
			args = models.RegenerateArgs(args)
		}

		Emit(ctx, "tool_call", call.Name)
		result, err := cap.Execute(callCtx, args)
		if err != nil {
			e.Logger.Warn("capability failed", "role", e.Role, "capability", cap.Name(), "error", err)
			if sr.Status == models.StepFailed {
				sr.Summary = fmt.Sprintf("the %q step did not complete", step.Title)
			}
			continue
		}
		if sr.Status == models.StepFailed {
			sr.Status = models.StepSuccess
			sr.Summary = summarize(result)
		}
		if sr.ResultURL == "" {
			sr.ResultURL = resultURL(result)
		}
		if sr.TaskID == "" {
			if id := tools.ExtractTaskID(result); id != "" {
				sr.TaskID = id
				if strings.Contains(cap.Name(), "create_task") {
					snap = &models.TaskSnapshot{TaskID: id, ToolName: cap.Name(), Config: args}
				}
			}
		}
	}

	if sr.Status == models.StepFailed {
		return e.failed(ctx, state, StageSupervisor, sr.Summary), nil
	}
	return e.succeeded(ctx, state, sr, snap, collected), nil
}

func (e *Executor) succeeded(ctx context.Context, state *models.ConversationState, sr models.StepResult, snap *models.TaskSnapshot, cfg map[string]any) Outcome {
	Emit(ctx, "step_result", sr)
	return Outcome{
		Next: StageSupervisor,
		Delta: Delta{
			StepResult:   &sr,
			LastTask:     snap,
			GlobalConfig: cfg,
			Messages:     []models.Message{responseMessage(e.Role, sr)},
		},
	}
}

// failed records an unsuccessful result for the current step; the cursor
// still advances, a broken step is never retried within the turn.
func (e *Executor) failed(ctx context.Context, state *models.ConversationState, next StageName, summary string) Outcome {
	sr := models.StepResult{
		StepIndex: state.CurrentStepIndex,
		Executor:  e.Role,
		Status:    models.StepFailed,
		Summary:   summary,
	}
	Emit(ctx, "step_result", sr)
	return Outcome{
		Next: next,
		Delta: Delta{
			StepResult: &sr,
			Messages:   []models.Message{responseMessage(e.Role, sr)},
		},
	}
}

// responseMessage is the executor's report back to the supervisor, in a fixed
// shape so the routing model can read it reliably.
func responseMessage(role string, sr models.StepResult) models.Message {
	payload, _ := json.Marshal(sr)
	return models.Message{
		Role:    models.RoleTool,
		Name:    role,
		Content: fmt.Sprintf("Response from %s:\n\n<response>\n%s\n</response>\n\n*Please execute the next step.*", role, payload),
	}
}

func findCapability(caps []tools.Capability, name string) (tools.Capability, bool) {
	for _, c := range caps {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

func toolSpecs(caps []tools.Capability) []llm.ToolSpec {
	out := make([]llm.ToolSpec, 0, len(caps))
	for _, c := range caps {
		out = append(out, llm.ToolSpec{Name: c.Name(), Description: c.Description(), Parameters: c.Parameters()})
	}
	return out
}

// mergeDefaults fills session-wide defaults into the call arguments, for
// parameters the capability declares and the model left unset.
func mergeDefaults(args, schema, global map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	props, _ := schema["properties"].(map[string]any)
	for k, v := range global {
		if _, declared := props[k]; !declared {
			continue
		}
		if _, set := out[k]; !set {
			out[k] = v
		}
	}
	return out
}

func resultURL(result any) string {
	if m, ok := result.(map[string]any); ok {
		if u, ok := m["result_url"].(string); ok {
			return u
		}
	}
	return ""
}

func summarize(result any) string {
	switch v := result.(type) {
	case string:
		return v
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(payload)
	}
}

// contextBlock renders the shared session context appended to planning and
// execution calls: references, session defaults, the last async task, and
// the tail of the step-result log.
func contextBlock(state *models.ConversationState, tail int) string {
	var b strings.Builder
	if len(state.References) > 0 {
		b.WriteString("Reference materials:\n")
		for _, r := range state.References {
			fmt.Fprintf(&b, "- %s", r.URL)
			if r.Description != "" {
				fmt.Fprintf(&b, " (%s)", r.Description)
			}
			b.WriteString("\n")
		}
	}
	if len(state.GlobalConfig) > 0 {
		payload, _ := json.Marshal(state.GlobalConfig)
		fmt.Fprintf(&b, "Session defaults: %s\n", payload)
	}
	if state.LastTask != nil {
		payload, _ := json.Marshal(state.LastTask)
		fmt.Fprintf(&b, "Most recent task: %s\n", payload)
	}
	if tail > 0 && len(state.StepResults) > 0 {
		start := len(state.StepResults) - tail
		if start < 0 {
			start = 0
		}
		b.WriteString("Earlier step results:\n")
		for _, r := range state.StepResults[start:] {
			payload, _ := json.Marshal(r)
			fmt.Fprintf(&b, "- %s\n", payload)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "Context:\n" + b.String()
}
