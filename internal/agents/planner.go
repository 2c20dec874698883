package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/creative-orchestrator/internal/models"
	"github.com/example/creative-orchestrator/internal/providers/llm"
	"github.com/example/creative-orchestrator/internal/tools"
)

const plannerFallbackReply = "I couldn't put together a plan for that request. Could you rephrase it, or break it into smaller pieces?"

// Planner turns a creative request into a validated step plan. A plan that
// cannot be parsed or references an unknown team member never reaches the
// supervisor; the turn ends with a friendly message instead.
type Planner struct {
	Client  llm.Client
	Catalog *tools.Catalog
	Prepare Preparer
	Logger  *slog.Logger
}

func (p *Planner) Name() StageName { return StagePlanner }

func (p *Planner) Run(ctx context.Context, state *models.ConversationState) (Outcome, error) {
	if p.Prepare != nil {
		p.Prepare.Prepare(ctx, state)
	}

	history := append([]models.Message{}, state.History...)
	if block := contextBlock(state, 0); block != "" {
		history = append(history, models.Message{Role: models.RoleUser, Content: block})
	}

	prompt := plannerPrompt(plannerRoles(p.Catalog), roleBlurbs())
	resp, err := p.Client.Invoke(ctx, prompt, history, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("planner: %w", err)
	}

	plan, reasons := p.parsePlan(resp.Text)
	if plan == nil {
		reason := strings.Join(reasons, "; ")
		p.Logger.Warn("plan rejected", "reason", reason)
		reply := p.polish(ctx, reason)
		Emit(ctx, "message", reply)
		return Outcome{
			Next: StageEnd,
			Delta: Delta{
				Messages: []models.Message{{Role: models.RoleAssistant, Name: "planner", Content: reply}},
			},
		}, nil
	}

	Emit(ctx, "plan", plan)
	return Outcome{
		Next:  StageSupervisor,
		Delta: Delta{Plan: plan},
	}, nil
}

// parsePlan decodes and validates the raw plan. On success the returned plan
// has every executor rewritten to its canonical catalog name; on failure the
// second return carries every internal reason found, never shown to the user
// verbatim.
func (p *Planner) parsePlan(raw string) (*models.Plan, []string) {
	text := normalizeJSONObject(raw)
	var plan models.Plan
	if err := json.Unmarshal([]byte(text), &plan); err != nil {
		return nil, []string{fmt.Sprintf("plan is not valid JSON: %v", err)}
	}
	if len(plan.Steps) == 0 {
		return nil, []string{"plan has no steps"}
	}
	var reasons []string
	for i := range plan.Steps {
		role, ok := p.Catalog.ResolveRole(plan.Steps[i].Executor)
		if !ok {
			reasons = append(reasons, fmt.Sprintf("step %d names unknown executor %q", i+1, plan.Steps[i].Executor))
			continue
		}
		if role != models.RoleReporter && len(p.Catalog.CapabilitiesFor(role)) == 0 {
			reasons = append(reasons, fmt.Sprintf("step %d assigned to %s, which has no usable capability", i+1, role))
			continue
		}
		plan.Steps[i].Executor = role
		if strings.TrimSpace(plan.Steps[i].Description) == "" {
			reasons = append(reasons, fmt.Sprintf("step %d has an empty description", i+1))
		}
	}
	if len(reasons) > 0 {
		return nil, reasons
	}
	return &plan, nil
}

// polish asks the model for a user-facing phrasing of an internal failure
// reason. Any error falls back to the canned reply; the turn still ends
// gracefully.
func (p *Planner) polish(ctx context.Context, reason string) string {
	history := []models.Message{{Role: models.RoleUser, Content: "Internal reason: " + reason}}
	resp, err := p.Client.Invoke(ctx, errorPolishPrompt, history, nil)
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		return plannerFallbackReply
	}
	return strings.TrimSpace(resp.Text)
}

// plannerRoles lists the delegable roles for the prompt, reporter excluded:
// the reporter always runs, it is never planned.
func plannerRoles(c *tools.Catalog) []string {
	var out []string
	for _, r := range models.TeamMembers {
		if r == models.RoleReporter {
			continue
		}
		if _, ok := c.ResolveRole(r); ok {
			out = append(out, r)
		}
	}
	return out
}

// normalizeJSONObject strips code fences and extracts the first top-level
// JSON object from free text.
func normalizeJSONObject(s string) string {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```")
		if idx := strings.IndexByte(t, '\n'); idx != -1 {
			t = t[idx+1:]
		}
		if j := strings.LastIndex(t, "```"); j != -1 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}
	if !strings.HasPrefix(t, "{") {
		if obj := extractJSONObject(t); obj != "" {
			return obj
		}
	}
	return t
}

func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
