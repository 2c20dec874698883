package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/creative-orchestrator/internal/models"
)

const coordinatorPrompt = `You are the front door of a creative studio assistant that generates and
edits images and videos.

Handle small talk, greetings and questions about your abilities yourself, in
the user's language. When the user asks for any creative work - generating,
editing or transforming images or videos, checking on a previous task, or
changing generation defaults - do NOT attempt it yourself. Instead reply with
exactly the single token:

handoff_to_planner

No other text before or after the token. For anything that is not a creative
request, answer directly and conversationally.`

func plannerPrompt(roles []string, roleBlurbs map[string]string) string {
	var team strings.Builder
	for _, r := range roles {
		fmt.Fprintf(&team, "- %s: %s\n", r, roleBlurbs[r])
	}
	return fmt.Sprintf(`You are a planner for a creative studio. Break the user's request into an
execution plan for the team below. Output ONLY a JSON object, no prose, no
code fences.

Team members:
%s
Schema:
{"thought": "your reasoning", "title": "short plan title", "steps": [
  {"executor": "<team member>", "title": "...", "description": "what exactly to do, carrying every detail of the user's request"}
]}

Rules:
- Every step's executor MUST be one of the team members listed above.
- Keep the plan minimal: one step for a single generation or edit.
- Checking on the status of an earlier task is a single general step.
- Put concrete parameters the user mentioned (aspect ratio, resolution,
  style, subject) into the step description verbatim.`, team.String())
}

const supervisorPrompt = `You supervise a creative team working through a plan. Given the plan and the
results so far, route to next team member, or finish.

Respond with ONLY a JSON object: {"next": "<team member>"} to delegate, or
{"next": "FINISH"} when every step of the plan has a result.

Rules:
- Follow the plan's step order; route to the executor of the next unfinished
  step.
- A failed step is still finished; do not retry it yourself.
- When all steps have results, respond {"next": "FINISH"}.`

func reporterPrompt(plan *models.Plan, results []models.StepResult) string {
	var b strings.Builder
	b.WriteString(`You are the reporter of a creative studio. Write the final reply to the
user: friendly, in the user's language, summarising what was done.

Include every result URL as a plain link. If a task is still processing, say
so and tell the user they can ask for the status later. If something failed,
apologise briefly and say what they could try instead. Never mention team
member names, tool names or internal identifiers.

`)
	if plan != nil {
		fmt.Fprintf(&b, "Plan: %s\n", plan.Title)
	}
	b.WriteString("Results:\n")
	for _, r := range results {
		payload, _ := json.Marshal(r)
		b.WriteString("- ")
		b.Write(payload)
		b.WriteString("\n")
	}
	return b.String()
}

const errorPolishPrompt = `You are a helpful creative studio assistant. Something went wrong while
preparing the user's request. Rewrite the internal reason below as one or two
short, friendly sentences for the user, in the user's language. Suggest
rephrasing or simplifying the request. Never mention internal component
names, executor names, JSON, or error codes.`

func executorPrompt(role string) string {
	focus := map[string]string{
		models.RoleImageExecutor:   "image generation and editing",
		models.RoleVideoExecutor:   "video generation",
		models.RoleGeneralExecutor: "task status checks and session configuration",
	}[role]
	return fmt.Sprintf(`You are a specialist for %s. You are given one step of a plan. Call exactly
one of your tools to carry it out, filling the arguments from the step
description and the context block. Use reference image URLs from the context
when the task edits or animates an existing image. Do not answer in prose
when a tool fits.`, focus)
}

// roleBlurbs describes each role for the planner prompt in capability terms,
// without leaking tool names.
func roleBlurbs() map[string]string {
	return map[string]string{
		models.RoleImageExecutor:   "creates new images from text, edits existing images, removes watermarks",
		models.RoleVideoExecutor:   "creates videos from text or animates a still image",
		models.RoleGeneralExecutor: "checks the status of earlier tasks, updates session-wide generation defaults",
		models.RoleReporter:        "writes the final summary for the user",
	}
}
