package llm

import (
	"context"
	"strings"

	"github.com/example/creative-orchestrator/internal/models"
)

// MockClient is used when no real provider is configured. It produces just
// enough structure to exercise the full stage graph offline.
type MockClient struct{}

func (m *MockClient) Invoke(ctx context.Context, system string, history []models.Message, tools []ToolSpec) (*Response, error) {
	last := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleUser {
			last = history[i].Content
			break
		}
	}
	lower := strings.ToLower(last)

	switch {
	case strings.Contains(system, "hand off") || strings.Contains(system, "handoff_to_planner"):
		if strings.Contains(lower, "generate") || strings.Contains(lower, "edit") || strings.Contains(lower, "make") {
			return &Response{Text: "handoff_to_planner"}, nil
		}
		return &Response{Text: "Hello! Tell me what you would like to create."}, nil
	case strings.Contains(system, "execution plan"):
		executor := models.RoleImageExecutor
		if strings.Contains(lower, "video") {
			executor = models.RoleVideoExecutor
		}
		return &Response{Text: `{"thought":"single-step request","title":"Creative task","steps":[{"executor":"` + executor + `","title":"Generate","description":"` + last + `"}]}`}, nil
	case strings.Contains(system, "route to next"):
		for _, role := range models.TeamMembers {
			if strings.Contains(lower, "assigned to "+role) {
				return &Response{Text: `{"next":"` + role + `"}`}, nil
			}
		}
		return &Response{Text: `{"next":"FINISH"}`}, nil
	default:
		if len(tools) > 0 {
			return &Response{ToolCalls: []models.ToolCall{{Name: tools[0].Name, Args: map[string]any{"prompt": last}}}}, nil
		}
		return &Response{Text: "Done."}, nil
	}
}
