package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/example/creative-orchestrator/internal/models"
	"github.com/example/creative-orchestrator/internal/tools"
)

const autoLoadedDescription = "Last generation result (Auto-loaded)"

// autoLoadMarker guards the history annotation so a turn with several model
// calls annotates the user message at most once.
const autoLoadMarker = "[Attached: previous result "

// Loader is the cross-turn carryover hook. Before a planning or execution
// model call it decides whether the user's edit request implicitly refers to
// the previous turn's image, and if so resolves that task's result URL and
// attaches it as a reference.
//
// All four gates must hold: it is the first model call of the pair, the user
// supplied no references of their own, the utterance carries no URL, and the
// previous task was an image edit.
type Loader struct {
	Resolver *tools.Resolver
	Logger   *slog.Logger
}

func (l *Loader) Prepare(ctx context.Context, state *models.ConversationState) {
	state.ModelCallCount++

	if state.ModelCallCount%2 != 1 {
		return
	}
	if len(state.References) > 0 {
		return
	}
	last := state.LastUserMessage()
	if last == nil || containsURL(last.Content) {
		return
	}
	snap := state.LastTask
	if snap == nil || !tools.IsImageEditTool(snap.ToolName) {
		return
	}

	res := l.Resolver.Resolve(ctx, snap.TaskID, snap.ToolName)
	if !res.Resolved() {
		l.Logger.Info("previous result not ready, skipping auto-load", "task_id", snap.TaskID)
		return
	}

	state.AddReference(models.Reference{URL: res.URL, Description: autoLoadedDescription})
	if !strings.Contains(last.Content, autoLoadMarker) {
		last.Content = autoLoadMarker + res.URL + "]\n\n" + last.Content
	}
	l.Logger.Info("auto-loaded previous result", "task_id", snap.TaskID, "url", res.URL)
}

func containsURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "http://") || strings.Contains(lower, "https://")
}
