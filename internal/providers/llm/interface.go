// Package llm abstracts the language-model invocation used by every stage.
// A stage hands over system instructions, the conversation history, and an
// optional capability set; the response carries free text and zero or more
// capability-invocation requests. How the provider implements that (chat
// completion, structured decoding) is its own business.
package llm

import (
	"context"

	"github.com/example/creative-orchestrator/internal/models"
)

// ToolSpec describes one capability offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON-schema object describing the argument map.
	Parameters map[string]any
}

// Response is what an invocation returns: free text, and/or requested
// capability invocations.
type Response struct {
	Text      string
	ToolCalls []models.ToolCall
}

// Client is the provider boundary every stage talks through.
type Client interface {
	Invoke(ctx context.Context, system string, history []models.Message, tools []ToolSpec) (*Response, error)
}

// Streamer is implemented by clients that can deliver text incrementally.
// The reporter uses it when available; everything still works without it.
type Streamer interface {
	InvokeStream(ctx context.Context, system string, history []models.Message, onDelta func(chunk string)) (*Response, error)
}
