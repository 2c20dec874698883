package tools

import (
	"context"

	"github.com/example/creative-orchestrator/internal/models"
)

// Invocation-scoped values passed from the executor to capabilities through
// context, mirroring how the turn state is otherwise kept out of this
// package.
type ctxKey string

const (
	ctxLastTaskKey   ctxKey = "last_task"
	ctxConfigSinkKey ctxKey = "config_sink"
)

// WithLastTask makes the most recent task snapshot visible to capabilities
// that dispatch on it (the unified status checker).
func WithLastTask(ctx context.Context, snap *models.TaskSnapshot) context.Context {
	return context.WithValue(ctx, ctxLastTaskKey, snap)
}

func lastTaskFrom(ctx context.Context) *models.TaskSnapshot {
	snap, _ := ctx.Value(ctxLastTaskKey).(*models.TaskSnapshot)
	return snap
}

// ConfigSink receives global-config updates requested by a capability.
type ConfigSink func(updates map[string]any)

// WithConfigSink attaches the callback that merges updates into the
// session's global configuration.
func WithConfigSink(ctx context.Context, sink ConfigSink) context.Context {
	return context.WithValue(ctx, ctxConfigSinkKey, sink)
}

func configSinkFrom(ctx context.Context) ConfigSink {
	sink, _ := ctx.Value(ctxConfigSinkKey).(ConfigSink)
	return sink
}
