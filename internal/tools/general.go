package tools

import (
	"context"
	"fmt"
)

// GetTaskStatus polls a previously created generation task until it settles.
// Which backend it queries depends on the tool that created the task, taken
// from the last-task snapshot carried on the context.
type GetTaskStatus struct {
	Resolver *Resolver
}

func (t *GetTaskStatus) Name() string { return "get_task_status" }

func (t *GetTaskStatus) Description() string {
	return "Check whether a generation task has finished and fetch its result URL."
}

func (t *GetTaskStatus) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{"type": "string", "description": "Id returned when the task was created."},
		},
		"required": []string{"task_id"},
	}
}

func (t *GetTaskStatus) Execute(ctx context.Context, args map[string]any) (any, error) {
	taskID := stringArg(args, "task_id", "")
	if taskID == "" {
		if snap := lastTaskFrom(ctx); snap != nil {
			taskID = snap.TaskID
		}
	}
	if taskID == "" {
		return nil, fmt.Errorf("get_task_status: no task_id given and no prior task this session")
	}

	toolName := ""
	if snap := lastTaskFrom(ctx); snap != nil && snap.TaskID == taskID {
		toolName = snap.ToolName
	}

	res := t.Resolver.Resolve(ctx, taskID, toolName)
	switch {
	case res.Resolved():
		return map[string]any{"status": "success", "result_url": res.URL}, nil
	case res.Sentinel != "":
		return map[string]any{"status": "pending", "message": res.Sentinel}, nil
	default:
		return map[string]any{
			"status":  res.Failure.Status,
			"code":    res.Failure.Code,
			"message": res.Failure.Message,
		}, nil
	}
}

// UpdateGlobalConfig merges key/value defaults into the session config so
// later generation calls pick them up without the user repeating themselves.
type UpdateGlobalConfig struct{}

func (t *UpdateGlobalConfig) Name() string { return "update_global_config" }

func (t *UpdateGlobalConfig) Description() string {
	return "Set session-wide generation defaults, e.g. aspect_ratio or resolution for all later tasks."
}

func (t *UpdateGlobalConfig) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"config": map[string]any{
				"type":        "object",
				"description": "Key/value pairs to merge into the session defaults.",
			},
		},
		"required": []string{"config"},
	}
}

func (t *UpdateGlobalConfig) Execute(ctx context.Context, args map[string]any) (any, error) {
	cfg, ok := args["config"].(map[string]any)
	if !ok || len(cfg) == 0 {
		return nil, fmt.Errorf("update_global_config: config object is required")
	}
	sink := configSinkFrom(ctx)
	if sink == nil {
		return nil, fmt.Errorf("update_global_config: no session to update")
	}
	sink(cfg)
	return map[string]any{"status": "updated", "applied": cfg}, nil
}
