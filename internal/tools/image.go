package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/example/creative-orchestrator/internal/taskstore"
)

// Backend model identifiers for the generation jobs API.
const (
	modelTextToImage     = "seedream-v4-text-to-image"
	modelImageEdit       = "seedream-v4-edit"
	modelRemoveWatermark = "seedream-v4-remove-watermark"
)

// Image generation defaults, overridable per call or via global config.
const (
	defaultImageSize       = "landscape_16_9"
	defaultProxyImageSize  = "16:9"
	defaultImageResolution = "2K"
	defaultMaxImages       = 1
)

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func stringsArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func createdTask(id, model string) map[string]any {
	return map[string]any{
		"task_id": id,
		"status":  "Task created successfully!",
		"model":   model,
	}
}

// TextToImage submits a text-to-image job and returns its task identifier.
type TextToImage struct {
	Jobs JobsAPI
}

func (t *TextToImage) Name() string { return "text_to_image_create_task" }

func (t *TextToImage) Description() string {
	return "Generate an image from a text prompt. Returns a task id; the result is fetched later."
}

func (t *TextToImage) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt":       map[string]any{"type": "string", "description": "What to draw."},
			"resolution":   map[string]any{"type": "string", "description": "1K, 2K or 4K."},
			"aspect_ratio": map[string]any{"type": "string", "description": "Image size preset, e.g. landscape_16_9."},
			"seed":         map[string]any{"type": "integer"},
		},
		"required": []string{"prompt"},
	}
}

func (t *TextToImage) Execute(ctx context.Context, args map[string]any) (any, error) {
	input := map[string]any{
		"prompt":           stringArg(args, "prompt", ""),
		"image_size":       stringArg(args, "aspect_ratio", defaultImageSize),
		"image_resolution": stringArg(args, "resolution", defaultImageResolution),
		"max_images":       defaultMaxImages,
	}
	id, err := t.Jobs.CreateTask(ctx, modelTextToImage, input)
	if err != nil {
		return nil, err
	}
	return createdTask(id, modelTextToImage), nil
}

// ImageEdit submits an edit of one or more reference images.
type ImageEdit struct {
	Jobs JobsAPI
}

func (t *ImageEdit) Name() string { return "image_edit_create_task" }

func (t *ImageEdit) Description() string {
	return "Edit existing images according to a text prompt. Requires reference image URLs."
}

func (t *ImageEdit) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt":       map[string]any{"type": "string", "description": "The edit to perform."},
			"image_urls":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"seed":         map[string]any{"type": "integer"},
			"resolution":   map[string]any{"type": "string"},
			"aspect_ratio": map[string]any{"type": "string"},
		},
		"required": []string{"prompt", "image_urls", "seed"},
	}
}

func (t *ImageEdit) Execute(ctx context.Context, args map[string]any) (any, error) {
	urls := stringsArg(args, "image_urls")
	if len(urls) == 0 {
		return nil, fmt.Errorf("image_edit: at least one reference image url is required")
	}
	input := map[string]any{
		"prompt":           stringArg(args, "prompt", ""),
		"image_urls":       urls,
		"image_size":       stringArg(args, "aspect_ratio", defaultImageSize),
		"image_resolution": stringArg(args, "resolution", defaultImageResolution),
		"max_images":       defaultMaxImages,
	}
	id, err := t.Jobs.CreateTask(ctx, modelImageEdit, input)
	if err != nil {
		return nil, err
	}
	return createdTask(id, modelImageEdit), nil
}

// RemoveWatermark strips watermarks from existing images.
type RemoveWatermark struct {
	Jobs JobsAPI
}

func (t *RemoveWatermark) Name() string { return "remove_watermark_create_task" }

func (t *RemoveWatermark) Description() string {
	return "Remove watermarks from the given images."
}

func (t *RemoveWatermark) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"image_urls": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"image_urls"},
	}
}

func (t *RemoveWatermark) Execute(ctx context.Context, args map[string]any) (any, error) {
	urls := stringsArg(args, "image_urls")
	if len(urls) == 0 {
		return nil, fmt.Errorf("remove_watermark: at least one image url is required")
	}
	input := map[string]any{
		"prompt":     "remove watermark",
		"image_urls": urls,
		"max_images": defaultMaxImages,
	}
	id, err := t.Jobs.CreateTask(ctx, modelRemoveWatermark, input)
	if err != nil {
		return nil, err
	}
	return createdTask(id, modelRemoveWatermark), nil
}

// ImageEditProxy is the async-create image edit: it mints a local task id,
// writes a placeholder record, hands the slow remote work to the background
// submitter, and returns immediately. The carryover subsystem resolves the
// record from a later turn.
type ImageEditProxy struct {
	Proxy  ProxyAPI
	Store  *taskstore.Store
	Submit *Submitter
	Logger *slog.Logger
}

func (t *ImageEditProxy) Name() string { return "image_edit_proxy_create_task" }

func (t *ImageEditProxy) Description() string {
	return "Advanced image edit through the proxy backend. Slower but higher quality; returns a task id immediately."
}

func (t *ImageEditProxy) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt":       map[string]any{"type": "string", "description": "The edit to perform."},
			"image_urls":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"seed":         map[string]any{"type": "integer"},
			"resolution":   map[string]any{"type": "string"},
			"aspect_ratio": map[string]any{"type": "string"},
		},
		"required": []string{"prompt", "image_urls", "seed"},
	}
}

func (t *ImageEditProxy) Execute(ctx context.Context, args map[string]any) (any, error) {
	urls := stringsArg(args, "image_urls")
	if len(urls) == 0 {
		return nil, fmt.Errorf("image_edit_proxy: at least one reference image url is required")
	}

	id := uuid.NewString()
	if t.Store != nil {
		if err := t.Store.InsertPlaceholder(ctx, id); err != nil {
			t.Logger.Warn("placeholder insert failed", "task_id", id, "error", err)
		}
	}

	req := ProxyRequest{
		Prompt:      stringArg(args, "prompt", ""),
		ImageURLs:   urls,
		AspectRatio: stringArg(args, "aspect_ratio", defaultProxyImageSize),
		Size:        stringArg(args, "resolution", defaultImageResolution),
	}
	t.Submit.Submit("image_edit_proxy:"+id, func(bgCtx context.Context) {
		t.runRemote(bgCtx, id, req)
	})

	return createdTask(id, "image-edit-proxy"), nil
}

func (t *ImageEditProxy) runRemote(ctx context.Context, id string, req ProxyRequest) {
	url, err := t.Proxy.Generate(ctx, req)
	if err != nil {
		t.Logger.Error("proxy generate failed", "task_id", id, "error", err)
		return
	}
	if durable, err := t.Proxy.Transfer(ctx, url); err != nil {
		// The original URL still works; keep it.
		t.Logger.Warn("asset transfer failed, keeping original url", "task_id", id, "error", err)
	} else {
		url = durable
	}
	if t.Store == nil {
		t.Logger.Warn("no task store, result url dropped", "task_id", id)
		return
	}
	if err := t.Store.SetURL(ctx, id, url); err != nil {
		t.Logger.Error("record update failed", "task_id", id, "error", err)
	}
}
