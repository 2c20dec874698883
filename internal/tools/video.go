package tools

import (
	"context"
	"fmt"
)

const (
	modelTextToVideo       = "sora-2-text-to-video"
	modelFirstFrameToVideo = "sora-2-image-to-video"
)

const defaultVideoAspect = "landscape_16_9"

// TextToVideo submits a text-to-video job and returns its task identifier.
type TextToVideo struct {
	Jobs JobsAPI
}

func (t *TextToVideo) Name() string { return "text_to_video_create_task" }

func (t *TextToVideo) Description() string {
	return "Generate a short video from a text prompt. Returns a task id; the result is fetched later."
}

func (t *TextToVideo) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt":       map[string]any{"type": "string", "description": "What the video should show."},
			"aspect_ratio": map[string]any{"type": "string", "description": "landscape_16_9 or portrait_9_16."},
			"n_frames":     map[string]any{"type": "integer", "description": "Clip length in frames."},
		},
		"required": []string{"prompt"},
	}
}

func (t *TextToVideo) Execute(ctx context.Context, args map[string]any) (any, error) {
	input := map[string]any{
		"prompt":       stringArg(args, "prompt", ""),
		"aspect_ratio": stringArg(args, "aspect_ratio", defaultVideoAspect),
	}
	if n, ok := args["n_frames"]; ok {
		input["n_frames"] = n
	}
	id, err := t.Jobs.CreateTask(ctx, modelTextToVideo, input)
	if err != nil {
		return nil, err
	}
	return createdTask(id, modelTextToVideo), nil
}

// FirstFrameToVideo animates a still image into a short clip.
type FirstFrameToVideo struct {
	Jobs JobsAPI
}

func (t *FirstFrameToVideo) Name() string { return "first_frame_to_video_create_task" }

func (t *FirstFrameToVideo) Description() string {
	return "Animate an existing image into a short video, using it as the first frame."
}

func (t *FirstFrameToVideo) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt":       map[string]any{"type": "string", "description": "How the scene should move."},
			"image_url":    map[string]any{"type": "string", "description": "URL of the first frame."},
			"aspect_ratio": map[string]any{"type": "string"},
			"n_frames":     map[string]any{"type": "integer"},
		},
		"required": []string{"prompt", "image_url"},
	}
}

func (t *FirstFrameToVideo) Execute(ctx context.Context, args map[string]any) (any, error) {
	imageURL := stringArg(args, "image_url", "")
	if imageURL == "" {
		return nil, fmt.Errorf("first_frame_to_video: image_url is required")
	}
	input := map[string]any{
		"prompt":       stringArg(args, "prompt", ""),
		"image_url":    imageURL,
		"aspect_ratio": stringArg(args, "aspect_ratio", defaultVideoAspect),
	}
	if n, ok := args["n_frames"]; ok {
		input["n_frames"] = n
	}
	id, err := t.Jobs.CreateTask(ctx, modelFirstFrameToVideo, input)
	if err != nil {
		return nil, err
	}
	return createdTask(id, modelFirstFrameToVideo), nil
}
