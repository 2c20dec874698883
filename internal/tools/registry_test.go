package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapability struct {
	name string
}

func (f *fakeCapability) Name() string               { return f.name }
func (f *fakeCapability) Description() string        { return f.name }
func (f *fakeCapability) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (f *fakeCapability) Execute(_ context.Context, _ map[string]any) (any, error) {
	return map[string]any{"task_id": "t-" + f.name}, nil
}

func newTestRegistry(names ...string) *Registry {
	r := NewRegistry()
	for _, n := range names {
		r.Register(&fakeCapability{name: n})
	}
	return r
}

func capNames(caps []Capability) []string {
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		out = append(out, c.Name())
	}
	return out
}

func TestForRoleUsesCatalogBindings(t *testing.T) {
	r := newTestRegistry(
		"text_to_image_create_task",
		"image_edit_create_task",
		"text_to_video_create_task",
		"get_task_status",
	)
	catalog := NewCatalog(map[string][]string{
		"image_executor":   {"text_to_image_create_task", "image_edit_create_task"},
		"video_executor":   {"text_to_video_create_task"},
		"general_executor": {"get_task_status"},
	})

	assert.ElementsMatch(t,
		[]string{"text_to_image_create_task", "image_edit_create_task"},
		capNames(r.ForRole("image_executor", catalog)))
	assert.ElementsMatch(t,
		[]string{"text_to_video_create_task"},
		capNames(r.ForRole("video_executor", catalog)))
	assert.ElementsMatch(t,
		[]string{"get_task_status"},
		capNames(r.ForRole("general_executor", catalog)))
}

func TestForRoleFallsBackToKeywordFilter(t *testing.T) {
	r := newTestRegistry(
		"text_to_image_create_task",
		"image_edit_create_task",
		"text_to_video_create_task",
	)
	catalog := NewCatalog(map[string][]string{})

	got := capNames(r.ForRole("video_executor", catalog))
	assert.Equal(t, []string{"text_to_video_create_task"}, got)

	// A role without the executor suffix has no keyword to filter by.
	assert.Empty(t, r.ForRole("reporter", catalog))
}

func TestResolveRoleFuzzyMatching(t *testing.T) {
	catalog := NewCatalog(map[string][]string{
		"image_executor": {"text_to_image_create_task"},
		"video_executor": {"text_to_video_create_task"},
	})

	cases := map[string]string{
		"image_executor":     "image_executor",
		"image":              "image_executor",
		"Video":              "video_executor",
		"the_video_executor": "video_executor",
	}
	for in, want := range cases {
		got, ok := catalog.ResolveRole(in)
		require.True(t, ok, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, ok := catalog.ResolveRole("audio_executor")
	assert.False(t, ok)
}

func TestResolveRoleIdempotent(t *testing.T) {
	catalog := NewCatalog(map[string][]string{"image_executor": nil})
	first, ok := catalog.ResolveRole("image")
	require.True(t, ok)
	second, ok := catalog.ResolveRole(first)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestExtractTaskID(t *testing.T) {
	cases := []struct {
		name   string
		result any
		want   string
	}{
		{"map with task_id", map[string]any{"task_id": "abc-123"}, "abc-123"},
		{"map with id", map[string]any{"id": "xyz"}, "xyz"},
		{"task_id wins over id", map[string]any{"task_id": "a", "id": "b"}, "a"},
		{"json object string", `{"task_id": "enc-1", "status": "ok"}`, "enc-1"},
		{"bare string", "  bare-id  ", "bare-id"},
		{"map without id", map[string]any{"status": "ok"}, ""},
		{"unsupported type", 42, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractTaskID(tc.result))
		})
	}
}

func TestToolNamePredicates(t *testing.T) {
	assert.True(t, IsImageEditTool("image_edit_create_task"))
	assert.True(t, IsImageEditTool("image_edit_proxy_create_task"))
	assert.False(t, IsImageEditTool("text_to_image_create_task"))

	assert.True(t, IsProxyTool("image_edit_proxy_create_task"))
	assert.False(t, IsProxyTool("image_edit_create_task"))
	assert.False(t, IsProxyTool("get_task_status"))
}
