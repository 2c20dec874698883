package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/creative-orchestrator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogCoversAllRoles(t *testing.T) {
	cfg := Default()
	for _, role := range models.TeamMembers {
		_, ok := cfg.Catalog[role]
		assert.True(t, ok, "role %s missing from default catalog", role)
	}
	assert.Empty(t, cfg.Catalog[models.RoleReporter])
	assert.NotEmpty(t, cfg.Catalog[models.RoleImageExecutor])
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Poll.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.PollDelay())
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	doc := `
[server]
addr = ":9090"

[poll]
max_retries = 5
delay_seconds = 0.5
grace_attempts = 2
grace_delay_seconds = 0.1
max_turn_iterations = 16

[policy]
preserve_on_plain_text = false

[workers]
background_limit = 2

[catalog]
video_executor = []
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Poll.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.PollDelay())
	assert.False(t, cfg.Policy.PreserveOnPlainText)
	assert.Empty(t, cfg.Catalog[models.RoleVideoExecutor])
	// Untouched roles keep their defaults.
	assert.NotEmpty(t, cfg.Catalog[models.RoleImageExecutor])
}

func TestLoadRejectsInvalidPoll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[poll]\nmax_retries = 0\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
