// Package config loads the orchestrator configuration: the capability catalog
// binding executor roles to capability names, polling parameters for the async
// status resolver, and per-deployment reset policies. Secrets (API keys, store
// path) come from the environment, not from this file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/example/creative-orchestrator/internal/models"
)

// Config is the full TOML document.
type Config struct {
	Server  ServerConfig        `toml:"server"`
	Catalog map[string][]string `toml:"catalog"`
	Poll    PollConfig          `toml:"poll"`
	Policy  PolicyConfig        `toml:"policy"`
	Workers WorkerConfig        `toml:"workers"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// PollConfig tunes the bounded poll against the async task store.
type PollConfig struct {
	MaxRetries int `toml:"max_retries"`
	// DelaySeconds is the wait between attempts once a record exists.
	DelaySeconds float64 `toml:"delay_seconds"`
	// GraceAttempts tolerate a record not yet written, at a shorter wait.
	GraceAttempts        int     `toml:"grace_attempts"`
	GraceDelaySeconds    float64 `toml:"grace_delay_seconds"`
	MaxTurnIterationsCap int     `toml:"max_turn_iterations"`
}

// PolicyConfig holds behavior that varies per deployment.
type PolicyConfig struct {
	// PreserveOnPlainText keeps GlobalConfig and the last task snapshot alive
	// across plain-text turns instead of clearing them.
	PreserveOnPlainText bool `toml:"preserve_on_plain_text"`
	// MissingCapabilityTerminates ends the turn instead of routing back to the
	// supervisor when an executor has no usable capability.
	MissingCapabilityTerminates bool `toml:"missing_capability_terminates"`
}

type WorkerConfig struct {
	// BackgroundLimit bounds concurrently running background submissions.
	BackgroundLimit int `toml:"background_limit"`
}

// Default returns the built-in configuration, including the default catalog
// table binding each executor role to its capability names.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Catalog: map[string][]string{
			models.RoleImageExecutor: {
				"text_to_image_create_task",
				"image_edit_create_task",
				"image_edit_proxy_create_task",
				"remove_watermark_create_task",
			},
			models.RoleVideoExecutor: {
				"text_to_video_create_task",
				"first_frame_to_video_create_task",
			},
			models.RoleGeneralExecutor: {
				"get_task_status",
				"update_global_config",
			},
			models.RoleReporter: {},
		},
		Poll: PollConfig{
			MaxRetries:           60,
			DelaySeconds:         2.0,
			GraceAttempts:        3,
			GraceDelaySeconds:    1.0,
			MaxTurnIterationsCap: 32,
		},
		Policy: PolicyConfig{
			PreserveOnPlainText: true,
		},
		Workers: WorkerConfig{BackgroundLimit: 8},
	}
}

// Load reads a TOML file over the defaults. A missing path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Poll.MaxRetries <= 0 {
		return fmt.Errorf("poll.max_retries must be positive, got %d", c.Poll.MaxRetries)
	}
	if c.Poll.DelaySeconds <= 0 {
		return fmt.Errorf("poll.delay_seconds must be positive, got %v", c.Poll.DelaySeconds)
	}
	if c.Workers.BackgroundLimit <= 0 {
		return fmt.Errorf("workers.background_limit must be positive, got %d", c.Workers.BackgroundLimit)
	}
	return nil
}

func (c *Config) PollDelay() time.Duration {
	return time.Duration(c.Poll.DelaySeconds * float64(time.Second))
}

func (c *Config) GraceDelay() time.Duration {
	return time.Duration(c.Poll.GraceDelaySeconds * float64(time.Second))
}
