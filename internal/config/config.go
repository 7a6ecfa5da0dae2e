// Package config builds a single validated Config value from the
// environment (teacher's validating-constructor pattern, generalized
// from ad-hoc os.Getenv calls in cmd/server/main.go to a viper-backed
// env/default merge per spec.md §6 "Environment").
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/partsform/syncengine/internal/entity"
)

// SyncPriority controls global sync parallelism, per spec.md §6.
type SyncPriority string

const (
	SyncPriorityLow  SyncPriority = "low"
	SyncPriorityHigh SyncPriority = "high"
)

// DispatchMode selects how the Scheduler hands fires to the Orchestrator.
type DispatchMode string

const (
	DispatchModeDirect DispatchMode = "direct"
	DispatchModeWorker DispatchMode = "worker"
)

// Config is the engine's full runtime configuration, read once at boot.
type Config struct {
	AdminTokenSecret string // required: the shared bearer token admin routes compare against; no token is signed with it
	PostgresDSN      string
	ElasticsearchURL string
	RedisAddr        string
	DeferredIndexing bool
	SyncPriority     SyncPriority
	ScratchDir       string
	ServerAddr       string
	DispatchMode     DispatchMode
}

// Load reads SYNCENGINE_* environment variables, applies defaults, and
// validates the result. It never guesses past its stated defaults: a
// missing required field or an unrecognized enum value is
// entity.ErrConfigInvalid, not a silently-accepted zero value.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SYNCENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	v.SetDefault("server_addr", ":8080")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("deferred_indexing", true)
	v.SetDefault("sync_priority", string(SyncPriorityHigh))
	v.SetDefault("scratch_dir", os.TempDir())
	v.SetDefault("dispatch_mode", string(DispatchModeDirect))

	cfg := &Config{
		AdminTokenSecret: v.GetString("admin_token_secret"),
		PostgresDSN:      v.GetString("postgres_dsn"),
		ElasticsearchURL: v.GetString("elasticsearch_url"),
		RedisAddr:        v.GetString("redis_addr"),
		DeferredIndexing: v.GetBool("deferred_indexing"),
		SyncPriority:     SyncPriority(v.GetString("sync_priority")),
		ScratchDir:       v.GetString("scratch_dir"),
		ServerAddr:       v.GetString("server_addr"),
		DispatchMode:     DispatchMode(v.GetString("dispatch_mode")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AdminTokenSecret == "" {
		return fmt.Errorf("%w: SYNCENGINE_ADMIN_TOKEN_SECRET is required", entity.ErrConfigInvalid)
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("%w: SYNCENGINE_POSTGRES_DSN is required", entity.ErrConfigInvalid)
	}
	switch c.SyncPriority {
	case SyncPriorityLow, SyncPriorityHigh:
	default:
		return fmt.Errorf("%w: sync_priority must be low or high, got %q", entity.ErrConfigInvalid, c.SyncPriority)
	}
	switch c.DispatchMode {
	case DispatchModeDirect, DispatchModeWorker:
	default:
		return fmt.Errorf("%w: dispatch_mode must be direct or worker, got %q", entity.ErrConfigInvalid, c.DispatchMode)
	}
	if c.DispatchMode == DispatchModeWorker && c.RedisAddr == "" {
		return fmt.Errorf("%w: redis_addr is required when dispatch_mode=worker", entity.ErrConfigInvalid)
	}
	return nil
}

// LowParallelism reports whether the deployment's sync priority caps
// concurrency to the Orchestrator's WebsitePriority tier.
func (c *Config) LowParallelism() bool {
	return c.SyncPriority == SyncPriorityLow
}
