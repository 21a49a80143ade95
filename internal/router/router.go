// Package router selects a model per AI task type and tracks per-model
// health so a failing model falls back without operator intervention.
package router

import (
	"embed"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed default.toml
var defaultConfigFS embed.FS

// TaskType names one of the router's task buckets.
type TaskType string

const (
	TaskFastClassification    TaskType = "fast_classification"
	TaskStructuredExtraction  TaskType = "structured_extraction"
	TaskReasoning             TaskType = "reasoning"
	TaskVision                TaskType = "vision"
	TaskNarrative             TaskType = "narrative"
)

// TaskConfig is the per-task routing configuration.
type TaskConfig struct {
	Model      string        `toml:"model"`
	Timeout    time.Duration `toml:"timeout"`
	MaxRetries int           `toml:"max_retries"`
}

// Config is the router's two-layer configuration: on-disk override wins
// over the embedded compiled-in default.
type Config struct {
	DefaultModel     string                  `toml:"default_model"`
	FallbackModel    string                  `toml:"fallback_model"`
	FailureThreshold int                     `toml:"failure_threshold"`
	RecoveryWait     time.Duration           `toml:"recovery_wait"`
	Tasks            map[TaskType]TaskConfig `toml:"tasks"`
}

func defaultConfig() (*Config, error) {
	raw, err := defaultConfigFS.ReadFile("default.toml")
	if err != nil {
		return nil, err
	}
	var cfg Config
	if _, err := toml.Decode(string(raw), &cfg); err != nil {
		return nil, err
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.RecoveryWait == 0 {
		cfg.RecoveryWait = 5 * time.Minute
	}
	return &cfg, nil
}

// modelHealth tracks a model's consecutive-failure state.
type modelHealth struct {
	mu                   sync.Mutex
	consecutiveFailures  int
	firstUnhealthyAt     time.Time
}

// Router selects a model per task and tracks health independently of
// config reloads.
type Router struct {
	overridePath string

	cfg    atomic.Pointer[Config]
	health sync.Map // model name -> *modelHealth
}

// New creates a router, loading overridePath if it exists, else the
// embedded default.
func New(overridePath string) (*Router, error) {
	r := &Router{overridePath: overridePath}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-parses configuration in place without dropping health counters.
func (r *Router) Reload() error { return r.reload() }

func (r *Router) reload() error {
	cfg, err := defaultConfig()
	if err != nil {
		return err
	}
	if r.overridePath != "" {
		if raw, err := os.ReadFile(r.overridePath); err == nil {
			var override Config
			if md, decErr := toml.Decode(string(raw), &override); decErr == nil {
				cfg = &override
				if cfg.FailureThreshold == 0 {
					cfg.FailureThreshold = 3
				}
				if !md.IsDefined("recovery_wait") {
					cfg.RecoveryWait = 5 * time.Minute
				}
			}
		}
	}
	r.cfg.Store(cfg)
	return nil
}

// SelectModel returns the model to use for a task: the task-configured
// model if healthy, else the default if healthy, else the fallback if
// healthy, else the default (letting the call fail loud).
func (r *Router) SelectModel(task TaskType) string {
	cfg := r.cfg.Load()
	if tc, ok := cfg.Tasks[task]; ok && tc.Model != "" && r.IsHealthy(tc.Model) {
		return tc.Model
	}
	if r.IsHealthy(cfg.DefaultModel) {
		return cfg.DefaultModel
	}
	if cfg.FallbackModel != "" && r.IsHealthy(cfg.FallbackModel) {
		return cfg.FallbackModel
	}
	return cfg.DefaultModel
}

// TaskConfig returns the resolved per-task timeout/retry settings.
func (r *Router) TaskConfig(task TaskType) TaskConfig {
	cfg := r.cfg.Load()
	if tc, ok := cfg.Tasks[task]; ok {
		return tc
	}
	return TaskConfig{Model: cfg.DefaultModel, Timeout: 30 * time.Second, MaxRetries: 1}
}

// RecordSuccess resets a model's failure counter.
func (r *Router) RecordSuccess(model string) {
	h := r.healthFor(model)
	h.mu.Lock()
	h.consecutiveFailures = 0
	h.firstUnhealthyAt = time.Time{}
	h.mu.Unlock()
}

// RecordFailure increments a model's consecutive-failure counter.
func (r *Router) RecordFailure(model string) {
	cfg := r.cfg.Load()
	h := r.healthFor(model)
	h.mu.Lock()
	h.consecutiveFailures++
	if h.consecutiveFailures >= cfg.FailureThreshold && h.firstUnhealthyAt.IsZero() {
		h.firstUnhealthyAt = time.Now()
	}
	h.mu.Unlock()
}

// IsHealthy reports whether model is currently usable: healthy until it
// accumulates failure_threshold consecutive failures, then unhealthy until
// recovery_wait has elapsed since the first unhealthy transition.
func (r *Router) IsHealthy(model string) bool {
	cfg := r.cfg.Load()
	h := r.healthFor(model)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.consecutiveFailures < cfg.FailureThreshold {
		return true
	}
	return !h.firstUnhealthyAt.IsZero() && time.Since(h.firstUnhealthyAt) >= cfg.RecoveryWait
}

func (r *Router) healthFor(model string) *modelHealth {
	v, _ := r.health.LoadOrStore(model, &modelHealth{})
	return v.(*modelHealth)
}
