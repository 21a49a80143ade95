package ai

import (
	"fmt"

	"github.com/jmylchreest/hone/internal/prompts"
	"github.com/jmylchreest/hone/internal/router"
)

// Backend variant names, matched against the AI_BACKEND environment
// variable.
const (
	BackendNative          = "native"
	BackendOpenAICompatible = "openai_compatible"
	BackendMock            = "mock"
)

// Config describes how to construct a Backend from environment-sourced
// settings. Host/APIKey apply only to the non-mock variants.
type Config struct {
	Variant string
	Host    string // base URL for openai_compatible (e.g. a local Ollama server)
	APIKey  string
}

// NewBackend builds the configured Backend variant, wired to promptLib,
// r, and metrics. Falls back to the mock variant when Variant is empty, so
// the system stays usable with no AI provider configured; an unrecognized
// Variant is an error.
func NewBackend(cfg Config, promptLib *prompts.Library, r *router.Router, metrics MetricSink) (Backend, error) {
	switch cfg.Variant {
	case BackendNative:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("native AI backend requires an API key")
		}
		return New(NewNativeCompleter(cfg.APIKey), promptLib, r, metrics), nil
	case BackendOpenAICompatible:
		return New(NewOpenAICompatibleCompleter(cfg.Host, cfg.APIKey), promptLib, r, metrics), nil
	case BackendMock, "":
		return New(NewMockCompleter(), promptLib, r, metrics), nil
	default:
		return nil, fmt.Errorf("unknown AI backend variant %q", cfg.Variant)
	}
}
