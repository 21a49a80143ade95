// Package mw provides HTTP middleware for the hone API.
package mw

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CachePolicy defines caching behavior for a route pattern.
type CachePolicy struct {
	// Pattern is the route pattern to match (prefix match by default).
	Pattern string
	// CacheControl is the Cache-Control header value to set.
	CacheControl string
}

// CacheConfig holds the cache middleware configuration.
type CacheConfig struct {
	// Policies are the cache policies to apply, matched in order.
	Policies []CachePolicy
	// DefaultPolicy is applied when no policy matches (empty = no header set).
	DefaultPolicy string
}

const (
	cacheMaxAgeShort  = 30 * time.Second
	cacheMaxAgeMedium = 5 * time.Minute
)

// DefaultCacheConfig returns sensible cache defaults for the API: health is
// cacheable briefly, probes are never cached, and report/dashboard reads
// (which only change as the background worker runs) get a short cache so a
// busy UI doesn't refetch them on every render.
func DefaultCacheConfig() CacheConfig {
	shortSecs := int(cacheMaxAgeShort.Seconds())
	mediumSecs := int(cacheMaxAgeMedium.Seconds())

	return CacheConfig{
		DefaultPolicy: "private, no-cache",
		Policies: []CachePolicy{
			{Pattern: "/api/v1/health", CacheControl: fmt.Sprintf("public, max-age=%d", shortSecs)},

			// Liveness/readiness probes must always reflect real-time state.
			{Pattern: "/healthz", CacheControl: "no-store"},
			{Pattern: "/readyz", CacheControl: "no-store"},

			// Aggregates only change when the worker cycle runs.
			{Pattern: "/api/v1/reports/", CacheControl: fmt.Sprintf("private, max-age=%d", mediumSecs)},
			{Pattern: "/api/v1/dashboard", CacheControl: fmt.Sprintf("private, max-age=%d", shortSecs)},
		},
	}
}

// Cache returns middleware that sets Cache-Control headers based on route patterns.
// For non-GET/HEAD requests, it sets "no-store" to prevent caching of mutations.
// For GET/HEAD requests, it matches against configured policies in order.
func Cache(cfg CacheConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Non-GET/HEAD requests should never be cached
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				w.Header().Set("Cache-Control", "no-store")
				next.ServeHTTP(w, r)
				return
			}

			// Find matching policy (first match wins)
			path := r.URL.Path
			for _, policy := range cfg.Policies {
				if matchesPattern(path, policy.Pattern) {
					w.Header().Set("Cache-Control", policy.CacheControl)
					next.ServeHTTP(w, r)
					return
				}
			}

			// Apply default policy if no match and default is set
			if cfg.DefaultPolicy != "" {
				w.Header().Set("Cache-Control", cfg.DefaultPolicy)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// matchesPattern checks if the path matches the pattern.
// Supports prefix matching and substring matching for patterns like "/stream".
func matchesPattern(path, pattern string) bool {
	// Exact match or prefix match
	if path == pattern || strings.HasPrefix(path, pattern) {
		return true
	}
	// Substring match for patterns that might appear mid-path (e.g., "/stream")
	if strings.Contains(path, pattern) {
		return true
	}
	return false
}
