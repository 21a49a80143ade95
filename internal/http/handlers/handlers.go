// Package handlers implements the HTTP surface over the hone domain
// packages: accounts/transactions/tags/rules, subscriptions/alerts,
// insights, receipts, reports, the backup engine, AI call metrics, and the
// tool-calling chat endpoint.
package handlers

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/hone/internal/ai"
	"github.com/jmylchreest/hone/internal/backup"
	"github.com/jmylchreest/hone/internal/orchestrator"
	"github.com/jmylchreest/hone/internal/repository"
	"github.com/jmylchreest/hone/internal/router"
	"github.com/jmylchreest/hone/internal/version"
)

// Handlers aggregates every resource handler group behind the routes
// package's registration call.
type Handlers struct {
	Repos        *repository.Repositories
	Backend      ai.Backend
	Router       *router.Router
	Registry     *orchestrator.Registry
	Orchestrator *orchestrator.Orchestrator
	BackupEngine *backup.Engine
	db           *sql.DB
}

// New builds a Handlers aggregate.
func New(repos *repository.Repositories, backend ai.Backend, r *router.Router, registry *orchestrator.Registry, orch *orchestrator.Orchestrator, backupEng *backup.Engine, db *sql.DB) *Handlers {
	return &Handlers{Repos: repos, Backend: backend, Router: r, Registry: registry, Orchestrator: orch, BackupEngine: backupEng, db: db}
}

// HealthCheckOutput represents the health check response.
type HealthCheckOutput struct {
	Body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
}

// HealthCheck returns the health status of the API, including a
// best-effort AI backend check.
func (h *Handlers) HealthCheck(ctx context.Context, _ *struct{}) (*HealthCheckOutput, error) {
	out := &HealthCheckOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = version.Get().Short()
	if h.Backend != nil {
		if err := h.Backend.HealthCheck(ctx); err != nil {
			out.Body.Status = "degraded"
		}
	}
	return out, nil
}

// LivezOutput represents a liveness probe response.
type LivezOutput struct {
	Body struct {
		Status string `json:"status" doc:"Liveness status"`
	}
}

// Livez is the container liveness probe endpoint.
func (h *Handlers) Livez(ctx context.Context, _ *struct{}) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// ReadyzOutput represents a readiness probe response.
type ReadyzOutput struct {
	Body struct {
		Status string `json:"status" doc:"Readiness status"`
	}
}

// Readyz is the container readiness probe endpoint; it checks database
// connectivity.
func (h *Handlers) Readyz(ctx context.Context, _ *struct{}) (*ReadyzOutput, error) {
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			return nil, huma.Error503ServiceUnavailable("database unavailable: " + err.Error())
		}
	}
	out := &ReadyzOutput{}
	out.Body.Status = "ok"
	return out, nil
}
