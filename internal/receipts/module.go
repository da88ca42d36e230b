// Package receipts provides the inbound receipt processing bounded context module.
// This file defines the module that encapsulates setup and route registration.
package receipts

import (
	apphttp "receipt_ingest_backend/internal/http"
	"receipt_ingest_backend/platform/logger"
	"receipt_ingest_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the receipts bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	repo    *Repository
	service *Service
}

// NewModule creates and initializes the receipts module with all its dependencies.
func NewModule(pool *pgxpool.Pool, trigger ProcessTrigger, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, trigger, log)
	handler := NewHandler(service, val)

	return &Module{
		handler: handler,
		repo:    repo,
		service: service,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "receipts"
}

// Repository exposes the repository for worker-side wiring.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts receipt routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/receipts")
	group.POST("", m.handler.HandleEnqueue)
	group.GET("/:eventId", m.handler.HandleGetStatus)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
