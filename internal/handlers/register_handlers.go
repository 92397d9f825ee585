package handlers

import (
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/gin-gonic/gin"
)

// RouteOptions carries the optional parts of the route setup.
type RouteOptions struct {
	// TransferMiddleware runs in front of transfer creation and reversal, e.g. the rate limiter.
	TransferMiddleware []gin.HandlerFunc
	ReadinessChecks    map[string]ReadinessCheck
}

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	services *portssvc.ServiceContainer,
	opts RouteOptions,
) {
	registerValidators()

	r.GET("/health", getHealth)
	r.GET("/ready", getReady(opts.ReadinessChecks))

	setupAPIV1Routes(r, services, opts)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	services *portssvc.ServiceContainer,
	opts RouteOptions,
) {
	v1 := r.Group("/api/v1")

	registerTransferRoutes(v1, services.Transfer, opts.TransferMiddleware...)
	registerLedgerRoutes(v1, services.Ledger)
	registerSagaRoutes(v1, services.Transfer)
}
