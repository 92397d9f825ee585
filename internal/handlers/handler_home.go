package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ReadinessCheck reports whether a dependency (database, redis) is reachable.
type ReadinessCheck func(ctx context.Context) error

// getHealth is the liveness check.
func getHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// getReady runs every readiness check and answers 503 when one of them fails.
func getReady(checks map[string]ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				middleware.GetLoggerFromCtx(ctx).Warn("Readiness check failed",
					slog.String("dependency", name),
					slog.String("error", err.Error()))
				body[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "ok"
		}
		c.JSON(status, body)
	}
}
