package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/dto"
	"github.com/SscSPs/funds_transfer_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// sagaHandler serves the operator endpoints for inspecting and reconciling sagas.
type sagaHandler struct {
	sagaService portssvc.SagaOperatorSvc
}

func registerSagaRoutes(rg *gin.RouterGroup, ss portssvc.SagaOperatorSvc) {
	h := &sagaHandler{sagaService: ss}

	sagas := rg.Group("/sagas")
	{
		sagas.GET("", h.listSagas)
		sagas.GET("/:id", h.getSaga)
		sagas.POST("/:id/reconcile", h.reconcileSaga)
	}
	rg.GET("/transfers/:id/saga", h.getTransferSaga)
}

type listSagasParams struct {
	Reconciliation bool `form:"reconciliation"`
	Limit          int  `form:"limit,default=50" binding:"min=1,max=500"`
}

// listSagas godoc
// @Summary List sagas waiting for manual reconciliation
// @Tags sagas
// @Produce  json
// @Param   reconciliation query bool true "Only sagas flagged for reconciliation"
// @Param   limit query int false "Maximum number of sagas" default(50)
// @Success 200 {array} dto.SagaResponse
// @Router /sagas [get]
func (h *sagaHandler) listSagas(c *gin.Context) {
	var params listSagasParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondBindError(c, err)
		return
	}
	if !params.Reconciliation {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "only reconciliation=true listings are supported",
			Code:  "VALIDATION_ERROR",
		})
		return
	}

	sagas, err := h.sagaService.ListSagasNeedingReconciliation(c.Request.Context(), params.Limit)
	if err != nil {
		respondError(c, err, "Failed to list sagas")
		return
	}
	c.JSON(http.StatusOK, dto.ToSagaResponses(sagas))
}

// getSaga godoc
// @Summary Get a saga by ID
// @Tags sagas
// @Produce  json
// @Param   id path string true "Saga ID"
// @Success 200 {object} dto.SagaResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /sagas/{id} [get]
func (h *sagaHandler) getSaga(c *gin.Context) {
	saga, err := h.sagaService.GetSaga(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve saga")
		return
	}
	c.JSON(http.StatusOK, dto.ToSagaResponse(saga))
}

// getTransferSaga godoc
// @Summary Get the saga driving a transfer
// @Tags sagas
// @Produce  json
// @Param   id path string true "Transaction ID"
// @Success 200 {object} dto.SagaResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /transfers/{id}/saga [get]
func (h *sagaHandler) getTransferSaga(c *gin.Context) {
	saga, err := h.sagaService.GetSagaByTransactionID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve saga")
		return
	}
	c.JSON(http.StatusOK, dto.ToSagaResponse(saga))
}

// reconcileSaga godoc
// @Summary Retry the compensation of a flagged saga
// @Tags sagas
// @Produce  json
// @Param   id path string true "Saga ID"
// @Success 200 {object} dto.SagaResponse
// @Failure 409 {object} dto.ErrorResponse "Saga is not waiting for reconciliation"
// @Router /sagas/{id}/reconcile [post]
func (h *sagaHandler) reconcileSaga(c *gin.Context) {
	sagaID := c.Param("id")
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("saga_id", sagaID))
	logger.Info("Received request to reconcile saga")

	saga, err := h.sagaService.ReconcileSaga(c.Request.Context(), sagaID)
	if err != nil {
		respondError(c, err, "Failed to reconcile saga")
		return
	}
	logger.Info("Saga reconciliation attempted",
		slog.String("status", string(saga.Status)),
		slog.Bool("needs_reconciliation", saga.NeedsReconciliation))
	c.JSON(http.StatusOK, dto.ToSagaResponse(saga))
}
