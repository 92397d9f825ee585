package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/dto"
	"github.com/SscSPs/funds_transfer_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader may carry the idempotency key instead of the request body.
const IdempotencyKeyHeader = "Idempotency-Key"

// transferHandler handles HTTP requests related to transfers.
type transferHandler struct {
	transferService portssvc.TransferSvc
}

func newTransferHandler(ts portssvc.TransferSvc) *transferHandler {
	return &transferHandler{transferService: ts}
}

// registerTransferRoutes registers the transfer routes. createMiddleware runs in front of
// transfer creation only, e.g. a rate limiter.
func registerTransferRoutes(rg *gin.RouterGroup, ts portssvc.TransferSvc, createMiddleware ...gin.HandlerFunc) {
	h := newTransferHandler(ts)
	guarded := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, createMiddleware...), handler)
	}

	transfers := rg.Group("/transfers")
	{
		transfers.POST("", guarded(h.createTransfer)...)
		transfers.GET("/:id", h.getTransfer)
		transfers.POST("/:id/reversal", guarded(h.reverseTransfer)...)
	}
	rg.GET("/accounts/:id/transactions", h.listAccountTransactions)
}

// statusForResult picks the response code of a transfer execution.
func statusForResult(res *dto.TransferResult) int {
	if res.Replayed {
		return http.StatusOK
	}
	switch res.Status {
	case domain.TransactionCompleted:
		return http.StatusCreated
	case domain.TransactionFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusAccepted
	}
}

func idempotencyKey(c *gin.Context, fromBody string) string {
	if key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)); key != "" {
		return key
	}
	return strings.TrimSpace(fromBody)
}

// createTransfer godoc
// @Summary Execute a funds transfer
// @Description Moves funds between two accounts of the same currency. Repeating a request with the same idempotency key returns the original result.
// @Tags transfers
// @Accept  json
// @Produce  json
// @Param   Idempotency-Key header string false "Idempotency key, overrides the body field"
// @Param   transfer body dto.CreateTransferRequest true "Transfer details"
// @Success 201 {object} dto.TransferResult "Completed"
// @Success 200 {object} dto.TransferResult "Replayed"
// @Success 202 {object} dto.TransferResult "Still processing"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.TransferResult "Failed"
// @Router /transfers [post]
func (h *transferHandler) createTransfer(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cmd := req.ToCommand(idempotencyKey(c, req.IdempotencyKey))
	logger = logger.With(slog.String("idempotency_key", cmd.IdempotencyKey))
	logger.Info("Received request to execute transfer",
		slog.String("source_account_id", cmd.SourceAccountID),
		slog.String("destination_account_id", cmd.DestinationAccountID),
		slog.String("amount", cmd.Amount.String()))

	result, err := h.transferService.ExecuteTransfer(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err, "Failed to execute transfer")
		return
	}

	logger.Info("Transfer handled",
		slog.String("transaction_id", result.TransactionID),
		slog.String("status", string(result.Status)),
		slog.Bool("replayed", result.Replayed))
	c.JSON(statusForResult(result), result)
}

// getTransfer godoc
// @Summary Get a transfer by ID
// @Tags transfers
// @Produce  json
// @Param   id path string true "Transaction ID"
// @Success 200 {object} dto.TransferResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /transfers/{id} [get]
func (h *transferHandler) getTransfer(c *gin.Context) {
	txn, err := h.transferService.GetTransfer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve transfer")
		return
	}
	c.JSON(http.StatusOK, dto.ToTransferResponse(txn))
}

// reverseTransfer godoc
// @Summary Reverse a completed transfer
// @Description Moves the funds of a completed transfer back to its source account.
// @Tags transfers
// @Accept  json
// @Produce  json
// @Param   id path string true "Transaction ID of the transfer to reverse"
// @Param   reversal body dto.ReverseTransferRequest false "Reversal details"
// @Success 201 {object} dto.TransferResult
// @Failure 409 {object} dto.ErrorResponse "Transfer cannot be reversed"
// @Router /transfers/{id}/reversal [post]
func (h *transferHandler) reverseTransfer(c *gin.Context) {
	var req dto.ReverseTransferRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	transactionID := c.Param("id")
	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Received request to reverse transfer",
		slog.String("transaction_id", transactionID))

	result, err := h.transferService.ReverseTransfer(c.Request.Context(), transactionID, idempotencyKey(c, req.IdempotencyKey), req.Description)
	if err != nil {
		respondError(c, err, "Failed to reverse transfer")
		return
	}
	c.JSON(statusForResult(result), result)
}

// listAccountTransactions godoc
// @Summary List the transactions of an account
// @Description Transactions where the account is source or destination, newest first.
// @Tags transfers
// @Produce  json
// @Param   id path string true "Account ID"
// @Param   page query int false "Zero based page" default(0)
// @Param   size query int false "Page size" default(20)
// @Success 200 {object} dto.TransactionHistoryResponse
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Router /accounts/{id}/transactions [get]
func (h *transferHandler) listAccountTransactions(c *gin.Context) {
	var params dto.PageParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := h.transferService.ListTransactionHistory(c.Request.Context(), c.Param("id"), params.Page, params.Size)
	if err != nil {
		respondError(c, err, "Failed to list transactions")
		return
	}

	c.JSON(http.StatusOK, dto.TransactionHistoryResponse{
		Items: dto.ToTransferResponses(page.Items),
		Page:  page.Page,
		Size:  page.Size,
		Total: page.Total,
	})
}
