package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/dto"
	"github.com/SscSPs/funds_transfer_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ledgerHandler exposes the account ledger over HTTP. Remote orchestrators reach it through
// the HTTP ledger transport.
type ledgerHandler struct {
	ledger portssvc.AccountLedger
}

func newLedgerHandler(ledger portssvc.AccountLedger) *ledgerHandler {
	return &ledgerHandler{ledger: ledger}
}

func registerLedgerRoutes(rg *gin.RouterGroup, ledger portssvc.AccountLedger) {
	h := newLedgerHandler(ledger)

	accounts := rg.Group("/ledger/accounts")
	{
		accounts.POST("", h.openAccount)
		accounts.GET("/:id", h.getAccount)
		accounts.PATCH("/:id/status", h.changeStatus)
		accounts.GET("/:id/history", h.listHistory)
		accounts.POST("/:id/reserve", h.operation(domain.OpReserve))
		accounts.POST("/:id/release", h.operation(domain.OpRelease))
		accounts.POST("/:id/debit", h.operation(domain.OpDebit))
		accounts.POST("/:id/credit", h.operation(domain.OpCredit))
		accounts.GET("/:id/operations/:correlationID/:operation", h.findOperation)
	}
}

// openAccount godoc
// @Summary Open a ledger account
// @Description Creates a PENDING account with zero balance for an existing customer.
// @Tags ledger
// @Accept  json
// @Produce  json
// @Param   account body dto.OpenAccountRequest true "Account details"
// @Success 201 {object} dto.AccountResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /ledger/accounts [post]
func (h *ledgerHandler) openAccount(c *gin.Context) {
	var req dto.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	account, err := h.ledger.OpenAccount(c.Request.Context(), req.OwnerID, req.CurrencyCode)
	if err != nil {
		respondError(c, err, "Failed to open account")
		return
	}
	c.JSON(http.StatusCreated, dto.ToAccountResponse(account))
}

// getAccount godoc
// @Summary Get a ledger account
// @Tags ledger
// @Produce  json
// @Param   id path string true "Account ID"
// @Success 200 {object} dto.AccountResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /ledger/accounts/{id} [get]
func (h *ledgerHandler) getAccount(c *gin.Context) {
	account, err := h.ledger.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve account")
		return
	}
	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

// changeStatus godoc
// @Summary Change the status of a ledger account
// @Tags ledger
// @Accept  json
// @Produce  json
// @Param   id path string true "Account ID"
// @Param   status body dto.ChangeAccountStatusRequest true "New status"
// @Success 200 {object} dto.AccountResponse
// @Failure 409 {object} dto.ErrorResponse "Transition not allowed"
// @Router /ledger/accounts/{id}/status [patch]
func (h *ledgerHandler) changeStatus(c *gin.Context) {
	var req dto.ChangeAccountStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	account, err := h.ledger.ChangeAccountStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err, "Failed to change account status")
		return
	}
	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Account status changed",
		slog.String("account_id", account.AccountID),
		slog.String("status", string(account.Status)))
	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

// listHistory godoc
// @Summary List the balance history of an account
// @Tags ledger
// @Produce  json
// @Param   id path string true "Account ID"
// @Param   page query int false "Zero based page" default(0)
// @Param   size query int false "Page size" default(20)
// @Success 200 {object} dto.HistoryPageResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /ledger/accounts/{id}/history [get]
func (h *ledgerHandler) listHistory(c *gin.Context) {
	var params dto.PageParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondBindError(c, err)
		return
	}

	entries, total, err := h.ledger.ListHistory(c.Request.Context(), c.Param("id"), params.Page, params.Size)
	if err != nil {
		respondError(c, err, "Failed to list balance history")
		return
	}
	c.JSON(http.StatusOK, dto.HistoryPageResponse{
		Items: dto.ToHistoryEntryResponses(entries),
		Page:  params.Page,
		Size:  params.Size,
		Total: total,
	})
}

func (h *ledgerHandler) call(ctx context.Context, op domain.LedgerOperation, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	switch op {
	case domain.OpReserve:
		return h.ledger.Reserve(ctx, req)
	case domain.OpRelease:
		return h.ledger.Release(ctx, req)
	case domain.OpDebit:
		return h.ledger.Debit(ctx, req)
	default:
		return h.ledger.Credit(ctx, req)
	}
}

// operation builds the handler of one balance operation.
// @Summary Apply a balance operation
// @Description Replays the earlier result when the operation was already applied for the correlation id.
// @Tags ledger
// @Accept  json
// @Produce  json
// @Param   id path string true "Account ID"
// @Param   operation body dto.LedgerOperationRequest true "Amount and correlation id"
// @Success 200 {object} domain.LedgerResult
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse "Insufficient funds, no such reservation or inactive account"
// @Router /ledger/accounts/{id}/reserve [post]
// @Router /ledger/accounts/{id}/release [post]
// @Router /ledger/accounts/{id}/debit [post]
// @Router /ledger/accounts/{id}/credit [post]
func (h *ledgerHandler) operation(op domain.LedgerOperation) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.LedgerOperationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		result, err := h.call(c.Request.Context(), op, req.ToLedgerRequest(c.Param("id")))
		if err != nil {
			respondError(c, err, "Ledger "+strings.ToLower(string(op))+" failed")
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// findOperation godoc
// @Summary Look up a previously applied ledger operation
// @Description Returns 404 when the operation was never applied for the correlation id.
// @Tags ledger
// @Produce  json
// @Param   id path string true "Account ID"
// @Param   correlationID path string true "Correlation ID"
// @Param   operation path string true "RESERVE, RELEASE, DEBIT or CREDIT"
// @Success 200 {object} domain.LedgerResult
// @Failure 404 {object} dto.ErrorResponse
// @Router /ledger/accounts/{id}/operations/{correlationID}/{operation} [get]
func (h *ledgerHandler) findOperation(c *gin.Context) {
	op := domain.LedgerOperation(strings.ToUpper(c.Param("operation")))
	result, err := h.ledger.FindOperation(c.Request.Context(), c.Param("id"), c.Param("correlationID"), op)
	if err != nil {
		respondError(c, err, "Failed to look up ledger operation")
		return
	}
	c.JSON(http.StatusOK, result)
}
