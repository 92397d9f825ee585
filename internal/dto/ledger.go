package dto

import (
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// OpenAccountRequest defines the data needed to open a ledger account.
type OpenAccountRequest struct {
	OwnerID      string `json:"ownerID" binding:"required"`
	CurrencyCode string `json:"currencyCode" binding:"required,iso4217"`
}

// ChangeAccountStatusRequest defines the body of PATCH /ledger/accounts/:id/status.
type ChangeAccountStatusRequest struct {
	Status domain.AccountStatus `json:"status" binding:"required,oneof=PENDING ACTIVE SUSPENDED DORMANT CLOSED"`
}

// AccountResponse defines the data returned for an account.
type AccountResponse struct {
	AccountID        string               `json:"accountID"`
	OwnerID          string               `json:"ownerID"`
	CurrencyCode     string               `json:"currencyCode"`
	Balance          decimal.Decimal      `json:"balance"`
	AvailableBalance decimal.Decimal      `json:"availableBalance"`
	Status           domain.AccountStatus `json:"status"`
	Version          int64                `json:"version"`
	CreatedAt        time.Time            `json:"createdAt"`
	LastUpdatedAt    time.Time            `json:"lastUpdatedAt"`
}

// ToAccountResponse converts a domain.Account to AccountResponse DTO
func ToAccountResponse(acc *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:        acc.AccountID,
		OwnerID:          acc.OwnerID,
		CurrencyCode:     acc.CurrencyCode,
		Balance:          acc.Balance,
		AvailableBalance: acc.AvailableBalance,
		Status:           acc.Status,
		Version:          acc.Version,
		CreatedAt:        acc.CreatedAt,
		LastUpdatedAt:    acc.LastUpdatedAt,
	}
}

// ToDomainAccount converts the wire form back, used by the remote ledger client.
func (r AccountResponse) ToDomainAccount() *domain.Account {
	return &domain.Account{
		AccountID:        r.AccountID,
		OwnerID:          r.OwnerID,
		CurrencyCode:     r.CurrencyCode,
		Balance:          r.Balance,
		AvailableBalance: r.AvailableBalance,
		Status:           r.Status,
		Version:          r.Version,
		AuditFields: domain.AuditFields{
			CreatedAt:     r.CreatedAt,
			LastUpdatedAt: r.LastUpdatedAt,
		},
	}
}

// LedgerOperationRequest is the body of the reserve, release, debit and credit endpoints.
type LedgerOperationRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"positive_decimal"`
	CorrelationID string          `json:"correlationID" binding:"required"`
	Reason        string          `json:"reason"`
}

// ToLedgerRequest attaches the account id from the path.
func (r LedgerOperationRequest) ToLedgerRequest(accountID string) domain.LedgerRequest {
	return domain.LedgerRequest{
		AccountID:     accountID,
		Amount:        r.Amount,
		CorrelationID: r.CorrelationID,
		Reason:        r.Reason,
	}
}

// HistoryEntryResponse defines the data returned for one balance history entry.
type HistoryEntryResponse struct {
	EntryID          string                 `json:"entryID"`
	Operation        domain.LedgerOperation `json:"operation"`
	Reason           string                 `json:"reason"`
	CorrelationID    string                 `json:"correlationID"`
	Amount           decimal.Decimal        `json:"amount"`
	Delta            decimal.Decimal        `json:"delta"`
	PreviousBalance  decimal.Decimal        `json:"previousBalance"`
	NewBalance       decimal.Decimal        `json:"newBalance"`
	AvailableBalance decimal.Decimal        `json:"availableBalance"`
	Version          int64                  `json:"version"`
	CreatedAt        time.Time              `json:"createdAt"`
}

// ToHistoryEntryResponses converts history entries to their response DTOs.
func ToHistoryEntryResponses(entries []domain.BalanceHistoryEntry) []HistoryEntryResponse {
	res := make([]HistoryEntryResponse, len(entries))
	for i, e := range entries {
		res[i] = HistoryEntryResponse{
			EntryID:          e.EntryID,
			Operation:        e.Operation,
			Reason:           e.Reason,
			CorrelationID:    e.CorrelationID,
			Amount:           e.Amount,
			Delta:            e.Delta,
			PreviousBalance:  e.PreviousBalance,
			NewBalance:       e.NewBalance,
			AvailableBalance: e.AvailableBalance,
			Version:          e.Version,
			CreatedAt:        e.CreatedAt,
		}
	}
	return res
}

// HistoryPageResponse is a page of balance history.
type HistoryPageResponse struct {
	Items []HistoryEntryResponse `json:"items"`
	Page  int                    `json:"page"`
	Size  int                    `json:"size"`
	Total int                    `json:"total"`
}
