package dto

import (
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// TransferCommand is the input of a transfer execution.
type TransferCommand struct {
	IdempotencyKey       string
	SourceAccountID      string
	DestinationAccountID string
	Amount               decimal.Decimal
	CurrencyCode         string
	Description          string
}

// ToTransaction builds the transaction a command would create. Ids, status and
// timestamps are left for the caller.
func (c TransferCommand) ToTransaction() domain.Transaction {
	return domain.Transaction{
		IdempotencyKey:       c.IdempotencyKey,
		SourceAccountID:      c.SourceAccountID,
		DestinationAccountID: c.DestinationAccountID,
		Amount:               c.Amount,
		CurrencyCode:         c.CurrencyCode,
		Type:                 domain.TransactionTypeTransfer,
		Description:          c.Description,
	}
}

// TransferResult is the outcome reported to the caller of a transfer.
type TransferResult struct {
	TransactionID   string                   `json:"transactionID"`
	ReferenceNumber string                   `json:"referenceNumber"`
	Status          domain.TransactionStatus `json:"status"`
	FailureReason   string                   `json:"failureReason,omitempty"`
	CompletedAt     *time.Time               `json:"completedAt,omitempty"`
	Replayed        bool                     `json:"replayed"`
}

// ToTransferResult converts a stored transaction into a TransferResult.
func ToTransferResult(txn *domain.Transaction, replayed bool) *TransferResult {
	return &TransferResult{
		TransactionID:   txn.TransactionID,
		ReferenceNumber: txn.ReferenceNumber,
		Status:          txn.Status,
		FailureReason:   txn.FailureReason,
		CompletedAt:     txn.CompletedAt,
		Replayed:        replayed,
	}
}

// CreateTransferRequest defines the body of POST /transfers.
// The idempotency key may also come from the Idempotency-Key header.
type CreateTransferRequest struct {
	IdempotencyKey       string          `json:"idempotencyKey"`
	SourceAccountID      string          `json:"sourceAccountID" binding:"required,uuid"`
	DestinationAccountID string          `json:"destinationAccountID" binding:"required,uuid,nefield=SourceAccountID"`
	Amount               decimal.Decimal `json:"amount" binding:"positive_decimal"`
	CurrencyCode         string          `json:"currencyCode" binding:"required,iso4217"`
	Description          string          `json:"description" binding:"max=255"`
}

// ToCommand converts the request into a TransferCommand.
func (r CreateTransferRequest) ToCommand(idempotencyKey string) TransferCommand {
	return TransferCommand{
		IdempotencyKey:       idempotencyKey,
		SourceAccountID:      r.SourceAccountID,
		DestinationAccountID: r.DestinationAccountID,
		Amount:               r.Amount,
		CurrencyCode:         r.CurrencyCode,
		Description:          r.Description,
	}
}

// ReverseTransferRequest defines the body of POST /transfers/:id/reversal.
type ReverseTransferRequest struct {
	IdempotencyKey string `json:"idempotencyKey"`
	Description    string `json:"description" binding:"max=255"`
}

// TransferResponse defines the data returned for a transaction.
type TransferResponse struct {
	TransactionID        string                   `json:"transactionID"`
	ReferenceNumber      string                   `json:"referenceNumber"`
	SourceAccountID      string                   `json:"sourceAccountID"`
	DestinationAccountID string                   `json:"destinationAccountID"`
	Amount               decimal.Decimal          `json:"amount"`
	CurrencyCode         string                   `json:"currencyCode"`
	Type                 domain.TransactionType   `json:"type"`
	Status               domain.TransactionStatus `json:"status"`
	Description          string                   `json:"description,omitempty"`
	FailureReason        string                   `json:"failureReason,omitempty"`
	ReversalOfID         *string                  `json:"reversalOfID,omitempty"`
	ReversedByID         *string                  `json:"reversedByID,omitempty"`
	CreatedAt            time.Time                `json:"createdAt"`
	CompletedAt          *time.Time               `json:"completedAt,omitempty"`
}

// ToTransferResponse converts a domain.Transaction to TransferResponse DTO.
func ToTransferResponse(txn *domain.Transaction) TransferResponse {
	return TransferResponse{
		TransactionID:        txn.TransactionID,
		ReferenceNumber:      txn.ReferenceNumber,
		SourceAccountID:      txn.SourceAccountID,
		DestinationAccountID: txn.DestinationAccountID,
		Amount:               txn.Amount,
		CurrencyCode:         txn.CurrencyCode,
		Type:                 txn.Type,
		Status:               txn.Status,
		Description:          txn.Description,
		FailureReason:        txn.FailureReason,
		ReversalOfID:         txn.ReversalOfID,
		ReversedByID:         txn.ReversedByID,
		CreatedAt:            txn.CreatedAt,
		CompletedAt:          txn.CompletedAt,
	}
}

// ToTransferResponses converts a slice of domain.Transaction to []TransferResponse.
func ToTransferResponses(txns []domain.Transaction) []TransferResponse {
	responses := make([]TransferResponse, len(txns))
	for i, txn := range txns {
		responses[i] = ToTransferResponse(&txn)
	}
	return responses
}

// TransactionHistoryPage is a page of an account's transaction history.
type TransactionHistoryPage struct {
	Items []domain.Transaction
	Page  int
	Size  int
	Total int
}

// TransactionHistoryResponse is the JSON form of TransactionHistoryPage.
type TransactionHistoryResponse struct {
	Items []TransferResponse `json:"items"`
	Page  int                `json:"page"`
	Size  int                `json:"size"`
	Total int                `json:"total"`
}

// PageParams defines page based query parameters.
type PageParams struct {
	Page int `form:"page,default=0" binding:"min=0"`
	Size int `form:"size,default=20" binding:"min=1,max=100"`
}
