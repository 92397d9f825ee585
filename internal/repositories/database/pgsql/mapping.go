package pgsql

import (
	"encoding/json"
	"fmt"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	"github.com/SscSPs/funds_transfer_app/internal/models"
)

// Helper to convert domain.Account to models.Account for DB storage
func toModelAccount(d domain.Account) models.Account {
	return models.Account{
		AccountID:        d.AccountID,
		OwnerID:          d.OwnerID,
		CurrencyCode:     d.CurrencyCode,
		Balance:          d.Balance,
		AvailableBalance: d.AvailableBalance,
		Status:           string(d.Status),
		Version:          d.Version,
		AuditFields: models.AuditFields{
			CreatedAt:     d.CreatedAt,
			LastUpdatedAt: d.LastUpdatedAt,
		},
	}
}

// Helper to convert models.Account from DB to domain.Account
func toDomainAccount(m models.Account) domain.Account {
	return domain.Account{
		AccountID:        m.AccountID,
		OwnerID:          m.OwnerID,
		CurrencyCode:     m.CurrencyCode,
		Balance:          m.Balance,
		AvailableBalance: m.AvailableBalance,
		Status:           domain.AccountStatus(m.Status),
		Version:          m.Version,
		AuditFields: domain.AuditFields{
			CreatedAt:     m.CreatedAt,
			LastUpdatedAt: m.LastUpdatedAt,
		},
	}
}

func toModelEntry(d domain.BalanceHistoryEntry) models.BalanceHistoryEntry {
	return models.BalanceHistoryEntry{
		EntryID:          d.EntryID,
		AccountID:        d.AccountID,
		Operation:        string(d.Operation),
		Reason:           d.Reason,
		CorrelationID:    d.CorrelationID,
		Amount:           d.Amount,
		Delta:            d.Delta,
		PreviousBalance:  d.PreviousBalance,
		NewBalance:       d.NewBalance,
		AvailableBalance: d.AvailableBalance,
		Version:          d.Version,
		CreatedAt:        d.CreatedAt,
	}
}

func toDomainEntry(m models.BalanceHistoryEntry) domain.BalanceHistoryEntry {
	return domain.BalanceHistoryEntry{
		EntryID:          m.EntryID,
		AccountID:        m.AccountID,
		Operation:        domain.LedgerOperation(m.Operation),
		Reason:           m.Reason,
		CorrelationID:    m.CorrelationID,
		Amount:           m.Amount,
		Delta:            m.Delta,
		PreviousBalance:  m.PreviousBalance,
		NewBalance:       m.NewBalance,
		AvailableBalance: m.AvailableBalance,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
	}
}

func toModelTransaction(d domain.Transaction) models.Transaction {
	return models.Transaction{
		TransactionID:        d.TransactionID,
		IdempotencyKey:       d.IdempotencyKey,
		SourceAccountID:      d.SourceAccountID,
		DestinationAccountID: d.DestinationAccountID,
		Amount:               d.Amount,
		CurrencyCode:         d.CurrencyCode,
		Type:                 string(d.Type),
		Status:               string(d.Status),
		ReferenceNumber:      d.ReferenceNumber,
		Description:          d.Description,
		FailureReason:        d.FailureReason,
		ReversalOfID:         d.ReversalOfID,
		ReversedByID:         d.ReversedByID,
		CompletedAt:          d.CompletedAt,
		AuditFields: models.AuditFields{
			CreatedAt:     d.CreatedAt,
			LastUpdatedAt: d.LastUpdatedAt,
		},
	}
}

func toDomainTransaction(m models.Transaction) domain.Transaction {
	return domain.Transaction{
		TransactionID:        m.TransactionID,
		IdempotencyKey:       m.IdempotencyKey,
		SourceAccountID:      m.SourceAccountID,
		DestinationAccountID: m.DestinationAccountID,
		Amount:               m.Amount,
		CurrencyCode:         m.CurrencyCode,
		Type:                 domain.TransactionType(m.Type),
		Status:               domain.TransactionStatus(m.Status),
		ReferenceNumber:      m.ReferenceNumber,
		Description:          m.Description,
		FailureReason:        m.FailureReason,
		ReversalOfID:         m.ReversalOfID,
		ReversedByID:         m.ReversedByID,
		CompletedAt:          m.CompletedAt,
		AuditFields: domain.AuditFields{
			CreatedAt:     m.CreatedAt,
			LastUpdatedAt: m.LastUpdatedAt,
		},
	}
}

func toModelSaga(d domain.Saga) (models.Saga, error) {
	payload, err := json.Marshal(d.Payload)
	if err != nil {
		return models.Saga{}, fmt.Errorf("encoding saga payload: %w", err)
	}
	return models.Saga{
		SagaID:              d.SagaID,
		TransactionID:       d.TransactionID,
		Type:                string(d.Type),
		CurrentStep:         string(d.CurrentStep),
		Status:              string(d.Status),
		Payload:             payload,
		ErrorDetail:         d.ErrorDetail,
		NeedsReconciliation: d.NeedsReconciliation,
		AuditFields: models.AuditFields{
			CreatedAt:     d.CreatedAt,
			LastUpdatedAt: d.LastUpdatedAt,
		},
	}, nil
}

func toDomainSaga(m models.Saga) (domain.Saga, error) {
	var payload domain.SagaPayload
	if err := json.Unmarshal(m.Payload, &payload); err != nil {
		return domain.Saga{}, fmt.Errorf("decoding payload of saga %s: %w", m.SagaID, err)
	}
	return domain.Saga{
		SagaID:              m.SagaID,
		TransactionID:       m.TransactionID,
		Type:                domain.SagaType(m.Type),
		CurrentStep:         domain.SagaStep(m.CurrentStep),
		Status:              domain.SagaStatus(m.Status),
		Payload:             payload,
		ErrorDetail:         m.ErrorDetail,
		NeedsReconciliation: m.NeedsReconciliation,
		AuditFields: domain.AuditFields{
			CreatedAt:     m.CreatedAt,
			LastUpdatedAt: m.LastUpdatedAt,
		},
	}, nil
}
