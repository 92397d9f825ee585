package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the accounts row. Version is the optimistic lock column.
type Account struct {
	AccountID        string          `db:"account_id"`
	OwnerID          string          `db:"owner_id"`
	CurrencyCode     string          `db:"currency_code"`
	Balance          decimal.Decimal `db:"balance"`
	AvailableBalance decimal.Decimal `db:"available_balance"`
	Status           string          `db:"status"`
	Version          int64           `db:"version"`
	AuditFields
}

// BalanceHistoryEntry is the balance_history row. The table is append-only.
type BalanceHistoryEntry struct {
	EntryID          string          `db:"entry_id"`
	AccountID        string          `db:"account_id"`
	Operation        string          `db:"operation"`
	Reason           string          `db:"reason"`
	CorrelationID    string          `db:"correlation_id"`
	Amount           decimal.Decimal `db:"amount"`
	Delta            decimal.Decimal `db:"delta"`
	PreviousBalance  decimal.Decimal `db:"previous_balance"`
	NewBalance       decimal.Decimal `db:"new_balance"`
	AvailableBalance decimal.Decimal `db:"available_balance"`
	Version          int64           `db:"version"`
	CreatedAt        time.Time       `db:"created_at"`
}
