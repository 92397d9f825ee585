package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/shopspring/decimal"
)

// LedgerOperation is one of the four balance transitions an account supports.
type LedgerOperation string

const (
	OpReserve LedgerOperation = "RESERVE"
	OpRelease LedgerOperation = "RELEASE"
	OpDebit   LedgerOperation = "DEBIT"
	OpCredit  LedgerOperation = "CREDIT"
)

// IsValid reports whether op is a known ledger operation.
func (op LedgerOperation) IsValid() bool {
	switch op {
	case OpReserve, OpRelease, OpDebit, OpCredit:
		return true
	}
	return false
}

// Well-known reasons written to the balance history.
const (
	ReasonTransfer         = "TRANSFER"
	ReasonTransferReversal = "TRANSFER_REVERSAL"
	ReasonDeposit          = "DEPOSIT"
)

// BalanceHistoryEntry is the append-only audit record written with every mutation.
// Entries of one account are totally ordered by Version.
type BalanceHistoryEntry struct {
	EntryID          string          `json:"entryID"`
	AccountID        string          `json:"accountID"`
	Operation        LedgerOperation `json:"operation"`
	Reason           string          `json:"reason"`
	CorrelationID    string          `json:"correlationID"`
	Amount           decimal.Decimal `json:"amount"`
	Delta            decimal.Decimal `json:"delta"` // change of Balance; zero for RESERVE and RELEASE
	PreviousBalance  decimal.Decimal `json:"previousBalance"`
	NewBalance       decimal.Decimal `json:"newBalance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// LedgerRequest is the input of every ledger operation.
type LedgerRequest struct {
	AccountID     string
	Amount        decimal.Decimal
	CorrelationID string
	Reason        string
}

// Validate rejects requests that can never be applied.
func (r LedgerRequest) Validate() error {
	if r.AccountID == "" {
		return fmt.Errorf("%w: account id is required", apperrors.ErrValidation)
	}
	if r.CorrelationID == "" {
		return fmt.Errorf("%w: correlation id is required", apperrors.ErrValidation)
	}
	return ValidateAmount(r.Amount)
}

// LedgerResult is what a ledger operation reports back to its caller.
type LedgerResult struct {
	AccountID        string          `json:"accountID"`
	Operation        LedgerOperation `json:"operation"`
	PreviousBalance  decimal.Decimal `json:"previousBalance"`
	NewBalance       decimal.Decimal `json:"newBalance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	Version          int64           `json:"version"`
	Replayed         bool            `json:"replayed"`
}

// ResultFromEntry rebuilds the result of an operation from its history entry.
func ResultFromEntry(e BalanceHistoryEntry, replayed bool) LedgerResult {
	return LedgerResult{
		AccountID:        e.AccountID,
		Operation:        e.Operation,
		PreviousBalance:  e.PreviousBalance,
		NewBalance:       e.NewBalance,
		AvailableBalance: e.AvailableBalance,
		Version:          e.Version,
		Replayed:         replayed,
	}
}

// CorrelationEntries are the history entries of one account sharing a correlation id,
// ordered by Version ascending.
type CorrelationEntries []BalanceHistoryEntry

// Latest returns the most recent entry written by op.
func (c CorrelationEntries) Latest(op LedgerOperation) (BalanceHistoryEntry, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Operation == op {
			return c[i], true
		}
	}
	return BalanceHistoryEntry{}, false
}

// HeldAmount is the part of the reservation still active for this correlation id.
// A debit consumes the whole reservation; a release gives back its amount.
func (c CorrelationEntries) HeldAmount() decimal.Decimal {
	held := decimal.Zero
	for _, e := range c {
		switch e.Operation {
		case OpReserve:
			held = held.Add(e.Amount)
		case OpRelease:
			held = decimal.Max(held.Sub(e.Amount), decimal.Zero)
		case OpDebit:
			held = decimal.Zero
		}
	}
	return held
}

func (op LedgerOperation) allowedOn(status AccountStatus) bool {
	switch op {
	case OpReserve, OpDebit:
		return status == AccountActive
	case OpRelease, OpCredit:
		return status == AccountActive || status == AccountSuspended || status == AccountDormant
	}
	return false
}

// ApplyLedgerOperation computes the next state of acc for op. It is pure: the caller
// is responsible for holding the account lock, checking idempotency and persisting
// both return values in one commit.
func ApplyLedgerOperation(acc Account, op LedgerOperation, req LedgerRequest, prior CorrelationEntries, entryID string, now time.Time) (Account, BalanceHistoryEntry, error) {
	if err := req.Validate(); err != nil {
		return acc, BalanceHistoryEntry{}, err
	}
	if !op.allowedOn(acc.Status) {
		return acc, BalanceHistoryEntry{}, fmt.Errorf("%w: %s on %s account %s", apperrors.ErrAccountInactive, op, acc.Status, acc.AccountID)
	}

	next := acc
	amount := req.Amount
	delta := decimal.Zero

	switch op {
	case OpReserve:
		if acc.AvailableBalance.LessThan(amount) {
			return acc, BalanceHistoryEntry{}, fmt.Errorf("%w: available %s, requested %s", apperrors.ErrInsufficientFunds, acc.AvailableBalance, amount)
		}
		next.AvailableBalance = acc.AvailableBalance.Sub(amount)

	case OpRelease:
		held := prior.HeldAmount()
		if !held.IsPositive() {
			return acc, BalanceHistoryEntry{}, fmt.Errorf("%w: account %s correlation %s", apperrors.ErrNoSuchReservation, acc.AccountID, req.CorrelationID)
		}
		if amount.GreaterThan(held) {
			return acc, BalanceHistoryEntry{}, fmt.Errorf("%w: release of %s exceeds reserved %s", apperrors.ErrValidation, amount, held)
		}
		next.AvailableBalance = decimal.Min(acc.AvailableBalance.Add(amount), acc.Balance)

	case OpDebit:
		// funds held for this correlation id already left AvailableBalance
		spendable := acc.AvailableBalance.Add(prior.HeldAmount())
		if spendable.LessThan(amount) || acc.Balance.LessThan(amount) {
			return acc, BalanceHistoryEntry{}, fmt.Errorf("%w: available %s, requested %s", apperrors.ErrInsufficientFunds, spendable, amount)
		}
		next.Balance = acc.Balance.Sub(amount)
		next.AvailableBalance = spendable.Sub(amount)
		delta = amount.Neg()

	case OpCredit:
		next.Balance = acc.Balance.Add(amount)
		next.AvailableBalance = acc.AvailableBalance.Add(amount)
		delta = amount

	default:
		return acc, BalanceHistoryEntry{}, fmt.Errorf("%w: unknown ledger operation %q", apperrors.ErrValidation, op)
	}

	if !next.CheckInvariant() {
		return acc, BalanceHistoryEntry{}, fmt.Errorf("%w: %s would break balance invariant on account %s", apperrors.ErrInternal, op, acc.AccountID)
	}

	next.Version = acc.Version + 1
	next.LastUpdatedAt = now

	reason := req.Reason
	if reason == "" {
		reason = string(op)
	}

	entry := BalanceHistoryEntry{
		EntryID:          entryID,
		AccountID:        acc.AccountID,
		Operation:        op,
		Reason:           reason,
		CorrelationID:    req.CorrelationID,
		Amount:           amount,
		Delta:            delta,
		PreviousBalance:  acc.Balance,
		NewBalance:       next.Balance,
		AvailableBalance: next.AvailableBalance,
		Version:          next.Version,
		CreatedAt:        now,
	}
	return next, entry, nil
}
