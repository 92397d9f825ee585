package domain

import (
	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of a ledger account.
type AccountStatus string

const (
	AccountPending   AccountStatus = "PENDING"
	AccountActive    AccountStatus = "ACTIVE"
	AccountSuspended AccountStatus = "SUSPENDED"
	AccountDormant   AccountStatus = "DORMANT"
	AccountClosed    AccountStatus = "CLOSED"
)

// IsValid reports whether s is one of the known statuses.
func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountPending, AccountActive, AccountSuspended, AccountDormant, AccountClosed:
		return true
	}
	return false
}

// accountTransitions lists the lifecycle moves an operator may request.
var accountTransitions = map[AccountStatus][]AccountStatus{
	AccountPending:   {AccountActive, AccountClosed},
	AccountActive:    {AccountSuspended, AccountDormant, AccountClosed},
	AccountSuspended: {AccountActive, AccountClosed},
	AccountDormant:   {AccountActive, AccountClosed},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	for _, allowed := range accountTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Account is the authoritative balance record of a single ledger account.
//
// Balance is the ledger truth; AvailableBalance is Balance minus the funds held
// by active reservations. 0 <= AvailableBalance <= Balance at all times.
type Account struct {
	AccountID        string          `json:"accountID"`
	OwnerID          string          `json:"ownerID"`
	CurrencyCode     string          `json:"currencyCode"`
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	Status           AccountStatus   `json:"status"`
	Version          int64           `json:"version"`
	AuditFields
}

// HeldFunds is the amount currently locked by reservations.
func (a Account) HeldFunds() decimal.Decimal {
	return a.Balance.Sub(a.AvailableBalance)
}

// CheckInvariant verifies 0 <= AvailableBalance <= Balance.
func (a Account) CheckInvariant() bool {
	return !a.AvailableBalance.IsNegative() && a.AvailableBalance.LessThanOrEqual(a.Balance)
}
