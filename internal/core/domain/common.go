package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/shopspring/decimal"
)

// AuditFields holds standard audit information for domain entities.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// MoneyScale is the number of decimal places every stored amount and balance carries.
const MoneyScale = 4

// MaxAmount is the first value that no longer fits a stored amount (16 integer digits).
var MaxAmount = decimal.New(1, 16)

// IsStorableAmount reports whether amount is positive and representable without rounding.
func IsStorableAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() &&
		amount.LessThan(MaxAmount) &&
		amount.Equal(amount.Truncate(MoneyScale))
}

// ValidateAmount rejects amounts that are not positive or that storage would have to round.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", apperrors.ErrValidation)
	}
	if !IsStorableAmount(amount) {
		return fmt.Errorf("%w: amount %s must have at most %d decimal places and stay below %s", apperrors.ErrValidation, amount, MoneyScale, MaxAmount)
	}
	return nil
}
