package service

import (
	"fmt"

	"github.com/ayo6706/shop-treasury/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// initiatorFor picks who authorises a debit of target. Personal owners sign
// their own withdrawals; the system acts for business accounts.
func initiatorFor(target uuid.UUID) uuid.UUID {
	if domain.IsBusiness(target) || domain.IsSystem(target) {
		return domain.SystemIdentifier
	}
	return target
}

func validateAmount(amount decimal.Decimal) error {
	if err := domain.ValidateAmount(amount); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
