package domain

import (
	"strings"

	"github.com/shopspring/decimal"

	"vdl-backend/pkg/errors"
)

// RevenueScale is the number of fractional digits kept for revenue amounts
const RevenueScale = 4

// ParseAmount parses a decimal revenue amount such as "0.0125".
// Empty, malformed and negative inputs are validation errors.
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, errors.NewValidationError("revenue amount is required", nil)
	}

	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, errors.NewValidationError("invalid revenue amount", map[string]interface{}{
			"amount": raw,
		})
	}
	if amount.IsNegative() {
		return decimal.Zero, errors.NewValidationError("revenue amount must not be negative", map[string]interface{}{
			"amount": raw,
		})
	}

	return amount.Round(RevenueScale), nil
}
