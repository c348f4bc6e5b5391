package discount

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/models"
)

// ErrInvalidConfiguration marks a discount record that violates its own
// invariants. The admin write path rejects these at creation time, so the
// evaluators treat one reaching them as a data bug and fail loudly instead
// of clamping.
var ErrInvalidConfiguration = errors.New("invalid discount configuration")

var oneHundred = decimal.NewFromInt(100)

// CheckConfiguration verifies the structural invariants of a discount record.
// It returns an error wrapping ErrInvalidConfiguration on the first violation.
func CheckConfiguration(d models.Discount) error {
	switch d.DiscountType {
	case models.DiscountPercentage, models.DiscountFixedAmount:
	default:
		return fmt.Errorf("%w: unknown discount_type %q", ErrInvalidConfiguration, d.DiscountType)
	}

	if d.DiscountValue.IsNegative() {
		return fmt.Errorf("%w: negative discount_value %s", ErrInvalidConfiguration, d.DiscountValue)
	}

	if d.DiscountType == models.DiscountPercentage && d.DiscountValue.GreaterThan(oneHundred) {
		return fmt.Errorf("%w: percentage discount_value %s exceeds 100", ErrInvalidConfiguration, d.DiscountValue)
	}

	if d.EndDate.Before(d.StartDate) {
		return fmt.Errorf("%w: end_date precedes start_date", ErrInvalidConfiguration)
	}

	if d.MaxDiscountAmount != nil && d.MaxDiscountAmount.IsNegative() {
		return fmt.Errorf("%w: negative max_discount_amount", ErrInvalidConfiguration)
	}

	return nil
}
