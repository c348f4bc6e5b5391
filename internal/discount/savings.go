package discount

import (
	"github.com/shopspring/decimal"

	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/models"
)

// Savings is the result of applying a discount to a candidate order amount.
// finalAmount = originalAmount - discountAmount always holds, and
// 0 <= discountAmount <= originalAmount.
type Savings struct {
	OriginalAmount decimal.Decimal `json:"original_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

// MinorUnitPlaces is the rounding precision for generic currency math.
// Zero-decimal display (IDR) is a formatting concern, handled in money.
const MinorUnitPlaces = 2

// CalculateSavings computes the discount amount and final price for an order
// amount, rounded to two decimal places.
func CalculateSavings(d models.Discount, orderAmount decimal.Decimal) (Savings, error) {
	return CalculateSavingsIn(d, orderAmount, MinorUnitPlaces)
}

// CalculateSavingsIn is CalculateSavings with an explicit minor-unit
// precision (0 for zero-decimal currencies). Rounding is half-up, applied
// once to the final discount amount, never to intermediate ratios.
func CalculateSavingsIn(d models.Discount, orderAmount decimal.Decimal, places int32) (Savings, error) {
	if err := CheckConfiguration(d); err != nil {
		return Savings{}, err
	}

	var amount decimal.Decimal
	switch d.DiscountType {
	case models.DiscountPercentage:
		amount = orderAmount.Mul(d.DiscountValue).Div(oneHundred)
		if d.MaxDiscountAmount != nil {
			amount = decimal.Min(amount, *d.MaxDiscountAmount)
		}
	case models.DiscountFixedAmount:
		// Never discount below zero.
		amount = decimal.Min(d.DiscountValue, orderAmount)
	}

	amount = decimal.Min(amount, orderAmount)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	amount = amount.Round(places)

	return Savings{
		OriginalAmount: orderAmount,
		DiscountAmount: amount,
		FinalAmount:    orderAmount.Sub(amount),
	}, nil
}
