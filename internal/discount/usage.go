package discount

import (
	"github.com/shopspring/decimal"

	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/models"
)

// AggregateUsage rolls a discount's redemption ledger up into summary
// statistics. Filtering (date range, customer) is the caller's job; the
// aggregator operates on whatever record set it receives.
func AggregateUsage(d models.Discount, records []models.DiscountUsage) models.UsageStats {
	stats := models.UsageStats{
		TotalUsed:          len(records),
		UsagePercentage:    decimal.Zero,
		TotalDiscountGiven: decimal.Zero,
		TotalRevenue:       decimal.Zero,
		AverageDiscount:    decimal.Zero,
		CountMismatch:      len(records) != d.UsedCount,
	}

	for _, r := range records {
		stats.TotalDiscountGiven = stats.TotalDiscountGiven.Add(r.DiscountAmount)
		stats.TotalRevenue = stats.TotalRevenue.Add(r.FinalAmount)
	}

	if len(records) > 0 {
		stats.AverageDiscount = stats.TotalDiscountGiven.
			Div(decimal.NewFromInt(int64(len(records)))).
			Round(MinorUnitPlaces)
	}

	if d.UsageLimit != nil {
		remaining := *d.UsageLimit - stats.TotalUsed
		if remaining < 0 {
			remaining = 0
		}
		stats.RemainingQuota = &remaining

		// usage_limit = 0 yields 0% rather than a division error.
		if *d.UsageLimit > 0 {
			stats.UsagePercentage = decimal.NewFromInt(int64(stats.TotalUsed)).
				Mul(oneHundred).
				Div(decimal.NewFromInt(int64(*d.UsageLimit))).
				Round(MinorUnitPlaces)
		}
	}

	return stats
}

// RemainingQuota computes the redemptions left on the discount's own counter.
// Returns nil when no global limit is set.
func RemainingQuota(d models.Discount) *int {
	if d.UsageLimit == nil {
		return nil
	}
	remaining := *d.UsageLimit - d.UsedCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}
