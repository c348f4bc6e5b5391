package discount

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/models"
)

// Target identifies the service, category or barber an order is for.
type Target struct {
	Type models.ApplicableType
	ID   string
}

// Context carries the contextual inputs of an eligibility check. All values
// are supplied by the caller; the evaluator performs no I/O and never reads
// a global clock.
type Context struct {
	Now                time.Time
	OrderAmount        decimal.Decimal
	Target             *Target
	CustomerUsageCount int
	CustomerExpiresAt  *time.Time
}

// Reason is the machine-readable outcome of an eligibility check.
type Reason string

const (
	ReasonEligible             Reason = "eligible"
	ReasonNotActive            Reason = "not_active"
	ReasonMinOrderNotMet       Reason = "min_order_not_met"
	ReasonQuotaExhausted       Reason = "quota_exhausted"
	ReasonCustomerLimitReached Reason = "customer_limit_reached"
	ReasonCustomerGrantExpired Reason = "customer_grant_expired"
	ReasonNotApplicable        Reason = "not_applicable"
)

// Evaluate runs the eligibility rules in order, short-circuiting at the first
// failure, and returns the reason for the outcome. Ineligibility is a normal
// result, not an error. Evaluate never mutates the discount; redemption
// accounting belongs to the checkout flow, which must re-invoke this check
// inside its own transaction before consuming quota.
func Evaluate(d models.Discount, ctx Context) Reason {
	if ResolveStatus(d, ctx.Now) != StatusActive {
		return ReasonNotActive
	}

	if d.MinOrderAmount != nil && ctx.OrderAmount.LessThan(*d.MinOrderAmount) {
		return ReasonMinOrderNotMet
	}

	if d.UsageLimit != nil && d.UsedCount >= *d.UsageLimit {
		return ReasonQuotaExhausted
	}

	if d.CustomerUsageLimit != nil && ctx.CustomerUsageCount >= *d.CustomerUsageLimit {
		return ReasonCustomerLimitReached
	}

	if ctx.CustomerExpiresAt != nil && ctx.Now.After(*ctx.CustomerExpiresAt) {
		return ReasonCustomerGrantExpired
	}

	if d.AppliesTo == models.AppliesToSpecific {
		// A missing target is treated as ineligible, not a fatal error.
		if ctx.Target == nil || !matchesApplicable(d.Applicables, *ctx.Target) {
			return ReasonNotApplicable
		}
	}

	return ReasonEligible
}

// IsEligible reports whether all eligibility checks pass.
func IsEligible(d models.Discount, ctx Context) bool {
	return Evaluate(d, ctx) == ReasonEligible
}

func matchesApplicable(applicables []models.Applicable, target Target) bool {
	for _, a := range applicables {
		if a.Type == target.Type && a.ID == target.ID {
			return true
		}
	}
	return false
}
