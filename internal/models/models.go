package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType determines how discount_value is interpreted.
type DiscountType string

const (
	// DiscountPercentage interprets discount_value as a percentage of the order amount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixedAmount interprets discount_value as a flat currency amount.
	DiscountFixedAmount DiscountType = "fixed_amount"
)

// AppliesTo determines whether a discount targets everything or a specific set.
type AppliesTo string

const (
	AppliesToAll      AppliesTo = "all"
	AppliesToSpecific AppliesTo = "specific"
)

// ApplicableType is the kind of entity a specific discount is restricted to.
type ApplicableType string

const (
	ApplicableService  ApplicableType = "service"
	ApplicableCategory ApplicableType = "category"
	ApplicableBarber   ApplicableType = "barber"
)

// Applicable is one (type, id) pair a specific discount is restricted to.
type Applicable struct {
	Type ApplicableType `json:"applicable_type"`
	ID   string         `json:"applicable_id"`
}

// Discount represents one promotional rule.
type Discount struct {
	ID                 string           `json:"id"`             // uuid
	Name               string           `json:"name"`
	Code               string           `json:"code,omitempty"` // optional, stored uppercase
	Description        string           `json:"description,omitempty"`
	DiscountType       DiscountType     `json:"discount_type"`
	DiscountValue      decimal.Decimal  `json:"discount_value"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount,omitempty"` // percentage type only
	MinOrderAmount     *decimal.Decimal `json:"min_order_amount,omitempty"`
	StartDate          time.Time        `json:"start_date"` // inclusive
	EndDate            time.Time        `json:"end_date"`   // inclusive
	UsageLimit         *int             `json:"usage_limit,omitempty"`
	CustomerUsageLimit *int             `json:"customer_usage_limit,omitempty"`
	IsActive           bool             `json:"is_active"`
	AppliesTo          AppliesTo        `json:"applies_to"`
	Applicables        []Applicable     `json:"applicables,omitempty"` // non-empty iff applies_to = specific
	UsedCount          int              `json:"used_count"`
}

// DiscountUsage is one redemption record. Rows are append-only: created once
// at redemption time, never mutated or deleted.
type DiscountUsage struct {
	ID             string          `json:"id"`
	DiscountID     string          `json:"discount_id"`
	CustomerID     string          `json:"customer_id"`
	BookingID      string          `json:"booking_id"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	UsedAt         time.Time       `json:"used_at"`
}

// CustomerDiscountUsage is the per-customer aggregate view of a discount grant.
type CustomerDiscountUsage struct {
	DiscountID string     `json:"discount_id"`
	CustomerID string     `json:"customer_id"`
	UsedCount  int        `json:"used_count"`
	MaxUsage   *int       `json:"max_usage,omitempty"`  // mirrors customer_usage_limit
	ExpiresAt  *time.Time `json:"expires_at,omitempty"` // customer-specific grant expiry
}

// EligibleDiscount is one discount a customer is currently eligible for,
// with the savings it would yield on the supplied order amount.
type EligibleDiscount struct {
	DiscountID     string          `json:"discount_id"`
	Name           string          `json:"name"`
	Code           string          `json:"code,omitempty"`
	Reason         string          `json:"reason"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

// EligibleDiscountsResponse is the payload when asking for eligibility.
type EligibleDiscountsResponse struct {
	CustomerID        string             `json:"customer_id"`
	EligibleDiscounts []EligibleDiscount `json:"eligible_discounts"`
}

// PreviewRequest asks for a savings quote without redeeming.
type PreviewRequest struct {
	DiscountID  string          `json:"discount_id,omitempty"`
	Code        string          `json:"code,omitempty"`
	OrderAmount decimal.Decimal `json:"order_amount"`
}

// PreviewResponse is a savings quote for a candidate order amount.
type PreviewResponse struct {
	DiscountID      string          `json:"discount_id"`
	Status          string          `json:"status"`
	Eligible        bool            `json:"eligible"`
	Reason          string          `json:"reason,omitempty"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	FinalAmount     decimal.Decimal `json:"final_amount"`
	FormattedAmount string          `json:"formatted_amount"` // id-ID / IDR display form
}

// RedeemRequest applies a discount to a booking at checkout time.
type RedeemRequest struct {
	CustomerID  string          `json:"customer_id"`
	BookingID   string          `json:"booking_id"`
	OrderAmount decimal.Decimal `json:"order_amount"`
	TargetType  ApplicableType  `json:"target_type,omitempty"`
	TargetID    string          `json:"target_id,omitempty"`
}

// RedeemResponse reports the ledger row created by a successful redemption.
type RedeemResponse struct {
	Usage          DiscountUsage `json:"usage"`
	RemainingQuota *int          `json:"remaining_quota,omitempty"`
}

// UsageStats summarizes a discount's redemption ledger.
type UsageStats struct {
	TotalUsed          int             `json:"total_used"`
	RemainingQuota     *int            `json:"remaining_quota,omitempty"`
	UsagePercentage    decimal.Decimal `json:"usage_percentage"`
	TotalDiscountGiven decimal.Decimal `json:"total_discount_given"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	AverageDiscount    decimal.Decimal `json:"average_discount"`
	// CountMismatch is set when the ledger row count disagrees with the
	// discount's used_count, indicating a data-consistency bug.
	CountMismatch bool `json:"count_mismatch,omitempty"`
}

// DiscountDetail is a discount plus its derived status and usage stats.
type DiscountDetail struct {
	Discount Discount   `json:"discount"`
	Status   string     `json:"status"`
	Stats    UsageStats `json:"stats"`
}

// DiscountListItem is one row of the admin list view.
type DiscountListItem struct {
	Discount       Discount `json:"discount"`
	Status         string   `json:"status"`
	RemainingQuota *int     `json:"remaining_quota,omitempty"`
}

// DiscountListResponse is the payload for the filtered discount list.
type DiscountListResponse struct {
	Discounts []DiscountListItem `json:"discounts"`
	Total     int                `json:"total"`
}

// UsageHistoryResponse is the payload for the usage-history view.
type UsageHistoryResponse struct {
	DiscountID string          `json:"discount_id"`
	Usages     []DiscountUsage `json:"usages"`
	Stats      UsageStats      `json:"stats"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
