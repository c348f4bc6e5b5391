package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/models"
)

var (
	uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	codeRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{1,31}$`)
)

var oneHundred = decimal.NewFromInt(100)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidateDiscount checks a discount on the admin write path. Malformed
// configurations are rejected here so the evaluators downstream can assume
// validated records.
func ValidateDiscount(d models.Discount) error {
	if err := ValidateUUID(d.ID, "id"); err != nil {
		return err
	}

	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{
			Field:   "name",
			Message: "is required",
		}
	}

	if d.Code != "" {
		if !codeRegex.MatchString(d.Code) {
			return &ValidationError{
				Field:   "code",
				Message: "must be 2-32 uppercase letters, digits, '-' or '_'",
			}
		}
	}

	switch d.DiscountType {
	case models.DiscountPercentage, models.DiscountFixedAmount:
	default:
		return &ValidationError{
			Field:   "discount_type",
			Message: "must be 'percentage' or 'fixed_amount'",
		}
	}

	if !d.DiscountValue.IsPositive() {
		return &ValidationError{
			Field:   "discount_value",
			Message: "must be positive",
		}
	}

	if d.DiscountType == models.DiscountPercentage && d.DiscountValue.GreaterThan(oneHundred) {
		return &ValidationError{
			Field:   "discount_value",
			Message: "percentage cannot exceed 100",
		}
	}

	if d.MaxDiscountAmount != nil {
		if d.DiscountType != models.DiscountPercentage {
			return &ValidationError{
				Field:   "max_discount_amount",
				Message: "only applies to percentage discounts",
			}
		}
		if !d.MaxDiscountAmount.IsPositive() {
			return &ValidationError{
				Field:   "max_discount_amount",
				Message: "must be positive",
			}
		}
	}

	if d.MinOrderAmount != nil && d.MinOrderAmount.IsNegative() {
		return &ValidationError{
			Field:   "min_order_amount",
			Message: "must be non-negative",
		}
	}

	if d.StartDate.IsZero() {
		return &ValidationError{
			Field:   "start_date",
			Message: "is required",
		}
	}

	if d.EndDate.IsZero() {
		return &ValidationError{
			Field:   "end_date",
			Message: "is required",
		}
	}

	if d.EndDate.Before(d.StartDate) {
		return &ValidationError{
			Field:   "end_date",
			Message: "must not precede start_date",
		}
	}

	if d.UsageLimit != nil && *d.UsageLimit < 1 {
		return &ValidationError{
			Field:   "usage_limit",
			Message: "must be at least 1 when set",
		}
	}

	if d.CustomerUsageLimit != nil && *d.CustomerUsageLimit < 1 {
		return &ValidationError{
			Field:   "customer_usage_limit",
			Message: "must be at least 1 when set",
		}
	}

	if d.UsedCount < 0 {
		return &ValidationError{
			Field:   "used_count",
			Message: "must be non-negative",
		}
	}

	return validateApplicables(d.AppliesTo, d.Applicables)
}

func validateApplicables(appliesTo models.AppliesTo, applicables []models.Applicable) error {
	switch appliesTo {
	case models.AppliesToAll:
		if len(applicables) > 0 {
			return &ValidationError{
				Field:   "applicables",
				Message: "must be empty when applies_to is 'all'",
			}
		}
	case models.AppliesToSpecific:
		if len(applicables) == 0 {
			return &ValidationError{
				Field:   "applicables",
				Message: "is required when applies_to is 'specific'",
			}
		}
		seen := make(map[models.Applicable]bool)
		for i, a := range applicables {
			switch a.Type {
			case models.ApplicableService, models.ApplicableCategory, models.ApplicableBarber:
			default:
				return &ValidationError{
					Field:   fmt.Sprintf("applicables[%d].applicable_type", i),
					Message: "must be 'service', 'category' or 'barber'",
				}
			}
			if a.ID == "" {
				return &ValidationError{
					Field:   fmt.Sprintf("applicables[%d].applicable_id", i),
					Message: "is required",
				}
			}
			if seen[a] {
				return &ValidationError{
					Field:   "applicables",
					Message: fmt.Sprintf("duplicate entry (%s, %s)", a.Type, a.ID),
				}
			}
			seen[a] = true
		}
	default:
		return &ValidationError{
			Field:   "applies_to",
			Message: "must be 'all' or 'specific'",
		}
	}

	return nil
}

// ValidateRedeemRequest checks the redemption payload before it reaches the
// transactional path.
func ValidateRedeemRequest(req models.RedeemRequest) error {
	if err := ValidateUUID(req.CustomerID, "customer_id"); err != nil {
		return err
	}
	if err := ValidateUUID(req.BookingID, "booking_id"); err != nil {
		return err
	}
	if req.OrderAmount.IsNegative() {
		return &ValidationError{
			Field:   "order_amount",
			Message: "must be non-negative",
		}
	}
	if req.TargetType != "" {
		switch req.TargetType {
		case models.ApplicableService, models.ApplicableCategory, models.ApplicableBarber:
		default:
			return &ValidationError{
				Field:   "target_type",
				Message: "must be 'service', 'category' or 'barber'",
			}
		}
		if req.TargetID == "" {
			return &ValidationError{
				Field:   "target_id",
				Message: "is required when target_type is set",
			}
		}
	}
	return nil
}

// NormalizeCode uppercases and trims a discount code. Codes are
// case-normalized at every boundary so lookups stay case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

func ValidateUUID(id, fieldName string) error {
	if id == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	id = SanitizeString(id)

	if !uuidRegex.MatchString(strings.ToLower(id)) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be a valid UUID v4",
		}
	}

	return nil
}

func ValidateTimeString(timeStr string) (time.Time, error) {
	if timeStr == "" {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "is required",
		}
	}

	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "must be a valid RFC3339 timestamp",
		}
	}

	return t, nil
}
