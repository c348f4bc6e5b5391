package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/models"
)

func intPtr(v int) *int { return &v }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func validDiscount() models.Discount {
	return models.Discount{
		ID:            "c0ffee00-0000-4000-8000-000000000005",
		Name:          "Weekend Special",
		Code:          "WEEKEND20",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(20),
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
		IsActive:      true,
		AppliesTo:     models.AppliesToAll,
	}
}

func expectFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if ve.Field != field {
		t.Errorf("Expected error on field %q, got %q (%s)", field, ve.Field, ve.Message)
	}
}

func TestValidateDiscount_Valid(t *testing.T) {
	if err := ValidateDiscount(validDiscount()); err != nil {
		t.Fatalf("Expected valid discount, got %v", err)
	}
}

func TestValidateDiscount_ValidWithoutCode(t *testing.T) {
	d := validDiscount()
	d.Code = ""
	if err := ValidateDiscount(d); err != nil {
		t.Fatalf("Expected code to be optional, got %v", err)
	}
}

func TestValidateDiscount_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		mutate func(*models.Discount)
	}{
		{"missing id", "id", func(d *models.Discount) { d.ID = "" }},
		{"malformed id", "id", func(d *models.Discount) { d.ID = "not-a-uuid" }},
		{"blank name", "name", func(d *models.Discount) { d.Name = "   " }},
		{"lowercase code", "code", func(d *models.Discount) { d.Code = "weekend20" }},
		{"code too short", "code", func(d *models.Discount) { d.Code = "A" }},
		{"unknown type", "discount_type", func(d *models.Discount) { d.DiscountType = "bogo" }},
		{"zero value", "discount_value", func(d *models.Discount) { d.DiscountValue = decimal.Zero }},
		{"negative value", "discount_value", func(d *models.Discount) { d.DiscountValue = decimal.NewFromInt(-10) }},
		{"percentage above 100", "discount_value", func(d *models.Discount) { d.DiscountValue = decimal.NewFromInt(101) }},
		{"cap on fixed discount", "max_discount_amount", func(d *models.Discount) {
			d.DiscountType = models.DiscountFixedAmount
			d.DiscountValue = decimal.NewFromInt(5000)
			d.MaxDiscountAmount = decPtr(1000)
		}},
		{"non-positive cap", "max_discount_amount", func(d *models.Discount) { d.MaxDiscountAmount = decPtr(0) }},
		{"negative min order", "min_order_amount", func(d *models.Discount) { d.MinOrderAmount = decPtr(-1) }},
		{"missing start date", "start_date", func(d *models.Discount) { d.StartDate = time.Time{} }},
		{"missing end date", "end_date", func(d *models.Discount) { d.EndDate = time.Time{} }},
		{"end before start", "end_date", func(d *models.Discount) { d.EndDate = d.StartDate.AddDate(0, 0, -1) }},
		{"zero usage limit", "usage_limit", func(d *models.Discount) { d.UsageLimit = intPtr(0) }},
		{"zero customer limit", "customer_usage_limit", func(d *models.Discount) { d.CustomerUsageLimit = intPtr(0) }},
		{"negative used count", "used_count", func(d *models.Discount) { d.UsedCount = -1 }},
		{"unknown applies_to", "applies_to", func(d *models.Discount) { d.AppliesTo = "some" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDiscount()
			tt.mutate(&d)
			expectFieldError(t, ValidateDiscount(d), tt.field)
		})
	}
}

func TestValidateDiscount_Applicables(t *testing.T) {
	t.Run("all must have none", func(t *testing.T) {
		d := validDiscount()
		d.Applicables = []models.Applicable{{Type: models.ApplicableService, ID: "svc-1"}}
		expectFieldError(t, ValidateDiscount(d), "applicables")
	})

	t.Run("specific must have some", func(t *testing.T) {
		d := validDiscount()
		d.AppliesTo = models.AppliesToSpecific
		expectFieldError(t, ValidateDiscount(d), "applicables")
	})

	t.Run("unknown applicable type", func(t *testing.T) {
		d := validDiscount()
		d.AppliesTo = models.AppliesToSpecific
		d.Applicables = []models.Applicable{{Type: "product", ID: "p-1"}}
		expectFieldError(t, ValidateDiscount(d), "applicables[0].applicable_type")
	})

	t.Run("missing applicable id", func(t *testing.T) {
		d := validDiscount()
		d.AppliesTo = models.AppliesToSpecific
		d.Applicables = []models.Applicable{{Type: models.ApplicableBarber}}
		expectFieldError(t, ValidateDiscount(d), "applicables[0].applicable_id")
	})

	t.Run("duplicate entries", func(t *testing.T) {
		d := validDiscount()
		d.AppliesTo = models.AppliesToSpecific
		d.Applicables = []models.Applicable{
			{Type: models.ApplicableService, ID: "svc-1"},
			{Type: models.ApplicableService, ID: "svc-1"},
		}
		expectFieldError(t, ValidateDiscount(d), "applicables")
	})

	t.Run("valid specific set", func(t *testing.T) {
		d := validDiscount()
		d.AppliesTo = models.AppliesToSpecific
		d.Applicables = []models.Applicable{
			{Type: models.ApplicableService, ID: "svc-1"},
			{Type: models.ApplicableCategory, ID: "cat-1"},
			{Type: models.ApplicableBarber, ID: "brb-1"},
		}
		if err := ValidateDiscount(d); err != nil {
			t.Fatalf("Expected valid applicables, got %v", err)
		}
	})
}

func TestValidateRedeemRequest(t *testing.T) {
	valid := models.RedeemRequest{
		CustomerID:  "cafe0000-0000-4000-8000-000000000002",
		BookingID:   "b00c0000-0000-4000-8000-000000000002",
		OrderAmount: decimal.NewFromInt(150000),
	}

	if err := ValidateRedeemRequest(valid); err != nil {
		t.Fatalf("Expected valid request, got %v", err)
	}

	t.Run("bad customer id", func(t *testing.T) {
		req := valid
		req.CustomerID = "nope"
		expectFieldError(t, ValidateRedeemRequest(req), "customer_id")
	})

	t.Run("bad booking id", func(t *testing.T) {
		req := valid
		req.BookingID = ""
		expectFieldError(t, ValidateRedeemRequest(req), "booking_id")
	})

	t.Run("negative order amount", func(t *testing.T) {
		req := valid
		req.OrderAmount = decimal.NewFromInt(-1)
		expectFieldError(t, ValidateRedeemRequest(req), "order_amount")
	})

	t.Run("unknown target type", func(t *testing.T) {
		req := valid
		req.TargetType = "product"
		req.TargetID = "p-1"
		expectFieldError(t, ValidateRedeemRequest(req), "target_type")
	})

	t.Run("target type without id", func(t *testing.T) {
		req := valid
		req.TargetType = models.ApplicableService
		expectFieldError(t, ValidateRedeemRequest(req), "target_id")
	})

	t.Run("with target", func(t *testing.T) {
		req := valid
		req.TargetType = models.ApplicableService
		req.TargetID = "svc-1"
		if err := ValidateRedeemRequest(req); err != nil {
			t.Fatalf("Expected valid request with target, got %v", err)
		}
	})
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct{ in, want string }{
		{"weekend20", "WEEKEND20"},
		{"  Promo-1  ", "PROMO-1"},
		{"ALREADY_UP", "ALREADY_UP"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeCode(tt.in); got != tt.want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateUUID_AcceptsUppercase(t *testing.T) {
	if err := ValidateUUID("CAFE0000-0000-4000-8000-000000000003", "id"); err != nil {
		t.Fatalf("Expected uppercase UUID to validate, got %v", err)
	}
}

func TestValidateTimeString(t *testing.T) {
	if _, err := ValidateTimeString(""); err == nil {
		t.Error("Expected error for empty time")
	}
	if _, err := ValidateTimeString("2024-01-15"); err == nil {
		t.Error("Expected error for non-RFC3339 time")
	}

	got, err := ValidateTimeString("2024-01-15T10:30:00Z")
	if err != nil {
		t.Fatalf("ValidateTimeString failed: %v", err)
	}
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
