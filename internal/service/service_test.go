package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/database"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/discount"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/models"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/validation"
)

func setupTestDB(t *testing.T) (*database.DB, func()) {
	dbPath := "./test_" + time.Now().Format("20060102150405") + ".db"
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return db, cleanup
}

var testNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestService(db *database.DB) *Service {
	return NewServiceWithOptions(db, ServiceOptions{
		Now: func() time.Time { return testNow },
	})
}

func intPtr(v int) *int { return &v }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func testDiscount() models.Discount {
	return models.Discount{
		ID:            uuid.New().String(),
		Name:          "Grand Opening",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
		IsActive:      true,
		AppliesTo:     models.AppliesToAll,
	}
}

func TestCreateDiscount_NormalizesCodeAndResetsCounter(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()

	d := testDiscount()
	d.Code = "  opening10 "
	d.UsedCount = 42 // must be ignored

	created, err := svc.CreateDiscount(ctx, d)
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	if created.Code != "OPENING10" {
		t.Errorf("Expected normalized code OPENING10, got %q", created.Code)
	}
	if created.UsedCount != 0 {
		t.Errorf("Expected used_count 0 on create, got %d", created.UsedCount)
	}

	stored, err := db.GetDiscount(ctx, created.ID)
	if err != nil {
		t.Fatalf("Failed to load discount: %v", err)
	}
	if stored.Code != "OPENING10" || stored.UsedCount != 0 {
		t.Errorf("Stored discount out of shape: code=%q used_count=%d", stored.Code, stored.UsedCount)
	}
}

func TestCreateDiscount_GeneratesID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)

	d := testDiscount()
	d.ID = ""

	created, err := svc.CreateDiscount(context.Background(), d)
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}
	if err := validation.ValidateUUID(created.ID, "id"); err != nil {
		t.Errorf("Expected generated UUID, got %q: %v", created.ID, err)
	}
}

func TestCreateDiscount_DuplicateCode(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()

	first := testDiscount()
	first.Code = "TWICE"
	if _, err := svc.CreateDiscount(ctx, first); err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	second := testDiscount()
	second.Code = "twice" // same code after normalization

	_, err := svc.CreateDiscount(ctx, second)
	if !errors.Is(err, database.ErrCodeConflict) {
		t.Fatalf("Expected ErrCodeConflict, got %v", err)
	}
}

func TestCreateDiscount_WidensDateOnlyEndDate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)

	d := testDiscount()
	d.EndDate = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	created, err := svc.CreateDiscount(context.Background(), d)
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	want := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	if !created.EndDate.Equal(want) {
		t.Errorf("Expected end_date widened to %v, got %v", want, created.EndDate)
	}
}

func TestUpdateDiscount_PreservesUsedCount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()

	d := testDiscount()
	d.UsageLimit = intPtr(10)
	created, err := svc.CreateDiscount(ctx, d)
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	// Redeem once so the counter moves off zero.
	if _, err := svc.RedeemDiscount(ctx, created.ID, models.RedeemRequest{
		CustomerID:  uuid.New().String(),
		BookingID:   uuid.New().String(),
		OrderAmount: decimal.NewFromInt(100000),
	}); err != nil {
		t.Fatalf("Failed to redeem discount: %v", err)
	}

	update := created
	update.Name = "Grand Reopening"
	update.UsedCount = 0 // must be ignored

	updated, err := svc.UpdateDiscount(ctx, update)
	if err != nil {
		t.Fatalf("Failed to update discount: %v", err)
	}
	if updated.UsedCount != 1 {
		t.Errorf("Expected used_count 1 preserved through update, got %d", updated.UsedCount)
	}
	if updated.Name != "Grand Reopening" {
		t.Errorf("Expected updated name, got %q", updated.Name)
	}
}

func TestUpdateDiscount_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)

	d := testDiscount()
	_, err := svc.UpdateDiscount(context.Background(), d)
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDiscount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()

	created, err := svc.CreateDiscount(ctx, testDiscount())
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	if err := svc.DeleteDiscount(ctx, created.ID); err != nil {
		t.Fatalf("Failed to delete discount: %v", err)
	}

	if _, err := db.GetDiscount(ctx, created.ID); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestGetDiscount_DerivedStatusAndStats(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()

	d := testDiscount()
	d.UsageLimit = intPtr(40)
	created, err := svc.CreateDiscount(ctx, d)
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.RedeemDiscount(ctx, created.ID, models.RedeemRequest{
			CustomerID:  uuid.New().String(),
			BookingID:   uuid.New().String(),
			OrderAmount: decimal.NewFromInt(100000),
		}); err != nil {
			t.Fatalf("Failed to redeem discount: %v", err)
		}
	}

	detail, err := svc.GetDiscount(ctx, created.ID, testNow)
	if err != nil {
		t.Fatalf("Failed to get discount: %v", err)
	}

	if detail.Status != string(discount.StatusActive) {
		t.Errorf("Expected status active, got %q", detail.Status)
	}
	if detail.Stats.TotalUsed != 3 {
		t.Errorf("Expected total_used 3, got %d", detail.Stats.TotalUsed)
	}
	if detail.Stats.RemainingQuota == nil || *detail.Stats.RemainingQuota != 37 {
		t.Errorf("Expected remaining quota 37, got %v", detail.Stats.RemainingQuota)
	}
	if detail.Stats.CountMismatch {
		t.Error("Expected no count mismatch after clean redemptions")
	}
	if !detail.Stats.TotalDiscountGiven.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("Expected total_discount_given 30000, got %s", detail.Stats.TotalDiscountGiven)
	}
}

func TestListDiscounts_StatusFilter(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()

	active := testDiscount()
	active.Name = "Running Promo"
	if _, err := svc.CreateDiscount(ctx, active); err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	upcoming := testDiscount()
	upcoming.Name = "Future Promo"
	upcoming.StartDate = time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	upcoming.EndDate = time.Date(2024, 9, 30, 23, 59, 59, 0, time.UTC)
	if _, err := svc.CreateDiscount(ctx, upcoming); err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	inactive := testDiscount()
	inactive.Name = "Paused Promo"
	inactive.IsActive = false
	if _, err := svc.CreateDiscount(ctx, inactive); err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	all, err := svc.ListDiscounts(ctx, ListFilter{}, testNow)
	if err != nil {
		t.Fatalf("Failed to list discounts: %v", err)
	}
	if all.Total != 3 {
		t.Fatalf("Expected 3 discounts, got %d", all.Total)
	}

	upcomingOnly, err := svc.ListDiscounts(ctx, ListFilter{Status: "upcoming"}, testNow)
	if err != nil {
		t.Fatalf("Failed to list discounts: %v", err)
	}
	if upcomingOnly.Total != 1 || upcomingOnly.Discounts[0].Discount.Name != "Future Promo" {
		t.Fatalf("Expected only the upcoming promo, got %+v", upcomingOnly.Discounts)
	}
	if upcomingOnly.Discounts[0].Status != string(discount.StatusUpcoming) {
		t.Errorf("Expected status upcoming, got %q", upcomingOnly.Discounts[0].Status)
	}
}

func TestListDiscounts_SearchAndQuotaFilters(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()

	limited := testDiscount()
	limited.Name = "Limited Fade Deal"
	limited.UsageLimit = intPtr(5)
	if _, err := svc.CreateDiscount(ctx, limited); err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	open := testDiscount()
	open.Name = "Open Trim Deal"
	if _, err := svc.CreateDiscount(ctx, open); err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	hasQuota := true
	quotaOnly, err := svc.ListDiscounts(ctx, ListFilter{HasQuota: &hasQuota}, testNow)
	if err != nil {
		t.Fatalf("Failed to list discounts: %v", err)
	}
	if quotaOnly.Total != 1 || quotaOnly.Discounts[0].Discount.Name != "Limited Fade Deal" {
		t.Fatalf("Expected only the quota-limited promo, got %+v", quotaOnly.Discounts)
	}
	if quotaOnly.Discounts[0].RemainingQuota == nil || *quotaOnly.Discounts[0].RemainingQuota != 5 {
		t.Errorf("Expected remaining quota 5, got %v", quotaOnly.Discounts[0].RemainingQuota)
	}

	byName, err := svc.ListDiscounts(ctx, ListFilter{Search: "Trim"}, testNow)
	if err != nil {
		t.Fatalf("Failed to list discounts: %v", err)
	}
	if byName.Total != 1 || byName.Discounts[0].Discount.Name != "Open Trim Deal" {
		t.Fatalf("Expected only the trim promo, got %+v", byName.Discounts)
	}
}

func TestGetEligibleDiscounts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()
	customerID := uuid.New().String()

	// Qualifies: active, min order met.
	winner := testDiscount()
	winner.Name = "Ten Percent Off"
	winner.MinOrderAmount = decPtr(50000)
	if _, err := svc.CreateDiscount(ctx, winner); err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	// Excluded: min order above the order amount.
	tooHigh := testDiscount()
	tooHigh.Name = "Big Spender"
	tooHigh.MinOrderAmount = decPtr(500000)
	if _, err := svc.CreateDiscount(ctx, tooHigh); err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	// Excluded: toggled off.
	paused := testDiscount()
	paused.Name = "Paused"
	paused.IsActive = false
	if _, err := svc.CreateDiscount(ctx, paused); err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	resp, err := svc.GetEligibleDiscounts(ctx, customerID, discount.Context{
		Now:         testNow,
		OrderAmount: decimal.NewFromInt(100000),
	})
	if err != nil {
		t.Fatalf("Failed to get eligible discounts: %v", err)
	}

	if len(resp.EligibleDiscounts) != 1 {
		t.Fatalf("Expected 1 eligible discount, got %d", len(resp.EligibleDiscounts))
	}
	got := resp.EligibleDiscounts[0]
	if got.Name != "Ten Percent Off" {
		t.Errorf("Expected Ten Percent Off, got %q", got.Name)
	}
	if !got.DiscountAmount.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Expected savings 10000, got %s", got.DiscountAmount)
	}
	if !got.FinalAmount.Equal(decimal.NewFromInt(90000)) {
		t.Errorf("Expected final 90000, got %s", got.FinalAmount)
	}
}

func TestGetEligibleDiscounts_CustomerLimitCountsLedger(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()
	customerID := uuid.New().String()

	d := testDiscount()
	d.CustomerUsageLimit = intPtr(1)
	created, err := svc.CreateDiscount(ctx, d)
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	if _, err := svc.RedeemDiscount(ctx, created.ID, models.RedeemRequest{
		CustomerID:  customerID,
		BookingID:   uuid.New().String(),
		OrderAmount: decimal.NewFromInt(100000),
	}); err != nil {
		t.Fatalf("Failed to redeem discount: %v", err)
	}

	resp, err := svc.GetEligibleDiscounts(ctx, customerID, discount.Context{
		Now:         testNow,
		OrderAmount: decimal.NewFromInt(100000),
	})
	if err != nil {
		t.Fatalf("Failed to get eligible discounts: %v", err)
	}
	if len(resp.EligibleDiscounts) != 0 {
		t.Fatalf("Expected no eligible discounts after hitting the customer limit, got %d",
			len(resp.EligibleDiscounts))
	}

	// Another customer is unaffected.
	other, err := svc.GetEligibleDiscounts(ctx, uuid.New().String(), discount.Context{
		Now:         testNow,
		OrderAmount: decimal.NewFromInt(100000),
	})
	if err != nil {
		t.Fatalf("Failed to get eligible discounts: %v", err)
	}
	if len(other.EligibleDiscounts) != 1 {
		t.Fatalf("Expected 1 eligible discount for a fresh customer, got %d",
			len(other.EligibleDiscounts))
	}
}

func TestPreviewSavings_ByCode(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()

	d := testDiscount()
	d.Code = "HEMAT10"
	d.MaxDiscountAmount = decPtr(20000)
	created, err := svc.CreateDiscount(ctx, d)
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	resp, err := svc.PreviewSavings(ctx, models.PreviewRequest{
		Code:        "hemat10",
		OrderAmount: decimal.NewFromInt(500000),
	}, discount.Context{Now: testNow})
	if err != nil {
		t.Fatalf("Failed to preview savings: %v", err)
	}

	if resp.DiscountID != created.ID {
		t.Errorf("Expected discount %s, got %s", created.ID, resp.DiscountID)
	}
	if !resp.Eligible {
		t.Errorf("Expected eligible, got reason %q", resp.Reason)
	}
	if !resp.DiscountAmount.Equal(decimal.NewFromInt(20000)) {
		t.Errorf("Expected capped discount 20000, got %s", resp.DiscountAmount)
	}
	if !resp.FinalAmount.Equal(decimal.NewFromInt(480000)) {
		t.Errorf("Expected final 480000, got %s", resp.FinalAmount)
	}
	if resp.FormattedAmount != "Rp 480.000" {
		t.Errorf("Expected formatted amount 'Rp 480.000', got %q", resp.FormattedAmount)
	}

	// Preview never consumes quota.
	stored, err := db.GetDiscount(ctx, created.ID)
	if err != nil {
		t.Fatalf("Failed to load discount: %v", err)
	}
	if stored.UsedCount != 0 {
		t.Errorf("Expected used_count untouched by preview, got %d", stored.UsedCount)
	}
}

func TestPreviewSavings_IneligibleIsNotAnError(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()

	d := testDiscount()
	d.MinOrderAmount = decPtr(100000)
	created, err := svc.CreateDiscount(ctx, d)
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	resp, err := svc.PreviewSavings(ctx, models.PreviewRequest{
		DiscountID:  created.ID,
		OrderAmount: decimal.NewFromInt(50000),
	}, discount.Context{Now: testNow})
	if err != nil {
		t.Fatalf("Failed to preview savings: %v", err)
	}

	if resp.Eligible {
		t.Error("Expected ineligible preview")
	}
	if resp.Reason != string(discount.ReasonMinOrderNotMet) {
		t.Errorf("Expected reason min_order_not_met, got %q", resp.Reason)
	}
}

func TestPreviewSavings_UnknownCode(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)

	_, err := svc.PreviewSavings(context.Background(), models.PreviewRequest{
		Code:        "MISSING",
		OrderAmount: decimal.NewFromInt(50000),
	}, discount.Context{Now: testNow})
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestRedeemDiscount_ConsumesQuotaAndAppendsLedger(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()

	d := testDiscount()
	d.UsageLimit = intPtr(2)
	created, err := svc.CreateDiscount(ctx, d)
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	customerID := uuid.New().String()
	bookingID := uuid.New().String()

	resp, err := svc.RedeemDiscount(ctx, created.ID, models.RedeemRequest{
		CustomerID:  customerID,
		BookingID:   bookingID,
		OrderAmount: decimal.NewFromInt(200000),
	})
	if err != nil {
		t.Fatalf("Failed to redeem discount: %v", err)
	}

	if !resp.Usage.DiscountAmount.Equal(decimal.NewFromInt(20000)) {
		t.Errorf("Expected discount 20000, got %s", resp.Usage.DiscountAmount)
	}
	if !resp.Usage.FinalAmount.Equal(decimal.NewFromInt(180000)) {
		t.Errorf("Expected final 180000, got %s", resp.Usage.FinalAmount)
	}
	if !resp.Usage.UsedAt.Equal(testNow) {
		t.Errorf("Expected used_at stamped with the server clock, got %v", resp.Usage.UsedAt)
	}
	if resp.RemainingQuota == nil || *resp.RemainingQuota != 1 {
		t.Errorf("Expected remaining quota 1, got %v", resp.RemainingQuota)
	}

	stored, err := db.GetDiscount(ctx, created.ID)
	if err != nil {
		t.Fatalf("Failed to load discount: %v", err)
	}
	if stored.UsedCount != 1 {
		t.Errorf("Expected used_count 1, got %d", stored.UsedCount)
	}

	usages, err := db.ListUsages(ctx, database.UsageFilter{DiscountID: created.ID})
	if err != nil {
		t.Fatalf("Failed to list usages: %v", err)
	}
	if len(usages) != 1 {
		t.Fatalf("Expected 1 ledger row, got %d", len(usages))
	}
	if usages[0].CustomerID != customerID || usages[0].BookingID != bookingID {
		t.Errorf("Ledger row out of shape: %+v", usages[0])
	}
}

func TestRedeemDiscount_QuotaExhausted(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()

	d := testDiscount()
	d.UsageLimit = intPtr(1)
	created, err := svc.CreateDiscount(ctx, d)
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	req := func() models.RedeemRequest {
		return models.RedeemRequest{
			CustomerID:  uuid.New().String(),
			BookingID:   uuid.New().String(),
			OrderAmount: decimal.NewFromInt(100000),
		}
	}

	if _, err := svc.RedeemDiscount(ctx, created.ID, req()); err != nil {
		t.Fatalf("Failed to redeem discount: %v", err)
	}

	_, err = svc.RedeemDiscount(ctx, created.ID, req())
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("Expected ErrNotEligible once quota is gone, got %v", err)
	}

	// The failed attempt leaves no ledger row behind.
	usages, err := db.ListUsages(ctx, database.UsageFilter{DiscountID: created.ID})
	if err != nil {
		t.Fatalf("Failed to list usages: %v", err)
	}
	if len(usages) != 1 {
		t.Fatalf("Expected 1 ledger row after a rejected redemption, got %d", len(usages))
	}
}

func TestRedeemDiscount_CustomerLimit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()
	customerID := uuid.New().String()

	d := testDiscount()
	d.CustomerUsageLimit = intPtr(1)
	created, err := svc.CreateDiscount(ctx, d)
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	if _, err := svc.RedeemDiscount(ctx, created.ID, models.RedeemRequest{
		CustomerID:  customerID,
		BookingID:   uuid.New().String(),
		OrderAmount: decimal.NewFromInt(100000),
	}); err != nil {
		t.Fatalf("Failed to redeem discount: %v", err)
	}

	_, err = svc.RedeemDiscount(ctx, created.ID, models.RedeemRequest{
		CustomerID:  customerID,
		BookingID:   uuid.New().String(),
		OrderAmount: decimal.NewFromInt(100000),
	})
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("Expected ErrNotEligible at the customer limit, got %v", err)
	}
}

func TestRedeemDiscount_ExpiredWindow(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()

	d := testDiscount()
	d.StartDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.EndDate = time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	created, err := svc.CreateDiscount(ctx, d)
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	_, err = svc.RedeemDiscount(ctx, created.ID, models.RedeemRequest{
		CustomerID:  uuid.New().String(),
		BookingID:   uuid.New().String(),
		OrderAmount: decimal.NewFromInt(100000),
	})
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("Expected ErrNotEligible for an expired window, got %v", err)
	}
}

func TestRedeemDiscount_TargetedDiscount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()

	d := testDiscount()
	d.AppliesTo = models.AppliesToSpecific
	d.Applicables = []models.Applicable{{Type: models.ApplicableService, ID: "svc-haircut"}}
	created, err := svc.CreateDiscount(ctx, d)
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	// Wrong target is rejected.
	_, err = svc.RedeemDiscount(ctx, created.ID, models.RedeemRequest{
		CustomerID:  uuid.New().String(),
		BookingID:   uuid.New().String(),
		OrderAmount: decimal.NewFromInt(100000),
		TargetType:  models.ApplicableService,
		TargetID:    "svc-shave",
	})
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("Expected ErrNotEligible for an unmatched target, got %v", err)
	}

	// Matching target goes through.
	if _, err := svc.RedeemDiscount(ctx, created.ID, models.RedeemRequest{
		CustomerID:  uuid.New().String(),
		BookingID:   uuid.New().String(),
		OrderAmount: decimal.NewFromInt(100000),
		TargetType:  models.ApplicableService,
		TargetID:    "svc-haircut",
	}); err != nil {
		t.Fatalf("Failed to redeem targeted discount: %v", err)
	}
}

func TestUsageHistory(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)
	ctx := context.Background()
	customerID := uuid.New().String()

	created, err := svc.CreateDiscount(ctx, testDiscount())
	if err != nil {
		t.Fatalf("Failed to create discount: %v", err)
	}

	amounts := []int64{100000, 200000, 300000}
	for i, a := range amounts {
		cust := customerID
		if i > 0 {
			cust = uuid.New().String()
		}
		if _, err := svc.RedeemDiscount(ctx, created.ID, models.RedeemRequest{
			CustomerID:  cust,
			BookingID:   uuid.New().String(),
			OrderAmount: decimal.NewFromInt(a),
		}); err != nil {
			t.Fatalf("Failed to redeem discount: %v", err)
		}
	}

	history, err := svc.UsageHistory(ctx, created.ID, database.UsageFilter{})
	if err != nil {
		t.Fatalf("Failed to load usage history: %v", err)
	}

	if len(history.Usages) != 3 {
		t.Fatalf("Expected 3 ledger rows, got %d", len(history.Usages))
	}
	if history.Stats.TotalUsed != 3 {
		t.Errorf("Expected total_used 3, got %d", history.Stats.TotalUsed)
	}
	if !history.Stats.TotalDiscountGiven.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("Expected total_discount_given 60000, got %s", history.Stats.TotalDiscountGiven)
	}
	if !history.Stats.AverageDiscount.Equal(decimal.NewFromInt(20000)) {
		t.Errorf("Expected average 20000, got %s", history.Stats.AverageDiscount)
	}
	if history.Stats.CountMismatch {
		t.Error("Expected no count mismatch")
	}

	// Narrowed to one customer; the mismatch flag is suppressed on
	// filtered views.
	filtered, err := svc.UsageHistory(ctx, created.ID, database.UsageFilter{CustomerID: customerID})
	if err != nil {
		t.Fatalf("Failed to load filtered history: %v", err)
	}
	if len(filtered.Usages) != 1 {
		t.Fatalf("Expected 1 ledger row for the customer, got %d", len(filtered.Usages))
	}
	if filtered.Stats.CountMismatch {
		t.Error("Expected mismatch flag suppressed on filtered view")
	}
}

func TestUsageHistory_UnknownDiscount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newTestService(db)

	_, err := svc.UsageHistory(context.Background(), uuid.New().String(), database.UsageFilter{})
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
