package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/cache"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/database"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/discount"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/events"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/features"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/models"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/money"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/validation"
)

// ErrNotEligible is returned when a redemption is attempted on a discount
// the customer does not currently qualify for. It is a normal business
// outcome, distinct from infrastructure errors.
var ErrNotEligible = errors.New("discount not eligible")

const discountCacheTTL = 5 * time.Minute

// Service provides business logic for the discount API.
type Service struct {
	db     *database.DB
	cache  cache.Cache
	events *events.Manager
	flags  *features.Manager
	now    func() time.Time
}

// ServiceOptions holds optional collaborators for a Service.
type ServiceOptions struct {
	Cache  cache.Cache
	Events *events.Manager
	Flags  *features.Manager
	// Now overrides the server clock, for tests only. The redemption path
	// always uses this clock, never a client-supplied timestamp.
	Now func() time.Time
}

// NewService creates a new service instance.
func NewService(db *database.DB) *Service {
	return NewServiceWithOptions(db, ServiceOptions{})
}

// NewServiceWithOptions creates a new service instance with custom options.
func NewServiceWithOptions(db *database.DB, opts ServiceOptions) *Service {
	s := &Service{
		db:     db,
		cache:  opts.Cache,
		events: opts.Events,
		flags:  opts.Flags,
		now:    opts.Now,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// CreateDiscount validates and stores a new discount. The code is normalized
// to uppercase and the redemption counter starts at zero regardless of input.
func (s *Service) CreateDiscount(ctx context.Context, d models.Discount) (models.Discount, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.Code = validation.NormalizeCode(d.Code)
	d.EndDate = normalizeEndDate(d.EndDate)
	d.UsedCount = 0

	if err := validation.ValidateDiscount(d); err != nil {
		return models.Discount{}, err
	}

	if err := s.db.InsertDiscount(ctx, d); err != nil {
		return models.Discount{}, err
	}

	s.invalidateDiscount(ctx, d)
	if s.events != nil {
		s.events.PublishDiscountCreated(ctx, d)
	}

	return d, nil
}

// UpdateDiscount validates and stores changes to an existing discount.
// used_count is owned by the redemption path and cannot be edited here.
func (s *Service) UpdateDiscount(ctx context.Context, d models.Discount) (models.Discount, error) {
	current, err := s.db.GetDiscount(ctx, d.ID)
	if err != nil {
		return models.Discount{}, err
	}

	d.Code = validation.NormalizeCode(d.Code)
	d.EndDate = normalizeEndDate(d.EndDate)
	d.UsedCount = current.UsedCount

	if err := validation.ValidateDiscount(d); err != nil {
		return models.Discount{}, err
	}

	if err := s.db.UpdateDiscount(ctx, d); err != nil {
		return models.Discount{}, err
	}

	s.invalidateDiscount(ctx, current)
	s.invalidateDiscount(ctx, d)

	return d, nil
}

// DeleteDiscount removes a discount. Ledger rows survive the delete.
func (s *Service) DeleteDiscount(ctx context.Context, id string) error {
	current, err := s.db.GetDiscount(ctx, id)
	if err != nil {
		return err
	}

	if err := s.db.DeleteDiscount(ctx, id); err != nil {
		return err
	}

	s.invalidateDiscount(ctx, current)
	return nil
}

// GetDiscount returns one discount with its derived status and usage stats.
func (s *Service) GetDiscount(ctx context.Context, id string, now time.Time) (models.DiscountDetail, error) {
	d, err := s.db.GetDiscount(ctx, id)
	if err != nil {
		return models.DiscountDetail{}, err
	}

	usages, err := s.db.ListUsages(ctx, database.UsageFilter{DiscountID: id})
	if err != nil {
		return models.DiscountDetail{}, fmt.Errorf("failed to load usage ledger: %w", err)
	}

	stats := discount.AggregateUsage(d, usages)
	if stats.CountMismatch {
		// Report, don't crash the render path. Display still prefers the
		// authoritative used_count.
		log.Printf("data consistency mismatch on discount %s: ledger=%d used_count=%d",
			d.ID, stats.TotalUsed, d.UsedCount)
	}

	return models.DiscountDetail{
		Discount: d,
		Status:   string(discount.ResolveStatus(d, now)),
		Stats:    stats,
	}, nil
}

// ListFilter mirrors the query parameters of the admin list view.
type ListFilter struct {
	Search       string
	Status       string
	DiscountType string
	AppliesTo    string
	DateFrom     *time.Time
	DateTo       *time.Time
	HasQuota     *bool
}

// ListDiscounts returns discounts matching the filter with their derived
// status. The status filter is time-dependent, so it is applied here after
// the storage-level filters.
func (s *Service) ListDiscounts(ctx context.Context, f ListFilter, now time.Time) (models.DiscountListResponse, error) {
	discounts, err := s.db.ListDiscounts(ctx, database.DiscountFilter{
		Search:       f.Search,
		DiscountType: f.DiscountType,
		AppliesTo:    f.AppliesTo,
		DateFrom:     f.DateFrom,
		DateTo:       f.DateTo,
		HasQuota:     f.HasQuota,
	})
	if err != nil {
		return models.DiscountListResponse{}, err
	}

	items := make([]models.DiscountListItem, 0, len(discounts))
	for _, d := range discounts {
		status := discount.ResolveStatus(d, now)
		if f.Status != "" && string(status) != f.Status {
			continue
		}
		items = append(items, models.DiscountListItem{
			Discount:       d,
			Status:         string(status),
			RemainingQuota: discount.RemainingQuota(d),
		})
	}

	return models.DiscountListResponse{
		Discounts: items,
		Total:     len(items),
	}, nil
}

// GetEligibleDiscounts returns all discounts a customer is eligible for at
// the given time, with the savings each would yield on the order amount.
func (s *Service) GetEligibleDiscounts(
	ctx context.Context,
	customerID string,
	evalCtx discount.Context,
) (models.EligibleDiscountsResponse, error) {
	if err := validation.ValidateUUID(customerID, "customer_id"); err != nil {
		return models.EligibleDiscountsResponse{}, err
	}

	candidates, err := s.db.ListDiscounts(ctx, database.DiscountFilter{})
	if err != nil {
		return models.EligibleDiscountsResponse{}, fmt.Errorf("failed to load discounts: %w", err)
	}

	var eligible []models.EligibleDiscount
	for _, d := range candidates {
		used, err := s.db.CountCustomerUsage(ctx, d.ID, customerID)
		if err != nil {
			return models.EligibleDiscountsResponse{}, fmt.Errorf("failed to count usage: %w", err)
		}

		dctx := evalCtx
		dctx.CustomerUsageCount = used

		if reason := discount.Evaluate(d, dctx); reason != discount.ReasonEligible {
			continue
		}

		savings, err := discount.CalculateSavings(d, evalCtx.OrderAmount)
		if err != nil {
			// A malformed record slipping past the write path is a data bug;
			// surface it instead of skipping silently.
			return models.EligibleDiscountsResponse{}, fmt.Errorf("discount %s: %w", d.ID, err)
		}

		eligible = append(eligible, models.EligibleDiscount{
			DiscountID:     d.ID,
			Name:           d.Name,
			Code:           d.Code,
			Reason:         eligibleReason(d, savings),
			DiscountAmount: savings.DiscountAmount,
			FinalAmount:    savings.FinalAmount,
		})
	}

	if s.events != nil {
		s.events.PublishEligibilityChecked(ctx, customerID, eligible)
	}

	return models.EligibleDiscountsResponse{
		CustomerID:        customerID,
		EligibleDiscounts: eligible,
	}, nil
}

// PreviewSavings quotes a discount against an order amount without
// consuming quota. Ineligibility is a normal response, not an error.
func (s *Service) PreviewSavings(ctx context.Context, req models.PreviewRequest, evalCtx discount.Context) (models.PreviewResponse, error) {
	d, err := s.lookupDiscount(ctx, req)
	if err != nil {
		return models.PreviewResponse{}, err
	}

	savings, err := discount.CalculateSavings(d, req.OrderAmount)
	if err != nil {
		return models.PreviewResponse{}, err
	}

	evalCtx.OrderAmount = req.OrderAmount
	reason := discount.Evaluate(d, evalCtx)

	resp := models.PreviewResponse{
		DiscountID:      d.ID,
		Status:          string(discount.ResolveStatus(d, evalCtx.Now)),
		Eligible:        reason == discount.ReasonEligible,
		OriginalAmount:  savings.OriginalAmount,
		DiscountAmount:  savings.DiscountAmount,
		FinalAmount:     savings.FinalAmount,
		FormattedAmount: money.FormatIDR(savings.FinalAmount),
	}
	if reason != discount.ReasonEligible {
		resp.Reason = string(reason)
	}

	return resp, nil
}

// RedeemDiscount applies a discount to a booking. Eligibility is re-checked
// inside the transaction with the server clock, and the quota increment is
// conditional, so concurrent redemptions cannot jointly exceed usage_limit.
func (s *Service) RedeemDiscount(ctx context.Context, discountID string, req models.RedeemRequest) (models.RedeemResponse, error) {
	if err := validation.ValidateRedeemRequest(req); err != nil {
		return models.RedeemResponse{}, err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return models.RedeemResponse{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	d, err := s.db.GetDiscountTx(tx, discountID)
	if err != nil {
		return models.RedeemResponse{}, err
	}

	customerUsed, err := s.db.CountCustomerUsageTx(tx, discountID, req.CustomerID)
	if err != nil {
		return models.RedeemResponse{}, err
	}

	// Commit-time re-check with a trusted clock. Client-supplied "now" is
	// display-only and never reaches this gate.
	now := s.now()
	evalCtx := discount.Context{
		Now:                now,
		OrderAmount:        req.OrderAmount,
		CustomerUsageCount: customerUsed,
	}
	if req.TargetType != "" {
		evalCtx.Target = &discount.Target{Type: req.TargetType, ID: req.TargetID}
	}

	if reason := discount.Evaluate(d, evalCtx); reason != discount.ReasonEligible {
		return models.RedeemResponse{}, fmt.Errorf("%w: %s", ErrNotEligible, reason)
	}

	savings, err := discount.CalculateSavings(d, req.OrderAmount)
	if err != nil {
		return models.RedeemResponse{}, err
	}

	if err := s.db.ConsumeQuotaTx(tx, discountID); err != nil {
		if errors.Is(err, database.ErrQuotaExhausted) {
			return models.RedeemResponse{}, fmt.Errorf("%w: %s", ErrNotEligible, discount.ReasonQuotaExhausted)
		}
		return models.RedeemResponse{}, err
	}

	usage := models.DiscountUsage{
		ID:             uuid.New().String(),
		DiscountID:     discountID,
		CustomerID:     req.CustomerID,
		BookingID:      req.BookingID,
		OriginalAmount: savings.OriginalAmount,
		DiscountAmount: savings.DiscountAmount,
		FinalAmount:    savings.FinalAmount,
		UsedAt:         now,
	}
	if err := s.db.InsertUsageTx(tx, usage); err != nil {
		return models.RedeemResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.RedeemResponse{}, fmt.Errorf("failed to commit redemption: %w", err)
	}
	committed = true

	s.invalidateDiscount(ctx, d)
	if s.events != nil {
		s.events.PublishDiscountRedeemed(ctx, d, usage)
	}

	d.UsedCount++
	return models.RedeemResponse{
		Usage:          usage,
		RemainingQuota: discount.RemainingQuota(d),
	}, nil
}

// UsageHistory returns the redemption ledger of a discount with summary
// statistics, optionally narrowed by customer and date range.
func (s *Service) UsageHistory(ctx context.Context, discountID string, f database.UsageFilter) (models.UsageHistoryResponse, error) {
	d, err := s.db.GetDiscount(ctx, discountID)
	if err != nil {
		return models.UsageHistoryResponse{}, err
	}

	f.DiscountID = discountID
	usages, err := s.db.ListUsages(ctx, f)
	if err != nil {
		return models.UsageHistoryResponse{}, err
	}

	stats := discount.AggregateUsage(d, usages)
	if stats.CountMismatch && f.CustomerID == "" && f.DateFrom == nil && f.DateTo == nil {
		// The mismatch flag only means something on the unfiltered ledger.
		log.Printf("data consistency mismatch on discount %s: ledger=%d used_count=%d",
			d.ID, stats.TotalUsed, d.UsedCount)
	} else if f.CustomerID != "" || f.DateFrom != nil || f.DateTo != nil {
		stats.CountMismatch = false
	}

	return models.UsageHistoryResponse{
		DiscountID: discountID,
		Usages:     usages,
		Stats:      stats,
	}, nil
}

// lookupDiscount resolves a preview request by id or code, consulting the
// cache for code lookups when the cache feature is on.
func (s *Service) lookupDiscount(ctx context.Context, req models.PreviewRequest) (models.Discount, error) {
	if req.DiscountID != "" {
		return s.db.GetDiscount(ctx, req.DiscountID)
	}

	code := validation.NormalizeCode(req.Code)
	if code == "" {
		return models.Discount{}, &validation.ValidationError{
			Field:   "code",
			Message: "discount_id or code is required",
		}
	}

	if s.cacheEnabled() {
		var cached models.Discount
		if err := cache.GetJSON(ctx, s.cache, codeCacheKey(code), &cached); err == nil {
			return cached, nil
		}
	}

	d, err := s.db.GetDiscountByCode(ctx, code)
	if err != nil {
		return models.Discount{}, err
	}

	if s.cacheEnabled() {
		_ = cache.SetJSON(ctx, s.cache, codeCacheKey(code), d, discountCacheTTL)
	}

	return d, nil
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && (s.flags == nil || s.flags.IsEnabled(features.FeatureCacheEnabled))
}

func (s *Service) invalidateDiscount(ctx context.Context, d models.Discount) {
	if s.cache == nil || d.Code == "" {
		return
	}
	_ = s.cache.Delete(ctx, codeCacheKey(d.Code))
}

func codeCacheKey(code string) string {
	return "discount:code:" + code
}

// eligibleReason builds the short human explanation shown next to an
// eligible discount.
func eligibleReason(d models.Discount, savings discount.Savings) string {
	switch d.DiscountType {
	case models.DiscountPercentage:
		return fmt.Sprintf("%s off, save %s",
			money.FormatPercent(d.DiscountValue), money.FormatIDR(savings.DiscountAmount))
	default:
		return fmt.Sprintf("save %s", money.FormatIDR(savings.DiscountAmount))
	}
}

// normalizeEndDate widens a date-only end_date to the last second of that
// day so the configured window stays inclusive, matching what the admin
// screens promise.
func normalizeEndDate(end time.Time) time.Time {
	if end.IsZero() {
		return end
	}
	h, m, sec := end.Clock()
	if h == 0 && m == 0 && sec == 0 && end.Nanosecond() == 0 {
		return end.Add(24*time.Hour - time.Second)
	}
	return end
}
