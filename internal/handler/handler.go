package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/database"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/discount"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/features"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/models"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/service"
	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	flags       *features.Manager
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
	Flags       *features.Manager
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	return &Handler{
		service:     svc,
		flags:       opts.Flags,
		maxBodySize: opts.MaxBodySize,
	}
}

// Routes mounts all API routes on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/discounts", func(r chi.Router) {
		r.Get("/", h.ListDiscounts)
		r.Post("/", h.CreateDiscount)
		r.Post("/preview", h.PreviewSavings)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetDiscount)
			r.Put("/", h.UpdateDiscount)
			r.Delete("/", h.DeleteDiscount)
			r.Get("/usage", h.UsageHistory)
			r.Post("/redeem", h.RedeemDiscount)
		})
	})

	r.Route("/customers", func(r chi.Router) {
		r.Get("/{customer_id}/eligible-discounts", h.GetEligibleDiscounts)
	})
}

// CreateDiscount handles POST /discounts
func (h *Handler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.Discount
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	sanitizeDiscount(&req)

	created, err := h.service.CreateDiscount(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, created)
}

// UpdateDiscount handles PUT /discounts/{id}
func (h *Handler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.Discount
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.ID = validation.SanitizeString(chi.URLParam(r, "id"))
	sanitizeDiscount(&req)

	updated, err := h.service.UpdateDiscount(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// DeleteDiscount handles DELETE /discounts/{id}
func (h *Handler) DeleteDiscount(w http.ResponseWriter, r *http.Request) {
	id := validation.SanitizeString(chi.URLParam(r, "id"))

	if err := h.service.DeleteDiscount(r.Context(), id); err != nil {
		h.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetDiscount handles GET /discounts/{id}
func (h *Handler) GetDiscount(w http.ResponseWriter, r *http.Request) {
	id := validation.SanitizeString(chi.URLParam(r, "id"))

	now, ok := h.parseNow(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetDiscount(r.Context(), id, now)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, detail)
}

// ListDiscounts handles GET /discounts
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	now, ok := h.parseNow(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	f := service.ListFilter{
		Search:       validation.SanitizeString(q.Get("search")),
		Status:       validation.SanitizeString(q.Get("status")),
		DiscountType: validation.SanitizeString(q.Get("discount_type")),
		AppliesTo:    validation.SanitizeString(q.Get("applies_to")),
	}

	var err error
	if f.DateFrom, err = parseDateParam(q.Get("date_from")); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid 'date_from' parameter")
		return
	}
	if f.DateTo, err = parseDateParam(q.Get("date_to")); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid 'date_to' parameter")
		return
	}
	if hasQuota := q.Get("has_quota"); hasQuota != "" {
		v := hasQuota == "true" || hasQuota == "1"
		f.HasQuota = &v
	}

	resp, err := h.service.ListDiscounts(r.Context(), f, now)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// UsageHistory handles GET /discounts/{id}/usage
func (h *Handler) UsageHistory(w http.ResponseWriter, r *http.Request) {
	id := validation.SanitizeString(chi.URLParam(r, "id"))

	q := r.URL.Query()
	f := database.UsageFilter{
		CustomerID: validation.SanitizeString(q.Get("customer_id")),
	}

	var err error
	if f.DateFrom, err = parseDateParam(q.Get("date_from")); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid 'date_from' parameter")
		return
	}
	if f.DateTo, err = parseDateParam(q.Get("date_to")); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid 'date_to' parameter")
		return
	}

	resp, err := h.service.UsageHistory(r.Context(), id, f)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// PreviewSavings handles POST /discounts/preview
func (h *Handler) PreviewSavings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.DiscountID = validation.SanitizeString(req.DiscountID)
	req.Code = validation.SanitizeString(req.Code)

	now, ok := h.parseNow(w, r)
	if !ok {
		return
	}

	resp, err := h.service.PreviewSavings(r.Context(), req, discount.Context{Now: now})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// RedeemDiscount handles POST /discounts/{id}/redeem
func (h *Handler) RedeemDiscount(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	id := validation.SanitizeString(chi.URLParam(r, "id"))

	var req models.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.CustomerID = validation.SanitizeString(req.CustomerID)
	req.BookingID = validation.SanitizeString(req.BookingID)
	req.TargetID = validation.SanitizeString(req.TargetID)

	resp, err := h.service.RedeemDiscount(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

// GetEligibleDiscounts handles GET /customers/{customer_id}/eligible-discounts
func (h *Handler) GetEligibleDiscounts(w http.ResponseWriter, r *http.Request) {
	customerID := validation.SanitizeString(chi.URLParam(r, "customer_id"))
	if customerID == "" {
		h.respondError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	now, ok := h.parseNow(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	evalCtx := discount.Context{Now: now}

	if amount := q.Get("order_amount"); amount != "" {
		parsed, err := decimal.NewFromString(amount)
		if err != nil || parsed.IsNegative() {
			h.respondError(w, http.StatusBadRequest, "invalid 'order_amount' parameter")
			return
		}
		evalCtx.OrderAmount = parsed
	}

	if targetType := q.Get("target_type"); targetType != "" {
		targetID := validation.SanitizeString(q.Get("target_id"))
		if targetID == "" {
			h.respondError(w, http.StatusBadRequest, "'target_id' is required with 'target_type'")
			return
		}
		evalCtx.Target = &discount.Target{
			Type: models.ApplicableType(targetType),
			ID:   targetID,
		}
	}

	resp, err := h.service.GetEligibleDiscounts(r.Context(), customerID, evalCtx)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// parseNow reads the optional 'now' query parameter, defaulting to the
// server clock. The override only reaches read paths; redemption always
// uses the server clock internally.
func (h *Handler) parseNow(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	now := time.Now().UTC()
	if nowParam := r.URL.Query().Get("now"); nowParam != "" && h.clientClockAllowed() {
		parsed, err := validation.ValidateTimeString(validation.SanitizeString(nowParam))
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid 'now' parameter, must be RFC3339 format")
			return time.Time{}, false
		}
		now = parsed.UTC()
	}
	return now, true
}

// clientClockAllowed reports whether the 'now' override is honored. With no
// flag manager wired (tests), it defaults to on.
func (h *Handler) clientClockAllowed() bool {
	return h.flags == nil || h.flags.IsEnabled(features.FeatureClientClock)
}

// parseDateParam accepts RFC3339 or plain dates for the list filters.
func parseDateParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func sanitizeDiscount(d *models.Discount) {
	d.ID = validation.SanitizeString(d.ID)
	d.Name = validation.SanitizeString(d.Name)
	d.Code = validation.SanitizeString(d.Code)
	d.Description = validation.SanitizeString(d.Description)
	for i := range d.Applicables {
		d.Applicables[i].ID = validation.SanitizeString(d.Applicables[i].ID)
	}
}

// respondServiceError maps domain errors to HTTP status codes.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var validationErr *validation.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrCodeConflict):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotEligible):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, discount.ErrInvalidConfiguration):
		h.respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
