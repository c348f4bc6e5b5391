package events

import (
	"context"
	"sync"
	"time"

	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventDiscountCreated is emitted when a discount is created
	EventDiscountCreated EventType = "discount.created"
	// EventDiscountRedeemed is emitted when a discount is redeemed against a booking
	EventDiscountRedeemed EventType = "discount.redeemed"
	// EventEligibilityChecked is emitted when eligibility is checked for a customer
	EventEligibilityChecked EventType = "eligibility.checked"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// DiscountCreatedData contains data for discount created events.
type DiscountCreatedData struct {
	Discount models.Discount
}

// DiscountRedeemedData contains data for discount redeemed events.
type DiscountRedeemedData struct {
	Discount models.Discount
	Usage    models.DiscountUsage
}

// EligibilityCheckedData contains data for eligibility checked events.
type EligibilityCheckedData struct {
	CustomerID        string
	EligibleDiscounts []models.EligibleDiscount
	CheckedAt         time.Time
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run
// asynchronously so the request path never blocks on them.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				_ = err
			}
		}(handler)
	}
}

// PublishDiscountCreated publishes a discount created event.
func (m *Manager) PublishDiscountCreated(ctx context.Context, d models.Discount) {
	m.Publish(ctx, EventDiscountCreated, DiscountCreatedData{Discount: d})
}

// PublishDiscountRedeemed publishes a discount redeemed event.
func (m *Manager) PublishDiscountRedeemed(ctx context.Context, d models.Discount, usage models.DiscountUsage) {
	m.Publish(ctx, EventDiscountRedeemed, DiscountRedeemedData{
		Discount: d,
		Usage:    usage,
	})
}

// PublishEligibilityChecked publishes an eligibility checked event.
func (m *Manager) PublishEligibilityChecked(ctx context.Context, customerID string, eligible []models.EligibleDiscount) {
	m.Publish(ctx, EventEligibilityChecked, EligibilityCheckedData{
		CustomerID:        customerID,
		EligibleDiscounts: eligible,
		CheckedAt:         time.Now(),
	})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
