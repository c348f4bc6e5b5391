package discount

import (
	"time"

	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/models"
)

// Status is the derived lifecycle state of a discount at a point in time.
type Status string

const (
	StatusActive   Status = "active"
	StatusUpcoming Status = "upcoming"
	StatusExpired  Status = "expired"
	StatusInactive Status = "inactive"
)

// ResolveStatus derives the discount's state from its active flag and date
// window relative to now. The inactive toggle short-circuits regardless of
// dates. now is injected by the caller; the function never reads a clock.
func ResolveStatus(d models.Discount, now time.Time) Status {
	if !d.IsActive {
		return StatusInactive
	}
	if now.Before(d.StartDate) {
		return StatusUpcoming
	}
	if now.After(d.EndDate) {
		return StatusExpired
	}
	return StatusActive
}
