package store

import (
	"time"

	"github.com/google/uuid"
)

// Billing tracks the prepaid token balance of a project. UsageLeft is
// nil for unmetered plans.
type Billing struct {
	ID           uuid.UUID
	UsageLeft    *int64
	NextRefillAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpdateBilling adjusts the balance or refill date of a billing row.
type UpdateBilling struct {
	ID           uuid.UUID
	UsageLeft    *int64
	NextRefillAt *time.Time
}

// NextMonthFirstDay returns the upcoming refill boundary.
func NextMonthFirstDay() time.Time {
	now := time.Now().UTC()
	if now.Month() == time.December {
		return time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
