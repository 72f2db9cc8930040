package bookingRepo

import (
	"context"
	"time"

	"questrent/models"
)

// Sort keys accepted by ListFilter.
const (
	SortByStartDate = "start_date"
	SortByCreatedAt = "created_at"
)

// ListFilter narrows and orders a booking listing.
type ListFilter struct {
	Statuses      []string
	EndsOnOrAfter *time.Time
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	SortBy        string
	Ascending     bool
	Limit         int64
}

// BookingRepository persists rental bookings. SumOverlappingUnits is the one
// shared overlap predicate: both the availability scan and the commit-time
// capacity check go through it, so the two can never diverge.
type BookingRepository interface {
	Insert(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	// SumOverlappingUnits returns the total units held by pending or
	// confirmed bookings whose [start_date, end_date) window overlaps
	// [start, end) under half-open semantics.
	SumOverlappingUnits(ctx context.Context, start, end time.Time) (int, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]models.Booking, error)
}
