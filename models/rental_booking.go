package models

import "time"

// Booking statuses. The status field is an open overwrite: the admin surface
// may set any status on any booking, there is no enforced transition graph.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// ActiveStatuses are the statuses that count against fleet capacity.
var ActiveStatuses = []string{StatusPending, StatusConfirmed}

// Booking represents a committed rental of one or more headsets for a
// contiguous range of days. All fields except Status are immutable after
// creation.
type Booking struct {
	ID              string    `bson:"id" json:"id"`                           // Unique booking identifier (UUID)
	UserID          int64     `bson:"user_id" json:"user_id"`                 // Telegram user who made the booking
	Username        string    `bson:"username,omitempty" json:"username,omitempty"`
	FirstName       string    `bson:"first_name,omitempty" json:"first_name,omitempty"`
	Units           int       `bson:"units" json:"units"`                     // Number of headsets booked
	Days            int       `bson:"days" json:"days"`                       // Rental duration in days
	StartDate       time.Time `bson:"start_date" json:"start_date"`           // Midnight UTC
	EndDate         time.Time `bson:"end_date" json:"end_date"`               // StartDate + Days, exclusive
	Price           int       `bson:"price" json:"price"`                     // Fixed at creation from the tariff table
	DeliveryAddress string    `bson:"delivery_address" json:"delivery_address"`
	Status          string    `bson:"status" json:"status"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}

// Overlaps reports whether the booking's rental window shares at least one
// instant with [start, end). Windows are half-open, so a booking ending
// exactly when another starts does not overlap it.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartDate.Before(end) && b.EndDate.After(start)
}

// Active reports whether the booking counts against capacity.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// MonthlyStats aggregates bookings created within a calendar month.
// Revenue excludes cancelled bookings.
type MonthlyStats struct {
	Count   int `json:"count"`
	Revenue int `json:"revenue"`
}

// Midnight truncates t to midnight UTC. All rental dates are stored this way.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
