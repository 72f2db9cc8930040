package notification

import (
	"context"

	"questrent/models"
)

// Service alerts the operator about booking events. Delivery failures are
// the caller's to log; they never affect the booking itself.
type Service interface {
	NotifyNewBooking(ctx context.Context, b *models.Booking) error
}
