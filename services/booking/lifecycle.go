package booking

import (
	"context"
	"time"

	bookingRepo "questrent/database/repository/booking"
	"questrent/models"
)

// LifecycleService is the read side of the booking engine: listings and
// aggregates for the admin surface. It holds no state of its own.
type LifecycleService struct {
	Repo bookingRepo.BookingRepository
}

// ActiveReservations lists pending and confirmed bookings whose rental
// window has not fully elapsed, ordered by start date ascending.
func (l *LifecycleService) ActiveReservations(ctx context.Context, asOf time.Time) ([]models.Booking, error) {
	return l.Repo.List(ctx, bookingRepo.ListFilter{
		Statuses:      models.ActiveStatuses,
		EndsOnOrAfter: &asOf,
		SortBy:        bookingRepo.SortByStartDate,
		Ascending:     true,
	})
}

// AllReservations lists bookings newest-first, up to limit.
func (l *LifecycleService) AllReservations(ctx context.Context, limit int64) ([]models.Booking, error) {
	return l.Repo.List(ctx, bookingRepo.ListFilter{
		SortBy: bookingRepo.SortByCreatedAt,
		Limit:  limit,
	})
}

// MonthlyStats aggregates bookings created within the calendar month that
// contains the given instant. Revenue excludes cancelled bookings; the count
// does not.
func (l *LifecycleService) MonthlyStats(ctx context.Context, month time.Time) (models.MonthlyStats, error) {
	month = month.UTC()
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	bookings, err := l.Repo.List(ctx, bookingRepo.ListFilter{
		CreatedAfter:  &start,
		CreatedBefore: &end,
	})
	if err != nil {
		return models.MonthlyStats{}, err
	}

	var stats models.MonthlyStats
	for _, b := range bookings {
		stats.Count++
		if b.Status != models.StatusCancelled {
			stats.Revenue += b.Price
		}
	}
	return stats, nil
}
