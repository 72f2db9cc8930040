package booking

import (
	"context"
	"fmt"
	"time"

	bookingRepo "questrent/database/repository/booking"
	"questrent/models"
	"questrent/utils"

	"go.uber.org/zap"
)

// AvailabilityEngine computes which future start dates can hold a rental of
// the requested size without the fleet ever being over-committed. Every call
// recomputes from the current booking set, so results reflect commits made
// since the previous call.
type AvailabilityEngine struct {
	Repo        bookingRepo.BookingRepository
	Tariffs     Tariffs
	Capacity    int
	HorizonDays int
}

// FindAvailableStarts scans candidate start dates in (asOf, asOf+horizon],
// ascending, and returns up to maxResults dates whose full rental window
// [d, d+days) keeps total concurrent usage within fleet capacity. An empty
// result is not an error; the caller decides how to present no availability.
func (e *AvailabilityEngine) FindAvailableStarts(ctx context.Context, units, days, maxResults int, asOf time.Time) ([]time.Time, error) {
	logger := utils.GetLogger()

	if units < 1 || units > e.Capacity || !e.Tariffs.SupportsDays(units, days) {
		return nil, NewError(CodeInvalidRequest,
			fmt.Sprintf("unsupported rental request: %d units for %d days", units, days))
	}
	if maxResults < 1 {
		return nil, NewError(CodeInvalidRequest, "maxResults must be positive")
	}

	today := models.Midnight(asOf)
	var available []time.Time
	for i := 1; i <= e.HorizonDays; i++ {
		start := today.AddDate(0, 0, i)
		end := start.AddDate(0, 0, days)

		booked, err := e.Repo.SumOverlappingUnits(ctx, start, end)
		if err != nil {
			logger.Error("availability scan failed",
				zap.Time("start", start), zap.Error(err))
			return nil, fmt.Errorf("failed to scan availability for %s: %w",
				start.Format("2006-01-02"), err)
		}
		if booked+units <= e.Capacity {
			available = append(available, start)
			if len(available) >= maxResults {
				break
			}
		}
	}
	return available, nil
}
