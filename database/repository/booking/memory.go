package bookingRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"questrent/models"
)

// MemoryBookingRepo is an in-memory BookingRepository. It backs unit tests
// and local runs without a MongoDB instance.
type MemoryBookingRepo struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking
}

// NewMemoryBookingRepo constructs an empty in-memory repository.
func NewMemoryBookingRepo() *MemoryBookingRepo {
	return &MemoryBookingRepo{
		bookings: make(map[string]models.Booking),
	}
}

func (repo *MemoryBookingRepo) Insert(ctx context.Context, b *models.Booking) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.bookings[b.ID] = *b
	return nil
}

func (repo *MemoryBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	b, ok := repo.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (repo *MemoryBookingRepo) SumOverlappingUnits(ctx context.Context, start, end time.Time) (int, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	totalUnits := 0
	for _, b := range repo.bookings {
		if b.Active() && b.Overlaps(start, end) {
			totalUnits += b.Units
		}
	}
	return totalUnits, nil
}

func (repo *MemoryBookingRepo) UpdateStatus(ctx context.Context, id, status string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	b, ok := repo.bookings[id]
	if !ok {
		return ErrNotFound
	}
	b.Status = status
	repo.bookings[id] = b
	return nil
}

func (repo *MemoryBookingRepo) Delete(ctx context.Context, id string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.bookings[id]; !ok {
		return ErrNotFound
	}
	delete(repo.bookings, id)
	return nil
}

func (repo *MemoryBookingRepo) List(ctx context.Context, filter ListFilter) ([]models.Booking, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	var out []models.Booking
	for _, b := range repo.bookings {
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, b.Status) {
			continue
		}
		if filter.EndsOnOrAfter != nil && b.EndDate.Before(*filter.EndsOnOrAfter) {
			continue
		}
		if filter.CreatedAfter != nil && b.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && !b.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool {
		var less bool
		switch filter.SortBy {
		case SortByStartDate:
			less = out[i].StartDate.Before(out[j].StartDate)
		default:
			less = out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if filter.Ascending {
			return less
		}
		return !less
	})

	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
