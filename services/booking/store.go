package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	bookingRepo "questrent/database/repository/booking"
	"questrent/models"
	"questrent/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateRequest carries everything needed to commit a rental booking.
type CreateRequest struct {
	UserID          int64
	Username        string
	FirstName       string
	Units           int
	Days            int
	StartDate       time.Time
	DeliveryAddress string
}

// ReservationStore owns the booking collection and is the single
// serialization point for the capacity invariant: the re-check and the
// insert in CreateReservation run under one mutex, so of two concurrent
// creates that together exceed capacity, at most one can win. The loser
// gets capacityExceeded, never a corrupted booking.
type ReservationStore struct {
	Repo     bookingRepo.BookingRepository
	Tariffs  Tariffs
	Capacity int

	mu sync.Mutex
}

// CreateReservation validates the request, re-checks capacity against the
// current booking set and commits a pending booking. The availability read
// the user saw earlier may be stale by now; this check is authoritative.
// Nothing else (message delivery, notification) happens inside the critical
// section.
func (s *ReservationStore) CreateReservation(ctx context.Context, req CreateRequest) (*models.Booking, error) {
	logger := utils.GetLogger()

	if req.Units < 1 || req.Units > s.Capacity || !s.Tariffs.SupportsDays(req.Units, req.Days) {
		return nil, NewError(CodeInvalidRequest,
			fmt.Sprintf("unsupported rental request: %d units for %d days", req.Units, req.Days))
	}
	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return nil, NewError(CodeInvalidRequest, "delivery address must not be empty")
	}

	price, err := s.Tariffs.Price(req.Units, req.Days)
	if err != nil {
		return nil, err
	}

	start := models.Midnight(req.StartDate)
	end := start.AddDate(0, 0, req.Days)

	s.mu.Lock()
	defer s.mu.Unlock()

	booked, err := s.Repo.SumOverlappingUnits(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to check capacity: %w", err)
	}
	if booked+req.Units > s.Capacity {
		return nil, NewError(CodeCapacityExceeded,
			fmt.Sprintf("only %d of %d units free between %s and %s",
				s.Capacity-booked, s.Capacity,
				start.Format("2006-01-02"), end.Format("2006-01-02")))
	}

	b := &models.Booking{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Username:        req.Username,
		FirstName:       req.FirstName,
		Units:           req.Units,
		Days:            req.Days,
		StartDate:       start,
		EndDate:         end,
		Price:           price,
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		Status:          models.StatusPending,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.Repo.Insert(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to persist booking: %w", err)
	}

	logger.Info("booking created",
		zap.String("bookingID", b.ID),
		zap.Int64("userID", b.UserID),
		zap.Int("units", b.Units),
		zap.Time("startDate", b.StartDate),
		zap.Int("price", b.Price))
	return b, nil
}

// UpdateStatus overwrites a booking's status. Any status may replace any
// other; there is deliberately no transition graph here, so a stricter one
// can later be substituted without changing callers.
func (s *ReservationStore) UpdateStatus(ctx context.Context, id, status string) error {
	switch status {
	case models.StatusPending, models.StatusConfirmed, models.StatusCompleted, models.StatusCancelled:
	default:
		return NewError(CodeInvalidRequest, fmt.Sprintf("unknown status %q", status))
	}
	if err := s.Repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, bookingRepo.ErrNotFound) {
			return NewError(CodeNotFound, fmt.Sprintf("booking %s not found", id))
		}
		return err
	}
	return nil
}

// Delete removes a booking record entirely.
func (s *ReservationStore) Delete(ctx context.Context, id string) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		if errors.Is(err, bookingRepo.ErrNotFound) {
			return NewError(CodeNotFound, fmt.Sprintf("booking %s not found", id))
		}
		return err
	}
	return nil
}

// GetByID fetches a single booking.
func (s *ReservationStore) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrNotFound) {
			return nil, NewError(CodeNotFound, fmt.Sprintf("booking %s not found", id))
		}
		return nil, err
	}
	return b, nil
}
