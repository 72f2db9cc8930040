package booking

import (
	"context"
	"testing"
	"time"

	bookingRepo "questrent/database/repository/booking"
	"questrent/models"
)

var asOf = time.Date(2026, 1, 1, 15, 4, 5, 0, time.UTC)

// day returns midnight UTC n days after the test's asOf date.
func day(n int) time.Time {
	return models.Midnight(asOf).AddDate(0, 0, n)
}

func seedBooking(t *testing.T, repo bookingRepo.BookingRepository, id string, units int, start, end time.Time, status string) {
	t.Helper()
	err := repo.Insert(context.Background(), &models.Booking{
		ID:        id,
		UserID:    1,
		Units:     units,
		Days:      int(end.Sub(start).Hours() / 24),
		StartDate: start,
		EndDate:   end,
		Price:     100,
		Status:    status,
		CreatedAt: asOf,
	})
	if err != nil {
		t.Fatalf("seed booking %s: %v", id, err)
	}
}

func newEngine(repo bookingRepo.BookingRepository) *AvailabilityEngine {
	return &AvailabilityEngine{
		Repo:        repo,
		Tariffs:     DefaultTariffs,
		Capacity:    2,
		HorizonDays: 30,
	}
}

func TestFindAvailableStartsFullFleetBlocksWindow(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	engine := newEngine(repo)

	// Both headsets are out on days 10 and 11.
	seedBooking(t, repo, "a", 2, day(10), day(12), models.StatusPending)

	dates, err := engine.FindAvailableStarts(context.Background(), 1, 2, 30, asOf)
	if err != nil {
		t.Fatalf("FindAvailableStarts: %v", err)
	}

	offered := map[time.Time]bool{}
	for _, d := range dates {
		offered[d] = true
	}
	// A 2-day rental starting on day 9, 10 or 11 would overlap the full
	// fleet; starting on day 12 begins exactly when booking a ends.
	for _, blocked := range []int{9, 10, 11} {
		if offered[day(blocked)] {
			t.Errorf("day %d should not be offered", blocked)
		}
	}
	if !offered[day(12)] {
		t.Errorf("day 12 should be offered: adjacency is not conflict")
	}
	if !offered[day(1)] {
		t.Errorf("day 1 should be offered")
	}
}

func TestFindAvailableStartsPartialFleet(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	engine := newEngine(repo)

	// One headset out on days 5-6: a single-unit request still fits,
	// a two-unit request does not.
	seedBooking(t, repo, "a", 1, day(5), day(7), models.StatusConfirmed)

	single, err := engine.FindAvailableStarts(context.Background(), 1, 1, 30, asOf)
	if err != nil {
		t.Fatalf("FindAvailableStarts(1,1): %v", err)
	}
	if !containsDate(single, day(5)) {
		t.Errorf("day 5 should be offered for a single unit")
	}

	double, err := engine.FindAvailableStarts(context.Background(), 2, 1, 30, asOf)
	if err != nil {
		t.Fatalf("FindAvailableStarts(2,1): %v", err)
	}
	if containsDate(double, day(5)) || containsDate(double, day(6)) {
		t.Errorf("days 5 and 6 should not be offered for two units: %v", double)
	}
	if !containsDate(double, day(7)) {
		t.Errorf("day 7 should be offered for two units")
	}
}

func TestFindAvailableStartsIgnoresInactiveBookings(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	engine := newEngine(repo)

	seedBooking(t, repo, "a", 2, day(3), day(5), models.StatusCancelled)
	seedBooking(t, repo, "b", 2, day(6), day(8), models.StatusCompleted)

	dates, err := engine.FindAvailableStarts(context.Background(), 2, 1, 30, asOf)
	if err != nil {
		t.Fatalf("FindAvailableStarts: %v", err)
	}
	for _, n := range []int{3, 4, 6, 7} {
		if !containsDate(dates, day(n)) {
			t.Errorf("day %d should be offered, cancelled/completed bookings hold no units", n)
		}
	}
}

func TestFindAvailableStartsMaxResultsAndOrder(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	engine := newEngine(repo)

	dates, err := engine.FindAvailableStarts(context.Background(), 1, 2, 7, asOf)
	if err != nil {
		t.Fatalf("FindAvailableStarts: %v", err)
	}
	if len(dates) != 7 {
		t.Fatalf("got %d dates, want 7", len(dates))
	}
	for i, d := range dates {
		if !d.Equal(day(i + 1)) {
			t.Errorf("dates[%d] = %s, want %s (ascending, no gaps, no repeats)", i, d, day(i+1))
		}
	}
}

func TestFindAvailableStartsEmptyWhenHorizonFull(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	engine := newEngine(repo)
	engine.HorizonDays = 5

	seedBooking(t, repo, "a", 2, day(1), day(6), models.StatusPending)

	dates, err := engine.FindAvailableStarts(context.Background(), 1, 1, 7, asOf)
	if err != nil {
		t.Fatalf("no availability must not be an error: %v", err)
	}
	if len(dates) != 0 {
		t.Fatalf("expected no dates, got %v", dates)
	}
}

func TestFindAvailableStartsRejectsOutOfDomain(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	engine := newEngine(repo)

	cases := []struct {
		name  string
		units int
		days  int
	}{
		{"zero units", 0, 1},
		{"units above capacity", 3, 1},
		{"unsupported duration", 1, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.FindAvailableStarts(context.Background(), tc.units, tc.days, 7, asOf)
			if !HasCode(err, CodeInvalidRequest) {
				t.Fatalf("expected invalidRequest, got %v", err)
			}
		})
	}
}

func TestFindAvailableStartsIdempotentWithoutWrites(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	engine := newEngine(repo)

	seedBooking(t, repo, "a", 1, day(2), day(4), models.StatusPending)

	first, err := engine.FindAvailableStarts(context.Background(), 2, 2, 7, asOf)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := engine.FindAvailableStarts(context.Background(), 2, 2, 7, asOf)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("calls disagree: %v vs %v", first, second)
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Fatalf("calls disagree at %d: %s vs %s", i, first[i], second[i])
		}
	}
}

// Every offered date must survive the store's own capacity check.
func TestOfferedDatesNeverViolateCapacity(t *testing.T) {
	repo := bookingRepo.NewMemoryBookingRepo()
	engine := newEngine(repo)
	store := &ReservationStore{Repo: repo, Tariffs: DefaultTariffs, Capacity: 2}

	seedBooking(t, repo, "a", 1, day(3), day(6), models.StatusPending)
	seedBooking(t, repo, "b", 1, day(5), day(8), models.StatusConfirmed)

	dates, err := engine.FindAvailableStarts(context.Background(), 2, 2, 30, asOf)
	if err != nil {
		t.Fatalf("FindAvailableStarts: %v", err)
	}
	for _, d := range dates {
		booked, err := store.Repo.SumOverlappingUnits(context.Background(), d, d.AddDate(0, 0, 2))
		if err != nil {
			t.Fatalf("SumOverlappingUnits: %v", err)
		}
		if booked+2 > 2 {
			t.Errorf("offered date %s would violate capacity (%d units already booked)", d, booked)
		}
	}
}

func containsDate(dates []time.Time, d time.Time) bool {
	for _, x := range dates {
		if x.Equal(d) {
			return true
		}
	}
	return false
}
