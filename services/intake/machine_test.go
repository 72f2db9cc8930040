package intake

import (
	"context"
	"strings"
	"testing"
	"time"

	bookingRepo "questrent/database/repository/booking"
	"questrent/models"
	"questrent/services/booking"
)

var testNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	bookings []*models.Booking
}

func (f *fakeNotifier) NotifyNewBooking(ctx context.Context, b *models.Booking) error {
	f.bookings = append(f.bookings, b)
	return nil
}

type fixture struct {
	machine  *Machine
	repo     *bookingRepo.MemoryBookingRepo
	sessions *MemorySessionStore
	notifier *fakeNotifier
	clock    *time.Time
}

func newFixture() *fixture {
	now := testNow
	clock := &now
	nowFn := func() time.Time { return *clock }

	repo := bookingRepo.NewMemoryBookingRepo()
	store := &booking.ReservationStore{Repo: repo, Tariffs: booking.DefaultTariffs, Capacity: 2}
	engine := &booking.AvailabilityEngine{Repo: repo, Tariffs: booking.DefaultTariffs, Capacity: 2, HorizonDays: 30}
	sessions := NewMemorySessionStore(30*time.Minute, nowFn)
	notifier := &fakeNotifier{}

	return &fixture{
		machine: &Machine{
			Sessions:          sessions,
			Engine:            engine,
			Store:             store,
			Notifier:          notifier,
			OfferedDatesLimit: 7,
			Now:               nowFn,
		},
		repo:     repo,
		sessions: sessions,
		notifier: notifier,
		clock:    clock,
	}
}

func event(userID int64, typ, value string) models.IntakeEvent {
	return models.IntakeEvent{UserID: userID, Username: "renter", FirstName: "Sam", Type: typ, Value: value}
}

// handleOK fails the test on any error and returns the reply.
func handleOK(t *testing.T, m *Machine, ev models.IntakeEvent) *models.Reply {
	t.Helper()
	reply, err := m.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("Handle(%s %q): %v", ev.Type, ev.Value, err)
	}
	if reply == nil {
		t.Fatalf("Handle(%s %q): nil reply", ev.Type, ev.Value)
	}
	return reply
}

// firstOfferedDate pulls the first date out of an offer_choices reply.
func firstOfferedDate(t *testing.T, reply *models.Reply) string {
	t.Helper()
	if reply.Kind != models.ReplyOfferChoices {
		t.Fatalf("reply kind = %s, want offer_choices", reply.Kind)
	}
	for _, opt := range reply.Options {
		if strings.HasPrefix(opt.Data, "date_") {
			return strings.TrimPrefix(opt.Data, "date_")
		}
	}
	t.Fatal("no date option in reply")
	return ""
}

func TestIntakeHappyPath(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	const user = int64(42)

	reply := handleOK(t, f.machine, event(user, models.EventRestart, ""))
	if reply.Kind != models.ReplyOfferChoices || len(reply.Options) != 2 {
		t.Fatalf("restart reply = %+v, want 2 unit choices", reply)
	}

	reply = handleOK(t, f.machine, event(user, models.EventSelectUnits, "1"))
	if reply.Kind != models.ReplyOfferChoices || len(reply.Options) != 3 {
		t.Fatalf("units reply = %+v, want 3 duration choices", reply)
	}

	reply = handleOK(t, f.machine, event(user, models.EventSelectDays, "2"))
	dateValue := firstOfferedDate(t, reply)

	reply = handleOK(t, f.machine, event(user, models.EventSelectDate, dateValue))
	if reply.Kind != models.ReplyRequestInput {
		t.Fatalf("date reply kind = %s, want request_input", reply.Kind)
	}

	reply = handleOK(t, f.machine, event(user, models.EventText, "Main street 1"))
	if reply.Kind != models.ReplyConfirmation {
		t.Fatalf("commit reply kind = %s, want confirmation", reply.Kind)
	}
	b := reply.Booking
	if b == nil {
		t.Fatal("confirmation reply must carry the booking")
	}
	if b.Price != 130 {
		t.Errorf("price = %d, want 130 (tariff for 1 unit, 2 days)", b.Price)
	}
	if b.Status != models.StatusPending {
		t.Errorf("status = %q, want pending", b.Status)
	}
	if b.DeliveryAddress != "Main street 1" {
		t.Errorf("address = %q", b.DeliveryAddress)
	}

	if len(f.notifier.bookings) != 1 {
		t.Errorf("operator should have been notified exactly once, got %d", len(f.notifier.bookings))
	}

	// The session is destroyed on commit: the next free-text event is stale.
	if _, err := f.sessions.Get(ctx, user); err != ErrSessionNotFound {
		t.Errorf("session should be gone after commit, got %v", err)
	}
	_, err := f.machine.Handle(ctx, event(user, models.EventText, "again"))
	if !booking.HasCode(err, booking.CodeSessionExpired) {
		t.Errorf("text after commit should be sessionExpired, got %v", err)
	}
}

func TestIntakeEventWithoutSession(t *testing.T) {
	f := newFixture()

	for _, typ := range []string{models.EventSelectUnits, models.EventSelectDays, models.EventSelectDate, models.EventText} {
		reply, err := f.machine.Handle(context.Background(), event(7, typ, "1"))
		if !booking.HasCode(err, booking.CodeSessionExpired) {
			t.Errorf("%s without session: got %v, want sessionExpired", typ, err)
		}
		if reply == nil || reply.Kind != models.ReplyError {
			t.Errorf("%s without session should still produce a user-facing error reply", typ)
		}
	}
}

func TestIntakeOutOfOrderEvent(t *testing.T) {
	f := newFixture()
	const user = int64(7)

	handleOK(t, f.machine, event(user, models.EventRestart, ""))
	handleOK(t, f.machine, event(user, models.EventSelectUnits, "1"))

	// A date selection before any duration was chosen is out of order.
	_, err := f.machine.Handle(context.Background(), event(user, models.EventSelectDate, "2026-02-10"))
	if !booking.HasCode(err, booking.CodeSessionExpired) {
		t.Fatalf("selectDate before selectDays: got %v, want sessionExpired", err)
	}

	// The session itself is untouched and the dialogue can continue.
	handleOK(t, f.machine, event(user, models.EventSelectDays, "1"))
}

func TestIntakeDuplicateSelectionDoesNotDoubleAdvance(t *testing.T) {
	f := newFixture()
	const user = int64(7)

	handleOK(t, f.machine, event(user, models.EventRestart, ""))
	handleOK(t, f.machine, event(user, models.EventSelectUnits, "2"))

	// A replayed webhook re-delivers the unit selection; the machine no
	// longer expects it and must not advance again.
	_, err := f.machine.Handle(context.Background(), event(user, models.EventSelectUnits, "2"))
	if !booking.HasCode(err, booking.CodeSessionExpired) {
		t.Fatalf("duplicate selectUnits: got %v, want sessionExpired", err)
	}

	s, err := f.sessions.Get(context.Background(), user)
	if err != nil {
		t.Fatalf("session fetch: %v", err)
	}
	if s.Stage != models.StageAwaitingDays || s.Units != 2 {
		t.Errorf("session corrupted by duplicate: %+v", s)
	}
}

func TestIntakeInvalidSelections(t *testing.T) {
	f := newFixture()
	const user = int64(7)

	handleOK(t, f.machine, event(user, models.EventRestart, ""))

	_, err := f.machine.Handle(context.Background(), event(user, models.EventSelectUnits, "5"))
	if !booking.HasCode(err, booking.CodeInvalidRequest) {
		t.Fatalf("selectUnits(5): got %v, want invalidRequest", err)
	}
	s, _ := f.sessions.Get(context.Background(), user)
	if s.Stage != models.StageAwaitingUnits {
		t.Errorf("stage = %s, invalid selection must not advance", s.Stage)
	}

	handleOK(t, f.machine, event(user, models.EventSelectUnits, "1"))
	_, err = f.machine.Handle(context.Background(), event(user, models.EventSelectDays, "9"))
	if !booking.HasCode(err, booking.CodeInvalidRequest) {
		t.Fatalf("selectDays(9): got %v, want invalidRequest", err)
	}
}

func TestIntakeNoAvailabilityStaysAtDuration(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	const user = int64(7)

	// Saturate the whole horizon.
	if err := f.repo.Insert(ctx, &models.Booking{
		ID: "full", UserID: 1, Units: 2,
		StartDate: models.Midnight(testNow), EndDate: models.Midnight(testNow).AddDate(0, 0, 40),
		Status: models.StatusConfirmed, CreatedAt: testNow,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	handleOK(t, f.machine, event(user, models.EventRestart, ""))
	handleOK(t, f.machine, event(user, models.EventSelectUnits, "1"))

	reply := handleOK(t, f.machine, event(user, models.EventSelectDays, "2"))
	if reply.Kind != models.ReplyError {
		t.Fatalf("reply kind = %s, want error (no availability)", reply.Kind)
	}

	s, err := f.sessions.Get(ctx, user)
	if err != nil {
		t.Fatalf("session fetch: %v", err)
	}
	if s.Stage != models.StageAwaitingDays {
		t.Errorf("stage = %s, want awaiting_days (no transition on no availability)", s.Stage)
	}
}

func TestIntakeStaleDateRejected(t *testing.T) {
	f := newFixture()
	const user = int64(7)

	handleOK(t, f.machine, event(user, models.EventRestart, ""))
	handleOK(t, f.machine, event(user, models.EventSelectUnits, "1"))
	handleOK(t, f.machine, event(user, models.EventSelectDays, "1"))

	// Pick a date that was never offered (far outside the horizon).
	_, err := f.machine.Handle(context.Background(), event(user, models.EventSelectDate, "2027-12-31"))
	if !booking.HasCode(err, booking.CodeInvalidRequest) {
		t.Fatalf("stale date: got %v, want invalidRequest", err)
	}

	s, _ := f.sessions.Get(context.Background(), user)
	if s.Stage != models.StageAwaitingDate {
		t.Errorf("stage = %s, stale selection must not advance", s.Stage)
	}
}

func TestIntakeLostCapacityRaceReoffersDates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	const user = int64(7)

	handleOK(t, f.machine, event(user, models.EventRestart, ""))
	handleOK(t, f.machine, event(user, models.EventSelectUnits, "2"))
	reply := handleOK(t, f.machine, event(user, models.EventSelectDays, "1"))
	dateValue := firstOfferedDate(t, reply)
	handleOK(t, f.machine, event(user, models.EventSelectDate, dateValue))

	// Another requester takes both headsets for that date while this user
	// is typing the address.
	start, _ := time.ParseInLocation("2006-01-02", dateValue, time.UTC)
	if _, err := f.machine.Store.CreateReservation(ctx, booking.CreateRequest{
		UserID: 99, Units: 2, Days: 1, StartDate: start, DeliveryAddress: "rival",
	}); err != nil {
		t.Fatalf("rival booking: %v", err)
	}

	reply, err := f.machine.Handle(ctx, event(user, models.EventText, "Main street 1"))
	if !booking.HasCode(err, booking.CodeCapacityExceeded) {
		t.Fatalf("commit after race: got %v, want capacityExceeded", err)
	}
	if reply == nil || reply.Kind != models.ReplyOfferChoices {
		t.Fatalf("reply = %+v, want fresh date offer", reply)
	}
	newDate := firstOfferedDate(t, reply)
	if newDate == dateValue {
		t.Errorf("re-offered dates must not include the lost date %s", dateValue)
	}

	s, _ := f.sessions.Get(ctx, user)
	if s.Stage != models.StageAwaitingDate {
		t.Errorf("stage = %s, want awaiting_date after lost race", s.Stage)
	}

	// Nothing was committed for this user.
	all, _ := f.repo.List(ctx, bookingRepo.ListFilter{})
	for _, b := range all {
		if b.UserID == user {
			t.Errorf("lost race must not leave a booking behind: %+v", b)
		}
	}
}

func TestIntakeSessionTimeout(t *testing.T) {
	f := newFixture()
	const user = int64(7)

	handleOK(t, f.machine, event(user, models.EventRestart, ""))
	handleOK(t, f.machine, event(user, models.EventSelectUnits, "1"))

	// The user walks away past the inactivity window.
	*f.clock = f.clock.Add(31 * time.Minute)

	_, err := f.machine.Handle(context.Background(), event(user, models.EventSelectDays, "2"))
	if !booking.HasCode(err, booking.CodeSessionExpired) {
		t.Fatalf("event after timeout: got %v, want sessionExpired", err)
	}

	// Restart works from scratch.
	handleOK(t, f.machine, event(user, models.EventRestart, ""))
}

func TestIntakeRestartDiscardsPartialData(t *testing.T) {
	f := newFixture()
	const user = int64(7)

	handleOK(t, f.machine, event(user, models.EventRestart, ""))
	handleOK(t, f.machine, event(user, models.EventSelectUnits, "2"))
	handleOK(t, f.machine, event(user, models.EventRestart, ""))

	s, err := f.sessions.Get(context.Background(), user)
	if err != nil {
		t.Fatalf("session fetch: %v", err)
	}
	if s.Stage != models.StageAwaitingUnits || s.Units != 0 {
		t.Errorf("restart should discard partial data, got %+v", s)
	}
}

func TestIntakeTwoUsersDoNotContend(t *testing.T) {
	f := newFixture()

	handleOK(t, f.machine, event(1, models.EventRestart, ""))
	handleOK(t, f.machine, event(2, models.EventRestart, ""))
	handleOK(t, f.machine, event(1, models.EventSelectUnits, "1"))
	handleOK(t, f.machine, event(2, models.EventSelectUnits, "2"))

	s1, _ := f.sessions.Get(context.Background(), 1)
	s2, _ := f.sessions.Get(context.Background(), 2)
	if s1.Units != 1 || s2.Units != 2 {
		t.Errorf("sessions leaked between users: %+v / %+v", s1, s2)
	}
}
