package intake

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"questrent/models"
	"questrent/services/booking"
	"questrent/services/notification"
	"questrent/utils"

	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Machine drives the multi-step booking dialogue: units → days → start date
// → delivery address. It owns session state exclusively and touches bookings
// only through the availability engine and the reservation store.
//
// Handle returns the single outward Reply for the transition. For expected
// dialogue failures (expired session, stale selection, lost capacity race)
// it returns both a user-facing error Reply and the typed booking error;
// only infrastructure faults return a nil Reply.
type Machine struct {
	Sessions SessionStore
	Engine   *booking.AvailabilityEngine
	Store    *booking.ReservationStore
	Notifier notification.Service

	OfferedDatesLimit int
	Now               func() time.Time
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Handle processes one intake event and advances the user's session.
func (m *Machine) Handle(ctx context.Context, ev models.IntakeEvent) (*models.Reply, error) {
	switch ev.Type {
	case models.EventRestart:
		return m.restart(ctx, ev)
	case models.EventSelectUnits:
		return m.selectUnits(ctx, ev)
	case models.EventSelectDays:
		return m.selectDays(ctx, ev)
	case models.EventSelectDate:
		return m.selectDate(ctx, ev)
	case models.EventText:
		return m.text(ctx, ev)
	default:
		err := booking.NewError(booking.CodeInvalidRequest, fmt.Sprintf("unknown intake event %q", ev.Type))
		return errorReply("Sorry, I didn't understand that."), err
	}
}

// restart discards any partial session and begins at the units step.
func (m *Machine) restart(ctx context.Context, ev models.IntakeEvent) (*models.Reply, error) {
	s := &models.IntakeSession{
		UserID:    ev.UserID,
		Username:  ev.Username,
		FirstName: ev.FirstName,
		Stage:     models.StageAwaitingUnits,
		UpdatedAt: m.now(),
	}
	if err := m.Sessions.Put(ctx, s); err != nil {
		return nil, err
	}

	var opts []models.ReplyOption
	for _, units := range m.Store.Tariffs.UnitChoices(m.Store.Capacity) {
		opts = append(opts, models.ReplyOption{
			Label: fmt.Sprintf("%d %s", units, plural(units, "headset", "headsets")),
			Data:  fmt.Sprintf("units_%d", units),
		})
	}
	return &models.Reply{
		Kind:    models.ReplyOfferChoices,
		Text:    "How many headsets would you like to rent?",
		Options: opts,
	}, nil
}

func (m *Machine) selectUnits(ctx context.Context, ev models.IntakeEvent) (*models.Reply, error) {
	s, err := m.session(ctx, ev.UserID, models.StageAwaitingUnits)
	if err != nil {
		if booking.HasCode(err, booking.CodeSessionExpired) {
			return expiredReply(), err
		}
		return nil, err
	}

	units, parseErr := strconv.Atoi(ev.Value)
	if parseErr != nil || units < 1 || units > m.Store.Capacity || !m.Store.Tariffs.SupportsUnits(units) {
		err := booking.NewError(booking.CodeInvalidRequest, fmt.Sprintf("unsupported unit count %q", ev.Value))
		return errorReply("Please pick one of the offered headset counts."), err
	}

	s.Units = units
	s.Stage = models.StageAwaitingDays
	s.UpdatedAt = m.now()
	if err := m.Sessions.Put(ctx, s); err != nil {
		return nil, err
	}

	var opts []models.ReplyOption
	for _, d := range m.Store.Tariffs.DayChoices(units) {
		price, _ := m.Store.Tariffs.Price(units, d)
		opts = append(opts, models.ReplyOption{
			Label: fmt.Sprintf("%d %s — %d", d, plural(d, "day", "days"), price),
			Data:  fmt.Sprintf("days_%d", d),
		})
	}
	return &models.Reply{
		Kind:    models.ReplyOfferChoices,
		Text:    "For how many days?",
		Options: opts,
	}, nil
}

func (m *Machine) selectDays(ctx context.Context, ev models.IntakeEvent) (*models.Reply, error) {
	s, err := m.session(ctx, ev.UserID, models.StageAwaitingDays)
	if err != nil {
		if booking.HasCode(err, booking.CodeSessionExpired) {
			return expiredReply(), err
		}
		return nil, err
	}

	days, parseErr := strconv.Atoi(ev.Value)
	if parseErr != nil || !m.Store.Tariffs.SupportsDays(s.Units, days) {
		err := booking.NewError(booking.CodeInvalidRequest, fmt.Sprintf("unsupported duration %q", ev.Value))
		return errorReply("Please pick one of the offered durations."), err
	}

	dates, err := m.Engine.FindAvailableStarts(ctx, s.Units, days, m.OfferedDatesLimit, m.now())
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		// No transition: the user stays at the duration step and must pick
		// a different duration or start over.
		return &models.Reply{
			Kind: models.ReplyError,
			Text: "Unfortunately there are no free dates for that rental in the next few weeks. Try a different duration or unit count.",
			Options: []models.ReplyOption{
				{Label: "Start over", Data: "restart"},
			},
		}, nil
	}

	s.Days = days
	s.OfferedDates = dates
	s.Stage = models.StageAwaitingDate
	s.UpdatedAt = m.now()
	if err := m.Sessions.Put(ctx, s); err != nil {
		return nil, err
	}

	price, _ := m.Store.Tariffs.Price(s.Units, days)
	return &models.Reply{
		Kind:    models.ReplyOfferChoices,
		Text:    fmt.Sprintf("Pick a start date. Total price: %d", price),
		Options: dateOptions(dates),
	}, nil
}

func (m *Machine) selectDate(ctx context.Context, ev models.IntakeEvent) (*models.Reply, error) {
	s, err := m.session(ctx, ev.UserID, models.StageAwaitingDate)
	if err != nil {
		if booking.HasCode(err, booking.CodeSessionExpired) {
			return expiredReply(), err
		}
		return nil, err
	}

	start, parseErr := time.ParseInLocation(dateLayout, ev.Value, time.UTC)
	if parseErr != nil {
		err := booking.NewError(booking.CodeInvalidRequest, fmt.Sprintf("malformed date %q", ev.Value))
		return errorReply("Please pick one of the offered dates."), err
	}
	if !s.Offered(start) {
		// A selection outside the offered set is stale (old keyboard,
		// replayed webhook) and must not advance the dialogue.
		err := booking.NewError(booking.CodeInvalidRequest, fmt.Sprintf("date %s was not offered", ev.Value))
		return errorReply("That date is no longer on offer. Please pick one of the offered dates."), err
	}

	s.StartDate = start
	s.Stage = models.StageAwaitingAddress
	s.UpdatedAt = m.now()
	if err := m.Sessions.Put(ctx, s); err != nil {
		return nil, err
	}

	end := start.AddDate(0, 0, s.Days)
	return &models.Reply{
		Kind: models.ReplyRequestInput,
		Text: fmt.Sprintf("Selected %s – %s. Now send the delivery address.",
			start.Format("02.01.2006"), end.Format("02.01.2006")),
	}, nil
}

// text handles the free-form delivery address and commits the booking.
func (m *Machine) text(ctx context.Context, ev models.IntakeEvent) (*models.Reply, error) {
	logger := utils.GetLogger()

	s, err := m.session(ctx, ev.UserID, models.StageAwaitingAddress)
	if err != nil {
		if booking.HasCode(err, booking.CodeSessionExpired) {
			return expiredReply(), err
		}
		return nil, err
	}

	if strings.TrimSpace(ev.Value) == "" {
		err := booking.NewError(booking.CodeInvalidRequest, "empty delivery address")
		return &models.Reply{
			Kind: models.ReplyRequestInput,
			Text: "The address looks empty. Please send the delivery address.",
		}, err
	}

	b, err := m.Store.CreateReservation(ctx, booking.CreateRequest{
		UserID:          s.UserID,
		Username:        s.Username,
		FirstName:       s.FirstName,
		Units:           s.Units,
		Days:            s.Days,
		StartDate:       s.StartDate,
		DeliveryAddress: ev.Value,
	})
	if booking.HasCode(err, booking.CodeCapacityExceeded) {
		// Someone else took the units while this dialogue was in flight.
		// Re-offer fresh dates instead of silently committing anything.
		return m.reofferDates(ctx, s, err)
	}
	if err != nil {
		return nil, err
	}

	if delErr := m.Sessions.Delete(ctx, s.UserID); delErr != nil {
		logger.Warn("failed to clear committed intake session",
			zap.Int64("userID", s.UserID), zap.Error(delErr))
	}

	// Operator notification happens after the booking is durably committed;
	// a delivery failure must never roll it back.
	if m.Notifier != nil {
		if notifyErr := m.Notifier.NotifyNewBooking(ctx, b); notifyErr != nil {
			logger.Error("failed to notify operator about new booking",
				zap.String("bookingID", b.ID), zap.Error(notifyErr))
		}
	}

	return &models.Reply{
		Kind: models.ReplyConfirmation,
		Text: fmt.Sprintf(
			"Your booking is in!\n\nOrder: %s\nHeadsets: %d\nPeriod: %s – %s (%d %s)\nPrice: %d\nDelivery: %s\n\nPlease wait for the operator to confirm.",
			shortID(b.ID), b.Units,
			b.StartDate.Format("02.01.2006"), b.EndDate.Format("02.01.2006"),
			b.Days, plural(b.Days, "day", "days"),
			b.Price, b.DeliveryAddress),
		Booking: b,
	}, nil
}

// reofferDates returns the user to the date step after a lost capacity race.
func (m *Machine) reofferDates(ctx context.Context, s *models.IntakeSession, cause error) (*models.Reply, error) {
	dates, err := m.Engine.FindAvailableStarts(ctx, s.Units, s.Days, m.OfferedDatesLimit, m.now())
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		s.Stage = models.StageAwaitingDays
		s.StartDate = time.Time{}
		s.OfferedDates = nil
		s.UpdatedAt = m.now()
		if putErr := m.Sessions.Put(ctx, s); putErr != nil {
			return nil, putErr
		}
		return &models.Reply{
			Kind: models.ReplyError,
			Text: "That date was just taken and no other dates fit the chosen duration. Try a different duration.",
			Options: []models.ReplyOption{
				{Label: "Start over", Data: "restart"},
			},
		}, cause
	}

	s.Stage = models.StageAwaitingDate
	s.StartDate = time.Time{}
	s.OfferedDates = dates
	s.UpdatedAt = m.now()
	if putErr := m.Sessions.Put(ctx, s); putErr != nil {
		return nil, putErr
	}
	return &models.Reply{
		Kind:    models.ReplyOfferChoices,
		Text:    "That date was just taken by another booking. Please pick a different start date.",
		Options: dateOptions(dates),
	}, cause
}

// session fetches the user's session and checks the dialogue is at the
// expected stage. Anything else means the event is stale, replayed out of
// order, or arrived after timeout-driven destruction.
func (m *Machine) session(ctx context.Context, userID int64, stage string) (*models.IntakeSession, error) {
	s, err := m.Sessions.Get(ctx, userID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, booking.NewError(booking.CodeSessionExpired, "no active intake session")
	}
	if err != nil {
		return nil, err
	}
	if s.Stage != stage {
		return nil, booking.NewError(booking.CodeSessionExpired,
			fmt.Sprintf("event not valid at stage %s", s.Stage))
	}
	return s, nil
}

func dateOptions(dates []time.Time) []models.ReplyOption {
	opts := make([]models.ReplyOption, 0, len(dates))
	for _, d := range dates {
		opts = append(opts, models.ReplyOption{
			Label: d.Format("02.01.2006"),
			Data:  "date_" + d.Format(dateLayout),
		})
	}
	return opts
}

func errorReply(text string) *models.Reply {
	return &models.Reply{Kind: models.ReplyError, Text: text}
}

func expiredReply() *models.Reply {
	return &models.Reply{
		Kind: models.ReplyError,
		Text: "Your session has expired. Start over with /start.",
		Options: []models.ReplyOption{
			{Label: "Start over", Data: "restart"},
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
