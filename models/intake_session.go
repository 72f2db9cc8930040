package models

import "time"

// Intake dialogue stages. There is no stored "idle" stage: a user with no
// session is idle by definition.
const (
	StageAwaitingUnits   = "awaiting_units"
	StageAwaitingDays    = "awaiting_days"
	StageAwaitingDate    = "awaiting_date"
	StageAwaitingAddress = "awaiting_address"
)

// IntakeSession tracks one user's progress through the booking dialogue.
// It is ephemeral: stored in the session cache with a TTL, deleted on commit
// or restart, never persisted durably.
type IntakeSession struct {
	UserID       int64       `json:"userId"`
	Username     string      `json:"username,omitempty"`
	FirstName    string      `json:"firstName,omitempty"`
	Stage        string      `json:"stage"`
	Units        int         `json:"units,omitempty"`
	Days         int         `json:"days,omitempty"`
	StartDate    time.Time   `json:"startDate,omitzero"`
	OfferedDates []time.Time `json:"offeredDates,omitempty"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Offered reports whether d was among the start dates last offered to the
// user. Selections outside that set are stale and must be rejected.
func (s *IntakeSession) Offered(d time.Time) bool {
	for _, o := range s.OfferedDates {
		if o.Equal(d) {
			return true
		}
	}
	return false
}

// Intake event types delivered by the chat transport.
const (
	EventRestart     = "restart"
	EventSelectUnits = "selectUnits"
	EventSelectDays  = "selectDays"
	EventSelectDate  = "selectDate"
	EventText        = "text"
)

// IntakeEvent is one inbound dialogue step. Value carries the selection
// (unit/day count as digits, date as "2006-01-02") or free text.
type IntakeEvent struct {
	UserID    int64  `json:"userId"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	Type      string `json:"type"`
	Value     string `json:"value,omitempty"`
}

// Reply kinds.
const (
	ReplyOfferChoices = "offer_choices"
	ReplyRequestInput = "request_input"
	ReplyConfirmation = "confirmation"
	ReplyError        = "error"
)

// ReplyOption is one selectable choice rendered by the transport
// (an inline keyboard button on Telegram).
type ReplyOption struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Reply is the single outward payload produced by a dialogue transition.
// The state machine never delivers it; the transport does.
type Reply struct {
	Kind    string        `json:"kind"`
	Text    string        `json:"text"`
	Options []ReplyOption `json:"options,omitempty"`
	Booking *Booking      `json:"booking,omitempty"`
}
