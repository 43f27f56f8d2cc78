package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Event struct {
	Id          string     `json:"id,omitempty"`
	Title       string     `json:"title,omitempty" validate:"required,max=200"`
	Description string     `json:"description,omitempty" validate:"max=2000"`
	StartTime   time.Time  `json:"start_time,omitempty" validate:"required"`
	EndTime     time.Time  `json:"end_time,omitempty" validate:"required"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	Attendees   []Attendee `json:"attendees" validate:"dive"`
}

// DurationMinutes is the whole number of minutes between start and end.
func (e Event) DurationMinutes() int {
	return int(e.EndTime.Sub(e.StartTime).Minutes())
}

// Normalize trims the text fields and moves both times to UTC.
func (e *Event) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	e.Description = strings.TrimSpace(e.Description)
	e.StartTime = e.StartTime.UTC()
	e.EndTime = e.EndTime.UTC()

	for i := range e.Attendees {
		e.Attendees[i].Normalize()
	}
}

func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event

	attendees := e.Attendees
	if attendees == nil {
		attendees = []Attendee{}
	}

	out := struct {
		alias
		Attendees       []Attendee `json:"attendees"`
		DurationMinutes int        `json:"duration_minutes"`
	}{
		alias:           alias(e),
		Attendees:       attendees,
		DurationMinutes: e.DurationMinutes(),
	}

	return json.Marshal(out)
}

type Attendee struct {
	Id      string           `json:"id,omitempty"`
	Name    string           `json:"name,omitempty" validate:"required,max=100"`
	Email   string           `json:"email,omitempty" validate:"required,email,max=256"`
	Status  AttendanceStatus `json:"status"`
	EventId string           `json:"event_id,omitempty"`
}

func (a *Attendee) Normalize() {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
}

type AttendanceStatus int

const (
	NotResponded AttendanceStatus = iota
	Accepted
	Declined
	Tentative
)

var attendanceStatusNames = map[AttendanceStatus]string{
	NotResponded: "NotResponded",
	Accepted:     "Accepted",
	Declined:     "Declined",
	Tentative:    "Tentative",
}

func (s AttendanceStatus) String() string {
	name, ok := attendanceStatusNames[s]
	if !ok {
		return fmt.Sprintf("AttendanceStatus(%d)", int(s))
	}

	return name
}

func (s AttendanceStatus) Valid() bool {
	_, ok := attendanceStatusNames[s]
	return ok
}

func ParseAttendanceStatus(value string) (AttendanceStatus, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && AttendanceStatus(n).Valid() {
		return AttendanceStatus(n), nil
	}

	for status, name := range attendanceStatusNames {
		if strings.EqualFold(name, strings.TrimSpace(value)) {
			return status, nil
		}
	}

	return NotResponded, fmt.Errorf("%w: unknown attendance status %q", ErrValidation, value)
}

func (s AttendanceStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: unknown attendance status %d", ErrValidation, int(s))
	}

	return []byte(s.String()), nil
}

func (s *AttendanceStatus) UnmarshalText(text []byte) error {
	status, err := ParseAttendanceStatus(string(text))
	if err != nil {
		return err
	}

	*s = status

	return nil
}

// UnmarshalJSON accepts the status name as well as its numeric value.
func (s *AttendanceStatus) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		return nil
	}

	if unquoted, err := strconv.Unquote(text); err == nil {
		text = unquoted
	}

	return s.UnmarshalText([]byte(text))
}

// NotificationReason is why an attendee is being notified about an event.
type NotificationReason int

const (
	Invitation NotificationReason = iota
	Reminder
	Cancellation
	Rescheduled
	UpdatedDetails
)

var notificationReasonNames = map[NotificationReason]string{
	Invitation:     "Invitation",
	Reminder:       "Reminder",
	Cancellation:   "Cancellation",
	Rescheduled:    "Rescheduled",
	UpdatedDetails: "UpdatedDetails",
}

func (r NotificationReason) String() string {
	name, ok := notificationReasonNames[r]
	if !ok {
		return fmt.Sprintf("NotificationReason(%d)", int(r))
	}

	return name
}

func (r NotificationReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *NotificationReason) UnmarshalText(text []byte) error {
	for reason, name := range notificationReasonNames {
		if name == string(text) {
			*r = reason
			return nil
		}
	}

	return fmt.Errorf("unknown notification reason %q", string(text))
}
