package core

import (
	"context"
	"time"
)

// EventRepository persists events. Every write is its own transaction and
// attendees are owned by their event: removing an event removes them too.
type EventRepository interface {
	GetAll(ctx context.Context) ([]Event, error)
	GetById(ctx context.Context, id string) (*Event, error)
	GetWithAttendees(ctx context.Context, id string) (*Event, error)
	GetByDateRange(ctx context.Context, start time.Time, end time.Time) ([]Event, error)
	Search(ctx context.Context, term string) ([]Event, error)
	IsSlotAvailable(ctx context.Context, start time.Time, end time.Time, excludeId string) (bool, error)
	Add(ctx context.Context, event *Event) (*Event, error)
	Update(ctx context.Context, event *Event) (*Event, error)
	Remove(ctx context.Context, id string) error
}

type AttendeeRepository interface {
	GetAll(ctx context.Context) ([]Attendee, error)
	GetById(ctx context.Context, id string) (*Attendee, error)
	GetByEventId(ctx context.Context, eventId string) ([]Attendee, error)
	GetEventsByEmail(ctx context.Context, email string) ([]Event, error)
	Add(ctx context.Context, attendee *Attendee) (*Attendee, error)
	Remove(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status AttendanceStatus) (bool, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, entry *OutboxEntry) error
	ListPending(ctx context.Context, limit int) ([]OutboxEntry, error)
	Save(ctx context.Context, entry *OutboxEntry) error
}
