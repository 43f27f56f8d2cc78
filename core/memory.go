package core

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps events, attendees and outbox entries in process. It is used
// when no database is configured and by the lifecycle tests.
type MemoryStore struct {
	mu        sync.RWMutex
	events    map[string]Event
	attendees []Attendee
	outbox    map[string]OutboxEntry
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string]Event),
		outbox: make(map[string]OutboxEntry),
		now:    time.Now,
	}
}

func (m *MemoryStore) Events() EventRepository {
	return &memoryEvents{store: m}
}

func (m *MemoryStore) Attendees() AttendeeRepository {
	return &memoryAttendees{store: m}
}

func (m *MemoryStore) Outbox() OutboxRepository {
	return &memoryOutbox{store: m}
}

// withAttendees must be called with the lock held.
func (m *MemoryStore) withAttendees(e Event) Event {
	e.Attendees = nil

	for _, a := range m.attendees {
		if a.EventId == e.Id {
			e.Attendees = append(e.Attendees, a)
		}
	}

	return e
}

// sortedEvents must be called with the lock held.
func (m *MemoryStore) sortedEvents(keep func(Event) bool) []Event {
	out := make([]Event, 0, len(m.events))

	for _, e := range m.events {
		if keep(e) {
			out = append(out, m.withAttendees(e))
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })

	return out
}

func (m *MemoryStore) snapshot() []Event {
	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}

	return out
}

type memoryEvents struct {
	store *MemoryStore
}

func (r *memoryEvents) GetAll(_ context.Context) ([]Event, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.store.sortedEvents(func(Event) bool { return true }), nil
}

func (r *memoryEvents) GetById(_ context.Context, id string) (*Event, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, ok := r.store.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}

	return &e, nil
}

func (r *memoryEvents) GetWithAttendees(_ context.Context, id string) (*Event, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, ok := r.store.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}

	e = r.store.withAttendees(e)

	return &e, nil
}

func (r *memoryEvents) GetByDateRange(_ context.Context, start time.Time, end time.Time) ([]Event, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.store.sortedEvents(func(e Event) bool {
		return OverlapsInclusive(e.StartTime, e.EndTime, start, end)
	}), nil
}

func (r *memoryEvents) Search(_ context.Context, term string) ([]Event, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	events := r.store.sortedEvents(func(e Event) bool {
		return strings.Contains(e.Title, term) || strings.Contains(e.Description, term)
	})

	for i := range events {
		events[i].Attendees = nil
	}

	return events, nil
}

func (r *memoryEvents) IsSlotAvailable(_ context.Context, start time.Time, end time.Time, excludeId string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return IsAvailable(start, end, r.store.snapshot(), excludeId), nil
}

func (r *memoryEvents) Add(_ context.Context, event *Event) (*Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if !IsAvailable(event.StartTime, event.EndTime, r.store.snapshot(), "") {
		return nil, ErrConflict
	}

	saved := *event
	saved.Id = uuid.NewString()
	saved.CreatedAt = r.store.now().UTC()
	saved.Attendees = nil

	r.store.events[saved.Id] = saved

	for _, a := range event.Attendees {
		a.Id = uuid.NewString()
		a.EventId = saved.Id
		r.store.attendees = append(r.store.attendees, a)
	}

	saved = r.store.withAttendees(saved)

	return &saved, nil
}

func (r *memoryEvents) Update(_ context.Context, event *Event) (*Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.events[event.Id]
	if !ok {
		return nil, ErrEventNotFound
	}

	if !IsAvailable(event.StartTime, event.EndTime, r.store.snapshot(), event.Id) {
		return nil, ErrConflict
	}

	current.Title = event.Title
	current.Description = event.Description
	current.StartTime = event.StartTime
	current.EndTime = event.EndTime
	r.store.events[current.Id] = current

	return &current, nil
}

func (r *memoryEvents) Remove(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.events[id]; !ok {
		return ErrEventNotFound
	}

	delete(r.store.events, id)
	r.store.attendees = slices.DeleteFunc(r.store.attendees, func(a Attendee) bool { return a.EventId == id })

	return nil
}

type memoryAttendees struct {
	store *MemoryStore
}

func (r *memoryAttendees) GetAll(_ context.Context) ([]Attendee, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return slices.Clone(r.store.attendees), nil
}

func (r *memoryAttendees) GetById(_ context.Context, id string) (*Attendee, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	i := r.index(id)
	if i < 0 {
		return nil, ErrAttendeeNotFound
	}

	a := r.store.attendees[i]

	return &a, nil
}

func (r *memoryAttendees) GetByEventId(_ context.Context, eventId string) ([]Attendee, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := []Attendee{}

	for _, a := range r.store.attendees {
		if a.EventId == eventId {
			out = append(out, a)
		}
	}

	return out, nil
}

func (r *memoryAttendees) GetEventsByEmail(_ context.Context, email string) ([]Event, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := make(map[string]bool)

	for _, a := range r.store.attendees {
		if a.Email == email {
			ids[a.EventId] = true
		}
	}

	return r.store.sortedEvents(func(e Event) bool { return ids[e.Id] }), nil
}

func (r *memoryAttendees) Add(_ context.Context, attendee *Attendee) (*Attendee, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.events[attendee.EventId]; !ok {
		return nil, ErrEventNotFound
	}

	saved := *attendee
	saved.Id = uuid.NewString()
	r.store.attendees = append(r.store.attendees, saved)

	return &saved, nil
}

func (r *memoryAttendees) Remove(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return ErrAttendeeNotFound
	}

	r.store.attendees = slices.Delete(r.store.attendees, i, i+1)

	return nil
}

func (r *memoryAttendees) SetStatus(_ context.Context, id string, status AttendanceStatus) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return false, nil
	}

	r.store.attendees[i].Status = status

	return true, nil
}

// index must be called with the lock held.
func (r *memoryAttendees) index(id string) int {
	return slices.IndexFunc(r.store.attendees, func(a Attendee) bool { return a.Id == id })
}

type memoryOutbox struct {
	store *MemoryStore
}

func (r *memoryOutbox) Enqueue(_ context.Context, entry *OutboxEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.outbox[entry.Id] = *entry

	return nil
}

func (r *memoryOutbox) ListPending(_ context.Context, limit int) ([]OutboxEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]OutboxEntry, 0)

	for _, e := range r.store.outbox {
		if e.Status == OutboxPending || e.Status == OutboxRetrying {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *memoryOutbox) Save(_ context.Context, entry *OutboxEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.outbox[entry.Id] = *entry

	return nil
}
