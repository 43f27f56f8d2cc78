package core

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) event(args mock.Arguments) (*Event, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Event), args.Error(1)
}

func (m *MockEventRepository) events(args mock.Arguments) ([]Event, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]Event), args.Error(1)
}

func (m *MockEventRepository) GetAll(ctx context.Context) ([]Event, error) {
	return m.events(m.Called(ctx))
}

func (m *MockEventRepository) GetById(ctx context.Context, id string) (*Event, error) {
	return m.event(m.Called(ctx, id))
}

func (m *MockEventRepository) GetWithAttendees(ctx context.Context, id string) (*Event, error) {
	return m.event(m.Called(ctx, id))
}

func (m *MockEventRepository) GetByDateRange(ctx context.Context, start time.Time, end time.Time) ([]Event, error) {
	return m.events(m.Called(ctx, start, end))
}

func (m *MockEventRepository) Search(ctx context.Context, term string) ([]Event, error) {
	return m.events(m.Called(ctx, term))
}

func (m *MockEventRepository) IsSlotAvailable(ctx context.Context, start time.Time, end time.Time, excludeId string) (bool, error) {
	args := m.Called(ctx, start, end, excludeId)
	return args.Bool(0), args.Error(1)
}

func (m *MockEventRepository) Add(ctx context.Context, event *Event) (*Event, error) {
	return m.event(m.Called(ctx, event))
}

func (m *MockEventRepository) Update(ctx context.Context, event *Event) (*Event, error) {
	return m.event(m.Called(ctx, event))
}

func (m *MockEventRepository) Remove(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockAttendeeRepository struct {
	mock.Mock
}

func (m *MockAttendeeRepository) GetAll(ctx context.Context) ([]Attendee, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]Attendee), args.Error(1)
}

func (m *MockAttendeeRepository) GetById(ctx context.Context, id string) (*Attendee, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Attendee), args.Error(1)
}

func (m *MockAttendeeRepository) GetByEventId(ctx context.Context, eventId string) ([]Attendee, error) {
	args := m.Called(ctx, eventId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]Attendee), args.Error(1)
}

func (m *MockAttendeeRepository) GetEventsByEmail(ctx context.Context, email string) ([]Event, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]Event), args.Error(1)
}

func (m *MockAttendeeRepository) Add(ctx context.Context, attendee *Attendee) (*Attendee, error) {
	args := m.Called(ctx, attendee)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Attendee), args.Error(1)
}

func (m *MockAttendeeRepository) Remove(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAttendeeRepository) SetStatus(ctx context.Context, id string, status AttendanceStatus) (bool, error) {
	args := m.Called(ctx, id, status)
	return args.Bool(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, event *Event, attendee *Attendee, reason NotificationReason) error {
	return m.Called(ctx, event, attendee, reason).Error(0)
}

type notification struct {
	EventId string
	Email   string
	Reason  NotificationReason
}

// recordingNotifier keeps every notification it is asked to send, optionally failing.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, event *Event, attendee *Attendee, reason NotificationReason) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, notification{EventId: event.Id, Email: attendee.Email, Reason: reason})

	return n.err
}

func (n *recordingNotifier) Sent() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]notification, len(n.sent))
	copy(out, n.sent)

	return out
}

func (n *recordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = nil
}

type recordingMetrics struct {
	mu            sync.Mutex
	notifications map[string]int
	conflicts     map[string]int
	relayed       map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		notifications: map[string]int{},
		conflicts:     map[string]int{},
		relayed:       map[string]int{},
	}
}

func (m *recordingMetrics) RecordNotification(_ NotificationReason, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[outcome]++
}

func (m *recordingMetrics) RecordSlotConflict(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts[operation]++
}

func (m *recordingMetrics) RecordOutboxRelayed(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relayed[outcome]++
}
