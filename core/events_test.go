package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEventService_Create(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

	candidate := func() *Event {
		return &Event{
			Title:     "Checkup",
			StartTime: start,
			EndTime:   start.Add(30 * time.Minute),
			Attendees: []Attendee{
				{Name: "Jane Doe", Email: "jane@example.com"},
				{Name: "John Roe", Email: "john@example.com"},
			},
		}
	}

	saved := &Event{
		Id:        "e1",
		Title:     "Checkup",
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Attendees: []Attendee{
			{Id: "a1", Name: "Jane Doe", Email: "jane@example.com", EventId: "e1"},
			{Id: "a2", Name: "John Roe", Email: "john@example.com", EventId: "e1"},
		},
	}

	tests := []struct {
		name          string
		event         *Event
		setup         func(repo *MockEventRepository)
		notifyErr     error
		wantErr       error
		wantNotified  int
		wantConflicts int
	}{
		{
			name:    "invalid event never reaches the store",
			event:   &Event{Title: "", StartTime: start, EndTime: start.Add(time.Hour)},
			setup:   func(*MockEventRepository) {},
			wantErr: ErrValidation,
		},
		{
			name:  "slot taken",
			event: candidate(),
			setup: func(repo *MockEventRepository) {
				repo.On("IsSlotAvailable", mock.Anything, start, start.Add(30*time.Minute), "").Return(false, nil)
			},
			wantErr:       ErrConflict,
			wantConflicts: 1,
		},
		{
			name:  "slot taken between check and insert",
			event: candidate(),
			setup: func(repo *MockEventRepository) {
				repo.On("IsSlotAvailable", mock.Anything, mock.Anything, mock.Anything, "").Return(true, nil)
				repo.On("Add", mock.Anything, mock.Anything).Return(nil, ErrConflict)
			},
			wantErr:       ErrConflict,
			wantConflicts: 1,
		},
		{
			name:  "success notifies every attendee",
			event: candidate(),
			setup: func(repo *MockEventRepository) {
				repo.On("IsSlotAvailable", mock.Anything, mock.Anything, mock.Anything, "").Return(true, nil)
				repo.On("Add", mock.Anything, mock.Anything).Return(saved, nil)
			},
			wantNotified: 2,
		},
		{
			name:  "failed notifications do not fail the creation",
			event: candidate(),
			setup: func(repo *MockEventRepository) {
				repo.On("IsSlotAvailable", mock.Anything, mock.Anything, mock.Anything, "").Return(true, nil)
				repo.On("Add", mock.Anything, mock.Anything).Return(saved, nil)
			},
			notifyErr:    errors.New("smtp down"),
			wantNotified: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := new(MockEventRepository)
			tt.setup(repo)

			notifier := &recordingNotifier{err: tt.notifyErr}
			metrics := newRecordingMetrics()

			got, err := NewEventService(repo, notifier, metrics, true).Create(ctx, tt.event)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "e1", got.Id)
			}

			sent := notifier.Sent()
			assert.Len(t, sent, tt.wantNotified)

			for _, n := range sent {
				assert.Equal(t, Invitation, n.Reason)
			}

			assert.Equal(t, tt.wantConflicts, metrics.conflicts["create"])
			repo.AssertExpectations(t)
		})
	}
}

func TestEventService_Update(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

	existing := func() *Event {
		return &Event{
			Id:          "e1",
			Title:       "Checkup",
			Description: "Yearly",
			StartTime:   start,
			EndTime:     start.Add(30 * time.Minute),
			Attendees:   []Attendee{{Id: "a1", Name: "Jane Doe", Email: "jane@example.com", EventId: "e1"}},
		}
	}

	tests := []struct {
		name        string
		changes     Event
		notifyNoop  bool
		wantReasons []NotificationReason
	}{
		{
			name:        "new time reschedules",
			changes:     Event{Title: "Checkup", Description: "Yearly", StartTime: start.Add(time.Hour), EndTime: start.Add(90 * time.Minute)},
			notifyNoop:  true,
			wantReasons: []NotificationReason{Rescheduled},
		},
		{
			name:        "new time and title still reschedules",
			changes:     Event{Title: "Follow-up", Description: "Yearly", StartTime: start.Add(time.Hour), EndTime: start.Add(90 * time.Minute)},
			notifyNoop:  true,
			wantReasons: []NotificationReason{Rescheduled},
		},
		{
			name:        "new description updates details",
			changes:     Event{Title: "Checkup", Description: "Bring your records", StartTime: start, EndTime: start.Add(30 * time.Minute)},
			notifyNoop:  true,
			wantReasons: []NotificationReason{UpdatedDetails},
		},
		{
			name:        "unchanged event still notifies by default",
			changes:     Event{Title: "Checkup", Description: "Yearly", StartTime: start, EndTime: start.Add(30 * time.Minute)},
			notifyNoop:  true,
			wantReasons: []NotificationReason{UpdatedDetails},
		},
		{
			name:       "unchanged event is quiet when configured",
			changes:    Event{Title: "Checkup", Description: "Yearly", StartTime: start, EndTime: start.Add(30 * time.Minute)},
			notifyNoop: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := new(MockEventRepository)
			repo.On("GetWithAttendees", mock.Anything, "e1").Return(existing(), nil)
			repo.On("IsSlotAvailable", mock.Anything, mock.Anything, mock.Anything, "e1").Return(true, nil)
			repo.On("Update", mock.Anything, mock.MatchedBy(func(e *Event) bool {
				return e.Id == "e1" && e.Title == tt.changes.Title && e.StartTime.Equal(tt.changes.StartTime)
			})).Return(&Event{
				Id:          "e1",
				Title:       tt.changes.Title,
				Description: tt.changes.Description,
				StartTime:   tt.changes.StartTime,
				EndTime:     tt.changes.EndTime,
			}, nil)

			notifier := &recordingNotifier{}
			changes := tt.changes

			got, err := NewEventService(repo, notifier, nil, tt.notifyNoop).Update(ctx, "e1", &changes)
			require.NoError(t, err)
			assert.Equal(t, tt.changes.Title, got.Title)
			assert.Len(t, got.Attendees, 1)

			var reasons []NotificationReason
			for _, n := range notifier.Sent() {
				reasons = append(reasons, n.Reason)
			}

			assert.Equal(t, tt.wantReasons, reasons)
			repo.AssertExpectations(t)
		})
	}

	t.Run("unknown event", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEventRepository)
		repo.On("GetWithAttendees", mock.Anything, "missing").Return(nil, ErrEventNotFound)

		changes := Event{Title: "Checkup", StartTime: start, EndTime: start.Add(time.Hour)}

		_, err := NewEventService(repo, &recordingNotifier{}, nil, true).Update(ctx, "missing", &changes)
		require.ErrorIs(t, err, ErrNotFound)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("conflicting new slot", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEventRepository)
		repo.On("GetWithAttendees", mock.Anything, "e1").Return(existing(), nil)
		repo.On("IsSlotAvailable", mock.Anything, mock.Anything, mock.Anything, "e1").Return(false, nil)

		notifier := &recordingNotifier{}
		changes := Event{Title: "Checkup", StartTime: start.Add(time.Hour), EndTime: start.Add(2 * time.Hour)}

		_, err := NewEventService(repo, notifier, nil, true).Update(ctx, "e1", &changes)
		require.ErrorIs(t, err, ErrConflict)
		assert.Empty(t, notifier.Sent())
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestEventService_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("unknown event", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEventRepository)
		repo.On("GetWithAttendees", mock.Anything, "missing").Return(nil, ErrEventNotFound)

		deleted, err := NewEventService(repo, &recordingNotifier{}, nil, true).Delete(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEventRepository)
		repo.On("GetWithAttendees", mock.Anything, "e1").Return(&Event{Id: "e1"}, nil)
		repo.On("Remove", mock.Anything, "e1").Return(errors.New("connection reset"))

		notifier := &recordingNotifier{}

		deleted, err := NewEventService(repo, notifier, nil, true).Delete(ctx, "e1")
		require.Error(t, err)
		assert.False(t, deleted)
		assert.Empty(t, notifier.Sent())
	})

	t.Run("cancels every attendee after removal", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEventRepository)
		notifier := new(MockNotifier)

		event := &Event{Id: "e1", Attendees: []Attendee{
			{Id: "a1", Email: "jane@example.com"},
			{Id: "a2", Email: "john@example.com"},
		}}

		removed := repo.On("Remove", mock.Anything, "e1").Return(nil)
		repo.On("GetWithAttendees", mock.Anything, "e1").Return(event, nil)
		notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, Cancellation).Return(nil).Times(2).NotBefore(removed)

		deleted, err := NewEventService(repo, notifier, nil, true).Delete(ctx, "e1")
		require.NoError(t, err)
		assert.True(t, deleted)
		notifier.AssertExpectations(t)
	})
}

func TestEventService_Queries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

	t.Run("blank search lists everything", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEventRepository)
		repo.On("GetAll", mock.Anything).Return([]Event{{Id: "e1"}}, nil)

		got, err := NewEventService(repo, nil, nil, true).Search(ctx, "   ")
		require.NoError(t, err)
		assert.Len(t, got, 1)
		repo.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	})

	t.Run("inverted date range", func(t *testing.T) {
		t.Parallel()

		_, err := NewEventService(new(MockEventRepository), nil, nil, true).GetByDateRange(ctx, start, start.Add(-time.Hour))
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("availability validates the interval", func(t *testing.T) {
		t.Parallel()

		_, err := NewEventService(new(MockEventRepository), nil, nil, true).IsSlotAvailable(ctx, start, start, "")
		require.ErrorIs(t, err, ErrValidation)
	})
}

// TestScheduling walks one event through its whole lifecycle on the in-memory store.
func TestScheduling(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	notifier := &recordingNotifier{}

	events := NewEventService(store.Events(), notifier, nil, true)
	attendees := NewAttendeeService(store.Attendees(), store.Events(), notifier)

	at := func(hour int, minute int) time.Time {
		return time.Date(2025, 1, 1, hour, minute, 0, 0, time.UTC)
	}

	checkup, err := events.Create(ctx, &Event{Title: "Checkup", StartTime: at(9, 0), EndTime: at(9, 30)})
	require.NoError(t, err)
	assert.NotEmpty(t, checkup.Id)
	assert.Equal(t, 30, checkup.DurationMinutes())

	_, err = events.Create(ctx, &Event{Title: "Overlap", StartTime: at(9, 15), EndTime: at(9, 45)})
	require.ErrorIs(t, err, ErrConflict)

	_, err = events.Create(ctx, &Event{Title: "Adjacent", StartTime: at(9, 30), EndTime: at(10, 0)})
	require.NoError(t, err)

	jane, err := attendees.AddToEvent(ctx, checkup.Id, &Attendee{Name: "Jane Doe", Email: "jane@x.com"})
	require.NoError(t, err)
	assert.Equal(t, NotResponded, jane.Status)
	assert.Equal(t, []notification{{EventId: checkup.Id, Email: "jane@x.com", Reason: Invitation}}, notifier.Sent())

	notifier.Reset()

	_, err = events.Update(ctx, checkup.Id, &Event{Title: "Checkup", StartTime: at(11, 0), EndTime: at(11, 30)})
	require.NoError(t, err)
	assert.Equal(t, []notification{{EventId: checkup.Id, Email: "jane@x.com", Reason: Rescheduled}}, notifier.Sent())

	notifier.Reset()

	deleted, err := events.Delete(ctx, checkup.Id)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []notification{{EventId: checkup.Id, Email: "jane@x.com", Reason: Cancellation}}, notifier.Sent())

	_, err = attendees.GetById(ctx, jane.Id)
	require.ErrorIs(t, err, ErrNotFound)

	left, err := attendees.GetByEvent(ctx, checkup.Id)
	require.NoError(t, err)
	assert.Empty(t, left)

	deleted, err = events.Delete(ctx, checkup.Id)
	require.NoError(t, err)
	assert.False(t, deleted)
}
