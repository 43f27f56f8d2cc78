package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type EventService interface {
	GetAll(ctx context.Context) ([]Event, error)
	GetById(ctx context.Context, id string) (*Event, error)
	GetWithAttendees(ctx context.Context, id string) (*Event, error)
	GetByDateRange(ctx context.Context, start time.Time, end time.Time) ([]Event, error)
	Search(ctx context.Context, term string) ([]Event, error)
	IsSlotAvailable(ctx context.Context, start time.Time, end time.Time, excludeId string) (bool, error)
	Create(ctx context.Context, candidate *Event) (*Event, error)
	Update(ctx context.Context, id string, changes *Event) (*Event, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type eventService struct {
	events             EventRepository
	notifier           Notifier
	metrics            SchedulingMetrics
	notifyOnNoopUpdate bool
}

// NewEventService builds the event lifecycle manager. When notifyOnNoopUpdate is
// false, updates that change nothing do not notify attendees.
func NewEventService(events EventRepository, notifier Notifier, metrics SchedulingMetrics, notifyOnNoopUpdate bool) EventService {
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &eventService{
		events:             events,
		notifier:           notifier,
		metrics:            metrics,
		notifyOnNoopUpdate: notifyOnNoopUpdate,
	}
}

func (s *eventService) GetAll(ctx context.Context) ([]Event, error) {
	return s.events.GetAll(ctx)
}

func (s *eventService) GetById(ctx context.Context, id string) (*Event, error) {
	return s.events.GetById(ctx, id)
}

func (s *eventService) GetWithAttendees(ctx context.Context, id string) (*Event, error) {
	return s.events.GetWithAttendees(ctx, id)
}

func (s *eventService) GetByDateRange(ctx context.Context, start time.Time, end time.Time) ([]Event, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: range end must not be before range start", ErrValidation)
	}

	return s.events.GetByDateRange(ctx, start.UTC(), end.UTC())
}

func (s *eventService) Search(ctx context.Context, term string) ([]Event, error) {
	if strings.TrimSpace(term) == "" {
		return s.events.GetAll(ctx)
	}

	return s.events.Search(ctx, term)
}

func (s *eventService) IsSlotAvailable(ctx context.Context, start time.Time, end time.Time, excludeId string) (bool, error) {
	err := ValidateInterval(start, end)
	if err != nil {
		return false, err
	}

	return s.events.IsSlotAvailable(ctx, start.UTC(), end.UTC(), excludeId)
}

func (s *eventService) Create(ctx context.Context, candidate *Event) (*Event, error) {
	candidate.Normalize()

	err := ValidateEvent(*candidate)
	if err != nil {
		return nil, err
	}

	err = s.ensureAvailable(ctx, "create", candidate.StartTime, candidate.EndTime, "")
	if err != nil {
		return nil, err
	}

	saved, err := s.events.Add(ctx, candidate)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.RecordSlotConflict("create")
			return nil, err
		}

		return nil, fmt.Errorf("failed to add event: %w", err)
	}

	s.notifyAll(ctx, "create", saved, saved.Attendees, Invitation)

	return saved, nil
}

func (s *eventService) Update(ctx context.Context, id string, changes *Event) (*Event, error) {
	changes.Attendees = nil
	changes.Normalize()

	err := ValidateEvent(*changes)
	if err != nil {
		return nil, err
	}

	existing, err := s.events.GetWithAttendees(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to load event %s: %w", id, err)
	}

	err = s.ensureAvailable(ctx, "update", changes.StartTime, changes.EndTime, id)
	if err != nil {
		return nil, err
	}

	timeChanged := !existing.StartTime.Equal(changes.StartTime) || !existing.EndTime.Equal(changes.EndTime)
	detailsChanged := existing.Title != changes.Title || existing.Description != changes.Description

	existing.Title = changes.Title
	existing.Description = changes.Description
	existing.StartTime = changes.StartTime
	existing.EndTime = changes.EndTime

	updated, err := s.events.Update(ctx, existing)
	if err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			s.metrics.RecordSlotConflict("update")
			return nil, err
		case errors.Is(err, ErrNotFound):
			return nil, err
		default:
			return nil, fmt.Errorf("failed to update event %s: %w", id, err)
		}
	}

	updated.Attendees = existing.Attendees

	if !timeChanged && !detailsChanged && !s.notifyOnNoopUpdate {
		log.Ctx(ctx).Debug().Str("operation", "update").Str("event_id", id).Msg("nothing changed, attendees not notified")
		return updated, nil
	}

	reason := UpdatedDetails
	if timeChanged {
		reason = Rescheduled
	}

	s.notifyAll(ctx, "update", updated, updated.Attendees, reason)

	return updated, nil
}

func (s *eventService) Delete(ctx context.Context, id string) (bool, error) {
	existing, err := s.events.GetWithAttendees(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("failed to load event %s: %w", id, err)
	}

	attendees := slices.Clone(existing.Attendees)

	err = s.events.Remove(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("failed to remove event %s: %w", id, err)
	}

	s.notifyAll(ctx, "delete", existing, attendees, Cancellation)

	return true, nil
}

func (s *eventService) ensureAvailable(ctx context.Context, operation string, start time.Time, end time.Time, excludeId string) error {
	available, err := s.events.IsSlotAvailable(ctx, start, end, excludeId)
	if err != nil {
		return fmt.Errorf("failed to check time slot availability: %w", err)
	}

	if !available {
		s.metrics.RecordSlotConflict(operation)
		return ErrConflict
	}

	return nil
}

// notifyAll never fails the caller: the change is already committed.
func (s *eventService) notifyAll(ctx context.Context, operation string, event *Event, attendees []Attendee, reason NotificationReason) {
	for i := range attendees {
		err := s.notifier.Notify(ctx, event, &attendees[i], reason)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("operation", operation).Str("event_id", event.Id).
				Str("attendee_id", attendees[i].Id).Str("reason", reason.String()).Msg("failed to dispatch notification")
		}
	}
}
