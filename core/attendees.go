package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

type AttendeeService interface {
	GetAll(ctx context.Context) ([]Attendee, error)
	GetById(ctx context.Context, id string) (*Attendee, error)
	GetByEvent(ctx context.Context, eventId string) ([]Attendee, error)
	GetEventsByEmail(ctx context.Context, email string) ([]Event, error)
	AddToEvent(ctx context.Context, eventId string, attendee *Attendee) (*Attendee, error)
	Remove(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status AttendanceStatus) (bool, error)
}

type attendeeService struct {
	attendees AttendeeRepository
	events    EventRepository
	notifier  Notifier
}

func NewAttendeeService(attendees AttendeeRepository, events EventRepository, notifier Notifier) AttendeeService {
	return &attendeeService{
		attendees: attendees,
		events:    events,
		notifier:  notifier,
	}
}

func (s *attendeeService) GetAll(ctx context.Context) ([]Attendee, error) {
	return s.attendees.GetAll(ctx)
}

func (s *attendeeService) GetById(ctx context.Context, id string) (*Attendee, error) {
	return s.attendees.GetById(ctx, id)
}

func (s *attendeeService) GetByEvent(ctx context.Context, eventId string) ([]Attendee, error) {
	return s.attendees.GetByEventId(ctx, eventId)
}

func (s *attendeeService) GetEventsByEmail(ctx context.Context, email string) ([]Event, error) {
	return s.attendees.GetEventsByEmail(ctx, email)
}

func (s *attendeeService) AddToEvent(ctx context.Context, eventId string, attendee *Attendee) (*Attendee, error) {
	attendee.Normalize()

	err := ValidateAttendee(*attendee)
	if err != nil {
		return nil, err
	}

	event, err := s.events.GetById(ctx, eventId)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w (id %s)", ErrUnknownEvent, eventId)
		}

		return nil, fmt.Errorf("failed to load event %s: %w", eventId, err)
	}

	attendee.EventId = event.Id

	saved, err := s.attendees.Add(ctx, attendee)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w (id %s)", ErrUnknownEvent, eventId)
		}

		return nil, fmt.Errorf("failed to add attendee to event %s: %w", eventId, err)
	}

	s.notify(ctx, "add_attendee", event, saved, Invitation)

	return saved, nil
}

func (s *attendeeService) Remove(ctx context.Context, id string) (bool, error) {
	attendee, err := s.attendees.GetById(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("failed to load attendee %s: %w", id, err)
	}

	// The owning event may have been deleted concurrently; removal still goes ahead.
	event, err := s.events.GetById(ctx, attendee.EventId)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("failed to load event %s: %w", attendee.EventId, err)
	}

	err = s.attendees.Remove(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("failed to remove attendee %s: %w", id, err)
	}

	if event != nil {
		s.notify(ctx, "remove_attendee", event, attendee, Cancellation)
	}

	return true, nil
}

func (s *attendeeService) UpdateStatus(ctx context.Context, id string, status AttendanceStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: unknown attendance status %d", ErrValidation, int(status))
	}

	ok, err := s.attendees.SetStatus(ctx, id, status)
	if err != nil {
		return false, fmt.Errorf("failed to update status of attendee %s: %w", id, err)
	}

	return ok, nil
}

func (s *attendeeService) notify(ctx context.Context, operation string, event *Event, attendee *Attendee, reason NotificationReason) {
	err := s.notifier.Notify(ctx, event, attendee, reason)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("operation", operation).Str("event_id", event.Id).
			Str("attendee_id", attendee.Id).Str("reason", reason.String()).Msg("failed to dispatch notification")
	}
}
