package core

import (
	"context"
	"errors"
	"fmt"

	"appointments/pkg/resources"
)

type attendeeRepository struct {
	instrumentation
	pool   resources.DBInstance
	events *eventRepository
}

func NewAttendeeRepository(pool resources.DBInstance) AttendeeRepository {
	inst := newInstrumentation()

	return &attendeeRepository{
		instrumentation: inst,
		pool:            pool,
		events:          &eventRepository{instrumentation: inst, pool: pool},
	}
}

func (r *attendeeRepository) GetAll(ctx context.Context) (attendees []Attendee, err error) {
	ctx, done := r.start(ctx, "get_all_attendees")
	defer func() { done(err) }()

	rows, err := r.pool.Query(ctx, "SELECT "+attendeeColumns+" FROM attendees ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to get attendees: %w", err)
	}

	attendees, err = collectAttendees(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read attendees: %w", err)
	}

	return attendees, nil
}

func (r *attendeeRepository) GetById(ctx context.Context, id string) (attendee *Attendee, err error) {
	ctx, done := r.start(ctx, "get_attendee_by_id")
	defer func() { done(err) }()

	attendee, err = scanAttendee(r.pool.QueryRow(ctx, "SELECT "+attendeeColumns+" FROM attendees WHERE id = $1", id))
	if err != nil {
		err = mapError(err, ErrAttendeeNotFound)
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to get attendee by id: %w", err)
	}

	return attendee, nil
}

func (r *attendeeRepository) GetByEventId(ctx context.Context, eventId string) (attendees []Attendee, err error) {
	ctx, done := r.start(ctx, "get_attendees_by_event_id")
	defer func() { done(err) }()

	rows, err := r.pool.Query(ctx,
		"SELECT "+attendeeColumns+" FROM attendees WHERE event_id = $1::uuid ORDER BY created_at, id",
		eventId)
	if err == nil {
		attendees, err = collectAttendees(rows)
	}

	if err != nil {
		// an id that is not a uuid matches no event
		if errors.Is(mapError(err, ErrEventNotFound), ErrNotFound) {
			return []Attendee{}, nil
		}

		return nil, fmt.Errorf("failed to get attendees by event id: %w", err)
	}

	return attendees, nil
}

func (r *attendeeRepository) GetEventsByEmail(ctx context.Context, email string) (events []Event, err error) {
	ctx, done := r.start(ctx, "get_events_by_attendee_email")
	defer func() { done(err) }()

	rows, err := r.pool.Query(ctx,
		"SELECT DISTINCT e.id, e.title, coalesce(e.description, ''), e.start_time, e.end_time, e.created_at "+
			"FROM events e JOIN attendees a ON a.event_id = e.id "+
			"WHERE a.email = $1 "+
			"ORDER BY e.start_time",
		email)
	if err != nil {
		return nil, fmt.Errorf("failed to get events by attendee email: %w", err)
	}

	events, err = collectEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	err = r.events.loadAttendees(ctx, events)

	return events, err
}

func (r *attendeeRepository) Add(ctx context.Context, attendee *Attendee) (saved *Attendee, err error) {
	ctx, done := r.start(ctx, "add_attendee")
	defer func() { done(err) }()

	saved, err = scanAttendee(r.pool.QueryRow(ctx,
		"INSERT INTO attendees (event_id, name, email, status) "+
			"VALUES ($1, $2, $3, $4) "+
			"RETURNING "+attendeeColumns,
		attendee.EventId, attendee.Name, attendee.Email, int16(attendee.Status)))
	if err != nil {
		err = mapError(err, ErrEventNotFound)
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to insert attendee: %w", err)
	}

	return saved, nil
}

func (r *attendeeRepository) Remove(ctx context.Context, id string) (err error) {
	ctx, done := r.start(ctx, "remove_attendee")
	defer func() { done(err) }()

	tag, err := r.pool.Exec(ctx, "DELETE FROM attendees WHERE id = $1", id)
	if err != nil {
		err = mapError(err, ErrAttendeeNotFound)
		if errors.Is(err, ErrNotFound) {
			return err
		}

		return fmt.Errorf("failed to delete attendee: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAttendeeNotFound
	}

	return nil
}

func (r *attendeeRepository) SetStatus(ctx context.Context, id string, status AttendanceStatus) (updated bool, err error) {
	ctx, done := r.start(ctx, "set_attendee_status")
	defer func() { done(err) }()

	tag, err := r.pool.Exec(ctx, "UPDATE attendees SET status = $2 WHERE id = $1", id, int16(status))
	if err != nil {
		if errors.Is(mapError(err, ErrAttendeeNotFound), ErrNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("failed to update attendee status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
