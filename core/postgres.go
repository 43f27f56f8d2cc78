package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"appointments/pkg/resources"
)

const (
	eventColumns    = "id, title, coalesce(description, ''), start_time, end_time, created_at"
	attendeeColumns = "id, name, email, status, event_id"

	pgExclusionViolation  = "23P01"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

type instrumentation struct {
	tracer  trace.Tracer
	metrics *DBMetrics
}

func newInstrumentation() instrumentation {
	return instrumentation{
		tracer:  otel.GetTracerProvider().Tracer("appointments/core"),
		metrics: NewDBMetrics(),
	}
}

// start opens a span for op and returns the callback that ends it and records the query metrics.
func (i instrumentation) start(ctx context.Context, op string) (context.Context, func(err error)) {
	begin := time.Now()
	ctx, span := i.tracer.Start(ctx, "repository."+op)

	return ctx, func(err error) {
		if err != nil && !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
		i.metrics.Observe(ctx, op, begin, err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*Event, error) {
	var e Event

	err := row.Scan(&e.Id, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	e.StartTime = e.StartTime.UTC()
	e.EndTime = e.EndTime.UTC()

	return &e, nil
}

func scanAttendee(row scanner) (*Attendee, error) {
	var (
		a      Attendee
		status int16
	)

	err := row.Scan(&a.Id, &a.Name, &a.Email, &status, &a.EventId)
	if err != nil {
		return nil, err
	}

	a.Status = AttendanceStatus(status)

	return &a, nil
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()

	events := []Event{}

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}

		events = append(events, *e)
	}

	return events, rows.Err()
}

func collectAttendees(rows pgx.Rows) ([]Attendee, error) {
	defer rows.Close()

	attendees := []Attendee{}

	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, err
		}

		attendees = append(attendees, *a)
	}

	return attendees, rows.Err()
}

// mapError turns "no row" style failures into notFound and exclusion violations
// on the events interval into ErrConflict.
func mapError(err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return ErrConflict
		case pgForeignKeyViolation, pgInvalidText:
			return notFound
		}
	}

	return err
}

type eventRepository struct {
	instrumentation
	pool resources.DBInstance
}

func NewEventRepository(pool resources.DBInstance) EventRepository {
	return &eventRepository{
		instrumentation: newInstrumentation(),
		pool:            pool,
	}
}

func (r *eventRepository) GetAll(ctx context.Context) (events []Event, err error) {
	ctx, done := r.start(ctx, "get_all_events")
	defer func() { done(err) }()

	rows, err := r.pool.Query(ctx, "SELECT "+eventColumns+" FROM events ORDER BY start_time")
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	events, err = collectEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	err = r.loadAttendees(ctx, events)

	return events, err
}

func (r *eventRepository) GetById(ctx context.Context, id string) (event *Event, err error) {
	ctx, done := r.start(ctx, "get_event_by_id")
	defer func() { done(err) }()

	event, err = scanEvent(r.pool.QueryRow(ctx, "SELECT "+eventColumns+" FROM events WHERE id = $1", id))
	if err != nil {
		err = mapError(err, ErrEventNotFound)
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to get event by id: %w", err)
	}

	return event, nil
}

func (r *eventRepository) GetWithAttendees(ctx context.Context, id string) (*Event, error) {
	event, err := r.GetById(ctx, id)
	if err != nil {
		return nil, err
	}

	events := []Event{*event}

	err = r.loadAttendees(ctx, events)
	if err != nil {
		return nil, err
	}

	return &events[0], nil
}

func (r *eventRepository) GetByDateRange(ctx context.Context, start time.Time, end time.Time) (events []Event, err error) {
	ctx, done := r.start(ctx, "get_events_by_date_range")
	defer func() { done(err) }()

	rows, err := r.pool.Query(ctx,
		"SELECT "+eventColumns+" FROM events WHERE start_time <= $2 AND end_time >= $1 ORDER BY start_time",
		start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get events by date range: %w", err)
	}

	events, err = collectEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	err = r.loadAttendees(ctx, events)

	return events, err
}

func (r *eventRepository) Search(ctx context.Context, term string) (events []Event, err error) {
	ctx, done := r.start(ctx, "search_events")
	defer func() { done(err) }()

	// strpos keeps the match case-sensitive and free of LIKE wildcards.
	rows, err := r.pool.Query(ctx,
		"SELECT "+eventColumns+" FROM events "+
			"WHERE strpos(title, $1) > 0 OR strpos(coalesce(description, ''), $1) > 0 "+
			"ORDER BY start_time",
		term)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}

	events, err = collectEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return events, nil
}

func (r *eventRepository) IsSlotAvailable(ctx context.Context, start time.Time, end time.Time, excludeId string) (available bool, err error) {
	ctx, done := r.start(ctx, "is_slot_available")
	defer func() { done(err) }()

	err = r.pool.QueryRow(ctx,
		"SELECT NOT EXISTS (SELECT 1 FROM events "+
			"WHERE start_time < $2 AND end_time > $1 AND ($3 = '' OR id::text <> $3))",
		start, end, excludeId).Scan(&available)
	if err != nil {
		return false, fmt.Errorf("failed to check time slot: %w", err)
	}

	return available, nil
}

func (r *eventRepository) Add(ctx context.Context, event *Event) (saved *Event, err error) {
	ctx, done := r.start(ctx, "add_event")
	defer func() { done(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	saved, err = scanEvent(tx.QueryRow(ctx,
		"INSERT INTO events (title, description, start_time, end_time) "+
			"VALUES ($1, NULLIF($2, ''), $3, $4) "+
			"RETURNING "+eventColumns,
		event.Title, event.Description, event.StartTime, event.EndTime))
	if err != nil {
		_ = tx.Rollback(ctx)

		err = mapError(err, ErrEventNotFound)
		if errors.Is(err, ErrConflict) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	saved.Attendees = make([]Attendee, 0, len(event.Attendees))

	for _, candidate := range event.Attendees {
		var a *Attendee

		a, err = scanAttendee(tx.QueryRow(ctx,
			"INSERT INTO attendees (event_id, name, email, status) "+
				"VALUES ($1, $2, $3, $4) "+
				"RETURNING "+attendeeColumns,
			saved.Id, candidate.Name, candidate.Email, int16(candidate.Status)))
		if err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("failed to insert attendee: %w", err)
		}

		saved.Attendees = append(saved.Attendees, *a)
	}

	err = tx.Commit(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return saved, nil
}

func (r *eventRepository) Update(ctx context.Context, event *Event) (updated *Event, err error) {
	ctx, done := r.start(ctx, "update_event")
	defer func() { done(err) }()

	updated, err = scanEvent(r.pool.QueryRow(ctx,
		"UPDATE events SET title = $2, description = NULLIF($3, ''), start_time = $4, end_time = $5 "+
			"WHERE id = $1 "+
			"RETURNING "+eventColumns,
		event.Id, event.Title, event.Description, event.StartTime, event.EndTime))
	if err != nil {
		err = mapError(err, ErrEventNotFound)
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	return updated, nil
}

func (r *eventRepository) Remove(ctx context.Context, id string) (err error) {
	ctx, done := r.start(ctx, "remove_event")
	defer func() { done(err) }()

	// attendees go with the event through ON DELETE CASCADE
	tag, err := r.pool.Exec(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		err = mapError(err, ErrEventNotFound)
		if errors.Is(err, ErrNotFound) {
			return err
		}

		return fmt.Errorf("failed to delete event: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}

	return nil
}

func (r *eventRepository) loadAttendees(ctx context.Context, events []Event) (err error) {
	if len(events) == 0 {
		return nil
	}

	ctx, done := r.start(ctx, "get_attendees_by_event_ids")
	defer func() { done(err) }()

	ids := make([]string, len(events))
	index := make(map[string]int, len(events))

	for i, e := range events {
		ids[i] = e.Id
		index[e.Id] = i
		events[i].Attendees = []Attendee{}
	}

	rows, err := r.pool.Query(ctx,
		"SELECT "+attendeeColumns+" FROM attendees WHERE event_id = ANY($1::uuid[]) ORDER BY created_at, id",
		ids)
	if err != nil {
		return fmt.Errorf("failed to get attendees: %w", err)
	}

	attendees, err := collectAttendees(rows)
	if err != nil {
		return fmt.Errorf("failed to read attendees: %w", err)
	}

	for _, a := range attendees {
		i := index[a.EventId]
		events[i].Attendees = append(events[i].Attendees, a)
	}

	return nil
}
