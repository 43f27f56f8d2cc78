package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"appointments/pkg/resources"
)

type outboxPayload struct {
	Event    Event    `json:"event"`
	Attendee Attendee `json:"attendee"`
}

type outboxRepository struct {
	instrumentation
	pool resources.DBInstance
}

func NewOutboxRepository(pool resources.DBInstance) OutboxRepository {
	return &outboxRepository{
		instrumentation: newInstrumentation(),
		pool:            pool,
	}
}

func (r *outboxRepository) Enqueue(ctx context.Context, entry *OutboxEntry) (err error) {
	ctx, done := r.start(ctx, "enqueue_notification")
	defer func() { done(err) }()

	payload, err := json.Marshal(outboxPayload{Event: entry.Event, Attendee: entry.Attendee})
	if err != nil {
		return fmt.Errorf("failed to encode outbox payload: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		"INSERT INTO notification_outbox "+
			"(id, reason, payload, status, attempts, max_attempts, last_error, last_attempted_at, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		entry.Id, entry.Reason.String(), payload, entry.Status, entry.Attempts, entry.MaxAttempts,
		entry.LastError, nullableTime(entry.LastAttemptedAt), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox entry: %w", err)
	}

	return nil
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) (entries []OutboxEntry, err error) {
	ctx, done := r.start(ctx, "list_pending_notifications")
	defer func() { done(err) }()

	rows, err := r.pool.Query(ctx,
		"SELECT id, reason, payload, status, attempts, max_attempts, coalesce(last_error, ''), last_attempted_at, created_at "+
			"FROM notification_outbox "+
			"WHERE status IN ('pending', 'retrying') "+
			"ORDER BY created_at "+
			"LIMIT $1",
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox entries: %w", err)
	}
	defer rows.Close()

	entries = []OutboxEntry{}

	for rows.Next() {
		var (
			entry         OutboxEntry
			reason        string
			payload       []byte
			lastAttempted *time.Time
		)

		err = rows.Scan(&entry.Id, &reason, &payload, &entry.Status, &entry.Attempts, &entry.MaxAttempts,
			&entry.LastError, &lastAttempted, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to read outbox entry: %w", err)
		}

		err = entry.Reason.UnmarshalText([]byte(reason))
		if err != nil {
			return nil, fmt.Errorf("failed to read outbox entry %s: %w", entry.Id, err)
		}

		var p outboxPayload

		err = json.Unmarshal(payload, &p)
		if err != nil {
			return nil, fmt.Errorf("failed to decode outbox payload %s: %w", entry.Id, err)
		}

		entry.Event = p.Event
		entry.Attendee = p.Attendee

		if lastAttempted != nil {
			entry.LastAttemptedAt = *lastAttempted
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox entries: %w", err)
	}

	return entries, nil
}

func (r *outboxRepository) Save(ctx context.Context, entry *OutboxEntry) (err error) {
	ctx, done := r.start(ctx, "save_notification")
	defer func() { done(err) }()

	_, err = r.pool.Exec(ctx,
		"UPDATE notification_outbox SET status = $2, attempts = $3, last_error = $4, last_attempted_at = $5 "+
			"WHERE id = $1",
		entry.Id, entry.Status, entry.Attempts, entry.LastError, nullableTime(entry.LastAttemptedAt))
	if err != nil {
		return fmt.Errorf("failed to update outbox entry: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}
