package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	OutboxPending  = "pending"
	OutboxRetrying = "retrying"
	OutboxDone     = "done"
	OutboxFailed   = "failed"
)

// OutboxEntry is a notification that could not be delivered in-line. It keeps a
// snapshot of the event and attendee since both may be gone by the time it is retried.
type OutboxEntry struct {
	Id              string
	Event           Event
	Attendee        Attendee
	Reason          NotificationReason
	Status          string
	Attempts        int
	MaxAttempts     int
	LastError       string
	LastAttemptedAt time.Time
	CreatedAt       time.Time
}

func (e *OutboxEntry) CanRetry() bool {
	return (e.Status == OutboxPending || e.Status == OutboxRetrying) && e.Attempts < e.MaxAttempts
}

// NextRetryDelay doubles baseDelay per attempt, capped at maxDelay.
func (e *OutboxEntry) NextRetryDelay(baseDelay time.Duration, maxDelay time.Duration) time.Duration {
	delay := baseDelay

	for range e.Attempts {
		if delay >= maxDelay {
			break
		}

		delay *= 2
	}

	return min(delay, maxDelay)
}

func (e *OutboxEntry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = OutboxRetrying
}

func (e *OutboxEntry) MarkSuccess() {
	e.Status = OutboxDone
	e.LastError = ""
}

func (e *OutboxEntry) MarkFailed(err error) {
	e.LastError = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = OutboxFailed
	}
}

type DispatcherConfig struct {
	Attempts    uint
	Delay       time.Duration
	MaxAttempts int
}

// Dispatcher delivers notifications through the wrapped Notifier, retrying a few
// times in-line and parking what still fails in the outbox for the relay.
type Dispatcher struct {
	notifier Notifier
	outbox   OutboxRepository
	metrics  SchedulingMetrics
	config   DispatcherConfig
	now      func() time.Time
}

func NewDispatcher(notifier Notifier, outbox OutboxRepository, metrics SchedulingMetrics, config DispatcherConfig) *Dispatcher {
	if metrics == nil {
		metrics = noopMetrics{}
	}

	if config.Attempts == 0 {
		config.Attempts = 1
	}

	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}

	return &Dispatcher{
		notifier: notifier,
		outbox:   outbox,
		metrics:  metrics,
		config:   config,
		now:      time.Now,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, event *Event, attendee *Attendee, reason NotificationReason) error {
	err := retry.Do(
		func() error { return d.notifier.Notify(ctx, event, attendee, reason) },
		retry.Attempts(d.config.Attempts),
		retry.Delay(d.config.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		d.metrics.RecordNotification(reason, "sent")
		return nil
	}

	log.Ctx(ctx).Warn().Err(err).Str("component", "dispatcher").Str("event_id", event.Id).
		Str("attendee_id", attendee.Id).Str("reason", reason.String()).Msg("notification failed, queueing for retry")

	if d.outbox == nil {
		d.metrics.RecordNotification(reason, "dropped")
		return fmt.Errorf("failed to notify attendee %s: %w", attendee.Id, err)
	}

	snapshot := *event
	snapshot.Attendees = nil

	entry := &OutboxEntry{
		Id:          uuid.NewString(),
		Event:       snapshot,
		Attendee:    *attendee,
		Reason:      reason,
		Status:      OutboxPending,
		MaxAttempts: d.config.MaxAttempts,
		LastError:   err.Error(),
		CreatedAt:   d.now().UTC(),
	}

	qerr := d.outbox.Enqueue(context.WithoutCancel(ctx), entry)
	if qerr != nil {
		d.metrics.RecordNotification(reason, "dropped")
		return fmt.Errorf("failed to queue notification for attendee %s: %w", attendee.Id, errors.Join(err, qerr))
	}

	d.metrics.RecordNotification(reason, "queued")

	return nil
}

// OutboxRelay re-sends queued notifications with exponential backoff.
type OutboxRelay struct {
	outbox    OutboxRepository
	notifier  Notifier
	metrics   SchedulingMetrics
	batch     int
	baseDelay time.Duration
	maxDelay  time.Duration
	now       func() time.Time
}

func NewOutboxRelay(outbox OutboxRepository, notifier Notifier, metrics SchedulingMetrics, batch int) *OutboxRelay {
	if metrics == nil {
		metrics = noopMetrics{}
	}

	if batch <= 0 {
		batch = 100
	}

	return &OutboxRelay{
		outbox:    outbox,
		notifier:  notifier,
		metrics:   metrics,
		batch:     batch,
		baseDelay: time.Minute,
		maxDelay:  time.Hour,
		now:       time.Now,
	}
}

func (r *OutboxRelay) Run(ctx context.Context) error {
	entries, err := r.outbox.ListPending(ctx, r.batch)
	if err != nil {
		return fmt.Errorf("failed to list pending outbox entries: %w", err)
	}

	if len(entries) == 0 {
		return nil
	}

	logger := log.Ctx(ctx).With().Str("component", "outbox-relay").Logger()

	var succeeded, failed, skipped int

	for i := range entries {
		entry := &entries[i]

		if !entry.CanRetry() {
			skipped++
			continue
		}

		if !entry.LastAttemptedAt.IsZero() {
			next := entry.LastAttemptedAt.Add(entry.NextRetryDelay(r.baseDelay, r.maxDelay))
			if r.now().Before(next) {
				skipped++
				continue
			}
		}

		entry.MarkAttempt(r.now().UTC())

		err = r.notifier.Notify(ctx, &entry.Event, &entry.Attendee, entry.Reason)
		if err != nil {
			entry.MarkFailed(err)
			failed++
			r.metrics.RecordOutboxRelayed("failed")
			logger.Error().Err(err).Str("entry_id", entry.Id).Int("attempt", entry.Attempts).Msg("outbox retry failed")
		} else {
			entry.MarkSuccess()
			succeeded++
			r.metrics.RecordOutboxRelayed("sent")
		}

		saveErr := r.outbox.Save(ctx, entry)
		if saveErr != nil {
			logger.Error().Err(saveErr).Str("entry_id", entry.Id).Msg("failed to save outbox entry")
		}
	}

	logger.Info().Int("processed", len(entries)).Int("succeeded", succeeded).Int("failed", failed).
		Int("skipped", skipped).Msg("outbox relay complete")

	return nil
}
