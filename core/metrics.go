package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type DBMetrics struct {
	qTotal   metric.Int64Counter
	qErrors  metric.Int64Counter
	qLatency metric.Float64Histogram
}

func NewDBMetrics() *DBMetrics {
	meter := otel.Meter("appointments/db")

	qTotal, _ := meter.Int64Counter("db.query.total")
	qErrors, _ := meter.Int64Counter("db.query.errors.total")
	qLatency, _ := meter.Float64Histogram("db.query.duration.ms")

	return &DBMetrics{qTotal: qTotal, qErrors: qErrors, qLatency: qLatency}
}

func (m *DBMetrics) Observe(ctx context.Context, op string, start time.Time, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgres"),
		attribute.String("db.operation", op), // ej: "add_event", "get_event_by_id"
	}

	m.qTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	ms := float64(time.Since(start).Milliseconds())
	m.qLatency.Record(ctx, ms, metric.WithAttributes(attrs...))

	if err != nil {
		m.qErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// SchedulingMetrics counts domain outcomes exposed on the debug server.
type SchedulingMetrics interface {
	RecordNotification(reason NotificationReason, outcome string)
	RecordSlotConflict(operation string)
	RecordOutboxRelayed(outcome string)
}

type Collector struct {
	notifications *prometheus.CounterVec
	conflicts     *prometheus.CounterVec
	relayed       *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appointments_notifications_total",
			Help: "Notifications dispatched by reason and outcome",
		}, []string{"reason", "outcome"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appointments_slot_conflicts_total",
			Help: "Create or update requests rejected because the time slot was taken",
		}, []string{"operation"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appointments_outbox_relayed_total",
			Help: "Outbox entries processed by the relay by outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(c.notifications, c.conflicts, c.relayed)

	return c
}

func (c *Collector) RecordNotification(reason NotificationReason, outcome string) {
	c.notifications.WithLabelValues(reason.String(), outcome).Inc()
}

func (c *Collector) RecordSlotConflict(operation string) {
	c.conflicts.WithLabelValues(operation).Inc()
}

func (c *Collector) RecordOutboxRelayed(outcome string) {
	c.relayed.WithLabelValues(outcome).Inc()
}

type noopMetrics struct{}

func (noopMetrics) RecordNotification(NotificationReason, string) {}
func (noopMetrics) RecordSlotConflict(string)                     {}
func (noopMetrics) RecordOutboxRelayed(string)                    {}
