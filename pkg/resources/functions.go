package resources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// HookFn runs once the log provider is installed so the caller can bridge its logger.
type HookFn func(ctx context.Context) (context.Context, error)

// Observe installs the OTLP trace, metric and log providers. With OTEL_ENABLED
// off it only sets the propagator and the global providers stay no-op.
func Observe(ctx context.Context, name string, version string, hookFn HookFn) (context.Context, StopFn, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !viper.GetBool("OTEL_ENABLED") {
		return ctx, noopStop, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", name),
		attribute.String("service.version", version),
		attribute.String("deployment.environment", viper.GetString("APP_ENV")),
	))
	if err != nil {
		return ctx, noopStop, fmt.Errorf("failed to create otel resource: %w", err)
	}

	endpoint := viper.GetString("OTEL_ENDPOINT")

	traceExp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return ctx, noopStop, fmt.Errorf("failed to create the OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp), sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(endpoint), otlpmetricgrpc.WithInsecure())
	if err != nil {
		return ctx, noopStop, fmt.Errorf("failed to create the OTLP metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	err = runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second))
	if err != nil {
		return ctx, noopStop, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	logExp, err := otlploggrpc.New(ctx, otlploggrpc.WithEndpoint(endpoint), otlploggrpc.WithInsecure())
	if err != nil {
		return ctx, noopStop, fmt.Errorf("failed to create the OTLP log exporter: %w", err)
	}

	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)), sdklog.WithResource(res))
	global.SetLoggerProvider(lp)

	if hookFn != nil {
		ctx, err = hookFn(ctx)
		if err != nil {
			return ctx, noopStop, fmt.Errorf("failed to bridge logger: %w", err)
		}
	}

	stopFn := func(ctx context.Context, timeout time.Duration) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx), lp.Shutdown(ctx))
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("stage", "shut down").Str("component", "telemetry").Msg("failed to stop telemetry")
		}
	}

	return ctx, stopFn, nil
}

func CreateDatabaseConnectionPool(ctx context.Context) (*pgxpool.Pool, StopFn, error) {
	cfg, err := pgxpool.ParseConfig(DatabaseURL("postgres"))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to parse database connection string")
		return nil, noopStop, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to connect to database")
		return nil, noopStop, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		log.Ctx(ctx).Error().Err(err).Msg("unable to ping to database")

		return nil, noopStop, fmt.Errorf("failed to ping to database: %w", err)
	}

	stopFn := func(ctx context.Context, _ time.Duration) {
		log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", "database").Msg("closing connection pool")
		pool.Close()
	}

	return pool, stopFn, nil
}
