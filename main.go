package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"appointments/core"
	"appointments/pkg/resources"
	"appointments/pkg/servers"
)

const (
	name    = "appointments"
	version = "1.0"
)

func main() {
	app := &cli.App{
		Name:    name,
		Usage:   "Schedule appointments, manage attendees and notify them of changes.",
		Version: version,
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the REST API, the debug server and the notification outbox relay.",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "Apply the database migrations.",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "down", Usage: "Roll back every migration instead."},
				},
				Action: migrateDatabase,
			},
			{
				Name:  "seed",
				Usage: "Create sample appointments through the event lifecycle.",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "seed", Value: 42, Usage: "Random seed; the same seed produces the same appointments."},
					&cli.IntFlag{Name: "count", Value: 20, Usage: "Number of appointments to create."},
				},
				Action: seed,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Msg("application failed")
	}
}

func serve(c *cli.Context) error {
	// 1. Config (Logger base included)
	ctx := resources.Default(c.Context, name, version)
	startupLogger := log.Ctx(ctx).With().Str("stage", "startup").Str("component", "main").Logger()
	shutdownLogger := log.Ctx(ctx).With().Str("stage", "shut down").Str("component", "main").Logger()

	startupLogger.Info().Msg("application starting up")
	defer shutdownLogger.Info().Msg("application stopped")

	hookFn := func(ctx context.Context) (context.Context, error) {
		log.Logger = log.Logger.Hook(resources.NewZerologHook(name, version))
		return log.Logger.WithContext(ctx), nil
	}

	// 2. Telemetry (traces/metrics/logs), zerolog bridged to OTel logs when enabled
	ctx, stopFn, err := resources.Observe(ctx, name, version, hookFn)
	if err != nil {
		return fmt.Errorf("unable to setup otel telemetry: %w", err)
	}
	defer stopFn(ctx, 15*time.Second)

	// 3. Store
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.stop(ctx, 15*time.Second)

	// 4. Notifications
	registry := resources.NewPrometheusRegistry()
	collector := core.NewCollector(registry)

	notifier, err := buildNotifier()
	if err != nil {
		return err
	}

	dispatcher := core.NewDispatcher(notifier, st.outbox, collector, core.DispatcherConfig{
		Attempts:    viper.GetUint("NOTIFY_RETRY_ATTEMPTS"),
		Delay:       viper.GetDuration("NOTIFY_RETRY_DELAY"),
		MaxAttempts: viper.GetInt("OUTBOX_MAX_ATTEMPTS"),
	})
	relay := core.NewOutboxRelay(st.outbox, notifier, collector, viper.GetInt("OUTBOX_BATCH"))

	// 5. Wiring
	events := core.NewEventService(st.events, dispatcher, collector, viper.GetBool("NOTIFY_ON_NOOP_UPDATE"))
	attendees := core.NewAttendeeService(st.attendees, st.events, dispatcher)
	handlers := core.NewHandlers(events, attendees)

	// 6. Daemons/servers setup

	gin.SetMode(gin.ReleaseMode)

	limiter := resources.NewRateLimiter(viper.GetFloat64("RATE_LIMIT_RPS"), viper.GetInt("RATE_LIMIT_BURST"), 5*time.Minute)

	restHandler := gin.Default()
	restHandler.Use(resources.TracerMiddleware(name))
	restHandler.Use(resources.MeterMiddleware(name))
	restHandler.Use(limiter.Middleware())
	core.RegisterRoutes(restHandler, handlers)

	debugHandler := http.NewServeMux()
	debugHandler.HandleFunc("/debug/pprof/", pprof.Index)
	debugHandler.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugHandler.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugHandler.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugHandler.HandleFunc("/debug/pprof/trace", pprof.Trace)
	debugHandler.Handle("/metrics", resources.PrometheusHandler(registry))

	scheduler := resources.NewScheduler(ctx, "outbox-relay")

	_, err = scheduler.AddFunc(viper.GetString("OUTBOX_SCHEDULE"), func() {
		err := relay.Run(ctx)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("component", "outbox-relay").Msg("outbox relay run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid OUTBOX_SCHEDULE %q: %w", viper.GetString("OUTBOX_SCHEDULE"), err)
	}

	// 7. Daemons/servers lifecycle

	errChan := make(chan error, 16)

	closables := []resources.Closable{limiter}
	if st.pool != nil {
		closables = append(closables, st.pool)
	}

	serverName, server := servers.BuildBaseServer(closables...)
	stopFn = servers.Start(ctx, serverName, server, errChan)
	defer stopFn(ctx, 15*time.Second)

	serverName, server = servers.BuildCronServer("outbox-server", scheduler)
	stopFn = servers.Start(ctx, serverName, server, errChan)
	defer stopFn(ctx, 15*time.Second)

	debugServer := servers.NewServer(viper.GetString("HTTP_HOST"), viper.GetString("DEBUG_PORT"), debugHandler)
	serverName, server = servers.BuildHttpServer("debug-server", debugServer)
	stopFn = servers.Start(ctx, serverName, server, errChan)
	defer stopFn(ctx, 15*time.Second)

	restServer := servers.NewServer(viper.GetString("HTTP_HOST"), viper.GetString("HTTP_PORT"), restHandler)
	serverName, server = servers.BuildHttpServer("rest-server", restServer)
	stopFn = servers.Start(ctx, serverName, server, errChan)
	defer stopFn(ctx, 15*time.Second)

	startupLogger.Info().Msg("application running")

	// 8. Wait for shutdown signal

	notifyCtx, cancelNotifyFn := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancelNotifyFn()

	select {
	case <-notifyCtx.Done():
		startupLogger.Info().Msg("application shutdown requested")
	case runErr := <-errChan:
		shutdownLogger.Error().Err(runErr).Msg("runtime error")
		return runErr
	}

	return nil
}

func migrateDatabase(c *cli.Context) error {
	ctx := resources.Default(c.Context, name, version)

	err := resources.RunMigrations(resources.DatabaseURL("pgx5"), c.Bool("down"))
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().Str("component", "migrate").Bool("down", c.Bool("down")).Msg("migrations applied")

	return nil
}

func seed(c *cli.Context) error {
	ctx := resources.Default(c.Context, name, version)
	logger := log.Ctx(ctx).With().Str("component", "seed").Logger()

	if c.Int("count") < 0 {
		return fmt.Errorf("--count must not be negative, got %d", c.Int("count"))
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.stop(ctx, 15*time.Second)

	events := core.NewEventService(st.events, core.NewLogNotifier(), nil, true)

	var created, skipped int

	for _, event := range core.GenerateSeedEvents(c.Uint64("seed"), c.Int("count"), time.Now().AddDate(0, 0, 1)) {
		_, err = events.Create(ctx, &event)
		if errors.Is(err, core.ErrConflict) {
			skipped++
			continue
		}

		if err != nil {
			return fmt.Errorf("failed to seed event %q: %w", event.Title, err)
		}

		created++
	}

	logger.Info().Int("created", created).Int("skipped", skipped).Msg("seeding finished")

	return nil
}

type store struct {
	events    core.EventRepository
	attendees core.AttendeeRepository
	outbox    core.OutboxRepository
	pool      resources.Closable
	stop      resources.StopFn
}

func openStore(ctx context.Context) (*store, error) {
	if viper.GetString("STORE") == "memory" {
		memory := core.NewMemoryStore()
		log.Ctx(ctx).Info().Str("stage", "startup").Str("component", "store").Msg("using in-memory store")

		return &store{
			events:    memory.Events(),
			attendees: memory.Attendees(),
			outbox:    memory.Outbox(),
			stop:      func(context.Context, time.Duration) {},
		}, nil
	}

	if viper.GetBool("DB_MIGRATE") {
		err := resources.RunMigrations(resources.DatabaseURL("pgx5"), false)
		if err != nil {
			return nil, fmt.Errorf("unable to migrate database: %w", err)
		}
	}

	pool, stopFn, err := resources.CreateDatabaseConnectionPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to create database connection pool: %w", err)
	}

	return &store{
		events:    core.NewEventRepository(pool),
		attendees: core.NewAttendeeRepository(pool),
		outbox:    core.NewOutboxRepository(pool),
		pool:      pool,
		stop:      stopFn,
	}, nil
}

func buildNotifier() (core.Notifier, error) {
	switch viper.GetString("NOTIFIER") {
	case "resend":
		apiKey := viper.GetString("RESEND_API_KEY")
		if apiKey == "" {
			return nil, errors.New("RESEND_API_KEY is required when NOTIFIER=resend")
		}

		return core.NewResendNotifier(apiKey, viper.GetString("NOTIFY_FROM")), nil
	case "log", "":
		return core.NewLogNotifier(), nil
	default:
		return nil, fmt.Errorf("unknown NOTIFIER %q", viper.GetString("NOTIFIER"))
	}
}
