package resources

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// JobChain recovers panicking jobs and skips a run while the previous one is still going.
func JobChain(logger cron.Logger) cron.Chain {
	return cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))
}

func NewScheduler(ctx context.Context, component string) *cron.Cron {
	logger := cronLogger{logger: log.Ctx(ctx).With().Str("component", component).Logger()}

	return cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
}
