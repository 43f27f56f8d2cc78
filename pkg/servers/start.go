package servers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"appointments/pkg/resources"
)

// Start runs server in its own goroutine, forwarding a run failure to errChan.
// The returned StopFn stops the server within the given timeout.
func Start(ctx context.Context, name string, server Server, errChan chan<- error) resources.StopFn {
	go func() {
		err := server.Run(ctx)
		if err != nil {
			select {
			case errChan <- err:
			default:
				log.Ctx(ctx).Error().Str("stage", "startup").Str("component", name).Err(err).Msg("error channel full, dropping error")
			}
		}
	}()

	return func(ctx context.Context, timeout time.Duration) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := server.Stop(ctx)
		if err != nil {
			log.Ctx(ctx).Error().Str("stage", "shut down").Str("component", name).Err(err).Msg("failed to stop")
		}
	}
}
