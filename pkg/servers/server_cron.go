package servers

import (
	"context"

	"github.com/qmdx00/lifecycle"
	"github.com/rs/zerolog/log"
)

type cronServer struct {
	name         string
	internal     CronServer
	closeChannel chan struct{}
}

func BuildCronServer(name string, internal CronServer) (string, Server) {
	return name, NewCronServer(name, internal)
}

func NewCronServer(name string, internal CronServer) lifecycle.Server {
	return &cronServer{
		name:         name,
		internal:     internal,
		closeChannel: make(chan struct{}),
	}
}

func (server *cronServer) Run(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("stage", "startup").Str("component", server.name).Msg("starting up")

	server.internal.Start()

	select {
	case <-server.closeChannel:
	case <-ctx.Done():
	}

	return nil
}

// Stop waits for running jobs to finish or for ctx to expire, whichever comes first.
func (server *cronServer) Stop(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopping")
	defer log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopped")

	close(server.closeChannel)

	select {
	case <-server.internal.Stop().Done():
		return nil
	case <-ctx.Done():
		log.Ctx(ctx).Error().Str("stage", "shut down").Str("component", server.name).Err(ctx.Err()).Msg("failed to stop")
		return ErrServerFailedToStop(server.name, ctx.Err())
	}
}
