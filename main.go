package preview

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/m1k1o/go-preview/internal/api"
	"github.com/m1k1o/go-preview/internal/config"
	"github.com/m1k1o/go-preview/internal/http"
	"github.com/m1k1o/go-preview/internal/metrics"
	"github.com/m1k1o/go-preview/pkg/session"
	"github.com/m1k1o/go-preview/pkg/source"
	"github.com/m1k1o/go-preview/pkg/transcode"
)

var Service *Main

func init() {
	Service = &Main{
		ServerConfig: &config.Server{},
		StreamConfig: &config.Stream{},
	}
}

type Main struct {
	ServerConfig *config.Server
	StreamConfig *config.Stream

	logger     zerolog.Logger
	metrics    *metrics.MetricsCtx
	registry   *session.RegistryCtx
	apiManager *api.ApiManagerCtx
	server     *http.HttpManagerCtx
}

func (main *Main) Preflight() {
	main.logger = log.With().Str("service", "main").Logger()
}

func (main *Main) Start() {
	streamConfig := main.StreamConfig

	main.metrics = metrics.New()

	main.registry = session.New(session.Config{
		NewSource: func(descriptor source.Descriptor) source.Source {
			switch descriptor.Kind {
			case source.KindPush:
				return source.NewPush(source.PushConfig{
					QueueSize:   streamConfig.QueueSize,
					IdleTimeout: streamConfig.IdleTimeout,
				})
			default:
				return source.NewRTSP(descriptor.URL, source.RTSPConfig{
					FFmpegBinary:   streamConfig.FFmpegBinary,
					Width:          streamConfig.Width,
					Height:         streamConfig.Height,
					FPS:            streamConfig.FPS,
					QueueSize:      streamConfig.QueueSize,
					ConnectTimeout: streamConfig.ConnectTimeout,
					IdleTimeout:    streamConfig.IdleTimeout,
				})
			}
		},
		Encoder: transcode.NewEncoder(transcode.Config{
			Quality: streamConfig.Quality,
		}),
		Collector:       main.metrics,
		TeardownTimeout: streamConfig.TeardownTimeout,
		RetainTerminal:  streamConfig.RetainFailed,
		CleanupPeriod:   streamConfig.CleanupPeriod,
		Dedup:           streamConfig.Dedup,
	})

	main.apiManager = api.New(main.registry)

	main.server = http.New(main.ServerConfig)
	main.server.Mount(main.apiManager.Mount)
	main.server.Mount(main.metrics.Mount)

	if main.ServerConfig.PProf {
		main.server.WithDebugPProf("/debug/pprof")
	}

	main.server.Start()
}

func (main *Main) Shutdown() {
	if err := main.server.Shutdown(); err != nil {
		main.logger.Err(err).Msg("server shutdown with an error")
	} else {
		main.logger.Debug().Msg("server shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), main.StreamConfig.TeardownTimeout+2*time.Second)
	defer cancel()
	main.registry.Shutdown(ctx)
	main.logger.Debug().Msg("registry shutdown")
}

func (main *Main) ServeCommand(cmd *cobra.Command, args []string) {
	main.logger.Info().Msg("starting main server")
	main.Start()
	main.logger.Info().Msg("main ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	sig := <-quit

	main.logger.Warn().Msgf("received %s, attempting graceful shutdown", sig)
	main.Shutdown()
	main.logger.Info().Msg("shutdown complete")
}
