package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	preview "github.com/m1k1o/go-preview"
	"github.com/m1k1o/go-preview/internal/config"
)

func init() {
	command := &cobra.Command{
		Use:   "serve",
		Short: "serve preview server",
		Long:  `serve preview server`,
		Run:   preview.Service.ServeCommand,
	}

	configs := []config.Config{
		preview.Service.ServerConfig,
		preview.Service.StreamConfig,
	}

	cobra.OnInitialize(func() {
		for _, cfg := range configs {
			cfg.Set()
		}
		preview.Service.Preflight()
	})

	for _, cfg := range configs {
		if err := cfg.Init(command); err != nil {
			log.Panic().Err(err).Msg("unable to run serve command")
		}
	}

	rootCmd.AddCommand(command)
}
