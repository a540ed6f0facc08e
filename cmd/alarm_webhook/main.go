package main

import (
	"flag"
	"os"

	"github.com/fox-gonic/fox"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/opseye/opseye/internal/webhookd"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	configPath := flag.String("f", "", "Path to configuration file")
	flag.Parse()

	log.Info().Msg("Starting alarm webhook daemon")

	cfg, err := webhookd.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	server := webhookd.NewServer(cfg)

	router := fox.New()
	if err := server.UseApi(router); err != nil {
		log.Fatal().Err(err).Msg("Failed to setup API routes")
	}

	log.Info().Msgf("Starting alarm webhook daemon on %s", cfg.Server.BindAddr)
	if err := router.Run(cfg.Server.BindAddr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
