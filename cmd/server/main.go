package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gaius-codius/woody-mcp/internal/config"
	"github.com/gaius-codius/woody-mcp/internal/host"
	"github.com/gaius-codius/woody-mcp/internal/mcp"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file (optional, uses environment variables by default)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	server := mcp.NewServer(cfg, host.NewMemoryHost())
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start bridge")
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown

	log.Info().Msg("Shutting down")
	server.Stop()
}
