package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Quoter/internal/agent"
	"github.com/Alias1177/Quoter/internal/audit"
	"github.com/Alias1177/Quoter/internal/config"
	"github.com/Alias1177/Quoter/internal/exchange"
	"github.com/Alias1177/Quoter/internal/exchange/gate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	sink, err := buildSink(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("audit sink unavailable")
	}
	defer sink.Close()

	client, err := gate.NewClient(gate.ClientOptions{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
		Pair:      cfg.Pair,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("exchange client init failed")
	}

	resilient := exchange.NewResilient(client, cfg.MaxRetries, cfg.RetryDelay, sink)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := agent.New(cfg, resilient, sink).Run(ctx); err != nil {
		sink.Close()
		log.Fatal().Err(err).Msg("quoting loop terminated")
	}
}

func buildSink(cfg *config.Config) (audit.Sink, error) {
	switch cfg.AuditBackend {
	case "postgres":
		return audit.NewPostgresSink(audit.ConnectionParams{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			DBName:   cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSLMode,
		}, cfg.AuditMaxRecords)
	default:
		return audit.NewCSVSink(cfg.AuditPath, cfg.AuditMaxRecords)
	}
}
