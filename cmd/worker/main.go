package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/mailspend/internal/config"
	"github.com/dvloznov/mailspend/internal/ingest"
	"github.com/dvloznov/mailspend/internal/logger"
	"github.com/dvloznov/mailspend/internal/mailbox"
	"github.com/dvloznov/mailspend/internal/parse"
	"github.com/dvloznov/mailspend/internal/store"
)

// Long-running polling worker: runs the ingestion pipeline on the
// configured interval until interrupted.
func main() {
	var (
		interval = flag.Duration("interval", 0, "poll interval (overrides POLL_INTERVAL env)")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *interval > 0 {
		cfg.PollInterval = *interval
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := store.NewBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage backend")
	}
	if err := store.EnsureDefaults(ctx, backend); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed reference data")
	}

	mailOpts, err := mailbox.ClientOptions(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build mailbox credentials")
	}
	mailClient, err := mailbox.NewGmailClient(ctx, mailOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create mailbox client")
	}
	reauth := func(ctx context.Context) (mailbox.Client, error) {
		return mailbox.NewGmailClient(ctx, mailOpts...)
	}
	retriever := mailbox.NewRetriever(mailClient, reauth, backend, log, cfg.Lookback)

	pipeline := ingest.NewPipeline(
		retriever,
		parse.NewParser(),
		ingest.NewDedupGuard(backend),
		ingest.NewApprovalGate(backend, log),
		log,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Dur("interval", cfg.PollInterval).Msg("Starting polling worker")

	// Run once immediately, then on the ticker.
	if _, err := pipeline.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Ingestion run failed")
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			log.Info().Msg("Worker exiting")
			return
		case <-ticker.C:
			if _, err := pipeline.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Ingestion run failed")
			}
		}
	}
}
