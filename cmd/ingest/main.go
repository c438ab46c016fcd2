package main

import (
	"context"
	"flag"
	"time"

	"github.com/dvloznov/mailspend/internal/config"
	"github.com/dvloznov/mailspend/internal/ingest"
	"github.com/dvloznov/mailspend/internal/logger"
	"github.com/dvloznov/mailspend/internal/mailbox"
	"github.com/dvloznov/mailspend/internal/parse"
	"github.com/dvloznov/mailspend/internal/store"
)

// One-shot ingestion run: poll the mailbox once, route what was found,
// and exit. Useful from cron or for debugging a parse rule.
func main() {
	var (
		timeout = flag.Duration("timeout", 2*time.Minute, "overall run timeout")
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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
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

	state, err := pipeline.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion run failed")
	}

	for _, tx := range state.Stored {
		log.Info().
			Str("transaction_id", tx.ID).
			Str("merchant", tx.Merchant).
			Str("amount", tx.Amount).
			Str("status", string(tx.Status)).
			Msg("Stored transaction")
	}
}
