package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/mailspend/internal/api/handlers"
	"github.com/dvloznov/mailspend/internal/api/middleware"
	"github.com/dvloznov/mailspend/internal/config"
	"github.com/dvloznov/mailspend/internal/ingest"
	"github.com/dvloznov/mailspend/internal/logger"
	"github.com/dvloznov/mailspend/internal/mailbox"
	"github.com/dvloznov/mailspend/internal/parse"
	"github.com/dvloznov/mailspend/internal/review"
	"github.com/dvloznov/mailspend/internal/store"
)

func main() {
	var (
		port = flag.String("port", "", "HTTP server port (overrides PORT env)")
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
	if *port != "" {
		cfg.HTTPPort = *port
	}

	ctx := context.Background()

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

	gate := ingest.NewApprovalGate(backend, log)
	pipeline := ingest.NewPipeline(retriever, parse.NewParser(), ingest.NewDedupGuard(backend), gate, log)
	queue := review.NewQueue(backend, gate, log)

	// Background ingestion on the configured interval.
	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()
	go func() {
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				if _, err := pipeline.Run(pollCtx); err != nil {
					log.Error().Err(err).Msg("Background ingestion failed")
				}
			}
		}
	}()

	mux := handlers.NewRouter(
		handlers.NewTransactionsHandler(backend, log),
		handlers.NewReviewHandler(queue, log),
		handlers.NewConfigHandler(backend, log),
		handlers.NewReportsHandler(backend, log),
		handlers.NewIngestHandler(pipeline, log),
	)

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("storage_mode", string(cfg.StorageMode)).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancelPoll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
