package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"dwv-scraper/auth"
	"dwv-scraper/config"
	"dwv-scraper/models"
	"dwv-scraper/pipeline"
	"dwv-scraper/scraper/dwv"
	"dwv-scraper/server"
	"dwv-scraper/services"
	"dwv-scraper/storage"
	"dwv-scraper/utils"
)

func main() {
	once := flag.Bool("once", false, "run the pipeline a single time and exit")
	flag.Parse()

	cfg := config.Load()
	logger := utils.NewLogger(cfg.Verbose)

	logger.Info("=== DWV Listing Scraper starting ===")
	logger.Info("Config — base URL: %s | retries: %d | rate: %dms | threshold: %d",
		cfg.DWVBaseURL, cfg.MaxRetries, cfg.RateLimitMs, cfg.ExtractionMinCount)

	store := openStore(cfg, logger)
	defer store.Close()

	authenticator := buildAuthenticator(cfg, logger)
	scraper := dwv.New(cfg, nil, logger)
	deduper := services.NewDeduper(logger)

	orchestrator := pipeline.New(authenticator, scraper, store, deduper, logger, pipeline.Options{
		MaxRetries:      cfg.MaxRetries,
		RetryBaseDelay:  2 * time.Second,
		InsertBatchSize: cfg.InsertBatchSize,
	})

	creds := models.Credentials{Email: cfg.DWVEmail, Password: cfg.DWVPassword}

	if *once {
		runOnce(orchestrator, store, creds, cfg, logger)
		return
	}

	srv := server.New(orchestrator, authenticator, store, creds, logger)
	addr := ":" + cfg.ServerPort
	logger.Info("Listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		logger.Error("Server stopped: %v", err)
		os.Exit(1)
	}
}

// openStore connects to Postgres, or falls back to the in-memory store when
// disabled by configuration.
func openStore(cfg *config.Config, logger *utils.Logger) storage.ListingStore {
	if cfg.PostgresDisable {
		logger.Warn("PostgreSQL disabled — using in-memory store")
		return storage.NewMemoryStore()
	}

	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	return store
}

// buildAuthenticator assembles the login strategy chain in its fixed order:
// form, API, alternate paths, then the headless browser.
func buildAuthenticator(cfg *config.Config, logger *utils.Logger) *auth.Authenticator {
	cache := auth.NewMemorySessionCache()
	validator := auth.NewValidator(nil, cfg.DWVBaseURL, logger)
	ttl := time.Duration(cfg.SessionTTLSec) * time.Second

	return auth.NewAuthenticator(cache, validator, ttl, logger,
		auth.NewFormStrategy(nil, cfg.DWVBaseURL, logger),
		auth.NewAPIStrategy(nil, cfg.DWVBaseURL, logger),
		auth.NewAlternateStrategy(nil, cfg.DWVBaseURL, logger),
		auth.NewBrowserStrategy(cfg.DWVBaseURL, cfg.ChromeBin, logger),
	)
}

// runOnce drives a single pipeline run, dumps a CSV snapshot of the freshly
// stored listings, and exits non-zero on failure.
func runOnce(orchestrator *pipeline.Orchestrator, store storage.ListingStore,
	creds models.Credentials, cfg *config.Config, logger *utils.Logger) {
	result := orchestrator.Run(context.Background(), creds)
	if !result.Success {
		logger.Error("Run failed: %s", result.Error)
		os.Exit(1)
	}

	logger.Info("Run succeeded — extracted %d, saved %d",
		result.ListingsExtracted, result.ListingsSaved)

	fetcher, ok := store.(storage.ListingFetcher)
	if !ok {
		return
	}
	listings, err := fetcher.FetchAll(context.Background())
	if err != nil {
		logger.Warn("CSV snapshot skipped, fetch failed: %v", err)
		return
	}

	insights := services.NewInsightService(logger)
	insights.Print(insights.Generate(listings))

	writer, err := storage.NewCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		logger.Warn("CSV snapshot skipped: %v", err)
		return
	}
	defer writer.Close()
	if err := writer.Write(listings); err != nil {
		logger.Warn("CSV write failed: %v", err)
		return
	}
	logger.Info("CSV snapshot written to %s", cfg.CSVOutputPath)
}
