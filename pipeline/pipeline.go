package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"dwv-scraper/models"
	"dwv-scraper/services"
	"dwv-scraper/storage"
	"dwv-scraper/utils"
)

// Authenticator is the slice of the auth chain the pipeline depends on.
type Authenticator interface {
	Authenticate(ctx context.Context, creds models.Credentials) models.AuthResult
}

// Extractor is the slice of the extraction chain the pipeline depends on.
type Extractor interface {
	Extract(ctx context.Context, session *models.Session) models.ExtractionResult
}

// Options tune the orchestrator's retry and batching behavior.
type Options struct {
	MaxRetries      int
	RetryBaseDelay  time.Duration
	InsertBatchSize int
}

// Orchestrator wires authentication, extraction, deduplication and
// persistence into one run, with bounded retries around each stage and an
// at-most-one-concurrent-run guarantee per process.
type Orchestrator struct {
	auth    Authenticator
	extract Extractor
	store   storage.ListingStore
	deduper *services.Deduper
	logger  *utils.Logger
	opts    Options

	running atomic.Bool

	metaMu sync.RWMutex
	meta   models.RunMetadata
}

// New creates an Orchestrator. Zero option fields get sane defaults.
func New(auth Authenticator, extract Extractor, store storage.ListingStore,
	deduper *services.Deduper, logger *utils.Logger, opts Options) *Orchestrator {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 2 * time.Second
	}
	if opts.InsertBatchSize <= 0 {
		opts.InsertBatchSize = 50
	}
	return &Orchestrator{
		auth:    auth,
		extract: extract,
		store:   store,
		deduper: deduper,
		logger:  logger,
		opts:    opts,
	}
}

// Run executes the full pipeline for the given credentials. A second call
// while a run is in flight returns immediately with an "already running"
// result and issues no network calls.
func (o *Orchestrator) Run(ctx context.Context, creds models.Credentials) models.ProcessResult {
	if !o.running.CompareAndSwap(false, true) {
		return models.ProcessResult{
			Success: false,
			Error:   "a scraping run is already in progress",
		}
	}
	defer o.running.Store(false)

	result := o.run(ctx, creds)
	o.recordRun(result)
	return result
}

func (o *Orchestrator) run(ctx context.Context, creds models.Credentials) models.ProcessResult {
	o.logger.Info("[pipeline] run started")

	session := o.authenticateWithRetries(ctx, creds)
	if session == nil {
		o.logger.Error("[pipeline] no strategy produced a validated session")
		return models.ProcessResult{Success: false, Error: "authentication failed"}
	}

	extraction := o.extractWithRetries(ctx, session)
	if len(extraction.Listings) == 0 {
		o.logger.Error("[pipeline] extraction produced no listings")
		return models.ProcessResult{Success: false, Error: "no data found"}
	}
	extracted := len(extraction.Listings)
	o.logger.Info("[pipeline] extracted %d listings from [%s]", extracted, extraction.Source)

	listings := o.deduper.DedupeWithinRun(extraction.Listings)

	titles := make([]string, len(listings))
	for i, l := range listings {
		titles[i] = l.Title
	}
	existing, err := o.store.GetExistingTitles(ctx, titles)
	if err != nil {
		// Fallible collaborator: treat as zero matches rather than failing
		// the run.
		o.logger.Error("[pipeline] existing-title lookup failed: %v", err)
		existing = nil
	}
	listings = o.deduper.DedupeAgainstStore(listings, existing)

	saved := o.persistInBatches(ctx, listings)

	o.logger.Info("[pipeline] run complete — extracted %d, new %d, saved %d",
		extracted, len(listings), saved)
	return models.ProcessResult{
		Success:           true,
		ListingsExtracted: extracted,
		ListingsSaved:     saved,
		Message:           "scraping completed",
	}
}

// authenticateWithRetries re-runs the full auth chain with linear backoff
// between attempts.
func (o *Orchestrator) authenticateWithRetries(ctx context.Context, creds models.Credentials) *models.Session {
	for attempt := 1; attempt <= o.opts.MaxRetries; attempt++ {
		result := o.auth.Authenticate(ctx, creds)
		if result.Success && result.Session != nil {
			o.logger.Info("[pipeline] authenticated via %s", result.Method)
			return result.Session
		}

		o.logger.Warn("[pipeline] authentication attempt %d/%d failed: %s",
			attempt, o.opts.MaxRetries, result.Message)
		if attempt < o.opts.MaxRetries {
			time.Sleep(time.Duration(attempt) * o.opts.RetryBaseDelay)
		}
	}
	return nil
}

func (o *Orchestrator) extractWithRetries(ctx context.Context, session *models.Session) models.ExtractionResult {
	var last models.ExtractionResult
	for attempt := 1; attempt <= o.opts.MaxRetries; attempt++ {
		last = o.extract.Extract(ctx, session)
		if len(last.Listings) > 0 {
			return last
		}

		o.logger.Warn("[pipeline] extraction attempt %d/%d yielded nothing: %s",
			attempt, o.opts.MaxRetries, last.Error)
		if attempt < o.opts.MaxRetries {
			time.Sleep(time.Duration(attempt) * o.opts.RetryBaseDelay)
		}
	}
	return last
}

// persistInBatches writes listings in fixed-size batches; a batch failure is
// recorded but later batches still run.
func (o *Orchestrator) persistInBatches(ctx context.Context, listings []*models.Listing) int {
	saved := 0
	size := o.opts.InsertBatchSize

	for start := 0; start < len(listings); start += size {
		end := start + size
		if end > len(listings) {
			end = len(listings)
		}

		n, err := o.store.InsertListings(ctx, listings[start:end])
		if err != nil {
			o.logger.Error("[pipeline] batch %d–%d failed: %v", start, end, err)
			continue
		}
		saved += n
	}
	return saved
}

func (o *Orchestrator) recordRun(result models.ProcessResult) {
	o.metaMu.Lock()
	defer o.metaMu.Unlock()
	o.meta = models.RunMetadata{
		LastRun:   time.Now(),
		Extracted: result.ListingsExtracted,
		Saved:     result.ListingsSaved,
		Success:   result.Success,
		Error:     result.Error,
	}
}

// LastRun returns metadata about the most recent completed run.
func (o *Orchestrator) LastRun() models.RunMetadata {
	o.metaMu.RLock()
	defer o.metaMu.RUnlock()
	return o.meta
}
