package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"demand/internal/analytics"
	"demand/internal/cache"
	"demand/internal/database"
	"demand/internal/model"
	"demand/internal/orchestrator"
	"demand/internal/queue"
	"demand/pkg/junglescout"
	"demand/pkg/oxylabs"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Progress checkpoints of one attempt
const (
	ProgressPickedUp   = 10
	ProgressDiscovered = 50
	ProgressEnriched   = 90
	ProgressAggregated = 95
	ProgressCompleted  = 100
)

const terminalWriteTimeout = 5 * time.Second

var (
	// ErrDiscovery is returned when the best seller list cannot be obtained
	ErrDiscovery = errors.New("discovery failed")

	ErrInvalidJob = errors.New("invalid demand job")
)

// Store is the persistence the worker needs
type Store interface {
	UpdateReportProgress(ctx context.Context, id primitive.ObjectID, status model.ReportStatus, progress int) error
	CompleteReport(ctx context.Context, id primitive.ObjectID) error
	FailReport(ctx context.Context, id primitive.ObjectID) error
	UpdateAnalyticsSummary(ctx context.Context, id primitive.ObjectID, summary model.AnalyticsSummary) error
	GetBestSellers(ctx context.Context, analyticsID primitive.ObjectID) ([]model.BestSellingAsin, error)
	InsertBestSellers(ctx context.Context, analyticsID primitive.ObjectID, rows []model.BestSellingAsin) (model.BulkImportResult, error)
	ApplySalesEstimates(ctx context.Context, analyticsID primitive.ObjectID, estimates []model.SalesEstimate) (int64, error)
}

// BestSellerSource lists a category's best sellers
type BestSellerSource interface {
	GetBestSellers(ctx context.Context, categoryID string, maxPages int) ([]oxylabs.BestSeller, error)
}

// SalesEstimator returns sales estimates for one batch of ASINs
type SalesEstimator interface {
	GetSalesEstimates(ctx context.Context, asins []string) ([]junglescout.Estimate, error)
}

// ResultCache holds raw best seller lists per category
type ResultCache interface {
	Get(ctx context.Context, categoryID string) ([]oxylabs.BestSeller, error)
	Set(ctx context.Context, categoryID string, rows []oxylabs.BestSeller) error
	Delete(ctx context.Context, categoryID string) error
}

// Publisher delivers progress events
type Publisher interface {
	Publish(ctx context.Context, event model.ProgressEvent) error
}

// ReportArchiver stores a snapshot of a completed report
type ReportArchiver interface {
	ArchiveReport(ctx context.Context, snapshot model.ReportSnapshot) (string, error)
}

// Config holds the pipeline tunables
type Config struct {
	MaxPages   int
	BatchSize  int
	BatchDelay time.Duration
}

// Option customizes a DemandWorker
type Option func(*DemandWorker)

// WithCache enables the cache-aside lookup in discovery
func WithCache(c ResultCache) Option {
	return func(w *DemandWorker) { w.cache = c }
}

// WithArchiver uploads a snapshot of every completed report
func WithArchiver(a ReportArchiver) Option {
	return func(w *DemandWorker) { w.archiver = a }
}

// WithSleep replaces the pause between enrichment batches
func WithSleep(sleep func(time.Duration)) Option {
	return func(w *DemandWorker) { w.sleep = sleep }
}

// DemandWorker runs the discovery, enrichment and aggregation stages of a
// demand report.
type DemandWorker struct {
	store     Store
	source    BestSellerSource
	estimator SalesEstimator
	publisher Publisher
	cache     ResultCache
	archiver  ReportArchiver
	config    Config
	sleep     func(time.Duration)
}

func NewDemandWorker(store Store, source BestSellerSource, estimator SalesEstimator, publisher Publisher, cfg Config, opts ...Option) *DemandWorker {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 2
	}
	// the estimates API rejects larger batches outright
	if cfg.BatchSize <= 0 || cfg.BatchSize > junglescout.MaxASINsPerRequest {
		cfg.BatchSize = junglescout.MaxASINsPerRequest
	}

	w := &DemandWorker{
		store:     store,
		source:    source,
		estimator: estimator,
		publisher: publisher,
		config:    cfg,
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

var _ orchestrator.TaskWorker = (*DemandWorker)(nil)

func (w *DemandWorker) Name() string { return "demand-analysis" }

func (w *DemandWorker) Type() string { return model.TaskAnalyzeDemand }

// Handle decodes a queued task and processes it
func (w *DemandWorker) Handle(ctx context.Context, task orchestrator.Task) error {
	var job model.DemandJob
	if err := json.Unmarshal(task.Payload, &job); err != nil {
		return queue.Fatal(fmt.Errorf("%w: decoding payload: %w", ErrInvalidJob, err))
	}
	job.Attempt = task.Attempt
	job.MaxAttempts = task.MaxAttempts

	return w.Process(ctx, job)
}

// Process runs one attempt of a job. On failure the report is marked
// FAILED only when the queue will not redeliver it.
func (w *DemandWorker) Process(ctx context.Context, job model.DemandJob) error {
	reportID, err := primitive.ObjectIDFromHex(job.ReportID)
	if err != nil {
		return queue.Fatal(fmt.Errorf("%w: report id %q", ErrInvalidJob, job.ReportID))
	}

	r := &run{
		worker:   w,
		job:      job,
		reportID: reportID,
		logger: log.With().
			Str("reportID", job.ReportID).
			Str("categoryID", job.CategoryID).
			Int("attempt", job.Attempt).
			Int("maxAttempts", job.MaxAttempts).
			Logger(),
	}

	start := time.Now()
	r.logger.Info().Msg("Starting demand analysis")

	if err := r.execute(ctx); err != nil {
		return r.fail(ctx, err)
	}

	r.logger.Info().Dur("duration", time.Since(start)).Msg("Demand analysis completed")
	return nil
}

// run is the state of one attempt
type run struct {
	worker      *DemandWorker
	job         model.DemandJob
	reportID    primitive.ObjectID
	analyticsID primitive.ObjectID
	progress    int
	logger      zerolog.Logger
}

func (r *run) execute(ctx context.Context) error {
	analyticsID, err := primitive.ObjectIDFromHex(r.job.CategoryAnalyticsID)
	if err != nil {
		return queue.Fatal(fmt.Errorf("%w: analytics id %q", ErrInvalidJob, r.job.CategoryAnalyticsID))
	}
	if r.job.CategoryID == "" {
		return queue.Fatal(fmt.Errorf("%w: empty category id", ErrInvalidJob))
	}
	r.analyticsID = analyticsID

	if err := r.checkpoint(ctx, ProgressPickedUp); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return queue.Fatal(err)
		}
		return err
	}

	rows, err := r.discover(ctx)
	if err != nil {
		return err
	}
	if err := r.checkpoint(ctx, ProgressDiscovered); err != nil {
		return err
	}

	if err := r.enrich(ctx, rows); err != nil {
		return err
	}

	return r.aggregate(ctx)
}

// discover returns the scope's rows, fetching and persisting them first when
// the scope is still empty.
func (r *run) discover(ctx context.Context) ([]model.BestSellingAsin, error) {
	rows, err := r.worker.store.GetBestSellers(ctx, r.analyticsID)
	if err != nil {
		return nil, fmt.Errorf("reading best sellers: %w", err)
	}
	if len(rows) > 0 {
		r.logger.Info().Int("products", len(rows)).Msg("Reusing persisted best sellers")
		return rows, nil
	}

	raw, err := r.fetchBestSellers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no best sellers for category %s", ErrDiscovery, r.job.CategoryID)
	}

	mapped := MapBestSellers(r.analyticsID, raw)
	result, err := r.worker.store.InsertBestSellers(ctx, r.analyticsID, mapped)
	if err != nil {
		return nil, fmt.Errorf("persisting best sellers: %w", err)
	}
	r.logger.Info().
		Int("fetched", len(raw)).
		Int("inserted", result.SuccessCount).
		Int("duplicates", result.DuplicateCount).
		Msg("Persisted best sellers")

	rows, err = r.worker.store.GetBestSellers(ctx, r.analyticsID)
	if err != nil {
		return nil, fmt.Errorf("re-reading best sellers: %w", err)
	}
	if len(rows) == 0 {
		r.evictBestSellers(ctx)
		return nil, fmt.Errorf("%w: no rows persisted for category %s", ErrDiscovery, r.job.CategoryID)
	}
	return rows, nil
}

// evictBestSellers drops a cached list that produced no usable rows so the
// next attempt goes back to the provider.
func (r *run) evictBestSellers(ctx context.Context) {
	if r.worker.cache == nil {
		return
	}
	if err := r.worker.cache.Delete(ctx, r.job.CategoryID); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to evict cached best sellers")
		return
	}
	r.logger.Info().Msg("Evicted unusable cached best sellers")
}

// fetchBestSellers is the cache-aside read over the provider. Cache
// failures never fail discovery.
func (r *run) fetchBestSellers(ctx context.Context) ([]oxylabs.BestSeller, error) {
	categoryID := r.job.CategoryID
	c := r.worker.cache

	if c != nil {
		rows, err := c.Get(ctx, categoryID)
		if err == nil && len(rows) > 0 {
			r.logger.Info().Int("products", len(rows)).Msg("Best sellers served from cache")
			return rows, nil
		}
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn().Err(err).Msg("Best seller cache read failed, treating as miss")
		}
	}

	rows, err := r.worker.source.GetBestSellers(ctx, categoryID, r.worker.config.MaxPages)
	if err != nil {
		return nil, err
	}

	if c != nil && len(rows) > 0 {
		if err := c.Set(ctx, categoryID, rows); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to cache best sellers")
		}
	}
	return rows, nil
}

// enrich fetches sales estimates batch by batch and merges each batch into
// the scope as soon as it arrives. A failed batch counts as empty.
func (r *run) enrich(ctx context.Context, rows []model.BestSellingAsin) error {
	asins := make([]string, len(rows))
	for i, row := range rows {
		asins[i] = row.ASIN
	}

	total := len(asins)
	if total == 0 {
		return nil
	}

	batches := orchestrator.SplitIntoBatches(asins, r.worker.config.BatchSize)
	processed := 0

	for i, batch := range batches {
		batchStart := time.Now()
		estimates, err := r.worker.estimator.GetSalesEstimates(ctx, batch)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Int("batch", i+1).
				Int("batches", len(batches)).
				Strs("asins", batch).
				Msg("Sales estimate batch failed, continuing without it")
			estimates = nil
		}

		if len(estimates) > 0 {
			matched, err := r.worker.store.ApplySalesEstimates(ctx, r.analyticsID, toSalesEstimates(estimates))
			if err != nil {
				return fmt.Errorf("saving sales estimates: %w", err)
			}
			r.logger.Debug().
				Int("batch", i+1).
				Int("estimates", len(estimates)).
				Int64("matched", matched).
				Dur("duration", time.Since(batchStart)).
				Msg("Applied sales estimates")
		}

		processed += len(batch)
		if err := r.checkpoint(ctx, EnrichmentProgress(processed, total)); err != nil {
			return err
		}

		if i < len(batches)-1 {
			r.worker.sleep(r.worker.config.BatchDelay)
		}
	}

	return nil
}

func (r *run) aggregate(ctx context.Context) error {
	if err := r.checkpoint(ctx, ProgressAggregated); err != nil {
		return err
	}

	rows, err := r.worker.store.GetBestSellers(ctx, r.analyticsID)
	if err != nil {
		return fmt.Errorf("reading enriched rows: %w", err)
	}

	summary := analytics.Aggregate(rows)
	if err := r.worker.store.UpdateAnalyticsSummary(ctx, r.analyticsID, summary); err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}

	if r.worker.archiver != nil {
		location, err := r.worker.archiver.ArchiveReport(ctx, model.ReportSnapshot{
			ReportID:    r.job.ReportID,
			CategoryID:  r.job.CategoryID,
			Summary:     summary,
			Products:    rows,
			GeneratedAt: time.Now().UTC(),
		})
		if err != nil {
			r.logger.Warn().Err(err).Msg("Failed to archive report snapshot")
		} else {
			r.logger.Debug().Str("location", location).Msg("Archived report snapshot")
		}
	}

	if err := r.worker.store.CompleteReport(ctx, r.reportID); err != nil {
		return fmt.Errorf("completing report: %w", err)
	}
	r.progress = ProgressCompleted
	r.publish(ctx, model.StatusCompleted, ProgressCompleted)

	r.logger.Info().
		Int("asinCount", summary.ASINCount).
		Int("totalSales", summary.TotalSales).
		Int("trustScore", summary.TrustScore).
		Msg("Saved demand summary")
	return nil
}

// checkpoint persists and publishes GENERATING progress. Progress never
// moves backwards within an attempt.
func (r *run) checkpoint(ctx context.Context, progress int) error {
	if progress < r.progress {
		progress = r.progress
	}

	if err := r.worker.store.UpdateReportProgress(ctx, r.reportID, model.StatusGenerating, progress); err != nil {
		return fmt.Errorf("saving progress %d: %w", progress, err)
	}
	r.progress = progress
	r.publish(ctx, model.StatusGenerating, progress)
	return nil
}

func (r *run) publish(ctx context.Context, status model.ReportStatus, progress int) {
	if r.worker.publisher == nil {
		return
	}

	event := model.ProgressEvent{ReportID: r.job.ReportID, Status: status, Progress: progress}
	if err := r.worker.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn().Err(err).Str("status", string(status)).Int("progress", progress).Msg("Failed to publish progress event")
	}
}

// fail records a failed attempt and hands the error back to the queue
func (r *run) fail(ctx context.Context, cause error) error {
	final := queue.IsFatal(cause) || r.job.IsFinalAttempt()

	if !final {
		r.logger.Warn().Err(cause).Int("progress", r.progress).Msg("Demand analysis attempt failed, will be retried")
		return cause
	}

	r.logger.Error().Err(cause).Int("progress", r.progress).Msg("Demand analysis failed")

	// the handler context may already be cancelled by a deadline or shutdown
	termCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()

	if err := r.worker.store.FailReport(termCtx, r.reportID); err != nil {
		r.logger.Error().Err(err).Msg("Failed to mark report as failed")
	}
	r.publish(termCtx, model.StatusFailed, r.progress)

	return cause
}

// EnrichmentProgress maps processed items onto the 50..90 band
func EnrichmentProgress(processed, total int) int {
	if total <= 0 {
		return ProgressEnriched
	}
	if processed > total {
		processed = total
	}
	return ProgressDiscovered + (ProgressEnriched-ProgressDiscovered)*processed/total
}

func toSalesEstimates(estimates []junglescout.Estimate) []model.SalesEstimate {
	out := make([]model.SalesEstimate, len(estimates))
	for i, e := range estimates {
		out[i] = model.SalesEstimate{
			ASIN:           e.ASIN,
			MonthlySales:   e.MonthlySales,
			MonthlyRevenue: e.MonthlyRevenue,
		}
	}
	return out
}
