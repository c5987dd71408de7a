package worker

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"demand/internal/model"
	"demand/internal/orchestrator"
	"demand/internal/queue"
	"demand/pkg/oxylabs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type harness struct {
	reportID    primitive.ObjectID
	analyticsID primitive.ObjectID
	store       *memoryStore
	source      *fakeSource
	estimator   *fakeEstimator
	publisher   *recordingPublisher
	sleeper     *sleepRecorder
	worker      *DemandWorker
	job         model.DemandJob
}

func rawBestSellers(n int) []oxylabs.BestSeller {
	rows := make([]oxylabs.BestSeller, n)
	for i := range rows {
		rows[i] = oxylabs.BestSeller{ASIN: fmt.Sprintf("B%03d", i+1), Title: fmt.Sprintf("Brand%d Item", i+1)}
	}
	return rows
}

func newHarness(n int, opts ...Option) *harness {
	h := &harness{
		reportID:    primitive.NewObjectID(),
		analyticsID: primitive.NewObjectID(),
		source:      &fakeSource{rows: rawBestSellers(n)},
		estimator:   &fakeEstimator{revenue: map[string]float64{}},
		publisher:   &recordingPublisher{},
		sleeper:     &sleepRecorder{},
	}
	for _, r := range h.source.rows {
		h.estimator.revenue[r.ASIN] = 100
	}
	h.store = newMemoryStore(h.reportID)
	h.job = model.DemandJob{
		ReportID:            h.reportID.Hex(),
		CategoryAnalyticsID: h.analyticsID.Hex(),
		CategoryID:          "9999",
		Attempt:             1,
		MaxAttempts:         3,
	}

	opts = append([]Option{WithSleep(h.sleeper.sleep)}, opts...)
	h.worker = NewDemandWorker(h.store, h.source, h.estimator, h.publisher,
		Config{MaxPages: 2, BatchSize: 10, BatchDelay: 1200 * time.Millisecond}, opts...)
	return h
}

func assertNonDecreasing(t *testing.T, progress []int) {
	t.Helper()
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress decreased: %v", progress)
		}
	}
}

func TestDiscoveryPersistsRankedRows(t *testing.T) {
	h := newHarness(15)

	if err := h.worker.Process(context.Background(), h.job); err != nil {
		t.Fatalf("Process: %v", err)
	}

	rows := h.store.rows[h.analyticsID]
	if len(rows) != 15 {
		t.Fatalf("rows = %d, want 15", len(rows))
	}
	for i, row := range rows {
		if row.Rank != i+1 {
			t.Fatalf("row %d rank = %d", i, row.Rank)
		}
		if row.MonthlyRevenue == nil || *row.MonthlyRevenue != 100 {
			t.Fatalf("row %d not enriched", i)
		}
	}

	if got, want := h.publisher.progress(), []int{10, 50, 76, 90, 95, 100}; !reflect.DeepEqual(got, want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}
	if last := h.publisher.last(); last.Status != model.StatusCompleted || last.ReportID != h.job.ReportID {
		t.Fatalf("last event = %+v", last)
	}

	report := h.store.report(h.reportID)
	if report.status != model.StatusCompleted || report.progress != 100 || !report.completed {
		t.Fatalf("report = %+v", report)
	}

	want := model.AnalyticsSummary{ASINCount: 15, TotalSales: 1500, TrustScore: 100, TopASINSales: 100, TopBrandShare: 20}
	if got := h.store.summaries[h.analyticsID]; got != want {
		t.Fatalf("summary = %+v, want %+v", got, want)
	}
}

func TestEnrichmentBatchesAndProgress(t *testing.T) {
	h := newHarness(23)

	if err := h.worker.Process(context.Background(), h.job); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got := h.estimator.batchSizes; !reflect.DeepEqual(got, []int{10, 10, 3}) {
		t.Fatalf("batch sizes = %v", got)
	}
	if got, want := h.publisher.progress(), []int{10, 50, 67, 84, 90, 95, 100}; !reflect.DeepEqual(got, want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}

	// no pause after the last batch
	if got := h.sleeper.delays; !reflect.DeepEqual(got, []time.Duration{1200 * time.Millisecond, 1200 * time.Millisecond}) {
		t.Fatalf("sleeps = %v", got)
	}
	if h.store.applyCalls != 3 {
		t.Fatalf("estimates applied %d times, want once per batch", h.store.applyCalls)
	}
}

func TestSingleBatchNeverSleeps(t *testing.T) {
	h := newHarness(7)

	if err := h.worker.Process(context.Background(), h.job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(h.sleeper.delays) != 0 {
		t.Fatalf("unexpected sleeps %v", h.sleeper.delays)
	}
}

func TestWarmScopeSkipsProvider(t *testing.T) {
	h := newHarness(5)
	h.store.rows[h.analyticsID] = MapBestSellers(h.analyticsID, rawBestSellers(3))

	if err := h.worker.Process(context.Background(), h.job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if h.source.calls != 0 {
		t.Fatalf("provider called %d times for a warm scope", h.source.calls)
	}
	if got := h.store.summaries[h.analyticsID].ASINCount; got != 3 {
		t.Fatalf("asinCount = %d, want the 3 persisted rows", got)
	}
}

func TestDiscoveryIsIdempotentAcrossRuns(t *testing.T) {
	h := newHarness(12)

	if err := h.worker.Process(context.Background(), h.job); err != nil {
		t.Fatalf("first run: %v", err)
	}
	h.job.Attempt = 2
	if err := h.worker.Process(context.Background(), h.job); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if got := len(h.store.rows[h.analyticsID]); got != 12 {
		t.Fatalf("rows = %d after two runs, want 12", got)
	}
	if h.source.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", h.source.calls)
	}

	// the second run restarts at 10 and climbs again
	progress := h.publisher.progress()
	assertNonDecreasing(t, progress[:len(progress)/2])
	assertNonDecreasing(t, progress[len(progress)/2:])
}

func TestProviderRankWins(t *testing.T) {
	rank := func(n int) *int { return &n }
	price, zero := 19.99, 0.0

	rows := MapBestSellers(primitive.NewObjectID(), []oxylabs.BestSeller{
		{ASIN: "A1", Rank: rank(7), Title: "  Acme Pan ", Image: "https://img/1.jpg", Price: &price},
		{ASIN: "A2", Rank: rank(0), Price: &zero},
		{ASIN: ""},
		{ASIN: "A4"},
	})

	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Rank != 7 || rows[0].Title != "Acme Pan" || rows[0].ImageURL == nil || *rows[0].Price != 19.99 {
		t.Fatalf("first row = %+v", rows[0])
	}
	if rows[1].Rank != 2 || rows[1].Price != nil || rows[1].Title != "" {
		t.Fatalf("second row = %+v", rows[1])
	}
	if rows[2].Rank != 4 {
		t.Fatalf("position rank must count dropped rows, got %d", rows[2].Rank)
	}
}

func TestCacheAside(t *testing.T) {
	t.Run("hit skips provider", func(t *testing.T) {
		c := &fakeCache{rows: map[string][]oxylabs.BestSeller{"9999": rawBestSellers(4)}}
		h := newHarness(10, WithCache(c))

		if err := h.worker.Process(context.Background(), h.job); err != nil {
			t.Fatalf("Process: %v", err)
		}
		if h.source.calls != 0 {
			t.Fatalf("provider called on cache hit")
		}
		if got := len(h.store.rows[h.analyticsID]); got != 4 {
			t.Fatalf("rows = %d, want the 4 cached", got)
		}
	})

	t.Run("miss fills cache", func(t *testing.T) {
		c := &fakeCache{}
		h := newHarness(6, WithCache(c))

		if err := h.worker.Process(context.Background(), h.job); err != nil {
			t.Fatalf("Process: %v", err)
		}
		if h.source.calls != 1 || !reflect.DeepEqual(c.setKeys, []string{"9999"}) || len(c.rows["9999"]) != 6 {
			t.Fatalf("calls=%d setKeys=%v", h.source.calls, c.setKeys)
		}
	})

	t.Run("cache failures are swallowed", func(t *testing.T) {
		c := &fakeCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
		h := newHarness(6, WithCache(c))

		if err := h.worker.Process(context.Background(), h.job); err != nil {
			t.Fatalf("cache errors must not fail the job: %v", err)
		}
		if h.source.calls != 1 {
			t.Fatalf("provider calls = %d, want 1", h.source.calls)
		}
		if h.store.report(h.reportID).status != model.StatusCompleted {
			t.Fatalf("report not completed")
		}
	})

	t.Run("unusable cached list is evicted", func(t *testing.T) {
		c := &fakeCache{rows: map[string][]oxylabs.BestSeller{"9999": {{ASIN: " "}, {ASIN: ""}}}}
		h := newHarness(5, WithCache(c))

		if err := h.worker.Process(context.Background(), h.job); !errors.Is(err, ErrDiscovery) {
			t.Fatalf("expected discovery error, got %v", err)
		}
		if h.source.calls != 0 || !reflect.DeepEqual(c.deletedKeys, []string{"9999"}) {
			t.Fatalf("calls=%d deletedKeys=%v", h.source.calls, c.deletedKeys)
		}

		h.job.Attempt = 2
		if err := h.worker.Process(context.Background(), h.job); err != nil {
			t.Fatalf("retry after eviction: %v", err)
		}
		if h.source.calls != 1 || len(h.store.rows[h.analyticsID]) != 5 {
			t.Fatalf("calls=%d rows=%d", h.source.calls, len(h.store.rows[h.analyticsID]))
		}
	})
}

func TestOversizedBatchSizeIsCapped(t *testing.T) {
	h := newHarness(23)
	h.worker = NewDemandWorker(h.store, h.source, h.estimator, h.publisher,
		Config{MaxPages: 2, BatchSize: 25}, WithSleep(h.sleeper.sleep))

	if err := h.worker.Process(context.Background(), h.job); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got, want := h.estimator.batchSizes, []int{10, 10, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("batch sizes = %v, want %v", got, want)
	}
	summary := h.store.summaries[h.analyticsID]
	if summary.ASINCount != 23 || summary.TotalSales == 0 || summary.TrustScore != 100 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestFailedBatchIsTolerated(t *testing.T) {
	h := newHarness(25)
	h.estimator.failBatch = map[int]bool{1: true}

	if err := h.worker.Process(context.Background(), h.job); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got, want := h.publisher.progress(), []int{10, 50, 66, 82, 90, 95, 100}; !reflect.DeepEqual(got, want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}
	for _, row := range h.store.rows[h.analyticsID] {
		enriched := row.MonthlyRevenue != nil
		inFailedBatch := row.Rank > 10 && row.Rank <= 20
		if enriched == inFailedBatch {
			t.Fatalf("row %d enriched=%v", row.Rank, enriched)
		}
	}

	summary := h.store.summaries[h.analyticsID]
	if summary.TotalSales != 1500 || summary.TrustScore != 60 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestDiscoveryFailure(t *testing.T) {
	t.Run("retried attempt stays generating", func(t *testing.T) {
		h := newHarness(0)
		h.source.err = errors.New("502 bad gateway")

		err := h.worker.Process(context.Background(), h.job)
		if !errors.Is(err, ErrDiscovery) || queue.IsFatal(err) {
			t.Fatalf("expected retryable discovery error, got %v", err)
		}

		report := h.store.report(h.reportID)
		if report.status != model.StatusGenerating || report.progress != 10 {
			t.Fatalf("report = %+v", report)
		}
		for _, e := range h.publisher.events {
			if e.Status == model.StatusFailed {
				t.Fatalf("FAILED published before the final attempt")
			}
		}
	})

	t.Run("final attempt marks failed", func(t *testing.T) {
		h := newHarness(0)
		h.source.err = errors.New("502 bad gateway")
		h.job.Attempt = 3

		if err := h.worker.Process(context.Background(), h.job); !errors.Is(err, ErrDiscovery) {
			t.Fatalf("expected discovery error, got %v", err)
		}

		report := h.store.report(h.reportID)
		if report.status != model.StatusFailed || report.progress != 10 {
			t.Fatalf("report = %+v", report)
		}
		last := h.publisher.last()
		if last.Status != model.StatusFailed || last.Progress != 10 {
			t.Fatalf("last event = %+v", last)
		}
	})

	t.Run("cancelled context still records failure", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h := newHarness(0)
		h.source.err = context.Canceled
		h.source.onCall = cancel
		h.job.Attempt = 3

		if err := h.worker.Process(ctx, h.job); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation, got %v", err)
		}
		if h.store.failCtxErr != nil || h.store.report(h.reportID).status != model.StatusFailed {
			t.Fatalf("report = %+v, fail ctx err = %v", h.store.report(h.reportID), h.store.failCtxErr)
		}
		if last := h.publisher.last(); last.Status != model.StatusFailed || h.publisher.ctxErr[len(h.publisher.ctxErr)-1] != nil {
			t.Fatalf("FAILED event not delivered on a live context: %+v", last)
		}
	})

	t.Run("empty provider result", func(t *testing.T) {
		h := newHarness(0)

		if err := h.worker.Process(context.Background(), h.job); !errors.Is(err, ErrDiscovery) {
			t.Fatalf("expected discovery error, got %v", err)
		}
	})
}

func TestInvalidJobsAreFatal(t *testing.T) {
	h := newHarness(3)

	err := h.worker.Handle(context.Background(), orchestrator.Task{Payload: []byte("{oops"), Attempt: 1, MaxAttempts: 3})
	if !queue.IsFatal(err) || !errors.Is(err, ErrInvalidJob) {
		t.Fatalf("bad payload: %v", err)
	}

	err = h.worker.Process(context.Background(), model.DemandJob{ReportID: "nope", Attempt: 1, MaxAttempts: 3})
	if !queue.IsFatal(err) {
		t.Fatalf("bad report id: %v", err)
	}

	job := h.job
	job.CategoryAnalyticsID = "nope"
	if err := h.worker.Process(context.Background(), job); !queue.IsFatal(err) {
		t.Fatalf("bad analytics id: %v", err)
	}
	if h.store.report(h.reportID).status != model.StatusFailed {
		t.Fatalf("fatal error on the first attempt must mark the report failed")
	}
}

func TestMissingReportIsFatal(t *testing.T) {
	h := newHarness(3)
	h.job.ReportID = primitive.NewObjectID().Hex()

	if err := h.worker.Process(context.Background(), h.job); !queue.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if h.source.calls != 0 {
		t.Fatalf("pipeline ran for an unknown report")
	}
}

func TestPersistenceErrorsAreRetryable(t *testing.T) {
	h := newHarness(3)
	h.store.insertErr = errors.New("connection reset")

	err := h.worker.Process(context.Background(), h.job)
	if err == nil || queue.IsFatal(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestPublishErrorsDoNotFailJob(t *testing.T) {
	h := newHarness(4)
	h.publisher.err = errors.New("bus down")

	if err := h.worker.Process(context.Background(), h.job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if h.store.report(h.reportID).status != model.StatusCompleted {
		t.Fatalf("report not completed")
	}
}

func TestArchive(t *testing.T) {
	archiver := &fakeArchiver{err: errors.New("s3 unavailable")}
	h := newHarness(4, WithArchiver(archiver))

	if err := h.worker.Process(context.Background(), h.job); err != nil {
		t.Fatalf("archive failures must not fail the job: %v", err)
	}
	if len(archiver.snapshots) != 1 {
		t.Fatalf("snapshots = %d", len(archiver.snapshots))
	}
	snap := archiver.snapshots[0]
	if snap.ReportID != h.job.ReportID || len(snap.Products) != 4 || snap.Summary.ASINCount != 4 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestEnrichmentProgress(t *testing.T) {
	tests := []struct {
		processed, total, want int
	}{
		{10, 23, 67},
		{20, 23, 84},
		{23, 23, 90},
		{10, 15, 76},
		{0, 10, 50},
		{12, 10, 90},
		{0, 0, 90},
	}

	for _, tt := range tests {
		if got := EnrichmentProgress(tt.processed, tt.total); got != tt.want {
			t.Errorf("EnrichmentProgress(%d, %d) = %d, want %d", tt.processed, tt.total, got, tt.want)
		}
	}
}
