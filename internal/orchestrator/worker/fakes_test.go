package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"demand/internal/cache"
	"demand/internal/database"
	"demand/internal/model"
	"demand/pkg/junglescout"
	"demand/pkg/oxylabs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type reportState struct {
	status    model.ReportStatus
	progress  int
	completed bool
}

// memoryStore mimics the Mongo store, including the unique row indexes
type memoryStore struct {
	mu        sync.Mutex
	reports   map[primitive.ObjectID]*reportState
	rows      map[primitive.ObjectID][]model.BestSellingAsin
	summaries map[primitive.ObjectID]model.AnalyticsSummary

	progressErr error
	insertErr   error
	applyCalls  int
	failCtxErr  error
}

func newMemoryStore(reportID primitive.ObjectID) *memoryStore {
	return &memoryStore{
		reports:   map[primitive.ObjectID]*reportState{reportID: {status: model.StatusQueued, progress: 5}},
		rows:      map[primitive.ObjectID][]model.BestSellingAsin{},
		summaries: map[primitive.ObjectID]model.AnalyticsSummary{},
	}
}

func (s *memoryStore) report(id primitive.ObjectID) reportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.reports[id]
}

func (s *memoryStore) UpdateReportProgress(_ context.Context, id primitive.ObjectID, status model.ReportStatus, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progressErr != nil {
		return s.progressErr
	}
	r, ok := s.reports[id]
	if !ok {
		return database.ErrNotFound
	}
	r.status, r.progress = status, progress
	return nil
}

func (s *memoryStore) CompleteReport(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return database.ErrNotFound
	}
	r.status, r.progress, r.completed = model.StatusCompleted, 100, true
	return nil
}

func (s *memoryStore) FailReport(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCtxErr = ctx.Err(); s.failCtxErr != nil {
		return s.failCtxErr
	}
	r, ok := s.reports[id]
	if !ok {
		return database.ErrNotFound
	}
	r.status = model.StatusFailed
	return nil
}

func (s *memoryStore) UpdateAnalyticsSummary(_ context.Context, id primitive.ObjectID, summary model.AnalyticsSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[id] = summary
	return nil
}

func (s *memoryStore) GetBestSellers(_ context.Context, analyticsID primitive.ObjectID) ([]model.BestSellingAsin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := append([]model.BestSellingAsin(nil), s.rows[analyticsID]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })
	return rows, nil
}

func (s *memoryStore) InsertBestSellers(_ context.Context, analyticsID primitive.ObjectID, rows []model.BestSellingAsin) (model.BulkImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res model.BulkImportResult
	if s.insertErr != nil {
		return res, s.insertErr
	}

	existing := s.rows[analyticsID]
	for _, row := range rows {
		dup := false
		for _, e := range existing {
			if e.ASIN == row.ASIN || e.Rank == row.Rank {
				dup = true
				break
			}
		}
		if dup {
			res.DuplicateCount++
			continue
		}
		row.ID = primitive.NewObjectID()
		row.AnalyticsID = analyticsID
		existing = append(existing, row)
		res.SuccessCount++
	}
	s.rows[analyticsID] = existing
	return res, nil
}

func (s *memoryStore) ApplySalesEstimates(_ context.Context, analyticsID primitive.ObjectID, estimates []model.SalesEstimate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCalls++

	var matched int64
	rows := s.rows[analyticsID]
	for _, e := range estimates {
		for i := range rows {
			if rows[i].ASIN != e.ASIN {
				continue
			}
			if e.MonthlySales != nil {
				rows[i].MonthlySales = e.MonthlySales
			}
			if e.MonthlyRevenue != nil {
				rows[i].MonthlyRevenue = e.MonthlyRevenue
			}
			matched++
		}
	}
	return matched, nil
}

type fakeSource struct {
	rows   []oxylabs.BestSeller
	err    error
	calls  int
	onCall func()
}

func (f *fakeSource) GetBestSellers(context.Context, string, int) ([]oxylabs.BestSeller, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	return f.rows, f.err
}

// fakeEstimator answers with the configured revenue of every known ASIN
type fakeEstimator struct {
	revenue    map[string]float64
	failBatch  map[int]bool
	batchSizes []int
}

func (f *fakeEstimator) GetSalesEstimates(_ context.Context, asins []string) ([]junglescout.Estimate, error) {
	batch := len(f.batchSizes)
	f.batchSizes = append(f.batchSizes, len(asins))
	if f.failBatch[batch] {
		return nil, errors.New("provider timeout")
	}

	var out []junglescout.Estimate
	for _, asin := range asins {
		rev, ok := f.revenue[asin]
		if !ok {
			continue
		}
		sales := rev / 10
		out = append(out, junglescout.Estimate{ASIN: asin, MonthlySales: &sales, MonthlyRevenue: &rev})
	}
	return out, nil
}

type fakeCache struct {
	rows        map[string][]oxylabs.BestSeller
	getErr      error
	setErr      error
	setKeys     []string
	deletedKeys []string
}

func (f *fakeCache) Get(_ context.Context, categoryID string) ([]oxylabs.BestSeller, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rows, ok := f.rows[categoryID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return rows, nil
}

func (f *fakeCache) Set(_ context.Context, categoryID string, rows []oxylabs.BestSeller) error {
	f.setKeys = append(f.setKeys, categoryID)
	if f.setErr != nil {
		return f.setErr
	}
	if f.rows == nil {
		f.rows = map[string][]oxylabs.BestSeller{}
	}
	f.rows[categoryID] = rows
	return nil
}

func (f *fakeCache) Delete(_ context.Context, categoryID string) error {
	f.deletedKeys = append(f.deletedKeys, categoryID)
	delete(f.rows, categoryID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ProgressEvent
	ctxErr []error
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event model.ProgressEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.ctxErr = append(p.ctxErr, ctx.Err())
	return p.err
}

func (p *recordingPublisher) progress() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.events))
	for i, e := range p.events {
		out[i] = e.Progress
	}
	return out
}

func (p *recordingPublisher) last() model.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fakeArchiver struct {
	snapshots []model.ReportSnapshot
	err       error
}

func (f *fakeArchiver) ArchiveReport(_ context.Context, snapshot model.ReportSnapshot) (string, error) {
	f.snapshots = append(f.snapshots, snapshot)
	return "s3://bucket/reports/" + snapshot.ReportID + ".json", f.err
}

type sleepRecorder struct{ delays []time.Duration }

func (s *sleepRecorder) sleep(d time.Duration) { s.delays = append(s.delays, d) }
