package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"demand/internal/database"
	"demand/internal/events"
	"demand/internal/model"
	"demand/pkg/oxylabs"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InitialProgress is the progress of a freshly queued report
const InitialProgress = 5

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrMissingCategory = errors.New("category_id is required")
)

// ReportStore is the persistence the producer needs
type ReportStore interface {
	CreateAnalytics(ctx context.Context, analytics *model.CategoryAnalytics) error
	GetAnalytics(ctx context.Context, id primitive.ObjectID) (*model.CategoryAnalytics, error)
	CreateReport(ctx context.Context, report *model.DemandReport) error
	GetReportByID(ctx context.Context, id primitive.ObjectID) (*model.DemandReport, error)
	ListReportsByUser(ctx context.Context, userID string, limit int) ([]*model.DemandReport, error)
	FailReport(ctx context.Context, id primitive.ObjectID) error
	GetBestSellers(ctx context.Context, analyticsID primitive.ObjectID) ([]model.BestSellingAsin, error)
}

type Enqueuer interface {
	EnqueueDemand(ctx context.Context, job model.DemandJob) (*asynq.TaskInfo, error)
}

type CategoryLookup interface {
	GetCategoryFromASIN(ctx context.Context, asin string) (*oxylabs.Category, error)
}

type EventSubscriber interface {
	Subscribe(ctx context.Context) (<-chan model.ProgressEvent, error)
}

// CreateReportRequest is the body of a new demand report
type CreateReportRequest struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	UserID       string `json:"user_id"`
}

// ReportDetail is a report with its scope
type ReportDetail struct {
	Report   *model.DemandReport     `json:"report"`
	Summary  *model.AnalyticsSummary `json:"summary,omitempty"`
	Products []model.BestSellingAsin `json:"products"`
}

// ReportController defines the producer side of the pipeline
type ReportController interface {
	// CreateReport persists a report and its empty scope, then enqueues the analysis
	CreateReport(ctx context.Context, req CreateReportRequest) (*model.DemandReport, error)

	GetReport(ctx context.Context, id string) (*ReportDetail, error)

	ListReports(ctx context.Context, userID string, limit int) ([]*model.DemandReport, error)

	CategoryFromASIN(ctx context.Context, asin string) (*oxylabs.Category, error)

	// Subscribe streams the progress events of one report until ctx is done
	Subscribe(ctx context.Context, reportID string) (<-chan model.ProgressEvent, error)
}

type reportController struct {
	store      ReportStore
	queue      Enqueuer
	publisher  events.Publisher
	categories CategoryLookup
	subscriber EventSubscriber
}

func NewReportController(store ReportStore, queue Enqueuer, publisher events.Publisher, categories CategoryLookup, subscriber EventSubscriber) ReportController {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &reportController{
		store:      store,
		queue:      queue,
		publisher:  publisher,
		categories: categories,
		subscriber: subscriber,
	}
}

func (rc *reportController) CreateReport(ctx context.Context, req CreateReportRequest) (*model.DemandReport, error) {
	categoryID := strings.TrimSpace(req.CategoryID)
	if categoryID == "" {
		return nil, ErrMissingCategory
	}

	reportID := primitive.NewObjectID()
	analyticsID := primitive.NewObjectID()

	// the scope exists before the report that points at it
	if err := rc.store.CreateAnalytics(ctx, &model.CategoryAnalytics{
		ID:         analyticsID,
		ReportID:   reportID,
		CategoryID: categoryID,
	}); err != nil {
		return nil, fmt.Errorf("creating analytics scope: %w", err)
	}

	report := &model.DemandReport{
		ID:           reportID,
		UserID:       req.UserID,
		CategoryID:   categoryID,
		CategoryName: req.CategoryName,
		AnalyticsID:  analyticsID,
		Status:       model.StatusQueued,
		Progress:     InitialProgress,
	}
	if err := rc.store.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("creating report: %w", err)
	}

	job := model.DemandJob{
		ReportID:            reportID.Hex(),
		CategoryAnalyticsID: analyticsID.Hex(),
		CategoryID:          categoryID,
	}
	if _, err := rc.queue.EnqueueDemand(ctx, job); err != nil {
		log.Error().Err(err).Str("reportID", job.ReportID).Msg("Failed to enqueue demand analysis")
		if ferr := rc.store.FailReport(ctx, reportID); ferr != nil {
			log.Error().Err(ferr).Str("reportID", job.ReportID).Msg("Failed to mark unqueued report as failed")
		}
		return nil, fmt.Errorf("enqueueing report %s: %w", job.ReportID, err)
	}

	event := model.ProgressEvent{ReportID: job.ReportID, Status: model.StatusQueued, Progress: InitialProgress}
	if err := rc.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("reportID", job.ReportID).Msg("Failed to publish queued event")
	}

	log.Info().
		Str("reportID", job.ReportID).
		Str("categoryID", categoryID).
		Str("userID", req.UserID).
		Msg("Queued demand report")

	return report, nil
}

func (rc *reportController) GetReport(ctx context.Context, id string) (*ReportDetail, error) {
	reportID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	report, err := rc.store.GetReportByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	detail := &ReportDetail{Report: report, Products: []model.BestSellingAsin{}}

	analytics, err := rc.store.GetAnalytics(ctx, report.AnalyticsID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return detail, nil
	case err != nil:
		return nil, fmt.Errorf("reading analytics scope: %w", err)
	}
	detail.Summary = analytics.Summary

	rows, err := rc.store.GetBestSellers(ctx, report.AnalyticsID)
	if err != nil {
		return nil, fmt.Errorf("reading best sellers: %w", err)
	}
	if rows != nil {
		detail.Products = rows
	}

	return detail, nil
}

func (rc *reportController) ListReports(ctx context.Context, userID string, limit int) ([]*model.DemandReport, error) {
	return rc.store.ListReportsByUser(ctx, userID, limit)
}

func (rc *reportController) CategoryFromASIN(ctx context.Context, asin string) (*oxylabs.Category, error) {
	return rc.categories.GetCategoryFromASIN(ctx, strings.TrimSpace(asin))
}

func (rc *reportController) Subscribe(ctx context.Context, reportID string) (<-chan model.ProgressEvent, error) {
	if _, err := primitive.ObjectIDFromHex(reportID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, reportID)
	}

	all, err := rc.subscriber.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan model.ProgressEvent)
	go func() {
		defer close(out)
		for event := range all {
			if event.ReportID != reportID {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
