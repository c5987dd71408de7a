package database

import (
	"context"
	"errors"
	"time"

	"demand/internal/model"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReportDatabase defines demand report operations
type ReportDatabase interface {
	// Create a new report, assigning an ID when none is set
	CreateReport(ctx context.Context, report *model.DemandReport) error

	// Get a report by ID
	GetReportByID(ctx context.Context, id primitive.ObjectID) (*model.DemandReport, error)

	// List a user's reports, newest first
	ListReportsByUser(ctx context.Context, userID string, limit int) ([]*model.DemandReport, error)

	// Update status and progress of a running report
	UpdateReportProgress(ctx context.Context, id primitive.ObjectID, status model.ReportStatus, progress int) error

	// Mark a report COMPLETED with progress 100
	CompleteReport(ctx context.Context, id primitive.ObjectID) error

	// Mark a report FAILED, leaving its progress untouched
	FailReport(ctx context.Context, id primitive.ObjectID) error
}

// CreateReport creates a new report in the database
func (m *mongoDB) CreateReport(ctx context.Context, report *model.DemandReport) error {
	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}

	now := time.Now()
	report.CreatedAt = now
	report.UpdatedAt = now

	if _, err := m.reportsCol.InsertOne(ctx, report); err != nil {
		log.Error().Err(err).Str("reportID", report.ID.Hex()).Msg("Failed to create report")
		return err
	}

	log.Debug().
		Str("reportID", report.ID.Hex()).
		Str("categoryID", report.CategoryID).
		Msg("Created new report")
	return nil
}

// GetReportByID retrieves a report by its ID
func (m *mongoDB) GetReportByID(ctx context.Context, id primitive.ObjectID) (*model.DemandReport, error) {
	var report model.DemandReport
	err := m.reportsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("reportID", id.Hex()).Msg("Failed to get report")
		return nil, err
	}

	return &report, nil
}

// ListReportsByUser lists a user's reports, newest first
func (m *mongoDB) ListReportsByUser(ctx context.Context, userID string, limit int) ([]*model.DemandReport, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.reportsCol.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Failed to list reports")
		return nil, err
	}
	defer cursor.Close(ctx)

	reports := []*model.DemandReport{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}

	return reports, nil
}

// UpdateReportProgress sets status and progress of a report
func (m *mongoDB) UpdateReportProgress(ctx context.Context, id primitive.ObjectID, status model.ReportStatus, progress int) error {
	return m.updateReport(ctx, id, bson.M{
		"status":     status,
		"progress":   progress,
		"updated_at": time.Now(),
	})
}

// CompleteReport marks a report COMPLETED
func (m *mongoDB) CompleteReport(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()
	return m.updateReport(ctx, id, bson.M{
		"status":       model.StatusCompleted,
		"progress":     100,
		"completed_at": now,
		"updated_at":   now,
	})
}

// FailReport marks a report FAILED
func (m *mongoDB) FailReport(ctx context.Context, id primitive.ObjectID) error {
	return m.updateReport(ctx, id, bson.M{
		"status":     model.StatusFailed,
		"updated_at": time.Now(),
	})
}

func (m *mongoDB) updateReport(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	result, err := m.reportsCol.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		log.Error().Err(err).Str("reportID", id.Hex()).Interface("status", set["status"]).Msg("Failed to update report")
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	log.Debug().
		Str("reportID", id.Hex()).
		Interface("status", set["status"]).
		Interface("progress", set["progress"]).
		Msg("Updated report")
	return nil
}
