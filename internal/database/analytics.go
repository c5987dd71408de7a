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
)

// AnalyticsDatabase defines category analytics scope operations
type AnalyticsDatabase interface {
	CreateAnalytics(ctx context.Context, analytics *model.CategoryAnalytics) error
	GetAnalytics(ctx context.Context, id primitive.ObjectID) (*model.CategoryAnalytics, error)

	// Overwrite the scope summary
	UpdateAnalyticsSummary(ctx context.Context, id primitive.ObjectID, summary model.AnalyticsSummary) error
}

func (m *mongoDB) CreateAnalytics(ctx context.Context, analytics *model.CategoryAnalytics) error {
	if analytics.ID.IsZero() {
		analytics.ID = primitive.NewObjectID()
	}

	now := time.Now()
	analytics.CreatedAt = now
	analytics.UpdatedAt = now

	if _, err := m.analyticsCol.InsertOne(ctx, analytics); err != nil {
		log.Error().Err(err).Str("analyticsID", analytics.ID.Hex()).Msg("Failed to create analytics scope")
		return err
	}
	return nil
}

func (m *mongoDB) GetAnalytics(ctx context.Context, id primitive.ObjectID) (*model.CategoryAnalytics, error) {
	var analytics model.CategoryAnalytics
	err := m.analyticsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&analytics)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("analyticsID", id.Hex()).Msg("Failed to get analytics scope")
		return nil, err
	}
	return &analytics, nil
}

func (m *mongoDB) UpdateAnalyticsSummary(ctx context.Context, id primitive.ObjectID, summary model.AnalyticsSummary) error {
	result, err := m.analyticsCol.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"summary_json": summary, "updated_at": time.Now()}},
	)
	if err != nil {
		log.Error().Err(err).Str("analyticsID", id.Hex()).Msg("Failed to save analytics summary")
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
