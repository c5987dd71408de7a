package database

import (
	"context"
	"errors"

	"demand/internal/model"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BestSellerDatabase defines operations on the rows of an analytics scope
type BestSellerDatabase interface {
	// Get a scope's rows ordered by rank
	GetBestSellers(ctx context.Context, analyticsID primitive.ObjectID) ([]model.BestSellingAsin, error)

	// Insert rows, skipping any that collide on (scope, asin) or (scope, rank)
	InsertBestSellers(ctx context.Context, analyticsID primitive.ObjectID, rows []model.BestSellingAsin) (model.BulkImportResult, error)

	// Merge sales estimates into the scope's rows by ASIN
	ApplySalesEstimates(ctx context.Context, analyticsID primitive.ObjectID, estimates []model.SalesEstimate) (int64, error)
}

func (m *mongoDB) GetBestSellers(ctx context.Context, analyticsID primitive.ObjectID) ([]model.BestSellingAsin, error) {
	opts := options.Find().SetSort(bson.D{{Key: "rank", Value: 1}})

	cursor, err := m.bestSellersCol.Find(ctx, bson.M{"analytics_id": analyticsID}, opts)
	if err != nil {
		log.Error().Err(err).Str("analyticsID", analyticsID.Hex()).Msg("Failed to read best sellers")
		return nil, err
	}
	defer cursor.Close(ctx)

	rows := []model.BestSellingAsin{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (m *mongoDB) InsertBestSellers(ctx context.Context, analyticsID primitive.ObjectID, rows []model.BestSellingAsin) (model.BulkImportResult, error) {
	var result model.BulkImportResult
	if len(rows) == 0 {
		return result, nil
	}

	docs := make([]interface{}, len(rows))
	for i := range rows {
		row := rows[i]
		row.ID = primitive.NilObjectID
		row.AnalyticsID = analyticsID
		docs[i] = row
	}

	_, err := m.bestSellersCol.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		var bulkErr mongo.BulkWriteException
		if !errors.As(err, &bulkErr) || bulkErr.WriteConcernError != nil {
			log.Error().Err(err).Str("analyticsID", analyticsID.Hex()).Msg("Failed to insert best sellers")
			return result, err
		}
		for _, we := range bulkErr.WriteErrors {
			if we.Code != duplicateKeyCode {
				log.Error().Err(err).Str("analyticsID", analyticsID.Hex()).Msg("Failed to insert best sellers")
				return result, err
			}
			result.DuplicateCount++
		}
	}

	result.SuccessCount = len(rows) - result.DuplicateCount

	log.Debug().
		Str("analyticsID", analyticsID.Hex()).
		Int("inserted", result.SuccessCount).
		Int("duplicates", result.DuplicateCount).
		Msg("Inserted best sellers")
	return result, nil
}

// ApplySalesEstimates sets the monthly figures an estimate carries. Missing
// figures leave the stored value as it was.
func (m *mongoDB) ApplySalesEstimates(ctx context.Context, analyticsID primitive.ObjectID, estimates []model.SalesEstimate) (int64, error) {
	writes := make([]mongo.WriteModel, 0, len(estimates))
	for _, e := range estimates {
		set := bson.M{}
		if e.MonthlySales != nil {
			set["monthly_sales"] = *e.MonthlySales
		}
		if e.MonthlyRevenue != nil {
			set["monthly_revenue"] = *e.MonthlyRevenue
		}
		if len(set) == 0 || e.ASIN == "" {
			continue
		}

		writes = append(writes, mongo.NewUpdateManyModel().
			SetFilter(bson.M{"analytics_id": analyticsID, "asin": e.ASIN}).
			SetUpdate(bson.M{"$set": set}))
	}
	if len(writes) == 0 {
		return 0, nil
	}

	result, err := m.bestSellersCol.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		log.Error().Err(err).Str("analyticsID", analyticsID.Hex()).Msg("Failed to apply sales estimates")
		return 0, err
	}

	return result.MatchedCount, nil
}
