package database

import (
	"context"
	"errors"
	"time"

	"demand/internal/config"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	reportsCollection     = "demand_reports"
	analyticsCollection   = "category_analytics"
	bestSellersCollection = "best_selling_asins"

	duplicateKeyCode = 11000
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

type Database interface {
	Health() error
	Close(ctx context.Context) error
	ReportDatabase
	AnalyticsDatabase
	BestSellerDatabase
}

type mongoDB struct {
	client *mongo.Client
	db     *mongo.Database

	reportsCol     *mongo.Collection
	analyticsCol   *mongo.Collection
	bestSellersCol *mongo.Collection
}

func New(config *config.Config) (Database, error) {
	clientOptions := options.Client().ApplyURI(config.MongoDB.URI)
	if config.MongoDB.Username != "" {
		clientOptions.SetAuth(options.Credential{
			Username: config.MongoDB.Username,
			Password: config.MongoDB.Password,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	m := newMongoDB(client.Database(config.MongoDB.DB))
	m.ensureIndexes(ctx)

	log.Info().Str("db", config.MongoDB.DB).Msg("MongoDB connection established")
	return m, nil
}

func newMongoDB(db *mongo.Database) *mongoDB {
	return &mongoDB{
		client:         db.Client(),
		db:             db,
		reportsCol:     db.Collection(reportsCollection),
		analyticsCol:   db.Collection(analyticsCollection),
		bestSellersCol: db.Collection(bestSellersCollection),
	}
}

// ensureIndexes creates the collection indexes. Failures are logged, the
// unique row indexes are what make discovery inserts duplicate tolerant.
func (m *mongoDB) ensureIndexes(ctx context.Context) {
	reportIndexModels := []mongo.IndexModel{
		{
			// Listing a user's reports, newest first
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index(),
		},
	}

	analyticsIndexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "report_id", Value: 1}},
			Options: options.Index(),
		},
	}

	bestSellerIndexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "analytics_id", Value: 1}, {Key: "asin", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "analytics_id", Value: 1}, {Key: "rank", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := m.reportsCol.Indexes().CreateMany(ctx, reportIndexModels); err != nil {
		log.Warn().Err(err).Str("Collection", reportsCollection).Msg("Error creating indexes")
	}
	if _, err := m.analyticsCol.Indexes().CreateMany(ctx, analyticsIndexModels); err != nil {
		log.Warn().Err(err).Str("Collection", analyticsCollection).Msg("Error creating indexes")
	}
	if _, err := m.bestSellersCol.Indexes().CreateMany(ctx, bestSellerIndexModels); err != nil {
		log.Warn().Err(err).Str("Collection", bestSellersCollection).Msg("Error creating indexes")
	}
}

// Health implements Database interface
func (m *mongoDB) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := m.client.Ping(ctx, nil)

	if err != nil {
		log.Error().Msgf("Database health error: %v", err)
		return err
	}

	return nil
}

func (m *mongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
