package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CategoryAnalytics groups the best seller rows and summary of one report
type CategoryAnalytics struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReportID   primitive.ObjectID `bson:"report_id" json:"report_id"`
	CategoryID string             `bson:"category_id" json:"category_id"`
	Summary    *AnalyticsSummary  `bson:"summary_json,omitempty" json:"summary_json,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// BestSellingAsin is one discovered product of a scope. Rank is fixed at insert,
// only the monthly estimates change afterwards.
type BestSellingAsin struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AnalyticsID    primitive.ObjectID `bson:"analytics_id" json:"analytics_id"`
	Rank           int                `bson:"rank" json:"rank"`
	ASIN           string             `bson:"asin" json:"asin"`
	Title          string             `bson:"title" json:"title"`
	ImageURL       *string            `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Price          *float64           `bson:"price,omitempty" json:"price,omitempty"`
	Rating         *float64           `bson:"rating,omitempty" json:"rating,omitempty"`
	ReviewsCount   *int               `bson:"reviews_count,omitempty" json:"reviews_count,omitempty"`
	MonthlySales   *float64           `bson:"monthly_sales,omitempty" json:"monthly_sales,omitempty"`
	MonthlyRevenue *float64           `bson:"monthly_revenue,omitempty" json:"monthly_revenue,omitempty"`
}

// SalesEstimate is a normalized provider estimate for one ASIN
type SalesEstimate struct {
	ASIN           string
	MonthlySales   *float64
	MonthlyRevenue *float64
}

// BulkImportResult counts the outcome of a duplicate tolerant insert
type BulkImportResult struct {
	SuccessCount   int
	DuplicateCount int
}

// ReportSnapshot is the archived view of a completed report
type ReportSnapshot struct {
	ReportID    string            `json:"report_id"`
	CategoryID  string            `json:"category_id"`
	Summary     AnalyticsSummary  `json:"summary"`
	Products    []BestSellingAsin `json:"products"`
	GeneratedAt time.Time         `json:"generated_at"`
}
