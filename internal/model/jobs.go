package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReportStatus represents the current state of a demand report
type ReportStatus string

const (
	StatusQueued     ReportStatus = "QUEUED"
	StatusGenerating ReportStatus = "GENERATING"
	StatusCompleted  ReportStatus = "COMPLETED"
	StatusFailed     ReportStatus = "FAILED"
)

// IsTerminal reports whether no further transition is expected within an attempt
func (s ReportStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task types handled by the worker
const (
	TaskAnalyzeDemand = "demand:analyze"
)

// DemandJob is the payload carried by the job queue. Attempt and MaxAttempts are
// filled in by the queue at dequeue time and never serialized.
type DemandJob struct {
	ReportID            string `json:"reportId"`
	CategoryAnalyticsID string `json:"categoryAnalyticsId"`
	CategoryID          string `json:"categoryId"`

	Attempt     int `json:"-"`
	MaxAttempts int `json:"-"`
}

// IsFinalAttempt reports whether the queue will not redeliver this job after a failure
func (j DemandJob) IsFinalAttempt() bool {
	return j.MaxAttempts <= 0 || j.Attempt >= j.MaxAttempts
}

// DemandReport is the persisted record of one demand analysis request
type DemandReport struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       string             `bson:"user_id" json:"user_id"`
	CategoryID   string             `bson:"category_id" json:"category_id"`
	CategoryName string             `bson:"category_name" json:"category_name"`
	AnalyticsID  primitive.ObjectID `bson:"analytics_id" json:"analytics_id"`
	Status       ReportStatus       `bson:"status" json:"status"`
	Progress     int                `bson:"progress" json:"progress"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
	CompletedAt  *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}
