package domain

import (
	"context"
	"time"
)

// RecommendationRequest asks for titles matching a description
type RecommendationRequest struct {
	Description string      `json:"description" validate:"required"`
	ContentType ContentType `json:"contentType" validate:"required"`
}

// RecommendationLog records one recommendation request
type RecommendationLog struct {
	ID          int64
	Subject     string
	Description string
	ContentType ContentType
	Titles      []string
	CreatedAt   time.Time
}

// RecommendationLogRepo defines the interface for recommendation log storage
type RecommendationLogRepo interface {
	Create(ctx context.Context, log *RecommendationLog) error
}
