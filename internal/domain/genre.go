package domain

import "context"

// Genre is a provider genre for one content type. Names are never updated
// once stored.
type Genre struct {
	ID          int64       `json:"id"`
	ExternalID  int64       `json:"externalId"`
	ContentType ContentType `json:"contentType"`
	Name        string      `json:"name"`
}

// GenreRepo defines the interface for genre storage
type GenreRepo interface {
	// FindByExternalIDs returns the stored genres of a type among ids
	FindByExternalIDs(ctx context.Context, contentType ContentType, ids []int64) ([]Genre, error)
	// ExternalIDs returns the set of stored genre external ids for a type
	ExternalIDs(ctx context.Context, contentType ContentType) (map[int64]struct{}, error)
	// SaveAll inserts genres that are not stored yet
	SaveAll(ctx context.Context, genres []Genre) error
	ListByType(ctx context.Context, contentType ContentType) ([]Genre, error)
}
