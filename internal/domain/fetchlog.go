package domain

import (
	"context"
	"time"
)

// FetchLogEntry records when a logical fetch last ran
type FetchLogEntry struct {
	Key           string
	LastFetchedAt time.Time
}

// FetchLogRepo defines the interface for fetch log storage
type FetchLogRepo interface {
	// Get returns ErrNotFound when the key was never fetched
	Get(ctx context.Context, key string) (*FetchLogEntry, error)
	// Upsert overwrites the entry for the key
	Upsert(ctx context.Context, entry FetchLogEntry) error
}

// DiscoverKey is the fetch key of the catalog listing of a type
func DiscoverKey(t ContentType) string {
	return "DISCOVER_" + string(t)
}

// TrendingKey is the fetch key of the trending listing of a type
func TrendingKey(t ContentType) string {
	return "TRENDING_" + string(t)
}

// DetailsKey is the fetch key of the enriched details of one title
func DetailsKey(t ContentType, externalID string) string {
	return "DETAILS_" + string(t) + "_" + externalID
}

// GenresKey is the fetch key of the genre catalog of a type
func GenresKey(t ContentType) string {
	return "GENRES_" + string(t)
}
