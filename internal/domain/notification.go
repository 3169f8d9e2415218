package domain

import "context"

// NotificationService defines the interface for notification services
type NotificationService interface {
	// SendSuccess sends a success notification with statistics
	SendSuccess(ctx context.Context, stats RefreshStats) error

	// SendError sends an error notification with error details
	SendError(ctx context.Context, err error) error
}

// RefreshStats holds the outcome of a catalog refresh run
type RefreshStats struct {
	Catalog      map[ContentType]int
	Trending     map[ContentType]int
	GenresCached map[ContentType]int
}

// Total returns the number of catalog rows across every type
func (s RefreshStats) Total() int {
	total := 0
	for _, n := range s.Catalog {
		total += n
	}
	return total
}
