// Package providertest provides an in-memory domain.Provider that records
// how often each capability was called.
package providertest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/varoOP/discoverdb/internal/domain"
)

// Fake serves canned data. Zero values behave like a provider with nothing
// to offer.
type Fake struct {
	DiscoverItems  []domain.Content
	TrendingItems  []domain.Content
	SearchItems    map[string][]domain.Content
	DetailItems    map[string]*domain.Content
	ImageItems     map[string][]string
	TrailerItems   map[string]*domain.Trailer
	Recommended    map[string][]domain.Content
	GenreItems     []domain.Genre
	RecommendTitle []string

	// Delay is slept at the start of Discover and Trending
	Delay time.Duration
	// Before, when set, runs at the start of every capability call with
	// the context handed to the provider
	Before func(ctx context.Context, capability string)

	mu    sync.Mutex
	calls map[string]int
}

func (f *Fake) record(ctx context.Context, capability string) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[capability]++
	f.mu.Unlock()

	if f.Before != nil {
		f.Before(ctx, capability)
	}
}

// Calls returns how often capability was invoked
func (f *Fake) Calls(capability string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[capability]
}

// TotalCalls returns the number of invocations across every capability
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Discover(ctx context.Context, t domain.ContentType) []domain.Content {
	f.record(ctx, "discover")
	time.Sleep(f.Delay)
	return clone(f.DiscoverItems)
}

func (f *Fake) Trending(ctx context.Context, t domain.ContentType) []domain.Content {
	f.record(ctx, "trending")
	time.Sleep(f.Delay)
	return clone(f.TrendingItems)
}

func (f *Fake) Search(ctx context.Context, t domain.ContentType, query string) []domain.Content {
	f.record(ctx, "search")
	return clone(f.SearchItems[strings.ToLower(query)])
}

func (f *Fake) Details(ctx context.Context, t domain.ContentType, externalID string) *domain.Content {
	f.record(ctx, "details")
	c, ok := f.DetailItems[externalID]
	if !ok || c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (f *Fake) Images(ctx context.Context, t domain.ContentType, externalID string) []string {
	f.record(ctx, "images")
	return append([]string(nil), f.ImageItems[externalID]...)
}

func (f *Fake) Trailer(ctx context.Context, t domain.ContentType, base *domain.Content) *domain.Trailer {
	f.record(ctx, "trailer")
	if base == nil {
		return nil
	}
	return f.TrailerItems[base.ExternalID]
}

func (f *Fake) Recommendations(ctx context.Context, t domain.ContentType, externalID string) []domain.Content {
	f.record(ctx, "recommendations")
	return clone(f.Recommended[externalID])
}

func (f *Fake) Genres(ctx context.Context, t domain.ContentType) []domain.Genre {
	f.record(ctx, "genres")
	return append([]domain.Genre(nil), f.GenreItems...)
}

// Titles lets Fake act as a domain.Recommender
func (f *Fake) Titles(ctx context.Context, description string, t domain.ContentType) []string {
	f.record(ctx, "titles")
	return append([]string(nil), f.RecommendTitle...)
}

func clone(items []domain.Content) []domain.Content {
	if items == nil {
		return nil
	}
	out := make([]domain.Content, len(items))
	copy(out, items)
	return out
}
