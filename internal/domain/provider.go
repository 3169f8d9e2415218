package domain

import "context"

// Provider is the capability set of an external metadata source for the
// content types it serves. Implementations never return transport or
// decoding failures: they log them and degrade to an empty result.
type Provider interface {
	// Name identifies the provider in logs and metrics
	Name() string
	// Discover returns the catalog listing, labelled CONTENT
	Discover(ctx context.Context, contentType ContentType) []Content
	// Trending returns the trending listing, labelled TRENDING
	Trending(ctx context.Context, contentType ContentType) []Content
	// Search returns free-text hits; items carry their own type
	Search(ctx context.Context, contentType ContentType, query string) []Content
	// Details returns one title or nil
	Details(ctx context.Context, contentType ContentType, externalID string) *Content
	Images(ctx context.Context, contentType ContentType, externalID string) []string
	// Trailer returns the trailer of base or nil
	Trailer(ctx context.Context, contentType ContentType, base *Content) *Trailer
	Recommendations(ctx context.Context, contentType ContentType, externalID string) []Content
	Genres(ctx context.Context, contentType ContentType) []Genre
}

// Providers selects the provider serving each content type
type Providers map[ContentType]Provider

// Recommender turns a free-text description into candidate titles
type Recommender interface {
	// Titles never fails; on error it returns a small fallback list
	Titles(ctx context.Context, description string, contentType ContentType) []string
}
