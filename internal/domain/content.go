package domain

import (
	"strings"
	"time"
)

// ContentType identifies which catalog a record belongs to
type ContentType string

const (
	ContentTypeMovie  ContentType = "MOVIE"
	ContentTypeSeries ContentType = "SERIES"
	ContentTypeAnime  ContentType = "ANIME"
)

// ContentTypes lists every supported content type in a stable order
var ContentTypes = []ContentType{ContentTypeMovie, ContentTypeSeries, ContentTypeAnime}

// ParseContentType parses a content type case-insensitively
func ParseContentType(s string) (ContentType, error) {
	t := ContentType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", NewValidationError("invalid content type: %q", s)
	}
	return t, nil
}

func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeMovie, ContentTypeSeries, ContentTypeAnime:
		return true
	}
	return false
}

func (t ContentType) String() string {
	return string(t)
}

// ContentLabel marks which fetch pattern produced or last updated a record
type ContentLabel string

const (
	LabelContent  ContentLabel = "CONTENT"
	LabelTrending ContentLabel = "TRENDING"
)

// Content is a cached, normalized metadata row for one title.
// Identity is (ExternalID, Type); ID is the local surrogate key.
type Content struct {
	ID             int64        `json:"id"`
	ExternalID     string       `json:"externalId"`
	Type           ContentType  `json:"type"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	PosterURL      string       `json:"posterUrl,omitempty"`
	BackdropURL    string       `json:"backdropPath,omitempty"`
	TrailerURL     string       `json:"trailerUrl,omitempty"`
	TrailerID      string       `json:"trailerId,omitempty"`
	ReleaseDate    string       `json:"releaseDate,omitempty"`
	CastList       string       `json:"castList,omitempty"`
	Rating         float64      `json:"ratings"`
	GenreIDs       []int64      `json:"genreIds,omitempty"`
	Genres         []Genre      `json:"-"`
	Label          ContentLabel `json:"label"`
	ImageURLs      []string     `json:"imageUrls"`
	RecommendedIDs []string     `json:"recommendedContentIds"`
	CreatedAt      time.Time    `json:"-"`
	UpdatedAt      time.Time    `json:"-"`
}

// GenreNames returns the names of the resolved genres
func (c *Content) GenreNames() []string {
	names := make([]string, 0, len(c.Genres))
	for _, g := range c.Genres {
		names = append(names, g.Name)
	}
	return names
}

// Overwrite replaces the provider-sourced metadata of c with src, keeping
// the surrogate id. Enrichment fields are only replaced when src carries
// them and recommendation ids are appended without duplicates.
func (c *Content) Overwrite(src *Content) {
	c.Title = src.Title
	c.Description = src.Description
	c.PosterURL = src.PosterURL
	c.BackdropURL = src.BackdropURL
	c.ReleaseDate = src.ReleaseDate
	c.CastList = src.CastList
	c.Rating = src.Rating
	c.GenreIDs = src.GenreIDs
	c.Genres = src.Genres
	c.Type = src.Type
	if src.Label != "" {
		c.Label = src.Label
	}
	if src.TrailerURL != "" {
		c.TrailerURL = src.TrailerURL
		c.TrailerID = src.TrailerID
	}
	if len(src.ImageURLs) > 0 {
		c.ImageURLs = src.ImageURLs
	}
	c.AppendRecommended(src.RecommendedIDs...)
}

// AppendRecommended adds external ids to RecommendedIDs, skipping blanks and
// ids already present
func (c *Content) AppendRecommended(ids ...string) {
	seen := make(map[string]struct{}, len(c.RecommendedIDs)+len(ids))
	out := make([]string, 0, len(c.RecommendedIDs)+len(ids))
	for _, id := range c.RecommendedIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	c.RecommendedIDs = out
}

// ContentDetails is a content record together with its resolved recommendations
type ContentDetails struct {
	Content
	RecommendedContent []Content `json:"recommendedContent"`
}

// Trailer points at a video for a title
type Trailer struct {
	URL string
	ID  string
}
