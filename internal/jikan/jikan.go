package jikan

import (
	"strconv"

	"github.com/varoOP/discoverdb/internal/domain"
	"github.com/varoOP/discoverdb/internal/format"
)

const (
	youtubeWatch = "https://www.youtube.com/watch?v="

	maxImages          = 10
	maxRecommendations = 4
)

type images struct {
	JPG struct {
		ImageURL      string `json:"image_url"`
		LargeImageURL string `json:"large_image_url"`
	} `json:"jpg"`
}

func (i images) best() string {
	if i.JPG.LargeImageURL != "" {
		return i.JPG.LargeImageURL
	}
	return i.JPG.ImageURL
}

type anime struct {
	MalID    int64   `json:"mal_id"`
	Title    string  `json:"title"`
	Synopsis string  `json:"synopsis"`
	Score    float64 `json:"score"`
	Images   images  `json:"images"`
	Trailer  struct {
		YoutubeID string `json:"youtube_id"`
		URL       string `json:"url"`
	} `json:"trailer"`
	Genres []struct {
		MalID int64 `json:"mal_id"`
	} `json:"genres"`
	Aired struct {
		From string `json:"from"`
	} `json:"aired"`
}

type listResponse struct {
	Data []anime `json:"data"`
}

type animeResponse struct {
	Data anime `json:"data"`
}

type picturesResponse struct {
	Data []images `json:"data"`
}

type recommendationsResponse struct {
	Data []struct {
		Entry struct {
			MalID int64  `json:"mal_id"`
			Title string `json:"title"`
		} `json:"entry"`
	} `json:"data"`
}

type genresResponse struct {
	Data []struct {
		MalID int64  `json:"mal_id"`
		Name  string `json:"name"`
	} `json:"data"`
}

func (a anime) toContent(label domain.ContentLabel) domain.Content {
	c := domain.Content{
		ExternalID:  strconv.FormatInt(a.MalID, 10),
		Type:        domain.ContentTypeAnime,
		Title:       format.PlainText(a.Title),
		Description: format.PlainText(a.Synopsis),
		PosterURL:   a.Images.best(),
		Rating:      a.Score,
		Label:       label,
	}

	if len(a.Aired.From) >= 10 {
		c.ReleaseDate = a.Aired.From[:10]
	}

	if id := a.Trailer.YoutubeID; id != "" {
		c.TrailerID = id
		c.TrailerURL = youtubeWatch + id
	}

	for _, g := range a.Genres {
		c.GenreIDs = append(c.GenreIDs, g.MalID)
	}

	return c
}

// listable reports whether a listing or search item is complete enough to show
func listable(c *domain.Content) bool {
	return c.ExternalID != "0" && c.Title != "" && c.PosterURL != "" && c.Description != ""
}

// recommendable reports whether a backfilled recommendation can be shown
func recommendable(c *domain.Content) bool {
	return c != nil && c.Title != "" && c.PosterURL != "" && c.Description != "" && c.Rating > 0
}
