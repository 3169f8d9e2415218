package tmdb

import (
	"strconv"
	"strings"

	"github.com/varoOP/discoverdb/internal/domain"
	"github.com/varoOP/discoverdb/internal/format"
)

const (
	posterBase   = "https://image.tmdb.org/t/p/w500"
	backdropBase = "https://image.tmdb.org/t/p/original"
	youtubeWatch = "https://www.youtube.com/watch?v="

	maxImages          = 10
	maxRecommendations = 10
	maxCast            = 5
)

type listResponse struct {
	Page    int          `json:"page"`
	Results []listResult `json:"results"`
}

type listResult struct {
	ID           int64   `json:"id"`
	MediaType    string  `json:"media_type"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	GenreIDs     []int64 `json:"genre_ids"`
	VoteAverage  float64 `json:"vote_average"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
}

type genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type video struct {
	Key  string `json:"key"`
	Site string `json:"site"`
	Type string `json:"type"`
}

type videosResponse struct {
	Results []video `json:"results"`
}

type detailsResponse struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	Genres       []genre `json:"genres"`
	VoteAverage  float64 `json:"vote_average"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`

	Videos  videosResponse `json:"videos"`
	Credits struct {
		Cast []struct {
			Name string `json:"name"`
		} `json:"cast"`
	} `json:"credits"`
}

type imagesResponse struct {
	Backdrops []struct {
		FilePath string `json:"file_path"`
	} `json:"backdrops"`
}

type genresResponse struct {
	Genres []genre `json:"genres"`
}

// segment is the URL path element TMDB uses for a content type
func segment(t domain.ContentType) string {
	if t == domain.ContentTypeSeries {
		return "tv"
	}
	return "movie"
}

func imageURL(base, path string) string {
	if path == "" {
		return ""
	}
	return base + path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (r listResult) toContent(t domain.ContentType, label domain.ContentLabel) domain.Content {
	return domain.Content{
		ExternalID:  strconv.FormatInt(r.ID, 10),
		Type:        t,
		Title:       format.PlainText(firstNonEmpty(r.Title, r.Name)),
		Description: format.PlainText(r.Overview),
		PosterURL:   imageURL(posterBase, r.PosterPath),
		BackdropURL: imageURL(backdropBase, r.BackdropPath),
		ReleaseDate: firstNonEmpty(r.ReleaseDate, r.FirstAirDate),
		Rating:      r.VoteAverage,
		GenreIDs:    r.GenreIDs,
		Label:       label,
	}
}

// complete reports whether a listing item carries enough to be shown
func complete(c domain.Content) bool {
	return c.Title != "" && c.PosterURL != "" && c.Description != ""
}

func (d detailsResponse) toContent(t domain.ContentType) *domain.Content {
	c := &domain.Content{
		ExternalID:  strconv.FormatInt(d.ID, 10),
		Type:        t,
		Title:       format.PlainText(firstNonEmpty(d.Title, d.Name)),
		Description: format.PlainText(d.Overview),
		PosterURL:   imageURL(posterBase, d.PosterPath),
		BackdropURL: imageURL(backdropBase, d.BackdropPath),
		ReleaseDate: firstNonEmpty(d.ReleaseDate, d.FirstAirDate),
		Rating:      d.VoteAverage,
		Label:       domain.LabelContent,
	}

	for _, g := range d.Genres {
		c.GenreIDs = append(c.GenreIDs, g.ID)
	}

	if tr := trailer(d.Videos.Results); tr != nil {
		c.TrailerURL = tr.URL
		c.TrailerID = tr.ID
	}

	cast := make([]string, 0, maxCast)
	for _, member := range d.Credits.Cast {
		if len(cast) == maxCast {
			break
		}
		if member.Name != "" {
			cast = append(cast, member.Name)
		}
	}
	c.CastList = strings.Join(cast, ", ")

	return c
}

// trailer picks the first YouTube trailer
func trailer(videos []video) *domain.Trailer {
	for _, v := range videos {
		if strings.EqualFold(v.Site, "YouTube") && v.Type == "Trailer" && v.Key != "" {
			return &domain.Trailer{URL: youtubeWatch + v.Key, ID: v.Key}
		}
	}
	return nil
}
