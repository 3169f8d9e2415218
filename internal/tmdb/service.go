package tmdb

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/discoverdb/internal/domain"
	"github.com/varoOP/discoverdb/internal/provider"
)

// Name identifies the adapter in logs and metrics
const Name = "tmdb"

type service struct {
	log     zerolog.Logger
	baseURL string
	apiKey  string
	client  *http.Client
	guard   *provider.Guard
}

// NewService returns the TMDB adapter serving movies and series
func NewService(log zerolog.Logger, config *domain.Config) domain.Provider {
	l := log.With().Str("module", "tmdb").Logger()
	return &service{
		log:     l,
		baseURL: strings.TrimRight(config.TmdbBaseURL, "/"),
		apiKey:  config.TmdbApiKey,
		client:  &http.Client{Timeout: config.ProviderTimeout},
		guard: provider.NewGuard(l, Name, provider.GuardSettings{
			RequestsPerSecond: config.TmdbRateLimit,
		}),
	}
}

func (s *service) Name() string {
	return Name
}

func (s *service) Discover(ctx context.Context, t domain.ContentType) []domain.Content {
	var resp listResponse
	if err := s.get(ctx, "discover", "/discover/"+segment(t), url.Values{"sort_by": {"popularity.desc"}}, &resp); err != nil {
		s.log.Error().Err(err).Str("type", t.String()).Msg("failed to discover content")
		return nil
	}
	return s.listing(resp.Results, t, domain.LabelContent, 0)
}

func (s *service) Trending(ctx context.Context, t domain.ContentType) []domain.Content {
	var resp listResponse
	if err := s.get(ctx, "trending", "/trending/"+segment(t)+"/week", nil, &resp); err != nil {
		s.log.Error().Err(err).Str("type", t.String()).Msg("failed to fetch trending content")
		return nil
	}
	return s.listing(resp.Results, t, domain.LabelTrending, 0)
}

// Search queries /search/multi and keeps movie and tv hits, typed by their
// media type rather than the requested type
func (s *service) Search(ctx context.Context, t domain.ContentType, query string) []domain.Content {
	var resp listResponse
	if err := s.get(ctx, "search", "/search/multi", url.Values{"query": {query}}, &resp); err != nil {
		s.log.Error().Err(err).Str("query", query).Msg("failed to search content")
		return nil
	}

	results := make([]domain.Content, 0, len(resp.Results))
	for _, r := range resp.Results {
		var hitType domain.ContentType
		switch r.MediaType {
		case "movie":
			hitType = domain.ContentTypeMovie
		case "tv":
			hitType = domain.ContentTypeSeries
		default:
			continue
		}

		c := r.toContent(hitType, domain.LabelContent)
		if complete(c) {
			results = append(results, c)
		}
	}
	return results
}

func (s *service) Details(ctx context.Context, t domain.ContentType, externalID string) *domain.Content {
	var resp detailsResponse
	err := s.get(ctx, "details", "/"+segment(t)+"/"+url.PathEscape(externalID), url.Values{"append_to_response": {"videos,credits"}}, &resp)
	if err != nil {
		if provider.IsNotFound(err) {
			s.log.Debug().Str("type", t.String()).Str("id", externalID).Msg("title not found")
		} else {
			s.log.Error().Err(err).Str("type", t.String()).Str("id", externalID).Msg("failed to fetch details")
		}
		return nil
	}
	return resp.toContent(t)
}

func (s *service) Images(ctx context.Context, t domain.ContentType, externalID string) []string {
	var resp imagesResponse
	if err := s.get(ctx, "images", "/"+segment(t)+"/"+url.PathEscape(externalID)+"/images", nil, &resp); err != nil {
		s.log.Error().Err(err).Str("type", t.String()).Str("id", externalID).Msg("failed to fetch images")
		return nil
	}

	images := make([]string, 0, maxImages)
	for _, b := range resp.Backdrops {
		if len(images) == maxImages {
			break
		}
		if b.FilePath != "" {
			images = append(images, backdropBase+b.FilePath)
		}
	}
	return images
}

func (s *service) Trailer(ctx context.Context, t domain.ContentType, base *domain.Content) *domain.Trailer {
	if base == nil {
		return nil
	}

	var resp videosResponse
	if err := s.get(ctx, "trailer", "/"+segment(t)+"/"+url.PathEscape(base.ExternalID)+"/videos", nil, &resp); err != nil {
		s.log.Error().Err(err).Str("type", t.String()).Str("id", base.ExternalID).Msg("failed to fetch videos")
		return nil
	}
	return trailer(resp.Results)
}

func (s *service) Recommendations(ctx context.Context, t domain.ContentType, externalID string) []domain.Content {
	var resp listResponse
	if err := s.get(ctx, "recommendations", "/"+segment(t)+"/"+url.PathEscape(externalID)+"/recommendations", nil, &resp); err != nil {
		s.log.Error().Err(err).Str("type", t.String()).Str("id", externalID).Msg("failed to fetch recommendations")
		return nil
	}
	return s.listing(resp.Results, t, domain.LabelContent, maxRecommendations)
}

func (s *service) Genres(ctx context.Context, t domain.ContentType) []domain.Genre {
	var resp genresResponse
	if err := s.get(ctx, "genres", "/genre/"+segment(t)+"/list", url.Values{"language": {"en"}}, &resp); err != nil {
		s.log.Error().Err(err).Str("type", t.String()).Msg("failed to fetch genres")
		return nil
	}

	genres := make([]domain.Genre, 0, len(resp.Genres))
	for _, g := range resp.Genres {
		genres = append(genres, domain.Genre{ExternalID: g.ID, ContentType: t, Name: g.Name})
	}
	return genres
}

// listing converts and filters list results; limit <= 0 keeps all
func (s *service) listing(results []listResult, t domain.ContentType, label domain.ContentLabel, limit int) []domain.Content {
	contents := make([]domain.Content, 0, len(results))
	for _, r := range results {
		if limit > 0 && len(contents) == limit {
			break
		}
		c := r.toContent(t, label)
		if !complete(c) {
			s.log.Trace().Int64("id", r.ID).Msg("skipping incomplete item")
			continue
		}
		contents = append(contents, c)
	}
	return contents
}

func (s *service) get(ctx context.Context, capability, path string, query url.Values, v any) error {
	u, err := url.Parse(s.baseURL + path)
	if err != nil {
		return errors.Wrap(err, "failed to build url")
	}

	q := u.Query()
	for k, vals := range query {
		for _, val := range vals {
			q.Add(k, val)
		}
	}
	q.Set("api_key", s.apiKey)
	u.RawQuery = q.Encode()

	body, err := s.guard.Do(ctx, capability, func(ctx context.Context) ([]byte, error) {
		return s.fetch(ctx, u)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, "failed to unmarshal response")
	}
	return nil
}

func (s *service) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// the api key must not end up in logs
		redacted := *u
		redacted.RawQuery = ""
		return nil, &provider.StatusError{Code: resp.StatusCode, URL: redacted.String()}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	return body, nil
}
