package jikan

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly"
	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/discoverdb/internal/domain"
	"github.com/varoOP/discoverdb/internal/provider"
)

// Name identifies the adapter in logs and metrics
const Name = "jikan"

const userAgent = "discoverdb (+https://github.com/varoOP/discoverdb)"

type service struct {
	log       zerolog.Logger
	baseURL   string
	collector *colly.Collector
	guard     *provider.Guard
}

// NewService returns the Jikan adapter serving anime. Every request goes
// through one collector whose limit rule paces Jikan calls by config.JikanDelay.
func NewService(log zerolog.Logger, config *domain.Config) (domain.Provider, error) {
	l := log.With().Str("module", "jikan").Logger()

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(config.ProviderTimeout)

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       config.JikanDelay,
	}); err != nil {
		return nil, errors.Wrap(err, "failed to set jikan limit rule")
	}

	return &service{
		log:       l,
		baseURL:   strings.TrimRight(config.JikanBaseURL, "/"),
		collector: c,
		guard:     provider.NewGuard(l, Name, provider.GuardSettings{}),
	}, nil
}

func (s *service) Name() string {
	return Name
}

func (s *service) Discover(ctx context.Context, t domain.ContentType) []domain.Content {
	return s.list(ctx, "discover", "/top/anime", nil, domain.LabelContent)
}

func (s *service) Trending(ctx context.Context, t domain.ContentType) []domain.Content {
	return s.list(ctx, "trending", "/top/anime", url.Values{"filter": {"airing"}}, domain.LabelTrending)
}

func (s *service) Search(ctx context.Context, t domain.ContentType, query string) []domain.Content {
	return s.list(ctx, "search", "/anime", url.Values{"q": {query}}, domain.LabelContent)
}

func (s *service) Details(ctx context.Context, t domain.ContentType, externalID string) *domain.Content {
	var resp animeResponse
	if err := s.get(ctx, "details", "/anime/"+url.PathEscape(externalID), nil, &resp); err != nil {
		if provider.IsNotFound(err) {
			s.log.Debug().Str("id", externalID).Msg("anime not found")
		} else {
			s.log.Error().Err(err).Str("id", externalID).Msg("failed to fetch anime details")
		}
		return nil
	}
	if resp.Data.MalID == 0 {
		return nil
	}

	c := resp.Data.toContent(domain.LabelContent)
	return &c
}

func (s *service) Images(ctx context.Context, t domain.ContentType, externalID string) []string {
	var resp picturesResponse
	if err := s.get(ctx, "images", "/anime/"+url.PathEscape(externalID)+"/pictures", nil, &resp); err != nil {
		s.log.Error().Err(err).Str("id", externalID).Msg("failed to fetch anime pictures")
		return nil
	}

	urls := make([]string, 0, maxImages)
	for _, p := range resp.Data {
		if len(urls) == maxImages {
			break
		}
		if u := p.best(); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Trailer returns the trailer Jikan already embeds in the anime record
func (s *service) Trailer(ctx context.Context, t domain.ContentType, base *domain.Content) *domain.Trailer {
	if base == nil || base.TrailerURL == "" {
		return nil
	}
	return &domain.Trailer{URL: base.TrailerURL, ID: base.TrailerID}
}

// Recommendations backfills each entry with a details call. The collector
// limit rule paces the loop.
func (s *service) Recommendations(ctx context.Context, t domain.ContentType, externalID string) []domain.Content {
	var resp recommendationsResponse
	if err := s.get(ctx, "recommendations", "/anime/"+url.PathEscape(externalID)+"/recommendations", nil, &resp); err != nil {
		s.log.Error().Err(err).Str("id", externalID).Msg("failed to fetch anime recommendations")
		return nil
	}

	contents := make([]domain.Content, 0, maxRecommendations)
	for i, r := range resp.Data {
		if i == maxRecommendations {
			break
		}
		if ctx.Err() != nil {
			s.log.Warn().Err(ctx.Err()).Str("id", externalID).Msg("recommendation backfill interrupted")
			break
		}

		c := s.Details(ctx, t, strconv.FormatInt(r.Entry.MalID, 10))
		if !recommendable(c) {
			continue
		}
		contents = append(contents, *c)
	}
	return contents
}

func (s *service) Genres(ctx context.Context, t domain.ContentType) []domain.Genre {
	var resp genresResponse
	if err := s.get(ctx, "genres", "/genres/anime", nil, &resp); err != nil {
		s.log.Error().Err(err).Msg("failed to fetch anime genres")
		return nil
	}

	genres := make([]domain.Genre, 0, len(resp.Data))
	for _, g := range resp.Data {
		genres = append(genres, domain.Genre{ExternalID: g.MalID, ContentType: domain.ContentTypeAnime, Name: g.Name})
	}
	return genres
}

func (s *service) list(ctx context.Context, capability, path string, query url.Values, label domain.ContentLabel) []domain.Content {
	var resp listResponse
	if err := s.get(ctx, capability, path, query, &resp); err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("failed to fetch anime listing")
		return nil
	}

	contents := make([]domain.Content, 0, len(resp.Data))
	for _, a := range resp.Data {
		c := a.toContent(label)
		if !listable(&c) {
			continue
		}
		contents = append(contents, c)
	}
	return contents
}

func (s *service) get(ctx context.Context, capability, path string, query url.Values, v any) error {
	target := s.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	body, err := s.guard.Do(ctx, capability, func(ctx context.Context) ([]byte, error) {
		return s.visit(ctx, target)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, "failed to unmarshal response")
	}
	return nil
}

// visit fetches target with a clone of the base collector. Clones share the
// base collector's backend, so its limit rule applies to every call.
func (s *service) visit(ctx context.Context, target string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		body   []byte
		status int
	)

	c := s.collector.Clone()
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
		s.log.Trace().Str("url", r.URL.String()).Msg("visiting")
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	start := time.Now()
	err := c.Visit(target)
	s.log.Trace().Str("url", target).Int("status", status).Dur("took", time.Since(start)).Msg("visited")

	if status != 0 && status != 200 {
		return nil, &provider.StatusError{Code: status, URL: target}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", target)
	}
	return body, nil
}
