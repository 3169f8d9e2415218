package genre

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/discoverdb/internal/domain"
	"github.com/varoOP/discoverdb/internal/fetchlog"
)

type Service interface {
	// FetchAndCache stores the provider genres of a type not stored yet
	FetchAndCache(ctx context.Context, contentType domain.ContentType) (int, error)
	// Resolve maps provider genre ids to stored genres of a type
	Resolve(ctx context.Context, contentType domain.ContentType, ids []int64) ([]domain.Genre, error)
}

// DefaultTimeout bounds a provider genre fetch
const DefaultTimeout = 10 * time.Second

type service struct {
	log       zerolog.Logger
	repo      domain.GenreRepo
	ledger    fetchlog.Service
	providers domain.Providers
	timeout   time.Duration
}

// Option configures the service
type Option func(*service)

// WithTimeout bounds each provider genre fetch, ignored unless positive
func WithTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewService(log zerolog.Logger, repo domain.GenreRepo, ledger fetchlog.Service, providers domain.Providers, opts ...Option) Service {
	s := &service{
		log:       log.With().Str("module", "genre").Logger(),
		repo:      repo,
		ledger:    ledger,
		providers: providers,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAndCache returns the number of newly stored genres. An empty provider
// result leaves the ledger unstamped so the next call retries.
func (s *service) FetchAndCache(ctx context.Context, contentType domain.ContentType) (int, error) {
	provider, ok := s.providers[contentType]
	if !ok {
		return 0, domain.NewValidationError("no provider for content type %s", contentType)
	}

	key := domain.GenresKey(contentType)
	fresh, err := s.ledger.IsFresh(ctx, key)
	if err != nil {
		return 0, err
	}
	if fresh {
		s.log.Debug().Str("type", contentType.String()).Msg("genres are fresh, skipping fetch")
		return 0, nil
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	genres := provider.Genres(pctx, contentType)
	cancel()
	if len(genres) == 0 {
		s.log.Warn().Str("type", contentType.String()).Str("provider", provider.Name()).Msg("provider returned no genres")
		return 0, nil
	}

	stored, err := s.repo.ExternalIDs(ctx, contentType)
	if err != nil {
		return 0, errors.Wrap(err, "failed to load stored genre ids")
	}

	var missing []domain.Genre
	for _, g := range genres {
		if _, ok := stored[g.ExternalID]; ok {
			continue
		}
		stored[g.ExternalID] = struct{}{}
		g.ContentType = contentType
		missing = append(missing, g)
	}

	if err := s.repo.SaveAll(ctx, missing); err != nil {
		return 0, errors.Wrapf(err, "failed to store %s genres", contentType)
	}

	if err := s.ledger.MarkFetched(ctx, key, s.ledger.Now()); err != nil {
		return 0, err
	}

	s.log.Info().Str("type", contentType.String()).Int("new", len(missing)).Int("fetched", len(genres)).Msg("genres cached")
	return len(missing), nil
}

func (s *service) Resolve(ctx context.Context, contentType domain.ContentType, ids []int64) ([]domain.Genre, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	stored, err := s.repo.FindByExternalIDs(ctx, contentType, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load genres")
	}

	byID := make(map[int64]domain.Genre, len(stored))
	for _, g := range stored {
		byID[g.ExternalID] = g
	}

	genres := make([]domain.Genre, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		g, ok := byID[id]
		if !ok {
			return nil, domain.NewValidationError("genre %d not found for content type %s", id, contentType)
		}
		genres = append(genres, g)
	}

	return genres, nil
}
