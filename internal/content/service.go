package content

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/varoOP/discoverdb/internal/domain"
	"github.com/varoOP/discoverdb/internal/fetchlog"
	"github.com/varoOP/discoverdb/internal/genre"
	"github.com/varoOP/discoverdb/internal/metrics"
)

// DefaultProviderTimeout bounds a single provider call when none is configured
const DefaultProviderTimeout = 10 * time.Second

// flightCalls is how many provider timeouts a shared refresh may take. The
// details refresh makes the most calls.
const flightCalls = 6

// Service serves content from the local store and refreshes it from the
// providers when the fetch log says the stored copy is stale.
type Service interface {
	// GetContent returns nil when no row has the id
	GetContent(ctx context.Context, id int64) (*domain.Content, error)
	// GetContentByExternalID falls back to the provider when the title is not stored
	GetContentByExternalID(ctx context.Context, externalID string, contentType domain.ContentType) (*domain.Content, error)
	GetContentByType(ctx context.Context, contentType domain.ContentType) ([]domain.Content, error)
	GetTrendingContent(ctx context.Context, contentType domain.ContentType) ([]domain.Content, error)
	// GetContentDetails returns nil when neither the store nor the provider knows the title
	GetContentDetails(ctx context.Context, externalID string, contentType domain.ContentType) (*domain.ContentDetails, error)
	SearchContent(ctx context.Context, contentType domain.ContentType, query string) ([]domain.Content, error)
	FetchAndCacheGenres(ctx context.Context, contentType domain.ContentType) (int, error)
	// Refresh runs the genre, catalog and trending fetches for every served type
	Refresh(ctx context.Context) (domain.RefreshStats, error)
}

type service struct {
	log       zerolog.Logger
	repo      domain.ContentRepo
	genres    genre.Service
	ledger    fetchlog.Service
	providers domain.Providers
	timeout   time.Duration
	group     singleflight.Group
}

func NewService(log zerolog.Logger, repo domain.ContentRepo, genres genre.Service, ledger fetchlog.Service, providers domain.Providers, timeout time.Duration) Service {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}

	return &service{
		log:       log.With().Str("module", "content").Logger(),
		repo:      repo,
		genres:    genres,
		ledger:    ledger,
		providers: providers,
		timeout:   timeout,
	}
}

func (s *service) provider(contentType domain.ContentType) (domain.Provider, error) {
	if !contentType.Valid() {
		return nil, domain.NewValidationError("invalid content type: %q", contentType)
	}
	p, ok := s.providers[contentType]
	if !ok {
		return nil, domain.NewValidationError("no provider for content type %s", contentType)
	}
	return p, nil
}

// bounded derives the context handed to a single provider call
func (s *service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// once collapses concurrent calls for the same key into one execution.
// The shared execution is detached from the cancellation of whichever
// caller started it, and each caller stops waiting when its own ctx ends.
func (s *service) once(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightCalls*s.timeout)
		defer cancel()
		return fn(fctx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.log.Trace().Str("key", key).Msg("joined in-flight refresh")
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *service) GetContent(ctx context.Context, id int64) (*domain.Content, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to load content %d", id)
	}
	return c, nil
}

func (s *service) GetContentByExternalID(ctx context.Context, externalID string, contentType domain.ContentType) (*domain.Content, error) {
	provider, err := s.provider(contentType)
	if err != nil {
		return nil, err
	}

	stored, err := s.lookup(ctx, externalID, contentType)
	if err != nil || stored != nil {
		return stored, err
	}

	v, err := s.once(ctx, "EXTERNAL_"+string(contentType)+"_"+externalID, func(ctx context.Context) (any, error) {
		if stored, err := s.lookup(ctx, externalID, contentType); err != nil || stored != nil {
			return stored, err
		}

		pctx, cancel := s.bounded(ctx)
		defer cancel()

		item := provider.Details(pctx, contentType, externalID)
		if item == nil {
			return (*domain.Content)(nil), nil
		}

		c, err := s.build(ctx, *item, contentType, domain.LabelContent)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, c); err != nil {
			return nil, errors.Wrap(err, "failed to store content")
		}
		metrics.ContentWrites.WithLabelValues(contentType.String(), "insert").Inc()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Content), nil
}

// GetContentByType returns the stored catalog of a type, first merging in
// the provider listing when the catalog is stale
func (s *service) GetContentByType(ctx context.Context, contentType domain.ContentType) ([]domain.Content, error) {
	provider, err := s.provider(contentType)
	if err != nil {
		return nil, err
	}

	key := domain.DiscoverKey(contentType)
	fresh, err := s.ledger.IsFresh(ctx, key)
	if err != nil {
		return nil, err
	}

	if !fresh {
		if _, err := s.once(ctx, key, func(ctx context.Context) (any, error) {
			return nil, s.refreshCatalog(ctx, provider, contentType, key)
		}); err != nil {
			return nil, err
		}
	}

	contents, err := s.repo.ListByType(ctx, contentType)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s content", contentType)
	}
	return contents, nil
}

func (s *service) refreshCatalog(ctx context.Context, provider domain.Provider, contentType domain.ContentType, key string) error {
	// a previous leader may have finished between our check and joining
	if fresh, err := s.ledger.IsFresh(ctx, key); err != nil || fresh {
		return err
	}

	pctx, cancel := s.bounded(ctx)
	items := provider.Discover(pctx, contentType)
	cancel()

	stored, err := s.repo.ExternalIDs(ctx, contentType)
	if err != nil {
		return errors.Wrap(err, "failed to load stored ids")
	}

	batch := make([]*domain.Content, 0, len(items))
	for _, item := range items {
		if item.ExternalID == "" {
			continue
		}
		if _, ok := stored[item.ExternalID]; ok {
			continue
		}
		stored[item.ExternalID] = 0

		c, err := s.build(ctx, item, contentType, domain.LabelContent)
		if err != nil {
			return err
		}
		batch = append(batch, c)
	}

	if err := s.repo.SaveAll(ctx, batch); err != nil {
		return errors.Wrapf(err, "failed to store %s catalog", contentType)
	}
	metrics.ContentWrites.WithLabelValues(contentType.String(), "insert").Add(float64(len(batch)))

	if err := s.ledger.MarkFetched(ctx, key, s.ledger.Now()); err != nil {
		return err
	}

	s.log.Info().Str("type", contentType.String()).Int("fetched", len(items)).Int("new", len(batch)).Msg("catalog refreshed")
	return nil
}

// GetTrendingContent returns the stored TRENDING rows of a type, first
// merging in the provider's trending listing when it is stale
func (s *service) GetTrendingContent(ctx context.Context, contentType domain.ContentType) ([]domain.Content, error) {
	provider, err := s.provider(contentType)
	if err != nil {
		return nil, err
	}

	key := domain.TrendingKey(contentType)
	fresh, err := s.ledger.IsFresh(ctx, key)
	if err != nil {
		return nil, err
	}

	if !fresh {
		if _, err := s.once(ctx, key, func(ctx context.Context) (any, error) {
			return nil, s.refreshTrending(ctx, provider, contentType, key)
		}); err != nil {
			return nil, err
		}
	}

	contents, err := s.repo.ListByTypeAndLabel(ctx, contentType, domain.LabelTrending)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list trending %s content", contentType)
	}
	return contents, nil
}

func (s *service) refreshTrending(ctx context.Context, provider domain.Provider, contentType domain.ContentType, key string) error {
	if fresh, err := s.ledger.IsFresh(ctx, key); err != nil || fresh {
		return err
	}

	pctx, cancel := s.bounded(ctx)
	items := provider.Trending(pctx, contentType)
	cancel()

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ExternalID)
	}

	existing, err := s.repo.FindByExternalIDs(ctx, contentType, ids)
	if err != nil {
		return errors.Wrap(err, "failed to load stored trending rows")
	}
	byID := make(map[string]*domain.Content, len(existing))
	for i := range existing {
		byID[existing[i].ExternalID] = &existing[i]
	}

	var (
		batch   []*domain.Content
		queued  = make(map[string]struct{}, len(items))
		updated int
	)
	for _, item := range items {
		if item.ExternalID == "" {
			continue
		}
		if _, ok := queued[item.ExternalID]; ok {
			continue
		}
		queued[item.ExternalID] = struct{}{}

		c, err := s.build(ctx, item, contentType, domain.LabelTrending)
		if err != nil {
			return err
		}

		if row, ok := byID[item.ExternalID]; ok {
			row.Overwrite(c)
			batch = append(batch, row)
			updated++
			continue
		}
		batch = append(batch, c)
	}

	if err := s.repo.SaveAll(ctx, batch); err != nil {
		return errors.Wrapf(err, "failed to store trending %s content", contentType)
	}
	metrics.ContentWrites.WithLabelValues(contentType.String(), "update").Add(float64(updated))
	metrics.ContentWrites.WithLabelValues(contentType.String(), "insert").Add(float64(len(batch) - updated))

	if err := s.ledger.MarkFetched(ctx, key, s.ledger.Now()); err != nil {
		return err
	}

	s.log.Info().Str("type", contentType.String()).Int("updated", updated).Int("new", len(batch)-updated).Msg("trending refreshed")
	return nil
}

// GetContentDetails returns a title with its enrichment and resolved
// recommendations, fetching them from the provider when stale
func (s *service) GetContentDetails(ctx context.Context, externalID string, contentType domain.ContentType) (*domain.ContentDetails, error) {
	provider, err := s.provider(contentType)
	if err != nil {
		return nil, err
	}

	key := domain.DetailsKey(contentType, externalID)
	fresh, err := s.ledger.IsFresh(ctx, key)
	if err != nil {
		return nil, err
	}

	if fresh {
		base, err := s.lookup(ctx, externalID, contentType)
		if err != nil {
			return nil, err
		}
		if base != nil {
			return s.view(ctx, base)
		}
	}

	v, err := s.once(ctx, key, func(ctx context.Context) (any, error) {
		return s.refreshDetails(ctx, provider, externalID, contentType, key)
	})
	if err != nil {
		return nil, err
	}

	base := v.(*domain.Content)
	if base == nil {
		return nil, nil
	}
	return s.view(ctx, base)
}

func (s *service) refreshDetails(ctx context.Context, provider domain.Provider, externalID string, contentType domain.ContentType, key string) (*domain.Content, error) {
	base, err := s.lookup(ctx, externalID, contentType)
	if err != nil {
		return nil, err
	}

	// a previous leader may have finished between our check and joining
	fresh, err := s.ledger.IsFresh(ctx, key)
	if err != nil {
		return nil, err
	}
	if fresh && base != nil {
		return base, nil
	}

	if base == nil {
		pctx, cancel := s.bounded(ctx)
		item := provider.Details(pctx, contentType, externalID)
		cancel()
		if item == nil {
			s.log.Debug().Str("type", contentType.String()).Str("external_id", externalID).Msg("title unknown to provider")
			return nil, nil
		}
		if base, err = s.build(ctx, *item, contentType, domain.LabelContent); err != nil {
			return nil, err
		}
	}

	pctx, cancel := s.bounded(ctx)
	images := provider.Images(pctx, contentType, externalID)
	cancel()
	if len(images) > 0 {
		base.ImageURLs = images
	}

	pctx, cancel = s.bounded(ctx)
	trailer := provider.Trailer(pctx, contentType, base)
	cancel()
	if trailer != nil && trailer.URL != "" {
		base.TrailerURL = trailer.URL
		base.TrailerID = trailer.ID
	}

	pctx, cancel = s.bounded(ctx)
	recommended := provider.Recommendations(pctx, contentType, externalID)
	cancel()

	recIDs := make([]string, 0, len(recommended))
	for _, r := range recommended {
		if r.ExternalID != "" && r.ExternalID != externalID {
			recIDs = append(recIDs, r.ExternalID)
		}
	}

	known, err := s.repo.FindByExternalIDs(ctx, contentType, recIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load stored recommendations")
	}
	stored := make(map[string]struct{}, len(known))
	for _, k := range known {
		stored[k.ExternalID] = struct{}{}
	}

	batch := []*domain.Content{base}
	for _, r := range recommended {
		if r.ExternalID == "" || r.ExternalID == externalID {
			continue
		}
		if _, ok := stored[r.ExternalID]; ok {
			continue
		}
		stored[r.ExternalID] = struct{}{}

		c, err := s.build(ctx, r, contentType, domain.LabelContent)
		if err != nil {
			return nil, err
		}
		batch = append(batch, c)
	}

	base.AppendRecommended(recIDs...)

	inserted := len(batch) - 1
	op := "update"
	if base.ID == 0 {
		inserted++
		op = "insert"
	}

	if err := s.repo.SaveAll(ctx, batch); err != nil {
		return nil, errors.Wrapf(err, "failed to store details of %s/%s", contentType, externalID)
	}
	metrics.ContentWrites.WithLabelValues(contentType.String(), "insert").Add(float64(inserted))
	if op == "update" {
		metrics.ContentWrites.WithLabelValues(contentType.String(), "update").Inc()
	}

	// a concurrent fetch may have stored the base first, so serve what the
	// merge left in the store
	saved, err := s.lookup(ctx, externalID, contentType)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, errors.Errorf("details of %s/%s missing after save", contentType, externalID)
	}

	if err := s.ledger.MarkFetched(ctx, key, s.ledger.Now()); err != nil {
		return nil, err
	}

	s.log.Info().Str("type", contentType.String()).Str("external_id", externalID).Int("recommendations", len(recIDs)).Msg("details refreshed")
	return saved, nil
}

// view resolves the recommendation ids of base against the store, keeping
// the order of the ids
func (s *service) view(ctx context.Context, base *domain.Content) (*domain.ContentDetails, error) {
	rows, err := s.repo.FindByExternalIDs(ctx, base.Type, base.RecommendedIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load recommendations")
	}

	return &domain.ContentDetails{
		Content:            *base,
		RecommendedContent: inOrder(rows, base.RecommendedIDs),
	}, nil
}

// SearchContent runs a provider search, stores hits not known under any
// type and returns the stored rows of contentType among the hits
func (s *service) SearchContent(ctx context.Context, contentType domain.ContentType, query string) ([]domain.Content, error) {
	provider, err := s.provider(contentType)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Content{}, nil
	}

	key := "SEARCH_" + string(contentType) + "_" + strings.ToLower(query)
	v, err := s.once(ctx, key, func(ctx context.Context) (any, error) {
		return s.search(ctx, provider, contentType, query)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Content), nil
}

func (s *service) search(ctx context.Context, provider domain.Provider, contentType domain.ContentType, query string) ([]domain.Content, error) {
	pctx, cancel := s.bounded(ctx)
	hits := provider.Search(pctx, contentType, query)
	cancel()

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.ExternalID != "" {
			ids = append(ids, h.ExternalID)
		}
	}

	existing, err := s.repo.ExistingExternalIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check stored ids")
	}

	var batch []*domain.Content
	for _, h := range hits {
		if h.ExternalID == "" {
			continue
		}
		if _, ok := existing[h.ExternalID]; ok {
			continue
		}
		existing[h.ExternalID] = struct{}{}

		hitType := h.Type
		if !hitType.Valid() {
			hitType = contentType
		}
		c, err := s.build(ctx, h, hitType, domain.LabelContent)
		if err != nil {
			return nil, err
		}
		batch = append(batch, c)
	}

	if err := s.repo.SaveAll(ctx, batch); err != nil {
		return nil, errors.Wrap(err, "failed to store search results")
	}
	for _, c := range batch {
		metrics.ContentWrites.WithLabelValues(c.Type.String(), "insert").Inc()
	}

	rows, err := s.repo.FindByExternalIDs(ctx, contentType, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load search results")
	}

	s.log.Debug().Str("type", contentType.String()).Str("query", query).Int("hits", len(hits)).Int("new", len(batch)).Msg("search")
	return inOrder(rows, ids), nil
}

func (s *service) FetchAndCacheGenres(ctx context.Context, contentType domain.ContentType) (int, error) {
	if _, err := s.provider(contentType); err != nil {
		return 0, err
	}

	v, err := s.once(ctx, domain.GenresKey(contentType), func(ctx context.Context) (any, error) {
		return s.genres.FetchAndCache(ctx, contentType)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *service) Refresh(ctx context.Context) (domain.RefreshStats, error) {
	stats := domain.RefreshStats{
		Catalog:      make(map[domain.ContentType]int),
		Trending:     make(map[domain.ContentType]int),
		GenresCached: make(map[domain.ContentType]int),
	}

	for _, t := range domain.ContentTypes {
		if _, ok := s.providers[t]; !ok {
			continue
		}

		n, err := s.FetchAndCacheGenres(ctx, t)
		if err != nil {
			return stats, errors.Wrapf(err, "genres %s", t)
		}
		stats.GenresCached[t] = n

		catalog, err := s.GetContentByType(ctx, t)
		if err != nil {
			return stats, errors.Wrapf(err, "catalog %s", t)
		}
		stats.Catalog[t] = len(catalog)

		trending, err := s.GetTrendingContent(ctx, t)
		if err != nil {
			return stats, errors.Wrapf(err, "trending %s", t)
		}
		stats.Trending[t] = len(trending)
	}

	return stats, nil
}

func (s *service) lookup(ctx context.Context, externalID string, contentType domain.ContentType) (*domain.Content, error) {
	c, err := s.repo.FindByExternalID(ctx, externalID, contentType)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to load content %s/%s", contentType, externalID)
	}
	return c, nil
}

// build turns a provider item into a storable row. Genre references are
// resolved against the stored genres of contentType.
func (s *service) build(ctx context.Context, item domain.Content, contentType domain.ContentType, label domain.ContentLabel) (*domain.Content, error) {
	genres, err := s.genres.Resolve(ctx, contentType, item.GenreIDs)
	if err != nil {
		return nil, errors.Wrapf(err, "content %s/%s", contentType, item.ExternalID)
	}

	c := item
	c.ID = 0
	c.Type = contentType
	c.Label = label
	c.Genres = genres
	c.GenreIDs = make([]int64, 0, len(genres))
	for _, g := range genres {
		c.GenreIDs = append(c.GenreIDs, g.ExternalID)
	}
	return &c, nil
}

func inOrder(rows []domain.Content, ids []string) []domain.Content {
	byID := make(map[string]domain.Content, len(rows))
	for _, r := range rows {
		byID[r.ExternalID] = r
	}

	out := make([]domain.Content, 0, len(rows))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
