package fetchlog

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/discoverdb/internal/domain"
	"github.com/varoOP/discoverdb/internal/metrics"
)

// DefaultTTL is used when no positive TTL is configured
const DefaultTTL = 12 * time.Hour

// Service answers whether a logical fetch ran recently enough to be skipped
type Service interface {
	// IsFresh reports whether key was fetched less than the TTL ago
	IsFresh(ctx context.Context, key string) (bool, error)
	// MarkFetched records now as the last fetch time of key
	MarkFetched(ctx context.Context, key string, now time.Time) error
	// Now returns the current time of the ledger clock
	Now() time.Time
}

type service struct {
	log  zerolog.Logger
	repo domain.FetchLogRepo
	ttl  time.Duration
	now  func() time.Time
}

// Option configures the service
type Option func(*service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

func NewService(log zerolog.Logger, repo domain.FetchLogRepo, ttl time.Duration, opts ...Option) Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &service{
		log:  log.With().Str("module", "fetchlog").Logger(),
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Now() time.Time {
	return s.now()
}

func (s *service) IsFresh(ctx context.Context, key string) (bool, error) {
	entry, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.observe(key, false)
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to read fetch log %s", key)
	}

	fresh := s.now().Sub(entry.LastFetchedAt) < s.ttl
	s.observe(key, fresh)

	s.log.Trace().Str("key", key).Time("last_fetched_at", entry.LastFetchedAt).Bool("fresh", fresh).Msg("ledger lookup")
	return fresh, nil
}

func (s *service) MarkFetched(ctx context.Context, key string, now time.Time) error {
	if err := s.repo.Upsert(ctx, domain.FetchLogEntry{Key: key, LastFetchedAt: now}); err != nil {
		return errors.Wrapf(err, "failed to stamp fetch log %s", key)
	}
	return nil
}

func (s *service) observe(key string, fresh bool) {
	result := "stale"
	if fresh {
		result = "fresh"
	}
	metrics.LedgerLookups.WithLabelValues(purpose(key), result).Inc()
}

// purpose is the key prefix, e.g. DISCOVER for DISCOVER_MOVIE
func purpose(key string) string {
	if i := strings.IndexByte(key, '_'); i > 0 {
		return key[:i]
	}
	return key
}
