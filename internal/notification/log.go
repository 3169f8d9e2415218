package notification

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/varoOP/discoverdb/internal/domain"
)

// logNotifier records refresh outcomes in the application log
type logNotifier struct {
	log zerolog.Logger
}

func newLogNotifier(log zerolog.Logger) *logNotifier {
	return &logNotifier{log: log.With().Str("module", "notification").Str("type", "log").Logger()}
}

func (n *logNotifier) SendSuccess(ctx context.Context, stats domain.RefreshStats) error {
	for _, t := range domain.ContentTypes {
		catalog, ok := stats.Catalog[t]
		if !ok {
			continue
		}
		n.log.Info().
			Str("content_type", t.String()).
			Int("catalog", catalog).
			Int("trending", stats.Trending[t]).
			Int("new_genres", stats.GenresCached[t]).
			Msg("refreshed")
	}
	n.log.Info().Int("total", stats.Total()).Msg("refresh completed")
	return nil
}

func (n *logNotifier) SendError(ctx context.Context, err error) error {
	n.log.Error().Err(err).Msg("refresh failed")
	return nil
}
