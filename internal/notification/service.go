package notification

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/discoverdb/internal/domain"
)

type channel struct {
	name     string
	notifier domain.NotificationService
}

// Service fans refresh outcomes out to every configured channel. The log
// channel is always present; Discord is added when a webhook is set.
type Service struct {
	log      zerolog.Logger
	channels []channel
}

// NewService creates a notification service for the configured channels
func NewService(log zerolog.Logger, config *domain.Config) *Service {
	s := &Service{log: log.With().Str("module", "notification").Logger()}
	s.add("log", newLogNotifier(log))
	if config.DiscordWebhookURL != "" {
		s.add("discord", NewDiscordService(log, config.DiscordWebhookURL))
	}
	return s
}

func (s *Service) add(name string, notifier domain.NotificationService) {
	s.channels = append(s.channels, channel{name: name, notifier: notifier})
}

// SendSuccess delivers to every channel and returns the first failure
func (s *Service) SendSuccess(ctx context.Context, stats domain.RefreshStats) error {
	return s.each(func(n domain.NotificationService) error {
		return n.SendSuccess(ctx, stats)
	})
}

// SendError delivers to every channel and returns the first failure
func (s *Service) SendError(ctx context.Context, err error) error {
	return s.each(func(n domain.NotificationService) error {
		return n.SendError(ctx, err)
	})
}

// each keeps going past a failing channel so one broken webhook does not
// silence the others
func (s *Service) each(send func(domain.NotificationService) error) error {
	var first error
	for _, c := range s.channels {
		if err := send(c.notifier); err != nil {
			s.log.Warn().Err(err).Str("channel", c.name).Msg("notification failed")
			if first == nil {
				first = errors.Wrapf(err, "%s notification failed", c.name)
			}
		}
	}
	return first
}
