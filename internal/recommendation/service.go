package recommendation

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/discoverdb/internal/content"
	"github.com/varoOP/discoverdb/internal/domain"
)

type Service interface {
	// Recommend turns a description into stored titles of the requested type
	Recommend(ctx context.Context, req domain.RecommendationRequest, subject string) ([]domain.Content, error)
}

type service struct {
	log         zerolog.Logger
	content     content.Service
	recommender domain.Recommender
	repo        domain.RecommendationLogRepo
	validate    *validator.Validate
}

func NewService(log zerolog.Logger, contentSvc content.Service, recommender domain.Recommender, repo domain.RecommendationLogRepo) Service {
	return &service{
		log:         log.With().Str("module", "recommendation").Logger(),
		content:     contentSvc,
		recommender: recommender,
		repo:        repo,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *service) Recommend(ctx context.Context, req domain.RecommendationRequest, subject string) ([]domain.Content, error) {
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, domain.NewValidationError("%s is required", strings.ToLower(verrs[0].Field()[:1])+verrs[0].Field()[1:])
		}
		return nil, domain.NewValidationError("invalid recommendation request")
	}

	contentType, err := domain.ParseContentType(string(req.ContentType))
	if err != nil {
		return nil, err
	}

	titles := s.recommender.Titles(ctx, req.Description, contentType)

	results := make([]domain.Content, 0, len(titles))
	seen := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		found, err := s.content.SearchContent(ctx, contentType, title)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to search %q", title)
		}
		if len(found) == 0 {
			s.log.Debug().Str("title", title).Msg("no match for recommended title")
			continue
		}

		first := found[0]
		if _, ok := seen[first.ExternalID]; ok {
			continue
		}
		seen[first.ExternalID] = struct{}{}
		results = append(results, first)
	}

	entry := &domain.RecommendationLog{
		Subject:     subject,
		Description: req.Description,
		ContentType: contentType,
		Titles:      titles,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, errors.Wrap(err, "failed to log recommendation")
	}

	s.log.Info().Str("type", contentType.String()).Int("titles", len(titles)).Int("matched", len(results)).Msg("recommendation served")
	return results, nil
}
