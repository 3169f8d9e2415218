package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/discoverdb/internal/config"
	"github.com/varoOP/discoverdb/internal/content"
	"github.com/varoOP/discoverdb/internal/database"
	"github.com/varoOP/discoverdb/internal/domain"
	"github.com/varoOP/discoverdb/internal/fetchlog"
	"github.com/varoOP/discoverdb/internal/gemini"
	"github.com/varoOP/discoverdb/internal/genre"
	"github.com/varoOP/discoverdb/internal/jikan"
	"github.com/varoOP/discoverdb/internal/logger"
	"github.com/varoOP/discoverdb/internal/notification"
	"github.com/varoOP/discoverdb/internal/recommendation"
	"github.com/varoOP/discoverdb/internal/repository"
	"github.com/varoOP/discoverdb/internal/server"
	"github.com/varoOP/discoverdb/internal/tmdb"
)

// App represents the main application with all dependencies initialized
type App struct {
	log                   zerolog.Logger
	config                *domain.Config
	db                    *database.DB
	contentRepo           domain.ContentRepo
	snapshotRepo          domain.SnapshotRepository
	contentService        content.Service
	recommendationService recommendation.Service
	notificationService   domain.NotificationService
}

// NewApp loads the configuration and initializes every dependency
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	return New(logger.NewLoggerFromString(cfg.LogLevel), cfg)
}

// New wires the application for an already loaded configuration
func New(log zerolog.Logger, cfg *domain.Config) (*App, error) {
	db, err := database.NewDB(cfg.DatabaseDir, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize database")
	}

	tmdbProvider := tmdb.NewService(log, cfg)
	jikanProvider, err := jikan.NewService(log, cfg)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize jikan")
	}

	providers := domain.Providers{
		domain.ContentTypeMovie:  tmdbProvider,
		domain.ContentTypeSeries: tmdbProvider,
		domain.ContentTypeAnime:  jikanProvider,
	}

	contentRepo := database.NewContentRepo(log, db)
	ledger := fetchlog.NewService(log, database.NewFetchLogRepo(log, db), cfg.CacheTTL)
	genreService := genre.NewService(log, database.NewGenreRepo(log, db), ledger, providers, genre.WithTimeout(cfg.ProviderTimeout))
	contentService := content.NewService(log, contentRepo, genreService, ledger, providers, cfg.ProviderTimeout)

	return &App{
		log:                   log,
		config:                cfg,
		db:                    db,
		contentRepo:           contentRepo,
		snapshotRepo:          repository.NewFileRepository(log),
		contentService:        contentService,
		recommendationService: recommendation.NewService(log, contentService, gemini.NewService(log, cfg), database.NewRecommendationLogRepo(log, db)),
		notificationService:   notification.NewService(log, cfg),
	}, nil
}

// Close releases the database
func (a *App) Close() error {
	return a.db.Close()
}

// Content exposes the content engine for one-off commands
func (a *App) Content() content.Service {
	return a.contentService
}

// Serve caches genres for every type and runs the HTTP API until ctx ends
func (a *App) Serve(ctx context.Context) error {
	for _, t := range domain.ContentTypes {
		if _, err := a.contentService.FetchAndCacheGenres(ctx, t); err != nil {
			a.log.Warn().Err(err).Str("type", t.String()).Msg("failed to initialize genres")
		}
	}

	srv := server.NewServer(a.log, a.config.HTTPAddr, a.config.JWTSecret, a.contentService, a.recommendationService, a.db)
	return srv.Start(ctx)
}

// Refresh runs the genre, catalog and trending fetches and reports the outcome
func (a *App) Refresh(ctx context.Context) (err error) {
	// Send error notification if run fails
	defer func() {
		if err != nil {
			if notifyErr := a.notificationService.SendError(ctx, err); notifyErr != nil {
				a.log.Warn().Err(notifyErr).Msg("Failed to send error notification")
			}
		}
	}()

	stats, err := a.contentService.Refresh(ctx)
	if err != nil {
		return errors.Wrap(err, "refresh failed")
	}

	if err := a.notificationService.SendSuccess(ctx, stats); err != nil {
		a.log.Warn().Err(err).Msg("Failed to send success notification")
	}
	return nil
}

// Export writes the stored catalog of every type to a YAML snapshot
func (a *App) Export(ctx context.Context, path string) (*domain.Snapshot, error) {
	snapshot := &domain.Snapshot{}
	for _, t := range domain.ContentTypes {
		rows, err := a.contentRepo.ListByType(ctx, t)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list %s", t)
		}

		catalog := domain.SnapshotCatalog{Type: t, Items: make([]domain.SnapshotEntry, 0, len(rows))}
		for i := range rows {
			catalog.Items = append(catalog.Items, domain.SnapshotEntry{
				ExternalID: rows[i].ExternalID,
				Title:      rows[i].Title,
				Label:      rows[i].Label,
				Rating:     rows[i].Rating,
				Genres:     rows[i].GenreNames(),
			})
		}
		snapshot.Catalogs = append(snapshot.Catalogs, catalog)
	}

	if err := a.snapshotRepo.Store(ctx, path, snapshot); err != nil {
		return nil, errors.Wrap(err, "failed to store snapshot")
	}
	return snapshot, nil
}
