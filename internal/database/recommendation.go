package database

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/discoverdb/internal/domain"
)

// RecommendationLogRepo implements domain.RecommendationLogRepo
type RecommendationLogRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewRecommendationLogRepo(log zerolog.Logger, db *DB) domain.RecommendationLogRepo {
	return &RecommendationLogRepo{
		log: log.With().Str("repo", "recommendation_log").Logger(),
		db:  db,
	}
}

// Create stores the log entry and sets its ID
func (r *RecommendationLogRepo) Create(ctx context.Context, entry *domain.RecommendationLog) error {
	titles := entry.Titles
	if titles == nil {
		titles = []string{}
	}
	encoded, err := json.Marshal(titles)
	if err != nil {
		return errors.Wrap(err, "failed to encode titles")
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query, args, err := r.db.squirrel.
		Insert("recommendation_log").
		Columns("subject", "description", "content_type", "titles", "created_at").
		Values(entry.Subject, entry.Description, entry.ContentType, string(encoded), formatTime(entry.CreatedAt)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Create")

	r.db.lock.Lock()
	defer r.db.lock.Unlock()

	if err := r.db.handler.QueryRowContext(ctx, query, args...).Scan(&entry.ID); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}
