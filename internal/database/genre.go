package database

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/discoverdb/internal/domain"
)

// GenreRepo implements domain.GenreRepo
type GenreRepo struct {
	log zerolog.Logger
	db  *DB
}

// NewGenreRepo creates a new genre repository
func NewGenreRepo(log zerolog.Logger, db *DB) domain.GenreRepo {
	return &GenreRepo{
		log: log.With().Str("repo", "genre").Logger(),
		db:  db,
	}
}

// FindByExternalIDs returns the stored genres of a content type among ids
func (r *GenreRepo) FindByExternalIDs(ctx context.Context, contentType domain.ContentType, ids []int64) ([]domain.Genre, error) {
	if len(ids) == 0 {
		return []domain.Genre{}, nil
	}
	return r.find(ctx, sq.Eq{"content_type": contentType, "external_id": ids})
}

// ListByType returns every stored genre of a content type
func (r *GenreRepo) ListByType(ctx context.Context, contentType domain.ContentType) ([]domain.Genre, error) {
	return r.find(ctx, sq.Eq{"content_type": contentType})
}

// ExternalIDs returns the stored genre external ids of a content type
func (r *GenreRepo) ExternalIDs(ctx context.Context, contentType domain.ContentType) (map[int64]struct{}, error) {
	genres, err := r.find(ctx, sq.Eq{"content_type": contentType})
	if err != nil {
		return nil, err
	}

	result := make(map[int64]struct{}, len(genres))
	for _, g := range genres {
		result[g.ExternalID] = struct{}{}
	}
	return result, nil
}

// SaveAll inserts the genres that are not stored yet. Names of stored genres
// are left untouched.
func (r *GenreRepo) SaveAll(ctx context.Context, genres []domain.Genre) error {
	if len(genres) == 0 {
		return nil
	}

	queryBuilder := r.db.squirrel.
		Insert("genre").
		Columns("external_id", "content_type", "name").
		Suffix("ON CONFLICT (external_id, content_type) DO NOTHING")
	for _, g := range genres {
		queryBuilder = queryBuilder.Values(g.ExternalID, g.ContentType, g.Name)
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("SaveAll")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit genres")
	}

	return nil
}

func (r *GenreRepo) find(ctx context.Context, where sq.Sqlizer) ([]domain.Genre, error) {
	queryBuilder := r.db.squirrel.
		Select("id", "external_id", "content_type", "name").
		From("genre").
		Where(where).
		OrderBy("external_id")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("find")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	genres := []domain.Genre{}
	for rows.Next() {
		var g domain.Genre
		if err := rows.Scan(&g.ID, &g.ExternalID, &g.ContentType, &g.Name); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		genres = append(genres, g)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return genres, nil
}
