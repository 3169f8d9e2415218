package database

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/discoverdb/internal/domain"
)

var contentColumns = []string{
	"id", "external_id", "type", "title", "description", "poster_url", "backdrop_url",
	"trailer_url", "trailer_id", "release_date", "cast_list", "rating", "label",
	"image_urls", "recommended_ids", "created_at", "updated_at",
}

// ContentRepo implements domain.ContentRepo
type ContentRepo struct {
	log zerolog.Logger
	db  *DB
}

// NewContentRepo creates a new content repository
func NewContentRepo(log zerolog.Logger, db *DB) domain.ContentRepo {
	return &ContentRepo{
		log: log.With().Str("repo", "content").Logger(),
		db:  db,
	}
}

// FindByID returns the row with the surrogate id
func (r *ContentRepo) FindByID(ctx context.Context, id int64) (*domain.Content, error) {
	return r.findOne(ctx, sq.Eq{"id": id})
}

// FindByExternalID returns the row identified by (externalID, contentType)
func (r *ContentRepo) FindByExternalID(ctx context.Context, externalID string, contentType domain.ContentType) (*domain.Content, error) {
	return r.findOne(ctx, sq.Eq{"external_id": externalID, "type": contentType})
}

// ListByType returns every row of a content type
func (r *ContentRepo) ListByType(ctx context.Context, contentType domain.ContentType) ([]domain.Content, error) {
	return r.find(ctx, sq.Eq{"type": contentType})
}

// ListByTypeAndLabel returns the rows of a content type carrying label
func (r *ContentRepo) ListByTypeAndLabel(ctx context.Context, contentType domain.ContentType, label domain.ContentLabel) ([]domain.Content, error) {
	return r.find(ctx, sq.Eq{"type": contentType, "label": label})
}

// FindByExternalIDs returns the rows of a content type among ids
func (r *ContentRepo) FindByExternalIDs(ctx context.Context, contentType domain.ContentType, ids []string) ([]domain.Content, error) {
	if len(ids) == 0 {
		return []domain.Content{}, nil
	}
	return r.find(ctx, sq.Eq{"type": contentType, "external_id": ids})
}

// ExternalIDs maps the stored external ids of a content type to surrogate ids
func (r *ContentRepo) ExternalIDs(ctx context.Context, contentType domain.ContentType) (map[string]int64, error) {
	queryBuilder := r.db.squirrel.
		Select("external_id", "id").
		From("content").
		Where(sq.Eq{"type": contentType})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("ExternalIDs")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var externalID string
		var id int64
		if err := rows.Scan(&externalID, &id); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		result[externalID] = id
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return result, nil
}

// ExistingExternalIDs returns which of ids are stored under any content type
func (r *ContentRepo) ExistingExternalIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	result := make(map[string]struct{})
	if len(ids) == 0 {
		return result, nil
	}

	queryBuilder := r.db.squirrel.
		Select("DISTINCT external_id").
		From("content").
		Where(sq.Eq{"external_id": ids})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("ExistingExternalIDs")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	for rows.Next() {
		var externalID string
		if err := rows.Scan(&externalID); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		result[externalID] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return result, nil
}

// Save inserts or updates a single row
func (r *ContentRepo) Save(ctx context.Context, content *domain.Content) error {
	return r.SaveAll(ctx, []*domain.Content{content})
}

// SaveAll writes the batch in one transaction. Rows without an ID are
// inserted; a conflicting (external_id, type) merges into the stored row
// and takes its id. Rows with an ID are updated in place.
func (r *ContentRepo) SaveAll(ctx context.Context, contents []*domain.Content) error {
	if len(contents) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, c := range contents {
		if c.ID == 0 {
			err = r.insert(ctx, tx, c, now)
		} else {
			err = r.update(ctx, tx, c, now)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to save content %s/%s", c.Type, c.ExternalID)
		}

		if err := r.replaceGenres(ctx, tx, c); err != nil {
			return errors.Wrapf(err, "failed to link genres of content %s/%s", c.Type, c.ExternalID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit content batch")
	}

	r.log.Debug().Int("count", len(contents)).Msg("saved content batch")
	return nil
}

// insertConflict merges a row into one already stored under the same
// (external_id, type). Enrichment the incoming row lacks is kept, and a
// TRENDING label is only ever set, never cleared.
const insertConflict = `ON CONFLICT (external_id, type) DO UPDATE SET
	title = excluded.title,
	description = excluded.description,
	poster_url = excluded.poster_url,
	backdrop_url = CASE WHEN excluded.backdrop_url <> '' THEN excluded.backdrop_url ELSE content.backdrop_url END,
	trailer_url = CASE WHEN excluded.trailer_url <> '' THEN excluded.trailer_url ELSE content.trailer_url END,
	trailer_id = CASE WHEN excluded.trailer_url <> '' THEN excluded.trailer_id ELSE content.trailer_id END,
	release_date = CASE WHEN excluded.release_date <> '' THEN excluded.release_date ELSE content.release_date END,
	cast_list = CASE WHEN excluded.cast_list <> '' THEN excluded.cast_list ELSE content.cast_list END,
	rating = excluded.rating,
	label = CASE WHEN excluded.label = 'TRENDING' THEN excluded.label ELSE content.label END,
	image_urls = CASE WHEN excluded.image_urls <> '[]' THEN excluded.image_urls ELSE content.image_urls END,
	recommended_ids = CASE WHEN excluded.recommended_ids <> '[]' THEN excluded.recommended_ids ELSE content.recommended_ids END,
	updated_at = excluded.updated_at
RETURNING id`

func (r *ContentRepo) insert(ctx context.Context, tx *Tx, c *domain.Content, now time.Time) error {
	images, recommended, err := encodeLists(c)
	if err != nil {
		return err
	}

	if c.Label == "" {
		c.Label = domain.LabelContent
	}

	queryBuilder := r.db.squirrel.
		Insert("content").
		Columns(contentColumns[1:]...).
		Values(c.ExternalID, c.Type, c.Title, c.Description, c.PosterURL, c.BackdropURL,
			c.TrailerURL, c.TrailerID, c.ReleaseDate, c.CastList, c.Rating, c.Label,
			images, recommended, formatTime(now), formatTime(now)).
		Suffix(insertConflict)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("insert")

	if err := tx.QueryRowContext(ctx, query, args...).Scan(&c.ID); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (r *ContentRepo) update(ctx context.Context, tx *Tx, c *domain.Content, now time.Time) error {
	images, recommended, err := encodeLists(c)
	if err != nil {
		return err
	}

	queryBuilder := r.db.squirrel.
		Update("content").
		SetMap(map[string]interface{}{
			"external_id":     c.ExternalID,
			"type":            c.Type,
			"title":           c.Title,
			"description":     c.Description,
			"poster_url":      c.PosterURL,
			"backdrop_url":    c.BackdropURL,
			"trailer_url":     c.TrailerURL,
			"trailer_id":      c.TrailerID,
			"release_date":    c.ReleaseDate,
			"cast_list":       c.CastList,
			"rating":          c.Rating,
			"label":           c.Label,
			"image_urls":      images,
			"recommended_ids": recommended,
			"updated_at":      formatTime(now),
		}).
		Where(sq.Eq{"id": c.ID})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("update")

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing query")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "error reading affected rows")
	}
	if affected == 0 {
		return errors.Wrapf(domain.ErrNotFound, "content id %d", c.ID)
	}

	c.UpdatedAt = now
	return nil
}

func (r *ContentRepo) replaceGenres(ctx context.Context, tx *Tx, c *domain.Content) error {
	query, args, err := r.db.squirrel.
		Delete("content_genre").
		Where(sq.Eq{"content_id": c.ID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "error building delete query")
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing delete query")
	}

	if len(c.Genres) == 0 {
		return nil
	}

	queryBuilder := r.db.squirrel.
		Insert("content_genre").
		Columns("content_id", "genre_id").
		Suffix("ON CONFLICT DO NOTHING")
	for _, g := range c.Genres {
		queryBuilder = queryBuilder.Values(c.ID, g.ID)
	}

	query, args, err = queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

func (r *ContentRepo) findOne(ctx context.Context, where sq.Sqlizer) (*domain.Content, error) {
	contents, err := r.find(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return nil, domain.ErrNotFound
	}
	return &contents[0], nil
}

func (r *ContentRepo) find(ctx context.Context, where sq.Sqlizer) ([]domain.Content, error) {
	queryBuilder := r.db.squirrel.
		Select(contentColumns...).
		From("content").
		Where(where).
		OrderBy("id")

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

	contents := []domain.Content{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	if err := r.loadGenres(ctx, contents); err != nil {
		return nil, err
	}

	return contents, nil
}

func (r *ContentRepo) loadGenres(ctx context.Context, contents []domain.Content) error {
	if len(contents) == 0 {
		return nil
	}

	index := make(map[int64]int, len(contents))
	ids := make([]int64, 0, len(contents))
	for i := range contents {
		index[contents[i].ID] = i
		ids = append(ids, contents[i].ID)
	}

	queryBuilder := r.db.squirrel.
		Select("cg.content_id", "g.id", "g.external_id", "g.content_type", "g.name").
		From("content_genre cg").
		Join("genre g ON g.id = cg.genre_id").
		Where(sq.Eq{"cg.content_id": ids}).
		OrderBy("cg.content_id", "g.external_id")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	for rows.Next() {
		var contentID int64
		var g domain.Genre
		if err := rows.Scan(&contentID, &g.ID, &g.ExternalID, &g.ContentType, &g.Name); err != nil {
			return errors.Wrap(err, "error scanning row")
		}
		c := &contents[index[contentID]]
		c.Genres = append(c.Genres, g)
		c.GenreIDs = append(c.GenreIDs, g.ExternalID)
	}

	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "error iterating rows")
	}

	return nil
}

func scanContent(rows *sql.Rows) (domain.Content, error) {
	var (
		c                    domain.Content
		images, recommended  string
		createdAt, updatedAt string
	)

	if err := rows.Scan(&c.ID, &c.ExternalID, &c.Type, &c.Title, &c.Description, &c.PosterURL,
		&c.BackdropURL, &c.TrailerURL, &c.TrailerID, &c.ReleaseDate, &c.CastList, &c.Rating,
		&c.Label, &images, &recommended, &createdAt, &updatedAt); err != nil {
		return c, errors.Wrap(err, "error scanning row")
	}

	if err := json.Unmarshal([]byte(images), &c.ImageURLs); err != nil {
		return c, errors.Wrap(err, "invalid image_urls")
	}
	if err := json.Unmarshal([]byte(recommended), &c.RecommendedIDs); err != nil {
		return c, errors.Wrap(err, "invalid recommended_ids")
	}

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return c, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return c, err
	}

	return c, nil
}

func encodeLists(c *domain.Content) (string, string, error) {
	images := c.ImageURLs
	if images == nil {
		images = []string{}
	}
	recommended := c.RecommendedIDs
	if recommended == nil {
		recommended = []string{}
	}

	ib, err := json.Marshal(images)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to encode image urls")
	}
	rb, err := json.Marshal(recommended)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to encode recommended ids")
	}

	return string(ib), string(rb), nil
}
