package database

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/discoverdb/internal/domain"
)

// FetchLogRepo implements domain.FetchLogRepo
type FetchLogRepo struct {
	log zerolog.Logger
	db  *DB
}

// NewFetchLogRepo creates a new fetch log repository
func NewFetchLogRepo(log zerolog.Logger, db *DB) domain.FetchLogRepo {
	return &FetchLogRepo{
		log: log.With().Str("repo", "fetch_log").Logger(),
		db:  db,
	}
}

// Get returns the entry for key
func (r *FetchLogRepo) Get(ctx context.Context, key string) (*domain.FetchLogEntry, error) {
	query, args, err := r.db.squirrel.
		Select("key", "last_fetched_at").
		From("fetch_log").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Get")

	var (
		entry     domain.FetchLogEntry
		fetchedAt string
	)
	err = r.db.handler.QueryRowContext(ctx, query, args...).Scan(&entry.Key, &fetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "error executing query")
	}

	if entry.LastFetchedAt, err = parseTime(fetchedAt); err != nil {
		return nil, err
	}

	return &entry, nil
}

// Upsert stores the entry, replacing any previous timestamp for the key
func (r *FetchLogRepo) Upsert(ctx context.Context, entry domain.FetchLogEntry) error {
	query, args, err := r.db.squirrel.
		Insert("fetch_log").
		Columns("key", "last_fetched_at").
		Values(entry.Key, formatTime(entry.LastFetchedAt)).
		Suffix("ON CONFLICT (key) DO UPDATE SET last_fetched_at = excluded.last_fetched_at").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Upsert")

	r.db.lock.Lock()
	defer r.db.lock.Unlock()

	if _, err := r.db.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}
