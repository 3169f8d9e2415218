package database

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/discoverdb/internal/domain"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Migrate())

	var version int
	require.NoError(t, db.handler.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, len(migrations), version)
}

func TestContentRepo_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	genres := NewGenreRepo(zerolog.Nop(), db)
	repo := NewContentRepo(zerolog.Nop(), db)

	require.NoError(t, genres.SaveAll(ctx, []domain.Genre{
		{ExternalID: 28, ContentType: domain.ContentTypeMovie, Name: "Action"},
		{ExternalID: 18, ContentType: domain.ContentTypeMovie, Name: "Drama"},
	}))
	stored, err := genres.FindByExternalIDs(ctx, domain.ContentTypeMovie, []int64{18, 28})
	require.NoError(t, err)
	require.Len(t, stored, 2)

	c := &domain.Content{
		ExternalID:     "550",
		Type:           domain.ContentTypeMovie,
		Title:          "Fight Club",
		Rating:         8.4,
		Genres:         stored,
		ImageURLs:      []string{"a.jpg"},
		RecommendedIDs: []string{"13"},
	}
	require.NoError(t, repo.Save(ctx, c))
	assert.NotZero(t, c.ID)
	assert.Equal(t, domain.LabelContent, c.Label)
	assert.False(t, c.CreatedAt.IsZero())

	got, err := repo.FindByExternalID(ctx, "550", domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "Fight Club", got.Title)
	assert.Equal(t, []int64{18, 28}, got.GenreIDs)
	assert.Equal(t, []string{"Drama", "Action"}, got.GenreNames())
	assert.Equal(t, []string{"a.jpg"}, got.ImageURLs)
	assert.Equal(t, []string{"13"}, got.RecommendedIDs)

	_, err = repo.FindByExternalID(ctx, "550", domain.ContentTypeSeries)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContentRepo_InsertConflictReusesRow(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewContentRepo(zerolog.Nop(), db)

	first := &domain.Content{ExternalID: "1", Type: domain.ContentTypeAnime, Title: "A"}
	require.NoError(t, repo.Save(ctx, first))

	dup := &domain.Content{ExternalID: "1", Type: domain.ContentTypeAnime, Title: "A"}
	require.NoError(t, repo.Save(ctx, dup))
	assert.Equal(t, first.ID, dup.ID)

	other := &domain.Content{ExternalID: "1", Type: domain.ContentTypeMovie, Title: "B"}
	require.NoError(t, repo.Save(ctx, other))
	assert.NotEqual(t, first.ID, other.ID)

	all, err := repo.ListByType(ctx, domain.ContentTypeAnime)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	existing, err := repo.ExistingExternalIDs(ctx, []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"1": {}}, existing)
}

func TestContentRepo_InsertConflictMergesEnrichment(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewContentRepo(zerolog.Nop(), db)

	plain := &domain.Content{ExternalID: "603", Type: domain.ContentTypeMovie, Title: "The Matrix", Label: domain.LabelTrending}
	require.NoError(t, repo.Save(ctx, plain))

	enriched := &domain.Content{
		ExternalID:     "603",
		Type:           domain.ContentTypeMovie,
		Title:          "The Matrix",
		TrailerURL:     "https://www.youtube.com/watch?v=abc",
		TrailerID:      "abc",
		ImageURLs:      []string{"b1.jpg"},
		RecommendedIDs: []string{"604"},
	}
	require.NoError(t, repo.Save(ctx, enriched))
	assert.Equal(t, plain.ID, enriched.ID)

	got, err := repo.FindByID(ctx, plain.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.TrailerID)
	assert.Equal(t, []string{"b1.jpg"}, got.ImageURLs)
	assert.Equal(t, []string{"604"}, got.RecommendedIDs)
	assert.Equal(t, domain.LabelTrending, got.Label, "a content insert does not clear the trending label")

	// a later plain insert does not wipe the enrichment
	again := &domain.Content{ExternalID: "603", Type: domain.ContentTypeMovie, Title: "The Matrix (1999)"}
	require.NoError(t, repo.Save(ctx, again))

	got, err = repo.FindByID(ctx, plain.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix (1999)", got.Title)
	assert.Equal(t, "abc", got.TrailerID)
	assert.Equal(t, []string{"b1.jpg"}, got.ImageURLs)
	assert.Equal(t, []string{"604"}, got.RecommendedIDs)
}

func TestContentRepo_UpdateAndLabels(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewContentRepo(zerolog.Nop(), db)

	c := &domain.Content{ExternalID: "10", Type: domain.ContentTypeSeries, Title: "Old"}
	require.NoError(t, repo.Save(ctx, c))

	c.Title = "New"
	c.Label = domain.LabelTrending
	require.NoError(t, repo.Save(ctx, c))

	trending, err := repo.ListByTypeAndLabel(ctx, domain.ContentTypeSeries, domain.LabelTrending)
	require.NoError(t, err)
	require.Len(t, trending, 1)
	assert.Equal(t, "New", trending[0].Title)

	ids, err := repo.ExternalIDs(ctx, domain.ContentTypeSeries)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"10": c.ID}, ids)

	missing := &domain.Content{ID: 9999, ExternalID: "x", Type: domain.ContentTypeSeries}
	err = repo.Save(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContentRepo_SaveAllIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewContentRepo(zerolog.Nop(), db)

	batch := []*domain.Content{
		{ExternalID: "1", Type: domain.ContentTypeMovie, Title: "ok"},
		{ID: 4242, ExternalID: "2", Type: domain.ContentTypeMovie, Title: "missing"},
	}
	require.Error(t, repo.SaveAll(ctx, batch))

	all, err := repo.ListByType(ctx, domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGenreRepo_KeepsFirstName(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewGenreRepo(zerolog.Nop(), db)

	require.NoError(t, repo.SaveAll(ctx, []domain.Genre{{ExternalID: 1, ContentType: domain.ContentTypeAnime, Name: "Action"}}))
	require.NoError(t, repo.SaveAll(ctx, []domain.Genre{{ExternalID: 1, ContentType: domain.ContentTypeAnime, Name: "Renamed"}}))

	list, err := repo.ListByType(ctx, domain.ContentTypeAnime)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Action", list[0].Name)

	ids, err := repo.ExternalIDs(ctx, domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFetchLogRepo(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewFetchLogRepo(zerolog.Nop(), db)

	_, err := repo.Get(ctx, "DISCOVER_MOVIE")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(ctx, domain.FetchLogEntry{Key: "DISCOVER_MOVIE", LastFetchedAt: first}))
	second := first.Add(time.Hour)
	require.NoError(t, repo.Upsert(ctx, domain.FetchLogEntry{Key: "DISCOVER_MOVIE", LastFetchedAt: second}))

	entry, err := repo.Get(ctx, "DISCOVER_MOVIE")
	require.NoError(t, err)
	assert.True(t, second.Equal(entry.LastFetchedAt))
}

func TestRecommendationLogRepo_Create(t *testing.T) {
	db := setupDB(t)
	repo := NewRecommendationLogRepo(zerolog.Nop(), db)

	entry := &domain.RecommendationLog{
		Description: "space opera",
		ContentType: domain.ContentTypeSeries,
		Titles:      []string{"The Expanse"},
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotZero(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}
