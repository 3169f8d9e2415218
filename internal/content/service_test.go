package content

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varoOP/discoverdb/internal/database"
	"github.com/varoOP/discoverdb/internal/domain"
	"github.com/varoOP/discoverdb/internal/fetchlog"
	"github.com/varoOP/discoverdb/internal/genre"
	"github.com/varoOP/discoverdb/internal/provider/providertest"
)

type fixture struct {
	svc    Service
	repo   domain.ContentRepo
	ledger fetchlog.Service
	movies *providertest.Fake
	anime  *providertest.Fake

	mu  sync.Mutex
	now time.Time
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDB(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		now:    time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		movies: &providertest.Fake{},
		anime:  &providertest.Fake{},
	}

	genreRepo := database.NewGenreRepo(zerolog.Nop(), db)
	require.NoError(t, genreRepo.SaveAll(ctx, []domain.Genre{
		{ExternalID: 28, ContentType: domain.ContentTypeMovie, Name: "Action"},
		{ExternalID: 878, ContentType: domain.ContentTypeMovie, Name: "Science Fiction"},
		{ExternalID: 1, ContentType: domain.ContentTypeAnime, Name: "Action"},
	}))

	f.ledger = fetchlog.NewService(zerolog.Nop(), database.NewFetchLogRepo(zerolog.Nop(), db), 12*time.Hour,
		fetchlog.WithClock(func() time.Time {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.now
		}))

	providers := domain.Providers{
		domain.ContentTypeMovie: f.movies,
		domain.ContentTypeAnime: f.anime,
	}
	f.repo = database.NewContentRepo(zerolog.Nop(), db)
	genres := genre.NewService(zerolog.Nop(), genreRepo, f.ledger, providers, genre.WithTimeout(time.Second))
	f.svc = NewService(zerolog.Nop(), f.repo, genres, f.ledger, providers, time.Second)
	return f
}

func movie(id, title string, genres ...int64) domain.Content {
	return domain.Content{
		ExternalID:  id,
		Type:        domain.ContentTypeMovie,
		Title:       title,
		Description: title + " overview",
		PosterURL:   "https://image.tmdb.org/t/p/w500/" + id + ".jpg",
		Rating:      7.5,
		GenreIDs:    genres,
	}
}

func TestGetContentByType_EmptyStoreThenRepeat(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.movies.DiscoverItems = []domain.Content{movie("603", "The Matrix", 28, 878), movie("550", "Fight Club")}

	got, err := f.svc.GetContentByType(ctx, domain.ContentTypeMovie)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.LabelContent, got[0].Label)
	assert.Equal(t, []string{"Action", "Science Fiction"}, got[0].GenreNames())

	fresh, err := f.ledger.IsFresh(ctx, domain.DiscoverKey(domain.ContentTypeMovie))
	require.NoError(t, err)
	assert.True(t, fresh)

	again, err := f.svc.GetContentByType(ctx, domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, 1, f.movies.Calls("discover"), "repeat within TTL must not call the provider")
}

func TestGetContentByType_StaleMergesOnlyNewIDs(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.movies.DiscoverItems = []domain.Content{movie("603", "The Matrix")}

	_, err := f.svc.GetContentByType(ctx, domain.ContentTypeMovie)
	require.NoError(t, err)

	f.advance(13 * time.Hour)
	f.movies.DiscoverItems = []domain.Content{movie("603", "Renamed"), movie("604", "Reloaded"), movie("604", "Reloaded")}

	got, err := f.svc.GetContentByType(ctx, domain.ContentTypeMovie)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "The Matrix", got[0].Title, "existing rows are not touched by discover")
	assert.Equal(t, 2, f.movies.Calls("discover"))
}

func TestGetContentByType_UnresolvedGenreWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.movies.DiscoverItems = []domain.Content{movie("1", "Good", 28), movie("2", "Bad", 9999)}

	_, err := f.svc.GetContentByType(ctx, domain.ContentTypeMovie)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	rows, err := f.repo.ListByType(ctx, domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Empty(t, rows)

	fresh, err := f.ledger.IsFresh(ctx, domain.DiscoverKey(domain.ContentTypeMovie))
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestGetContentByType_InvalidType(t *testing.T) {
	f := setup(t)

	_, err := f.svc.GetContentByType(context.Background(), domain.ContentType("BOOK"))
	assert.True(t, domain.IsValidation(err))

	_, err = f.svc.GetContentByType(context.Background(), domain.ContentTypeSeries)
	assert.True(t, domain.IsValidation(err), "no provider registered")
}

func TestGetContentByType_SingleFlight(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.movies.Delay = 100 * time.Millisecond
	f.movies.DiscoverItems = []domain.Content{movie("603", "The Matrix")}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.svc.GetContentByType(ctx, domain.ContentTypeMovie)
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.movies.Calls("discover"))
}

func TestGetContentByType_CancelledLeaderDoesNotFailFollowers(t *testing.T) {
	f := setup(t)
	f.movies.DiscoverItems = []domain.Content{movie("603", "The Matrix")}

	entered := make(chan struct{})
	release := make(chan struct{})
	var enter sync.Once
	f.movies.Before = func(ctx context.Context, capability string) {
		if capability != "discover" {
			return
		}
		enter.Do(func() { close(entered) })
		<-release
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := f.svc.GetContentByType(leaderCtx, domain.ContentTypeMovie)
		leaderErr <- err
	}()
	<-entered

	type result struct {
		contents []domain.Content
		err      error
	}
	follower := make(chan result, 1)
	go func() {
		contents, err := f.svc.GetContentByType(context.Background(), domain.ContentTypeMovie)
		follower <- result{contents, err}
	}()
	// let the follower join the in-flight refresh
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	res := <-follower
	require.NoError(t, res.err)
	assert.Len(t, res.contents, 1)
	assert.Equal(t, 1, f.movies.Calls("discover"))
}

func TestGetTrendingContent_UpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	stored := movie("603", "The Matrix")
	stored.Type = domain.ContentTypeMovie
	stored.ImageURLs = []string{"kept.jpg"}
	stored.RecommendedIDs = []string{"604"}
	require.NoError(t, f.repo.Save(ctx, &stored))

	trending := movie("603", "The Matrix (4K)", 28)
	trending.RecommendedIDs = []string{"604", "605"}
	f.movies.TrendingItems = []domain.Content{trending, movie("27205", "Inception")}

	got, err := f.svc.GetTrendingContent(ctx, domain.ContentTypeMovie)
	require.NoError(t, err)
	require.Len(t, got, 2)

	updated, err := f.repo.FindByExternalID(ctx, "603", domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, updated.ID)
	assert.Equal(t, "The Matrix (4K)", updated.Title)
	assert.Equal(t, domain.LabelTrending, updated.Label)
	assert.Equal(t, []string{"kept.jpg"}, updated.ImageURLs)
	assert.Equal(t, []string{"604", "605"}, updated.RecommendedIDs)

	_, err = f.svc.GetTrendingContent(ctx, domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Equal(t, 1, f.movies.Calls("trending"))

	all, err := f.repo.ListByType(ctx, domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetContentDetails_UnknownTitle(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.movies.DetailItems = map[string]*domain.Content{}

	det, err := f.svc.GetContentDetails(ctx, "603", domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Nil(t, det)

	fresh, err := f.ledger.IsFresh(ctx, domain.DetailsKey(domain.ContentTypeMovie, "603"))
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Zero(t, f.movies.Calls("images"))
}

func TestGetContentDetails_FetchesAndCaches(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	base := movie("603", "The Matrix", 878)
	f.movies.DetailItems = map[string]*domain.Content{"603": &base}
	f.movies.ImageItems = map[string][]string{"603": {"b1.jpg", "b2.jpg"}}
	f.movies.TrailerItems = map[string]*domain.Trailer{"603": {URL: "https://www.youtube.com/watch?v=abc", ID: "abc"}}
	f.movies.Recommended = map[string][]domain.Content{"603": {movie("604", "Reloaded"), movie("605", "Revolutions"), movie("604", "Reloaded")}}

	det, err := f.svc.GetContentDetails(ctx, "603", domain.ContentTypeMovie)
	require.NoError(t, err)
	require.NotNil(t, det)
	assert.NotZero(t, det.ID)
	assert.Equal(t, []string{"b1.jpg", "b2.jpg"}, det.ImageURLs)
	assert.Equal(t, "abc", det.TrailerID)
	assert.Equal(t, []string{"604", "605"}, det.RecommendedIDs)
	require.Len(t, det.RecommendedContent, 2)
	assert.Equal(t, "Reloaded", det.RecommendedContent[0].Title)

	all, err := f.repo.ListByType(ctx, domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	calls := f.movies.TotalCalls()
	again, err := f.svc.GetContentDetails(ctx, "603", domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Equal(t, det.RecommendedIDs, again.RecommendedIDs)
	assert.Len(t, again.RecommendedContent, 2)
	assert.Equal(t, calls, f.movies.TotalCalls(), "fresh details are served from the store")

	// stale refresh keeps the trailer when the provider has none and does
	// not duplicate recommendation ids
	f.advance(24 * time.Hour)
	f.movies.TrailerItems = nil
	refreshed, err := f.svc.GetContentDetails(ctx, "603", domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Equal(t, det.ID, refreshed.ID)
	assert.Equal(t, "abc", refreshed.TrailerID)
	assert.Equal(t, []string{"604", "605"}, refreshed.RecommendedIDs)
	assert.Equal(t, 1, f.movies.Calls("details"), "stored base is not refetched")
}

func TestGetContentDetails_BaseStoredConcurrently(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	base := movie("603", "The Matrix", 878)
	f.movies.DetailItems = map[string]*domain.Content{"603": &base}
	f.movies.ImageItems = map[string][]string{"603": {"b1.jpg"}}
	f.movies.TrailerItems = map[string]*domain.Trailer{"603": {URL: "https://www.youtube.com/watch?v=abc", ID: "abc"}}
	f.movies.Recommended = map[string][]domain.Content{"603": {movie("604", "Reloaded")}}

	// a catalog or search refresh stores the plain base while details are
	// still being fetched
	f.movies.Before = func(_ context.Context, capability string) {
		if capability != "images" {
			return
		}
		plain := movie("603", "The Matrix")
		assert.NoError(t, f.repo.Save(ctx, &plain))
	}

	det, err := f.svc.GetContentDetails(ctx, "603", domain.ContentTypeMovie)
	require.NoError(t, err)
	require.NotNil(t, det)

	stored, err := f.repo.FindByExternalID(ctx, "603", domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Equal(t, det.ID, stored.ID)
	assert.Equal(t, []string{"b1.jpg"}, stored.ImageURLs)
	assert.Equal(t, "abc", stored.TrailerID)
	assert.Equal(t, []string{"604"}, stored.RecommendedIDs)
	assert.Equal(t, stored.ImageURLs, det.ImageURLs)
	assert.Equal(t, stored.RecommendedIDs, det.RecommendedIDs)

	all, err := f.repo.ListByType(ctx, domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRefreshDetails_SkipsWhenAnotherCallerFinished(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	base := movie("603", "The Matrix")
	f.movies.DetailItems = map[string]*domain.Content{"603": &base}
	f.movies.ImageItems = map[string][]string{"603": {"b1.jpg"}}

	_, err := f.svc.GetContentDetails(ctx, "603", domain.ContentTypeMovie)
	require.NoError(t, err)
	calls := f.movies.TotalCalls()

	// a caller that queued before the ledger was stamped runs the refresh
	// itself once the first one is done
	got, err := f.svc.(*service).refreshDetails(ctx, f.movies, "603", domain.ContentTypeMovie, domain.DetailsKey(domain.ContentTypeMovie, "603"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"b1.jpg"}, got.ImageURLs)
	assert.Equal(t, calls, f.movies.TotalCalls())
}

func TestSearchContent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	// 20 is stored as a movie already, so the anime hit must not be inserted
	existing := movie("20", "Collision")
	require.NoError(t, f.repo.Save(ctx, &existing))

	naruto := domain.Content{ExternalID: "20", Type: domain.ContentTypeAnime, Title: "Naruto", GenreIDs: []int64{1}}
	shippuden := domain.Content{ExternalID: "1735", Type: domain.ContentTypeAnime, Title: "Naruto: Shippuden"}
	boruto := domain.Content{ExternalID: "34566", Type: domain.ContentTypeAnime, Title: "Boruto"}
	f.anime.SearchItems = map[string][]domain.Content{"naruto": {shippuden, naruto, boruto}}

	got, err := f.svc.SearchContent(ctx, domain.ContentTypeAnime, "  Naruto ")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1735", got[0].ExternalID)
	assert.Equal(t, "34566", got[1].ExternalID)

	_, err = f.repo.FindByExternalID(ctx, "20", domain.ContentTypeAnime)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	again, err := f.svc.SearchContent(ctx, domain.ContentTypeAnime, "naruto")
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, 2, f.anime.Calls("search"), "search is never TTL gated")

	blank, err := f.svc.SearchContent(ctx, domain.ContentTypeAnime, "   ")
	require.NoError(t, err)
	assert.Empty(t, blank)
	assert.Equal(t, 2, f.anime.Calls("search"))
}

func TestGetContentByExternalID(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	m := movie("603", "The Matrix")
	f.movies.DetailItems = map[string]*domain.Content{"603": &m}

	got, err := f.svc.GetContentByExternalID(ctx, "603", domain.ContentTypeMovie)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotZero(t, got.ID)

	_, err = f.svc.GetContentByExternalID(ctx, "603", domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Equal(t, 1, f.movies.Calls("details"))

	missing, err := f.svc.GetContentByExternalID(ctx, "1", domain.ContentTypeMovie)
	require.NoError(t, err)
	assert.Nil(t, missing)

	byID, err := f.svc.GetContent(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", byID.Title)

	none, err := f.svc.GetContent(ctx, 424242)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.movies.GenreItems = []domain.Genre{{ExternalID: 12, Name: "Adventure"}}
	f.movies.DiscoverItems = []domain.Content{movie("603", "The Matrix", 12)}
	f.movies.TrendingItems = []domain.Content{movie("27205", "Inception")}

	stats, err := f.svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GenresCached[domain.ContentTypeMovie])
	assert.Equal(t, 1, stats.Catalog[domain.ContentTypeMovie])
	assert.Equal(t, 1, stats.Trending[domain.ContentTypeMovie])
	assert.Equal(t, 1, f.anime.Calls("discover"))
	assert.NotContains(t, stats.Catalog, domain.ContentTypeSeries)
}
