package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varoOP/discoverdb/internal/domain"
)

func newTestService(t *testing.T, routes map[string]string) (domain.Provider, *[]string) {
	t.Helper()
	var seen []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))

		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	svc := NewService(zerolog.Nop(), &domain.Config{
		TmdbApiKey:      "secret",
		TmdbBaseURL:     srv.URL + "/3",
		ProviderTimeout: 2 * time.Second,
	})
	return svc, &seen
}

func TestDiscover_FiltersIncompleteItems(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{
		"/3/discover/movie": `{"page":1,"results":[
			{"id":603,"title":"The Matrix","overview":"Neo &amp; friends","poster_path":"/m.jpg","backdrop_path":"/b.jpg","genre_ids":[28,878],"vote_average":8.2,"release_date":"1999-03-30"},
			{"id":1,"title":"No Poster","overview":"x","poster_path":null},
			{"id":2,"title":"","overview":"x","poster_path":"/p.jpg"}
		]}`,
	})

	got := svc.Discover(context.Background(), domain.ContentTypeMovie)
	require.Len(t, got, 1)
	assert.Equal(t, "603", got[0].ExternalID)
	assert.Equal(t, domain.ContentTypeMovie, got[0].Type)
	assert.Equal(t, domain.LabelContent, got[0].Label)
	assert.Equal(t, "Neo & friends", got[0].Description)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/m.jpg", got[0].PosterURL)
	assert.Equal(t, []int64{28, 878}, got[0].GenreIDs)
}

func TestTrending_Series(t *testing.T) {
	svc, seen := newTestService(t, map[string]string{
		"/3/trending/tv/week": `{"results":[{"id":1396,"name":"Breaking Bad","overview":"Chemistry","poster_path":"/bb.jpg","first_air_date":"2008-01-20"}]}`,
	})

	got := svc.Trending(context.Background(), domain.ContentTypeSeries)
	require.Len(t, got, 1)
	assert.Equal(t, "Breaking Bad", got[0].Title)
	assert.Equal(t, "2008-01-20", got[0].ReleaseDate)
	assert.Equal(t, domain.LabelTrending, got[0].Label)
	assert.Equal(t, []string{"/3/trending/tv/week"}, *seen)
}

func TestSearch_TypesHitsByMediaType(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{
		"/3/search/multi": `{"results":[
			{"id":1,"media_type":"movie","title":"M","overview":"o","poster_path":"/1.jpg"},
			{"id":2,"media_type":"tv","name":"S","overview":"o","poster_path":"/2.jpg"},
			{"id":3,"media_type":"person","name":"P"}
		]}`,
	})

	got := svc.Search(context.Background(), domain.ContentTypeMovie, "m")
	require.Len(t, got, 2)
	assert.Equal(t, domain.ContentTypeMovie, got[0].Type)
	assert.Equal(t, domain.ContentTypeSeries, got[1].Type)
}

func TestDetails(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{
		"/3/movie/603": `{"id":603,"title":"The Matrix","overview":"Wake up","poster_path":"/m.jpg","backdrop_path":"/b.jpg",
			"genres":[{"id":28,"name":"Action"}],"vote_average":8.2,"release_date":"1999-03-30",
			"videos":{"results":[{"key":"teaser","site":"YouTube","type":"Teaser"},{"key":"vKQi3bBA1y8","site":"YouTube","type":"Trailer"}]},
			"credits":{"cast":[{"name":"A"},{"name":"B"},{"name":"C"},{"name":"D"},{"name":"E"},{"name":"F"}]}}`,
	})

	got := svc.Details(context.Background(), domain.ContentTypeMovie, "603")
	require.NotNil(t, got)
	assert.Equal(t, domain.ContentTypeMovie, got.Type)
	assert.Equal(t, []int64{28}, got.GenreIDs)
	assert.Equal(t, "https://www.youtube.com/watch?v=vKQi3bBA1y8", got.TrailerURL)
	assert.Equal(t, "vKQi3bBA1y8", got.TrailerID)
	assert.Equal(t, "A, B, C, D, E", got.CastList)
	assert.Equal(t, "https://image.tmdb.org/t/p/original/b.jpg", got.BackdropURL)

	assert.Nil(t, svc.Details(context.Background(), domain.ContentTypeMovie, "404"))
}

func TestImagesAndRecommendationsAreCapped(t *testing.T) {
	backdrops := `{"backdrops":[`
	recs := `{"results":[`
	for i := 0; i < 15; i++ {
		if i > 0 {
			backdrops += ","
			recs += ","
		}
		backdrops += `{"file_path":"/x.jpg"}`
		recs += `{"id":` + string(rune('0'+i%10)) + `,"title":"T","overview":"o","poster_path":"/p.jpg"}`
	}
	backdrops += `]}`
	recs += `]}`

	svc, _ := newTestService(t, map[string]string{
		"/3/tv/1/images":          backdrops,
		"/3/tv/1/recommendations": recs,
	})

	assert.Len(t, svc.Images(context.Background(), domain.ContentTypeSeries, "1"), maxImages)
	assert.Len(t, svc.Recommendations(context.Background(), domain.ContentTypeSeries, "1"), maxRecommendations)
}

func TestTrailerAndGenres(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{
		"/3/movie/603/videos": `{"results":[{"key":"abc","site":"YouTube","type":"Trailer"}]}`,
		"/3/genre/movie/list": `{"genres":[{"id":28,"name":"Action"},{"id":35,"name":"Comedy"}]}`,
	})

	tr := svc.Trailer(context.Background(), domain.ContentTypeMovie, &domain.Content{ExternalID: "603"})
	require.NotNil(t, tr)
	assert.Equal(t, "abc", tr.ID)

	genres := svc.Genres(context.Background(), domain.ContentTypeMovie)
	require.Len(t, genres, 2)
	assert.Equal(t, domain.ContentTypeMovie, genres[0].ContentType)
	assert.Equal(t, "Action", genres[0].Name)
}

func TestFailuresDegradeToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/discover/movie" {
			w.Write([]byte("{not json"))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewService(zerolog.Nop(), &domain.Config{TmdbBaseURL: srv.URL, ProviderTimeout: time.Second})
	ctx := context.Background()

	assert.Empty(t, svc.Discover(ctx, domain.ContentTypeMovie))
	assert.Empty(t, svc.Trending(ctx, domain.ContentTypeMovie))
	assert.Empty(t, svc.Genres(ctx, domain.ContentTypeMovie))
	assert.Nil(t, svc.Details(ctx, domain.ContentTypeMovie, "1"))
}
