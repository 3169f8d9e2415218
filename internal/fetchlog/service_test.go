package fetchlog

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/discoverdb/internal/database"
)

func TestService_IsFresh(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(zerolog.Nop(), database.NewFetchLogRepo(zerolog.Nop(), db), 12*time.Hour,
		WithClock(func() time.Time { return now }))

	fresh, err := svc.IsFresh(ctx, "DISCOVER_MOVIE")
	require.NoError(t, err)
	assert.False(t, fresh, "never fetched")

	require.NoError(t, svc.MarkFetched(ctx, "DISCOVER_MOVIE", now.Add(-11*time.Hour)))
	fresh, err = svc.IsFresh(ctx, "DISCOVER_MOVIE")
	require.NoError(t, err)
	assert.True(t, fresh)

	require.NoError(t, svc.MarkFetched(ctx, "DISCOVER_MOVIE", now.Add(-12*time.Hour)))
	fresh, err = svc.IsFresh(ctx, "DISCOVER_MOVIE")
	require.NoError(t, err)
	assert.False(t, fresh, "exactly TTL old is stale")

	fresh, err = svc.IsFresh(ctx, "DISCOVER_SERIES")
	require.NoError(t, err)
	assert.False(t, fresh, "keys are independent")
}

func TestNewService_DefaultTTL(t *testing.T) {
	s := NewService(zerolog.Nop(), nil, 0).(*service)
	assert.Equal(t, DefaultTTL, s.ttl)
}

func TestPurpose(t *testing.T) {
	assert.Equal(t, "DETAILS", purpose("DETAILS_MOVIE_603"))
	assert.Equal(t, "plain", purpose("plain"))
}
