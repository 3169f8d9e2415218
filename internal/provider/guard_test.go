package provider

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_OpensAfterFailures(t *testing.T) {
	g := NewGuard(zerolog.Nop(), "test", GuardSettings{FailureThreshold: 2, OpenTimeout: time.Minute})
	boom := errors.New("boom")

	calls := 0
	fail := func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, boom
	}

	for i := 0; i < 2; i++ {
		_, err := g.Do(context.Background(), "discover", fail)
		assert.ErrorIs(t, err, boom)
	}

	_, err := g.Do(context.Background(), "discover", fail)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "open", g.State())
}

func TestGuard_NotFoundDoesNotTrip(t *testing.T) {
	g := NewGuard(zerolog.Nop(), "test", GuardSettings{FailureThreshold: 1})
	notFound := func(ctx context.Context) ([]byte, error) {
		return nil, &StatusError{Code: http.StatusNotFound, URL: "http://x/movie/1"}
	}

	for i := 0; i < 3; i++ {
		_, err := g.Do(context.Background(), "details", notFound)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	}
	assert.Equal(t, "closed", g.State())
}

func TestGuard_RateLimitRespectsContext(t *testing.T) {
	g := NewGuard(zerolog.Nop(), "test", GuardSettings{RequestsPerSecond: 1})
	ok := func(ctx context.Context) ([]byte, error) { return []byte("ok"), nil }

	body, err := g.Do(context.Background(), "search", ok)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Do(ctx, "search", ok)
	assert.Error(t, err, "second call within the same second must wait past the deadline")
}
