// Package provider holds what the upstream adapters share: request pacing,
// a circuit breaker and upstream status errors.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/varoOP/discoverdb/internal/metrics"
)

// StatusError is a non-2xx upstream response
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.Code, e.URL)
}

// IsNotFound reports whether err is an upstream 404
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// GuardSettings tunes a Guard
type GuardSettings struct {
	// RequestsPerSecond <= 0 disables rate limiting
	RequestsPerSecond int
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing
	OpenTimeout time.Duration
}

// Guard paces upstream calls and stops calling an upstream that keeps failing
type Guard struct {
	name    string
	log     zerolog.Logger
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewGuard(log zerolog.Logger, name string, settings GuardSettings) *Guard {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	limit := rate.Inf
	burst := 1
	if settings.RequestsPerSecond > 0 {
		limit = rate.Limit(settings.RequestsPerSecond)
		burst = settings.RequestsPerSecond
	}

	g := &Guard{
		name:    name,
		log:     log.With().Str("module", "guard").Str("provider", name).Logger(),
		limiter: rate.NewLimiter(limit, burst),
	}

	g.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    name,
		Timeout: settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		// a missing title is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || IsNotFound(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return g
}

// Do runs fn once the limiter admits it and the breaker is closed
func (g *Guard) Do(ctx context.Context, capability string, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	start := time.Now()

	if err := g.limiter.Wait(ctx); err != nil {
		metrics.ObserveProvider(g.name, capability, start, err)
		return nil, errors.Wrap(err, "rate limiter")
	}

	body, err := g.breaker.Execute(func() ([]byte, error) {
		return fn(ctx)
	})
	metrics.ObserveProvider(g.name, capability, start, err)

	return body, err
}

// State returns the breaker state, for health reporting
func (g *Guard) State() string {
	return g.breaker.State().String()
}
