package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/discoverdb/internal/content"
	"github.com/varoOP/discoverdb/internal/domain"
	"github.com/varoOP/discoverdb/internal/metrics"
	"github.com/varoOP/discoverdb/internal/recommendation"
)

const requestTimeout = 60 * time.Second

// Pinger reports whether the store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	log            zerolog.Logger
	addr           string
	jwtSecret      []byte
	content        content.Service
	recommendation recommendation.Service
	db             Pinger
}

func NewServer(log zerolog.Logger, addr, jwtSecret string, contentSvc content.Service, recommendationSvc recommendation.Service, db Pinger) *Server {
	return &Server{
		log:            log.With().Str("module", "server").Logger(),
		addr:           addr,
		jwtSecret:      []byte(jwtSecret),
		content:        contentSvc,
		recommendation: recommendationSvc,
		db:             db,
	}
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(s.authenticate)

		r.Route("/content", func(r chi.Router) {
			r.Get("/movies", s.listByType(domain.ContentTypeMovie))
			r.Get("/series", s.listByType(domain.ContentTypeSeries))
			r.Get("/anime", s.listByType(domain.ContentTypeAnime))
			r.Get("/trending/{contentType}", s.trending)
			r.Get("/search/{contentType}", s.search)
			r.Get("/external/{externalId}", s.byExternalID)
			r.Get("/details/{externalId}", s.details)
			r.Get("/{id:[0-9]+}", s.byID)
		})

		r.Post("/recommendations", s.recommend)
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
