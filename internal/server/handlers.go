package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/varoOP/discoverdb/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// fail maps a service error to a response. Storage failures are logged and
// hidden behind a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		s.writeError(w, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("database ping failed")
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) byID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	c, err := s.content.GetContent(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if c == nil {
		s.fail(w, r, domain.ErrNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) byExternalID(w http.ResponseWriter, r *http.Request) {
	t, err := domain.ParseContentType(r.URL.Query().Get("type"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	c, err := s.content.GetContentByExternalID(r.Context(), chi.URLParam(r, "externalId"), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if c == nil {
		s.fail(w, r, domain.ErrNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) listByType(contentType domain.ContentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contents, err := s.content.GetContentByType(r.Context(), contentType)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, contents)
	}
}

func (s *Server) trending(w http.ResponseWriter, r *http.Request) {
	t, err := domain.ParseContentType(chi.URLParam(r, "contentType"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	contents, err := s.content.GetTrendingContent(r.Context(), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, contents)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	t, err := domain.ParseContentType(chi.URLParam(r, "contentType"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	contents, err := s.content.SearchContent(r.Context(), t, r.URL.Query().Get("query"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, contents)
}

func (s *Server) details(w http.ResponseWriter, r *http.Request) {
	t, err := domain.ParseContentType(r.URL.Query().Get("type"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	d, err := s.content.GetContentDetails(r.Context(), chi.URLParam(r, "externalId"), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if d == nil {
		s.fail(w, r, domain.ErrNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	var req domain.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	contents, err := s.recommendation.Recommend(r.Context(), req, subject(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, contents)
}
