package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movierec/internal/domain"
	"github.com/Clark-Hu/movierec/internal/letterboxd"
	"github.com/Clark-Hu/movierec/internal/recommend"
	"github.com/Clark-Hu/movierec/internal/repository"
	"github.com/Clark-Hu/movierec/internal/scraper"
)

const defaultRecommendationCount = 30

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type seedResponse struct {
	Discovered int `json:"discovered"`
}

type movieListResponse struct {
	Items      []movieResponse `json:"items"`
	NextCursor *string         `json:"nextCursor,omitempty"`
}

type movieResponse struct {
	MovieID   string `json:"movieId"`
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`
	Runtime   int    `json:"runtime,omitempty"`
	PosterURL string `json:"posterUrl,omitempty"`
}

type recommendationResponse struct {
	MovieID        string  `json:"movieId"`
	Title          string  `json:"title"`
	PosterURL      string  `json:"posterUrl,omitempty"`
	LetterboxdURL  string  `json:"letterboxdUrl"`
	PredictedScore float64 `json:"predictedScore"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := s.scrapes.ScrapeRatingsForUser(r.Context(), username); err != nil {
		s.respondScrapeError(w, username, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("scraped ratings for %s", username)})
}

func (s *Server) respondScrapeError(w http.ResponseWriter, username string, err error) {
	var fetchErr *letterboxd.FetchError
	var parseErr *letterboxd.ParseError
	switch {
	case errors.Is(err, scraper.ErrInvalidUsername):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "username may only contain letters, digits, and underscores")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, http.StatusServiceUnavailable, "CANCELLED", "request cancelled")
	case errors.As(err, &fetchErr):
		s.logger.Printf("scrape %s: %v", username, err)
		s.respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "failed to fetch profile pages")
	case errors.As(err, &parseErr):
		s.logger.Printf("scrape %s: %v", username, err)
		s.respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "failed to parse profile pages")
	default:
		s.logger.Printf("scrape %s: %v", username, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to scrape ratings")
	}
}

func (s *Server) handleSeedPopularUsers(w http.ResponseWriter, r *http.Request) {
	pages := s.cfg.SeedDefaultPages
	if raw := strings.TrimSpace(r.URL.Query().Get("pages")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "pages must be an integer")
			return
		}
		pages = parsed
	}

	discovered, err := s.scrapes.SeedPopularUsers(r.Context(), pages)
	if err != nil {
		if errors.Is(err, scraper.ErrInvalidPages) {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST",
				fmt.Sprintf("pages must be between 1 and %d", scraper.MaxDiscoveryPages))
			return
		}
		s.logger.Printf("seed popular users: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to seed popular users")
		return
	}
	s.respondJSON(w, http.StatusOK, seedResponse{Discovered: discovered})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	count := defaultRecommendationCount
	if raw := strings.TrimSpace(r.URL.Query().Get("count")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "count must be an integer")
			return
		}
		count = parsed
	}

	scored, err := s.recommend.TopRecommendations(r.Context(), username, count)
	if err != nil {
		s.respondRecommendError(w, username, err)
		return
	}

	items := make([]recommendationResponse, 0, len(scored))
	for _, candidate := range scored {
		items = append(items, recommendationResponse{
			MovieID:        candidate.Movie.MovieID,
			Title:          candidate.Movie.Title,
			PosterURL:      candidate.Movie.PosterURL,
			LetterboxdURL:  fmt.Sprintf("%s/film/%s/", s.cfg.LetterboxdBaseURL, url.PathEscape(candidate.Movie.MovieID)),
			PredictedScore: candidate.Score,
		})
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) respondRecommendError(w http.ResponseWriter, username string, err error) {
	var trainingErr *recommend.TrainingError
	var fetchErr *letterboxd.FetchError
	switch {
	case errors.Is(err, recommend.ErrInvalidCount):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "count must be positive")
	case errors.Is(err, scraper.ErrInvalidUsername):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "username may only contain letters, digits, and underscores")
	case errors.Is(err, recommend.ErrModelNotTrained):
		s.respondError(w, http.StatusConflict, "MODEL_NOT_TRAINED", "no ratings exist yet; scrape or seed users first")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, http.StatusServiceUnavailable, "CANCELLED", "request cancelled")
	case errors.As(err, &trainingErr):
		s.logger.Printf("recommendations %s: %v", username, err)
		s.respondError(w, http.StatusBadGateway, "TRAINING_ERROR", "model training failed")
	case errors.As(err, &fetchErr):
		s.logger.Printf("recommendations %s: %v", username, err)
		s.respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "failed to refresh ratings")
	default:
		s.logger.Printf("recommendations %s: %v", username, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build recommendations")
	}
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	if err := s.recommend.Retrain(r.Context()); err != nil {
		var trainingErr *recommend.TrainingError
		if errors.As(err, &trainingErr) {
			s.logger.Printf("retrain: %v", err)
			s.respondError(w, http.StatusBadGateway, "TRAINING_ERROR", "model training failed")
			return
		}
		s.logger.Printf("retrain: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrain model")
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "model retrained"})
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	filters, err := buildMovieFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.repo.Movies.List(r.Context(), filters)
	if err != nil {
		s.logger.Printf("list movies error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list movies")
		return
	}

	items := make([]movieResponse, 0, len(result.Items))
	for _, movie := range result.Items {
		items = append(items, toMovieResponse(movie))
	}
	s.respondJSON(w, http.StatusOK, movieListResponse{Items: items, NextCursor: result.NextCursor})
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieId")

	movie, err := s.repo.Movies.GetByID(r.Context(), movieID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("get movie error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch movie")
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func buildMovieFilters(query url.Values) (repository.MovieListFilters, error) {
	var filters repository.MovieListFilters

	if q := strings.TrimSpace(query.Get("q")); q != "" {
		filters.Query = &q
	}
	if val := strings.TrimSpace(query.Get("year")); val != "" {
		year, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid year value")
		}
		filters.Year = &year
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func toMovieResponse(movie domain.Movie) movieResponse {
	return movieResponse{
		MovieID:   movie.MovieID,
		Title:     movie.Title,
		Year:      movie.Year,
		Runtime:   movie.Runtime,
		PosterURL: movie.PosterURL,
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Printf("failed to encode response: %v", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}
