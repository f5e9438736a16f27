package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movierec/internal/config"
	"github.com/Clark-Hu/movierec/internal/domain"
	"github.com/Clark-Hu/movierec/internal/letterboxd"
	"github.com/Clark-Hu/movierec/internal/recommend"
	"github.com/Clark-Hu/movierec/internal/scraper"
)

type stubScrapes struct {
	scrapeErr  error
	seedErr    error
	discovered int
	lastPages  int
}

func (s *stubScrapes) ScrapeRatingsForUser(ctx context.Context, username string) error {
	return s.scrapeErr
}

func (s *stubScrapes) SeedPopularUsers(ctx context.Context, pages int) (int, error) {
	s.lastPages = pages
	return s.discovered, s.seedErr
}

type stubRecommend struct {
	candidates []domain.ScoredCandidate
	recErr     error
	retrainErr error
	lastCount  int
}

func (s *stubRecommend) TopRecommendations(ctx context.Context, username string, count int) ([]domain.ScoredCandidate, error) {
	s.lastCount = count
	return s.candidates, s.recErr
}

func (s *stubRecommend) Retrain(ctx context.Context) error {
	return s.retrainErr
}

func buildTestServer(tb testing.TB, scrapes ScrapeService, recommender RecommendService) *Server {
	tb.Helper()
	cfg := config.Config{
		Port:              "0",
		LetterboxdBaseURL: "https://letterboxd.com",
		SeedDefaultPages:  5,
		ReadTimeoutSecs:   15,
		WriteTimeoutSecs:  15,
		IdleTimeoutSecs:   60,
	}

	logger := log.New(io.Discard, "", 0)
	srv := New(cfg, nil, nil, scrapes, recommender, logger)
	// Replace chi router to avoid default middleware noise.
	router := chi.NewRouter()
	srv.router = router
	srv.registerRoutes()
	return srv
}

func doRequest(srv *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(tb testing.TB, rec *httptest.ResponseRecorder) errorResponse {
	tb.Helper()
	var payload errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		tb.Fatalf("decode error payload: %v", err)
	}
	return payload
}

func TestHandleScrapeSuccess(t *testing.T) {
	srv := buildTestServer(t, &stubScrapes{}, &stubRecommend{})

	rec := doRequest(srv, http.MethodPost, "/scrape/alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleScrapeErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid username", scraper.ErrInvalidUsername, http.StatusBadRequest, "BAD_REQUEST"},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, "CANCELLED"},
		{"fetch failure", &letterboxd.FetchError{URL: "x", StatusCode: 404}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"parse failure", &letterboxd.ParseError{URL: "x", Err: errors.New("bad html")}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"storage failure", errors.New("pg down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := buildTestServer(t, &stubScrapes{scrapeErr: tt.err}, &stubRecommend{})
			rec := doRequest(srv, http.MethodPost, "/scrape/alice")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decodeError(t, rec); got.Code != tt.wantCode {
				t.Fatalf("code = %s, want %s", got.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleSeedDefaultsAndOverride(t *testing.T) {
	scrapes := &stubScrapes{discovered: 42}
	srv := buildTestServer(t, scrapes, &stubRecommend{})

	rec := doRequest(srv, http.MethodPost, "/popular-users/seed")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if scrapes.lastPages != 5 {
		t.Fatalf("pages = %d, want config default 5", scrapes.lastPages)
	}
	var payload seedResponse
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Discovered != 42 {
		t.Fatalf("discovered = %d, want 42", payload.Discovered)
	}

	rec = doRequest(srv, http.MethodPost, "/popular-users/seed?pages=3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if scrapes.lastPages != 3 {
		t.Fatalf("pages = %d, want override 3", scrapes.lastPages)
	}
}

func TestHandleSeedBadPages(t *testing.T) {
	srv := buildTestServer(t, &stubScrapes{}, &stubRecommend{})
	rec := doRequest(srv, http.MethodPost, "/popular-users/seed?pages=banana")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	srv = buildTestServer(t, &stubScrapes{seedErr: scraper.ErrInvalidPages}, &stubRecommend{})
	rec = doRequest(srv, http.MethodPost, "/popular-users/seed?pages=99")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for out-of-range pages", rec.Code)
	}
}

func TestHandleRecommendationsSuccess(t *testing.T) {
	recommender := &stubRecommend{candidates: []domain.ScoredCandidate{
		{
			Movie: domain.Movie{MovieID: "heat-1995", Title: "Heat", PosterURL: "https://a.ltrbxd.com/resized/p/heat.jpg"},
			Score: 8.7,
		},
	}}
	srv := buildTestServer(t, &stubScrapes{}, recommender)

	rec := doRequest(srv, http.MethodGet, "/recommendations/alice?count=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if recommender.lastCount != 10 {
		t.Fatalf("count = %d, want 10", recommender.lastCount)
	}

	var items []recommendationResponse
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %+v, want 1", items)
	}
	if items[0].LetterboxdURL != "https://letterboxd.com/film/heat-1995/" {
		t.Fatalf("letterboxd url = %s", items[0].LetterboxdURL)
	}
	if items[0].PredictedScore != 8.7 {
		t.Fatalf("predicted score = %v, want 8.7", items[0].PredictedScore)
	}
}

func TestHandleRecommendationsDefaultCount(t *testing.T) {
	recommender := &stubRecommend{}
	srv := buildTestServer(t, &stubScrapes{}, recommender)

	rec := doRequest(srv, http.MethodGet, "/recommendations/alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if recommender.lastCount != defaultRecommendationCount {
		t.Fatalf("count = %d, want default %d", recommender.lastCount, defaultRecommendationCount)
	}
}

func TestHandleRecommendationsErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid count", recommend.ErrInvalidCount, http.StatusBadRequest, "BAD_REQUEST"},
		{"invalid username", scraper.ErrInvalidUsername, http.StatusBadRequest, "BAD_REQUEST"},
		{"no model", recommend.ErrModelNotTrained, http.StatusConflict, "MODEL_NOT_TRAINED"},
		{"cancelled", context.DeadlineExceeded, http.StatusServiceUnavailable, "CANCELLED"},
		{"training failed", &recommend.TrainingError{Err: errors.New("diverged")}, http.StatusBadGateway, "TRAINING_ERROR"},
		{"fetch failure", &letterboxd.FetchError{URL: "x", StatusCode: 500}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"storage failure", errors.New("pg down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := buildTestServer(t, &stubScrapes{}, &stubRecommend{recErr: tt.err})
			rec := doRequest(srv, http.MethodGet, "/recommendations/alice")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decodeError(t, rec); got.Code != tt.wantCode {
				t.Fatalf("code = %s, want %s", got.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleRecommendationsBadCountParam(t *testing.T) {
	srv := buildTestServer(t, &stubScrapes{}, &stubRecommend{})
	rec := doRequest(srv, http.MethodGet, "/recommendations/alice?count=lots")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRetrain(t *testing.T) {
	srv := buildTestServer(t, &stubScrapes{}, &stubRecommend{})
	rec := doRequest(srv, http.MethodPost, "/recommendations/retrain")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	srv = buildTestServer(t, &stubScrapes{}, &stubRecommend{retrainErr: &recommend.TrainingError{Err: errors.New("diverged")}})
	rec = doRequest(srv, http.MethodPost, "/recommendations/retrain")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if got := decodeError(t, rec); got.Code != "TRAINING_ERROR" {
		t.Fatalf("code = %s, want TRAINING_ERROR", got.Code)
	}
}
