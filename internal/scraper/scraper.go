package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sync"

	"github.com/Clark-Hu/movierec/internal/domain"
	"github.com/Clark-Hu/movierec/internal/letterboxd"
)

// ErrInvalidUsername rejects usernames that cannot appear in a profile URL.
var ErrInvalidUsername = errors.New("scraper: invalid username")

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// MovieStore is the catalog access the ingestion flow needs: a single
// batched preload by id set.
type MovieStore interface {
	GetByIDs(ctx context.Context, movieIDs []string) (map[string]domain.Movie, error)
}

// RatingStore preloads a user's existing ratings for a set of movies.
type RatingStore interface {
	GetByUser(ctx context.Context, username string, movieIDs []string) (map[string]domain.Rating, error)
}

// BatchWriter commits one scrape's staged inserts and updates atomically.
type BatchWriter interface {
	CommitScrape(ctx context.Context, movies []domain.Movie, ratings []domain.Rating) error
}

// Scraper ingests a user's rating history from their profile pages and keeps
// the local catalog current. One Scraper is shared by all callers; the fetch
// client bounds outbound concurrency process-wide.
type Scraper struct {
	fetcher  letterboxd.Client
	baseURL  string
	movies   MovieStore
	ratings  RatingStore
	batch    BatchWriter
	enricher *Enricher
	logger   *log.Logger
}

// New constructs a Scraper. baseURL is the site origin without a trailing
// slash, e.g. "https://letterboxd.com".
func New(fetcher letterboxd.Client, baseURL string, movies MovieStore, ratings RatingStore, batch BatchWriter, enricher *Enricher, logger *log.Logger) *Scraper {
	if logger == nil {
		logger = log.Default()
	}
	return &Scraper{
		fetcher:  fetcher,
		baseURL:  baseURL,
		movies:   movies,
		ratings:  ratings,
		batch:    batch,
		enricher: enricher,
		logger:   logger,
	}
}

type stagedMovie struct {
	movie   *domain.Movie
	isNew   bool
	changed bool
}

// ScrapeRatingsForUser fetches every ratings page for username, diffs the
// parsed entries against the store, enriches unseen or incomplete movies
// concurrently, and commits all inserts and updates in one transaction.
//
// Page 1 determines the page count, so discovery is sequential; a fetch
// failure on any page aborts the scrape rather than committing a partial
// rating set, which would destabilize staleness detection downstream.
func (s *Scraper) ScrapeRatingsForUser(ctx context.Context, username string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}

	listURL := fmt.Sprintf("%s/%s/films/by/date/", s.baseURL, username)
	first, err := s.fetcher.Fetch(ctx, listURL)
	if err != nil {
		return fmt.Errorf("ratings page 1 for %s: %w", username, err)
	}
	pageCount := letterboxd.ParsePageCount(first)

	pages := make([]string, 0, pageCount)
	pages = append(pages, first)
	for p := 2; p <= pageCount; p++ {
		html, err := s.fetcher.Fetch(ctx, fmt.Sprintf("%spage/%d/", listURL, p))
		if err != nil {
			return fmt.Errorf("ratings page %d for %s: %w", p, username, err)
		}
		pages = append(pages, html)
	}

	// Last occurrence wins when a movie repeats across pages.
	scores := make(map[string]float64)
	var order []string
	for _, html := range pages {
		for _, entry := range letterboxd.ParseRatingItems(html) {
			if entry.Score <= 0 {
				continue
			}
			if _, seen := scores[entry.MovieID]; !seen {
				order = append(order, entry.MovieID)
			}
			scores[entry.MovieID] = entry.Score
		}
	}
	if len(order) == 0 {
		s.logger.Printf("scrape %s: no rated films found", username)
		return nil
	}

	existingMovies, err := s.movies.GetByIDs(ctx, order)
	if err != nil {
		return fmt.Errorf("preload movies for %s: %w", username, err)
	}
	existingRatings, err := s.ratings.GetByUser(ctx, username, order)
	if err != nil {
		return fmt.Errorf("preload ratings for %s: %w", username, err)
	}

	staged := make([]*stagedMovie, 0, len(order))
	var wg sync.WaitGroup
	for _, movieID := range order {
		sm := &stagedMovie{}
		if existing, ok := existingMovies[movieID]; ok {
			movie := existing
			sm.movie = &movie
		} else {
			movie := domain.Skeleton(movieID)
			sm.movie = &movie
			sm.isNew = true
		}
		staged = append(staged, sm)

		if sm.movie.NeedsMetadata() || sm.movie.NeedsPoster() {
			wg.Add(1)
			go func(sm *stagedMovie) {
				defer wg.Done()
				sm.changed = s.enricher.Enrich(ctx, sm.movie)
			}(sm)
		}
	}

	ratingUpserts := make([]domain.Rating, 0, len(order))
	for _, movieID := range order {
		score := scores[movieID]
		if prior, ok := existingRatings[movieID]; ok && prior.Score == score {
			continue
		}
		ratingUpserts = append(ratingUpserts, domain.Rating{
			Username: username,
			MovieID:  movieID,
			Score:    score,
		})
	}

	wg.Wait()

	movieUpserts := make([]domain.Movie, 0, len(staged))
	for _, sm := range staged {
		if sm.isNew || sm.changed {
			movieUpserts = append(movieUpserts, *sm.movie)
		}
	}

	if len(movieUpserts) == 0 && len(ratingUpserts) == 0 {
		s.logger.Printf("scrape %s: catalog and ratings already current", username)
		return nil
	}

	if err := s.batch.CommitScrape(ctx, movieUpserts, ratingUpserts); err != nil {
		return fmt.Errorf("commit scrape for %s: %w", username, err)
	}
	s.logger.Printf("scrape %s: %d pages, %d ratings, %d movie upserts, %d rating upserts",
		username, pageCount, len(order), len(movieUpserts), len(ratingUpserts))
	return nil
}
