package scraper

import (
	"context"
	"fmt"
	"log"

	"github.com/Clark-Hu/movierec/internal/domain"
	"github.com/Clark-Hu/movierec/internal/letterboxd"
)

// Enricher fills in movie metadata and poster URLs from the site's JSON and
// poster-widget endpoints. Each branch runs only when its fields are still
// missing, and each fetch takes its own concurrency slot.
type Enricher struct {
	fetcher letterboxd.Client
	baseURL string
	logger  *log.Logger
}

// NewEnricher constructs an Enricher sharing the given fetch client.
func NewEnricher(fetcher letterboxd.Client, baseURL string, logger *log.Logger) *Enricher {
	if logger == nil {
		logger = log.Default()
	}
	return &Enricher{fetcher: fetcher, baseURL: baseURL, logger: logger}
}

// Enrich conditionally fetches metadata and poster for movie, mutating it in
// place, and reports whether any field changed. Fetch and parse failures are
// logged, not raised: enrichment degrades to leaving fields at their prior
// value. A failed metadata branch does not stop the poster branch.
func (e *Enricher) Enrich(ctx context.Context, movie *domain.Movie) bool {
	changed := false

	if movie.NeedsMetadata() {
		url := fmt.Sprintf("%s/film/%s/json/", e.baseURL, movie.MovieID)
		body, err := e.fetcher.Fetch(ctx, url)
		if err != nil {
			e.logger.Printf("enrich %s: metadata fetch: %v", movie.MovieID, err)
		} else if md, err := letterboxd.ParseMetadataJSON(body); err != nil {
			e.logger.Printf("enrich %s: metadata parse: %v", movie.MovieID, err)
		} else {
			if md.Name != nil && *md.Name != "" && *md.Name != movie.Title {
				movie.Title = *md.Name
				changed = true
			}
			if md.ReleaseYear != nil && *md.ReleaseYear != movie.Year {
				movie.Year = *md.ReleaseYear
				changed = true
			}
			if md.RunTime != nil && *md.RunTime != movie.Runtime {
				movie.Runtime = *md.RunTime
				changed = true
			}
		}
	}

	if movie.NeedsPoster() {
		url := fmt.Sprintf("%s/ajax/poster/film/%s/std/125x187/", e.baseURL, movie.MovieID)
		body, err := e.fetcher.Fetch(ctx, url)
		if err != nil {
			e.logger.Printf("enrich %s: poster fetch: %v", movie.MovieID, err)
		} else if poster, err := letterboxd.ParsePosterHTML(body); err != nil {
			e.logger.Printf("enrich %s: poster parse: %v", movie.MovieID, err)
		} else if poster != "" {
			movie.PosterURL = poster
			changed = true
		}
	}

	return changed
}
