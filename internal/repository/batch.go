package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movierec/internal/domain"
)

// Movie upserts guard against concurrent scrapes staging the same skeleton:
// placeholder fields never overwrite enriched ones, so whichever scrape got
// the metadata wins.
const upsertMovieSQL = `
    INSERT INTO movies (movie_id, title, year, runtime, poster_url)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (movie_id) DO UPDATE SET
        title = CASE WHEN EXCLUDED.title <> movies.movie_id THEN EXCLUDED.title ELSE movies.title END,
        year = CASE WHEN EXCLUDED.year <> 0 THEN EXCLUDED.year ELSE movies.year END,
        runtime = CASE WHEN EXCLUDED.runtime <> 0 THEN EXCLUDED.runtime ELSE movies.runtime END,
        poster_url = CASE WHEN EXCLUDED.poster_url <> '' THEN EXCLUDED.poster_url ELSE movies.poster_url END,
        updated_at = now()
`

const upsertRatingSQL = `
    INSERT INTO ratings (username, movie_id, score)
    VALUES ($1, $2, $3)
    ON CONFLICT (username, movie_id)
    DO UPDATE SET score = EXCLUDED.score, updated_at = now()
`

// CommitScrape applies one scrape's staged movie and rating upserts in a
// single transaction, movies first so rating foreign keys resolve. Readers
// never observe a partially applied scrape.
func (r *Repository) CommitScrape(ctx context.Context, movies []domain.Movie, ratings []domain.Rating) error {
	if len(movies) == 0 && len(ratings) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin scrape commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, movie := range movies {
		batch.Queue(upsertMovieSQL, movie.MovieID, movie.Title, movie.Year, movie.Runtime, movie.PosterURL)
	}
	for _, rating := range ratings {
		batch.Queue(upsertRatingSQL, rating.Username, rating.MovieID, rating.Score)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("scrape batch statement %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close scrape batch: %w", err)
	}

	return tx.Commit(ctx)
}
