package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movierec/internal/domain"
)

// RatingsRepository provides helpers for user ratings.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

// GetByUser preloads a user's existing ratings for the given movies with a
// single query, keyed by movie id.
func (r *RatingsRepository) GetByUser(ctx context.Context, username string, movieIDs []string) (map[string]domain.Rating, error) {
	result := make(map[string]domain.Rating, len(movieIDs))
	if len(movieIDs) == 0 {
		return result, nil
	}

	const query = `
        SELECT username, movie_id, score, created_at, updated_at
        FROM ratings
        WHERE username = $1 AND movie_id = ANY($2)
    `
	rows, err := r.pool.Query(ctx, query, username, movieIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rating domain.Rating
		if err := rows.Scan(&rating.Username, &rating.MovieID, &rating.Score, &rating.CreatedAt, &rating.UpdatedAt); err != nil {
			return nil, err
		}
		result[rating.MovieID] = rating
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountByUser returns how many ratings the user currently has.
func (r *RatingsRepository) CountByUser(ctx context.Context, username string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ratings WHERE username = $1`, username).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ratings for %s: %w", username, err)
	}
	return count, nil
}

// RatedMovieIDs returns the set of movie ids the user has rated.
func (r *RatingsRepository) RatedMovieIDs(ctx context.Context, username string) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT movie_id FROM ratings WHERE username = $1`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var movieID string
		if err := rows.Scan(&movieID); err != nil {
			return nil, err
		}
		seen[movieID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seen, nil
}

// PopularityCounts returns the rating count per movie across all users.
func (r *RatingsRepository) PopularityCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT movie_id, COUNT(*) FROM ratings GROUP BY movie_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var movieID string
		var count int
		if err := rows.Scan(&movieID, &count); err != nil {
			return nil, err
		}
		counts[movieID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// AllTriples loads the full training set.
func (r *RatingsRepository) AllTriples(ctx context.Context) ([]domain.RatingTriple, error) {
	rows, err := r.pool.Query(ctx, `SELECT username, movie_id, score FROM ratings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triples []domain.RatingTriple
	for rows.Next() {
		var triple domain.RatingTriple
		if err := rows.Scan(&triple.Username, &triple.MovieID, &triple.Score); err != nil {
			return nil, err
		}
		triples = append(triples, triple)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return triples, nil
}
