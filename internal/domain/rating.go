package domain

import "time"

// Rating records one user's star score for a movie. The (username, movieId)
// pair is unique; re-rating overwrites the score in place. Scores live in
// [1,10]; a 0 means "watched, not rated" and is never persisted.
type Rating struct {
	Username  string
	MovieID   string
	Score     float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RawRatingEntry is the transient (movieId, score) pair produced by parsing
// one ratings page. It is the unit the ingestion flow diffs against the store.
type RawRatingEntry struct {
	MovieID string
	Score   float64
}

// RatingTriple is the training-set row fed to the model trainer.
type RatingTriple struct {
	Username string
	MovieID  string
	Score    float64
}

// ScoredCandidate pairs an unseen movie with its predicted score.
type ScoredCandidate struct {
	Movie Movie
	Score float64
}
