package recommend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/Clark-Hu/movierec/internal/domain"
)

// ErrModelNotTrained is returned when recommendations are requested before
// any rating exists anywhere in the store.
var ErrModelNotTrained = errors.New("recommend: model not trained")

// ErrInvalidCount rejects a non-positive recommendation count.
var ErrInvalidCount = errors.New("recommend: count must be positive")

// TrainingError wraps a failure from the Trainer collaborator. The previous
// model, if any, stays in effect.
type TrainingError struct {
	Err error
}

func (e *TrainingError) Error() string { return fmt.Sprintf("recommend: training failed: %v", e.Err) }

func (e *TrainingError) Unwrap() error { return e.Err }

// Model scores a (user, movie) pair. Implementations must be safe for
// concurrent use.
type Model interface {
	Predict(username, movieID string) float64
}

// Trainer builds a Model from the full rating triple set. Any collaborative
// filtering engine can sit behind this contract.
type Trainer interface {
	Train(ctx context.Context, triples []domain.RatingTriple) (Model, error)
}

// RatingSource is the rating-side store access the engine needs.
type RatingSource interface {
	AllTriples(ctx context.Context) ([]domain.RatingTriple, error)
	CountByUser(ctx context.Context, username string) (int, error)
	RatedMovieIDs(ctx context.Context, username string) (map[string]struct{}, error)
	PopularityCounts(ctx context.Context) (map[string]int, error)
}

// MovieSource lists the full catalog for candidate generation.
type MovieSource interface {
	ListAll(ctx context.Context) ([]domain.Movie, error)
}

// RatingsScraper refreshes a user's ratings before serving them.
type RatingsScraper interface {
	ScrapeRatingsForUser(ctx context.Context, username string) error
}

// popularityWeight scales the logarithmic boost favoring well-known titles
// among near-tied predictions.
const popularityWeight = 0.05

// Engine serves ranked recommendations, retraining the model only when the
// underlying rating set changed or no model exists yet.
type Engine struct {
	ratings RatingSource
	movies  MovieSource
	scraper RatingsScraper
	trainer Trainer
	logger  *log.Logger

	retrainMu sync.Mutex
	modelMu   sync.RWMutex
	model     Model
}

// NewEngine constructs an Engine with no model loaded; the first successful
// retrain installs one.
func NewEngine(ratings RatingSource, movies MovieSource, scraper RatingsScraper, trainer Trainer, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		ratings: ratings,
		movies:  movies,
		scraper: scraper,
		trainer: trainer,
		logger:  logger,
	}
}

// Retrain rebuilds the model from every rating in the store. Retraining is
// serialized process-wide: a second concurrent caller waits rather than
// running a duplicate pass. With zero ratings it is a no-op success and the
// model stays unloaded.
func (e *Engine) Retrain(ctx context.Context) error {
	e.retrainMu.Lock()
	defer e.retrainMu.Unlock()

	triples, err := e.ratings.AllTriples(ctx)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	if len(triples) == 0 {
		e.logger.Printf("retrain skipped: store has no ratings")
		return nil
	}

	model, err := e.trainer.Train(ctx, triples)
	if err != nil {
		return &TrainingError{Err: err}
	}

	e.modelMu.Lock()
	e.model = model
	e.modelMu.Unlock()
	e.logger.Printf("model retrained on %d ratings", len(triples))
	return nil
}

func (e *Engine) currentModel() Model {
	e.modelMu.RLock()
	defer e.modelMu.RUnlock()
	return e.model
}

// TopRecommendations refreshes username's ratings, retrains when the rating
// count changed or no model exists, and returns the highest-scoring unseen
// movies. Scores combine the model prediction with a logarithmic popularity
// boost; NaN candidates are dropped. Tie order is unspecified.
func (e *Engine) TopRecommendations(ctx context.Context, username string, count int) ([]domain.ScoredCandidate, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}

	before, err := e.ratings.CountByUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("count ratings: %w", err)
	}
	if err := e.scraper.ScrapeRatingsForUser(ctx, username); err != nil {
		return nil, err
	}
	after, err := e.ratings.CountByUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("count ratings: %w", err)
	}

	if e.currentModel() == nil || after != before {
		if err := e.Retrain(ctx); err != nil {
			return nil, err
		}
	}
	model := e.currentModel()
	if model == nil {
		return nil, ErrModelNotTrained
	}

	popularity, err := e.ratings.PopularityCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("popularity counts: %w", err)
	}
	seen, err := e.ratings.RatedMovieIDs(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("rated movie ids: %w", err)
	}
	catalog, err := e.movies.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}

	scored := make([]domain.ScoredCandidate, 0, len(catalog))
	for _, movie := range catalog {
		if _, rated := seen[movie.MovieID]; rated {
			continue
		}
		score := model.Predict(username, movie.MovieID) +
			popularityWeight*math.Log(float64(popularity[movie.MovieID])+1)
		if math.IsNaN(score) {
			continue
		}
		scored = append(scored, domain.ScoredCandidate{Movie: movie, Score: score})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > count {
		scored = scored[:count]
	}
	e.logger.Printf("returning top %d recommendations for %s", len(scored), username)
	return scored, nil
}
