// Package mf provides the default Trainer: a biased matrix factorization
// fitted with stochastic gradient descent over the rating triples.
package mf

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/Clark-Hu/movierec/internal/domain"
	"github.com/Clark-Hu/movierec/internal/recommend"
)

// Options controls the factorization.
type Options struct {
	Rank            int
	Iterations      int
	LearningRate    float64
	Lambda          float64
	MinMovieRatings int
	WeightExtremes  bool
	Seed            int64
}

// DefaultOptions mirrors the tuning the serving path uses: sparse movies are
// filtered out and extreme scores count double.
func DefaultOptions() Options {
	return Options{
		Rank:            20,
		Iterations:      30,
		LearningRate:    0.01,
		Lambda:          0.1,
		MinMovieRatings: 5,
		WeightExtremes:  true,
	}
}

// Trainer implements recommend.Trainer.
type Trainer struct {
	opts   Options
	logger *log.Logger
}

// NewTrainer constructs a Trainer; zero-valued options fall back to defaults.
func NewTrainer(opts Options, logger *log.Logger) *Trainer {
	def := DefaultOptions()
	if opts.Rank <= 0 {
		opts.Rank = def.Rank
	}
	if opts.Iterations <= 0 {
		opts.Iterations = def.Iterations
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = def.LearningRate
	}
	if opts.Lambda < 0 {
		opts.Lambda = def.Lambda
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Trainer{opts: opts, logger: logger}
}

// Model holds the fitted factors. Predict is read-only and safe for
// concurrent use.
type Model struct {
	mean         float64
	userIndex    map[string]int
	movieIndex   map[string]int
	userBias     []float64
	movieBias    []float64
	userFactors  [][]float64
	movieFactors [][]float64
}

// Predict scores a (user, movie) pair. Unknown users or movies degrade to
// the global mean plus whichever bias is known; the result is always finite.
func (m *Model) Predict(username, movieID string) float64 {
	score := m.mean
	u, hasUser := m.userIndex[username]
	i, hasMovie := m.movieIndex[movieID]
	if hasUser {
		score += m.userBias[u]
	}
	if hasMovie {
		score += m.movieBias[i]
	}
	if hasUser && hasMovie {
		uf, vf := m.userFactors[u], m.movieFactors[i]
		for k := range uf {
			score += uf[k] * vf[k]
		}
	}
	return score
}

// Train fits a model on triples. Movies with fewer than MinMovieRatings
// ratings are excluded (unless that would empty the training set, as with a
// freshly seeded catalog); extreme scores are duplicated once for double
// weight when WeightExtremes is set.
func (t *Trainer) Train(ctx context.Context, triples []domain.RatingTriple) (recommend.Model, error) {
	if len(triples) == 0 {
		return nil, errors.New("mf: empty training set")
	}

	training := t.prepare(triples)

	userIndex := make(map[string]int)
	movieIndex := make(map[string]int)
	for _, triple := range training {
		if _, ok := userIndex[triple.Username]; !ok {
			userIndex[triple.Username] = len(userIndex)
		}
		if _, ok := movieIndex[triple.MovieID]; !ok {
			movieIndex[triple.MovieID] = len(movieIndex)
		}
	}

	seed := t.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	model := &Model{
		userIndex:    userIndex,
		movieIndex:   movieIndex,
		userBias:     make([]float64, len(userIndex)),
		movieBias:    make([]float64, len(movieIndex)),
		userFactors:  initFactors(rng, len(userIndex), t.opts.Rank),
		movieFactors: initFactors(rng, len(movieIndex), t.opts.Rank),
	}
	var sum float64
	for _, triple := range training {
		sum += triple.Score
	}
	model.mean = sum / float64(len(training))

	lr, lambda := t.opts.LearningRate, t.opts.Lambda
	for iter := 0; iter < t.opts.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, idx := range rng.Perm(len(training)) {
			triple := training[idx]
			u := userIndex[triple.Username]
			i := movieIndex[triple.MovieID]
			uf, vf := model.userFactors[u], model.movieFactors[i]

			pred := model.mean + model.userBias[u] + model.movieBias[i]
			for k := range uf {
				pred += uf[k] * vf[k]
			}
			residual := triple.Score - pred

			model.userBias[u] += lr * (residual - lambda*model.userBias[u])
			model.movieBias[i] += lr * (residual - lambda*model.movieBias[i])
			for k := range uf {
				ufk := uf[k]
				uf[k] += lr * (residual*vf[k] - lambda*ufk)
				vf[k] += lr * (residual*ufk - lambda*vf[k])
			}
		}
	}

	t.logger.Printf("mf: trained rank-%d model on %d triples (%d users, %d movies)",
		t.opts.Rank, len(training), len(userIndex), len(movieIndex))
	return model, nil
}

// prepare applies the minimum-ratings filter and extreme-score weighting.
func (t *Trainer) prepare(triples []domain.RatingTriple) []domain.RatingTriple {
	filtered := triples
	if t.opts.MinMovieRatings > 1 {
		counts := make(map[string]int)
		for _, triple := range triples {
			counts[triple.MovieID]++
		}
		kept := make([]domain.RatingTriple, 0, len(triples))
		for _, triple := range triples {
			if counts[triple.MovieID] >= t.opts.MinMovieRatings {
				kept = append(kept, triple)
			}
		}
		if len(kept) > 0 {
			filtered = kept
		}
	}

	if !t.opts.WeightExtremes {
		return filtered
	}
	weighted := make([]domain.RatingTriple, 0, len(filtered)*2)
	for _, triple := range filtered {
		weighted = append(weighted, triple)
		if triple.Score <= 2 || triple.Score >= 9 {
			weighted = append(weighted, triple)
		}
	}
	return weighted
}

// Metrics reports hold-out accuracy.
type Metrics struct {
	RMSE float64
	MAE  float64
}

// EvaluateHoldout trains on a random split of triples and measures
// prediction error on the held-out fraction.
func (t *Trainer) EvaluateHoldout(ctx context.Context, triples []domain.RatingTriple, testFraction float64) (Metrics, error) {
	if testFraction <= 0 || testFraction >= 1 {
		return Metrics{}, fmt.Errorf("mf: test fraction %v outside (0,1)", testFraction)
	}

	seed := t.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	shuffled := make([]domain.RatingTriple, len(triples))
	copy(shuffled, triples)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	cut := int(float64(len(shuffled)) * (1 - testFraction))
	train, test := shuffled[:cut], shuffled[cut:]
	if len(train) == 0 || len(test) == 0 {
		return Metrics{}, errors.New("mf: not enough ratings to split")
	}

	model, err := t.Train(ctx, train)
	if err != nil {
		return Metrics{}, err
	}

	var sqSum, absSum float64
	for _, triple := range test {
		residual := triple.Score - model.Predict(triple.Username, triple.MovieID)
		sqSum += residual * residual
		absSum += math.Abs(residual)
	}
	n := float64(len(test))
	return Metrics{RMSE: math.Sqrt(sqSum / n), MAE: absSum / n}, nil
}

func initFactors(rng *rand.Rand, n, rank int) [][]float64 {
	factors := make([][]float64, n)
	for i := range factors {
		row := make([]float64, rank)
		for k := range row {
			row[k] = rng.NormFloat64() * 0.1
		}
		factors[i] = row
	}
	return factors
}
