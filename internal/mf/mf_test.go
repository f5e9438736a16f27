package mf

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"testing"

	"github.com/Clark-Hu/movierec/internal/domain"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// syntheticTriples builds a dense user x movie grid where each user has a
// fixed offset and each movie a fixed appeal, clamped to [1,10]. The
// structure is simple enough that a low-rank model recovers it well.
func syntheticTriples(users, movies int) []domain.RatingTriple {
	triples := make([]domain.RatingTriple, 0, users*movies)
	for u := 0; u < users; u++ {
		for m := 0; m < movies; m++ {
			score := 3 + float64(u%5) + float64(m%4)
			if score > 10 {
				score = 10
			}
			triples = append(triples, domain.RatingTriple{
				Username: fmt.Sprintf("user%d", u),
				MovieID:  fmt.Sprintf("movie%d", m),
				Score:    score,
			})
		}
	}
	return triples
}

func TestTrainEmptySet(t *testing.T) {
	trainer := NewTrainer(Options{Seed: 1}, testLogger())
	if _, err := trainer.Train(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty training set")
	}
}

func TestTrainRecoversStructure(t *testing.T) {
	triples := syntheticTriples(12, 10)
	trainer := NewTrainer(Options{Rank: 8, Iterations: 80, Seed: 42}, testLogger())

	model, err := trainer.Train(context.Background(), triples)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	var sqSum float64
	for _, triple := range triples {
		pred := model.Predict(triple.Username, triple.MovieID)
		if math.IsNaN(pred) || math.IsInf(pred, 0) {
			t.Fatalf("non-finite prediction for (%s, %s): %v", triple.Username, triple.MovieID, pred)
		}
		residual := triple.Score - pred
		sqSum += residual * residual
	}
	rmse := math.Sqrt(sqSum / float64(len(triples)))
	if rmse > 1.5 {
		t.Fatalf("training RMSE = %v, want <= 1.5 on synthetic data", rmse)
	}
}

func TestPredictUnknownPairsDegrade(t *testing.T) {
	triples := syntheticTriples(8, 8)
	trainer := NewTrainer(Options{Rank: 4, Iterations: 40, Seed: 7}, testLogger())
	model, err := trainer.Train(context.Background(), triples)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	pred := model.Predict("stranger", "never-seen-film")
	if math.IsNaN(pred) || math.IsInf(pred, 0) {
		t.Fatalf("unknown pair prediction not finite: %v", pred)
	}

	// An unknown user on a known movie still reflects that movie's bias, so
	// two movies with different appeal rank differently for a stranger.
	low := model.Predict("stranger", "movie0")
	high := model.Predict("stranger", "movie3")
	if high <= low {
		t.Fatalf("movie bias lost for unknown user: movie3=%v <= movie0=%v", high, low)
	}
}

func TestTrainDeterministicWithSeed(t *testing.T) {
	triples := syntheticTriples(6, 6)
	opts := Options{Rank: 4, Iterations: 20, Seed: 99}

	first, err := NewTrainer(opts, testLogger()).Train(context.Background(), triples)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	second, err := NewTrainer(opts, testLogger()).Train(context.Background(), triples)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	for _, triple := range triples {
		a := first.Predict(triple.Username, triple.MovieID)
		b := second.Predict(triple.Username, triple.MovieID)
		if a != b {
			t.Fatalf("same seed diverged for (%s, %s): %v vs %v", triple.Username, triple.MovieID, a, b)
		}
	}
}

func TestTrainHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trainer := NewTrainer(Options{Seed: 1}, testLogger())
	if _, err := trainer.Train(ctx, syntheticTriples(4, 4)); err != context.Canceled {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestPrepareFiltersSparseMovies(t *testing.T) {
	trainer := NewTrainer(Options{MinMovieRatings: 2, Seed: 1}, testLogger())
	triples := []domain.RatingTriple{
		{Username: "a", MovieID: "popular", Score: 7},
		{Username: "b", MovieID: "popular", Score: 6},
		{Username: "a", MovieID: "obscure", Score: 5},
	}

	prepared := trainer.prepare(triples)
	for _, triple := range prepared {
		if triple.MovieID == "obscure" {
			t.Fatal("sparse movie survived the minimum-ratings filter")
		}
	}
}

func TestPrepareKeepsAllWhenFilterWouldEmpty(t *testing.T) {
	trainer := NewTrainer(Options{MinMovieRatings: 5, Seed: 1}, testLogger())
	triples := []domain.RatingTriple{
		{Username: "a", MovieID: "only", Score: 7},
	}

	prepared := trainer.prepare(triples)
	if len(prepared) == 0 {
		t.Fatal("filter emptied a freshly seeded training set")
	}
}

func TestPrepareWeightsExtremes(t *testing.T) {
	trainer := NewTrainer(Options{MinMovieRatings: 1, WeightExtremes: true, Seed: 1}, testLogger())
	triples := []domain.RatingTriple{
		{Username: "a", MovieID: "loved", Score: 10},
		{Username: "a", MovieID: "hated", Score: 1},
		{Username: "a", MovieID: "fine", Score: 6},
	}

	prepared := trainer.prepare(triples)
	counts := make(map[string]int)
	for _, triple := range prepared {
		counts[triple.MovieID]++
	}
	if counts["loved"] != 2 || counts["hated"] != 2 || counts["fine"] != 1 {
		t.Fatalf("extreme weighting wrong: %v", counts)
	}
}

func TestEvaluateHoldout(t *testing.T) {
	triples := syntheticTriples(12, 10)
	trainer := NewTrainer(Options{Rank: 8, Iterations: 60, MinMovieRatings: 1, Seed: 42}, testLogger())

	metrics, err := trainer.EvaluateHoldout(context.Background(), triples, 0.2)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if math.IsNaN(metrics.RMSE) || math.IsNaN(metrics.MAE) {
		t.Fatalf("non-finite metrics: %+v", metrics)
	}
	if metrics.RMSE <= 0 || metrics.MAE <= 0 {
		t.Fatalf("implausible metrics: %+v", metrics)
	}
	if metrics.MAE > metrics.RMSE+1e-9 {
		t.Fatalf("MAE %v exceeds RMSE %v", metrics.MAE, metrics.RMSE)
	}
}

func TestEvaluateHoldoutValidatesFraction(t *testing.T) {
	trainer := NewTrainer(Options{Seed: 1}, testLogger())
	for _, fraction := range []float64{0, 1, -0.5, 1.5} {
		if _, err := trainer.EvaluateHoldout(context.Background(), syntheticTriples(4, 4), fraction); err == nil {
			t.Fatalf("fraction %v accepted", fraction)
		}
	}
}
