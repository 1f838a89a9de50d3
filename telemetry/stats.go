package telemetry

import (
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GenerationStats holds aggregated statistics for one evaluated generation.
type GenerationStats struct {
	Session    string `csv:"session"`
	Epoch      int    `csv:"epoch"`
	Generation int    `csv:"generation"`

	Population int `csv:"population"`
	Survivors  int `csv:"survivors"` // cars still alive when the run ended
	Iterations int `csv:"iterations"`

	// Fitness distribution
	FitnessMean float64 `csv:"fitness_mean"`
	FitnessStd  float64 `csv:"fitness_std"`
	FitnessMin  float64 `csv:"fitness_min"`
	FitnessMax  float64 `csv:"fitness_max"`
	FitnessP50  float64 `csv:"fitness_p50"`
	FitnessP90  float64 `csv:"fitness_p90"`

	// Mean iterations a car stayed alive
	StepsMean float64 `csv:"steps_mean"`

	WallTimeSec float64 `csv:"wall_time"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeFitnessStats fills the fitness and steps fields of s from the
// per-car values. Empty input leaves them zero.
func (s *GenerationStats) ComputeFitnessStats(fitness []float64, steps []float64) {
	if len(fitness) > 0 {
		s.FitnessMean, s.FitnessStd = stat.PopMeanStdDev(fitness, nil)
		s.FitnessMin = floats.Min(fitness)
		s.FitnessMax = floats.Max(fitness)

		sorted := append([]float64(nil), fitness...)
		sort.Float64s(sorted)
		s.FitnessP50 = Percentile(sorted, 0.50)
		s.FitnessP90 = Percentile(sorted, 0.90)
	}
	if len(steps) > 0 {
		s.StepsMean = stat.Mean(steps, nil)
	}
}

// SetWallTime records how long the generation took.
func (s *GenerationStats) SetWallTime(d time.Duration) {
	s.WallTimeSec = d.Seconds()
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("session", s.Session),
		slog.Int("epoch", s.Epoch),
		slog.Int("generation", s.Generation),
		slog.Int("population", s.Population),
		slog.Int("survivors", s.Survivors),
		slog.Int("iterations", s.Iterations),
		slog.Float64("fitness_mean", s.FitnessMean),
		slog.Float64("fitness_std", s.FitnessStd),
		slog.Float64("fitness_min", s.FitnessMin),
		slog.Float64("fitness_max", s.FitnessMax),
		slog.Float64("fitness_p50", s.FitnessP50),
		slog.Float64("fitness_p90", s.FitnessP90),
		slog.Float64("steps_mean", s.StepsMean),
		slog.Float64("wall_time", s.WallTimeSec),
	)
}

// LogStats logs the generation stats using slog.
func (s GenerationStats) LogStats() {
	slog.Info("generation",
		"session", s.Session,
		"epoch", s.Epoch,
		"generation", s.Generation,
		"population", s.Population,
		"survivors", s.Survivors,
		"iterations", s.Iterations,
		"fitness_mean", s.FitnessMean,
		"fitness_max", s.FitnessMax,
		"fitness_p90", s.FitnessP90,
		"wall_time", s.WallTimeSec,
	)
}

// TestResult is the reward one trained session earned in one test episode.
type TestResult struct {
	Episode    int     `csv:"episode"`
	Session    string  `csv:"session"`
	Reward     float64 `csv:"reward"`
	Iterations int     `csv:"iterations"`
	Dead       bool    `csv:"dead"`
}

// LogResult logs the test result using slog.
func (r TestResult) LogResult() {
	slog.Info("test_episode",
		"episode", r.Episode,
		"session", r.Session,
		"reward", r.Reward,
		"iterations", r.Iterations,
		"dead", r.Dead,
	)
}
