package telemetry

import (
	"math"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeFitnessStats(t *testing.T) {
	var s GenerationStats
	// Unsorted on purpose.
	s.ComputeFitnessStats([]float64{10, 2, 8, 4, 6}, []float64{5, 15})

	if math.Abs(s.FitnessMean-6) > 1e-9 {
		t.Errorf("mean = %v, want 6", s.FitnessMean)
	}
	if math.Abs(s.FitnessStd-math.Sqrt(8)) > 1e-9 {
		t.Errorf("std = %v, want sqrt(8)", s.FitnessStd)
	}
	if s.FitnessMin != 2 || s.FitnessMax != 10 {
		t.Errorf("min/max = %v/%v", s.FitnessMin, s.FitnessMax)
	}
	if s.FitnessP50 != 6 {
		t.Errorf("p50 = %v, want 6", s.FitnessP50)
	}
	if math.Abs(s.FitnessP90-9.2) > 1e-9 {
		t.Errorf("p90 = %v, want 9.2", s.FitnessP90)
	}
	if s.StepsMean != 10 {
		t.Errorf("steps mean = %v, want 10", s.StepsMean)
	}

	s.SetWallTime(1500 * time.Millisecond)
	if s.WallTimeSec != 1.5 {
		t.Errorf("wall time = %v", s.WallTimeSec)
	}
}

func TestComputeFitnessStatsEmpty(t *testing.T) {
	var s GenerationStats
	s.ComputeFitnessStats(nil, nil)
	if s != (GenerationStats{}) {
		t.Errorf("empty input should leave zeros, got %+v", s)
	}
}
