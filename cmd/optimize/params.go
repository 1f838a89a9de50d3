package main

import (
	"math"

	"github.com/pthm-cable/laop/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
	Integer bool    // Rounded before it is applied
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of genetic learning parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "elite_fraction", Path: "genetic.elite_fraction", Min: 0.02, Max: 0.4, Default: 0.1},
			{Name: "tournament_size", Path: "genetic.tournament_size", Min: 2, Max: 8, Default: 3, Integer: true},
			{Name: "crossover_rate", Path: "genetic.crossover_rate", Min: 0, Max: 1, Default: 0.5},
			{Name: "mutation_rate", Path: "genetic.mutation_rate", Min: 0.005, Max: 0.3, Default: 0.05},
			{Name: "mutation_sigma", Path: "genetic.mutation_sigma", Min: 0.01, Max: 0.5, Default: 0.08},
			{Name: "big_rate", Path: "genetic.big_rate", Min: 0, Max: 0.05, Default: 0.01},
			{Name: "big_sigma", Path: "genetic.big_sigma", Min: 0.1, Max: 1.5, Default: 0.4},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp bounds every value and rounds integer parameters.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := math.Min(math.Max(v[i], spec.Min), spec.Max)
		if spec.Integer {
			val = math.Round(val)
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig writes parameter values into cfg. Order matches Specs.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	g := &cfg.Genetic
	g.EliteFraction = c[0]
	g.TournamentSize = int(c[1])
	g.CrossoverRate = c[2]
	g.MutationRate = c[3]
	g.MutationSigma = c[4]
	g.BigRate = c[5]
	g.BigSigma = c[6]
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	g := cfg.Genetic
	return []float64{
		g.EliteFraction,
		float64(g.TournamentSize),
		g.CrossoverRate,
		g.MutationRate,
		g.MutationSigma,
		g.BigRate,
		g.BigSigma,
	}
}
