package main

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/laop/config"
	"github.com/pthm-cable/laop/maps"
	"github.com/pthm-cable/laop/neural"
	"github.com/pthm-cable/laop/simulation"
)

// FitnessEvaluator trains a genetic session per seed and scores the result.
type FitnessEvaluator struct {
	params     *ParamVector
	seeds      []int64
	configPath string
	m          *maps.Map

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	bestWeights *neural.BrainWeights
	lastReward  float64 // mean reward from the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator. Each run reloads configPath so
// runs never share mutable config.
func NewFitnessEvaluator(params *ParamVector, seeds []int64, configPath string, m *maps.Map) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		seeds:       seeds,
		configPath:  configPath,
		m:           m,
		bestFitness: math.Inf(1),
	}
}

// BestWeights returns the champion network from the best evaluation.
func (fe *FitnessEvaluator) BestWeights() *neural.BrainWeights {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestWeights
}

// LastReward returns the mean test reward of the most recent evaluation.
func (fe *FitnessEvaluator) LastReward() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastReward
}

// runResult holds the results from a single training run.
type runResult struct {
	reward  float64
	weights *neural.BrainWeights
	err     error
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated mean test reward over all seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runTraining(x, s)
		}(i, seed)
	}
	wg.Wait()

	rewards := make([]float64, 0, len(results))
	best := runResult{reward: math.Inf(-1)}
	for _, r := range results {
		if r.err != nil {
			// A failed run scores as no progress at all.
			rewards = append(rewards, 0)
			continue
		}
		rewards = append(rewards, r.reward)
		if r.reward > best.reward {
			best = r
		}
	}
	mean := stat.Mean(rewards, nil)
	fitness := -mean

	fe.mu.Lock()
	if fitness < fe.bestFitness {
		fe.bestFitness = fitness
		fe.bestWeights = best.weights
	}
	fe.lastReward = mean
	fe.mu.Unlock()

	return fitness
}

// runTraining trains one genetic session with the given parameters and seed
// and returns the mean test reward of its champion.
func (fe *FitnessEvaluator) runTraining(x []float64, seed int64) runResult {
	cfg, err := config.Load(fe.configPath)
	if err != nil {
		return runResult{err: err}
	}
	fe.params.ApplyToConfig(cfg, x)
	cfg.Training.Seed = seed
	cfg.Training.AutoRun = true
	cfg.Physics.RealTime = false
	cfg.Training.Sessions = []config.SessionConfig{{Name: "optimize", Algorithm: neural.AlgorithmGenetic}}
	cfg.Refresh()

	engine, err := simulation.NewEngine(cfg, neural.Algorithms(cfg), fe.m, nil)
	if err != nil {
		return runResult{err: err}
	}
	res, err := engine.Run(context.Background())
	if err != nil {
		return runResult{err: err}
	}
	if len(res.Sessions) == 0 || res.Sessions[0].Err != nil {
		return runResult{err: fmt.Errorf("training failed: %v", res.Sessions)}
	}

	sr := res.Sessions[0]
	out := runResult{reward: sr.BestFitness}
	if len(res.Tests) > 0 {
		rewards := make([]float64, len(res.Tests))
		for i, t := range res.Tests {
			rewards[i] = t.Reward
		}
		out.reward = stat.Mean(rewards, nil)
	}
	if w, ok := neural.WeightsOf(sr.Best); ok {
		out.weights = &w
	}
	return out
}
