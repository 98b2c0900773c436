package opt

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// minMayflyPop is the smallest population mayfly v0.1.0 accepts.
const minMayflyPop = 20

// exhaustedCost is fed back to mayfly once the trial budget is spent so the
// remainder of its iteration runs without touching the benchmark.
const exhaustedCost = math.MaxFloat64

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface.
// Mayfly has no notion of fidelity, so every trial is requested at fidelity.
type MayflyAdapter struct {
	popSize  int
	fidelity float64
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(popSize int, fidelity float64, seed int64) *MayflyAdapter {
	if popSize < minMayflyPop {
		popSize = minMayflyPop
	}
	return &MayflyAdapter{
		popSize:  popSize,
		fidelity: fidelity,
		seed:     seed,
	}
}

func (m *MayflyAdapter) Name() string { return "mayfly" }

// Run executes Mayfly rounds until the budget is spent. The library decides
// how many evaluations a round takes, so each round is capped by the budget
// left and a fresh round with a new seed is started while trials remain.
func (m *MayflyAdapter) Run(ctx context.Context, obj Objective, dim, budget int) (Incumbent, error) {
	if err := validateRun(obj, dim, budget); err != nil {
		return Incumbent{}, err
	}

	var t track
	evals := 0

	for round := int64(0); evals < budget; round++ {
		if err := ctx.Err(); err != nil {
			return t.best, err
		}

		before := evals
		config := mayfly.NewDefaultConfig()

		config.ObjectiveFunc = func(x []float64) float64 {
			if evals >= budget || ctx.Err() != nil {
				return exhaustedCost
			}
			evals++
			f := obj(ctx, x, m.fidelity)
			t.observe(x, f, m.fidelity)
			return f
		}
		config.ProblemSize = dim
		config.NPop = m.popSize
		config.MaxIterations = max(1, (budget-evals)/(3*m.popSize))

		// Unit cube; the space decodes it to ordinal values
		config.LowerBound = 0
		config.UpperBound = 1

		// Set random seed for reproducibility
		config.Rand = rand.New(rand.NewSource(m.seed + round))

		if _, err := mayfly.Optimize(config); err != nil {
			return t.best, fmt.Errorf("mayfly round %d failed: %w", round, err)
		}

		if evals == before {
			return t.best, fmt.Errorf("mayfly round %d made no evaluations", round)
		}
		slog.Debug("Mayfly round finished", "round", round, "evals", evals, "budget", budget, "best", t.best.Fitness)
	}

	if err := ctx.Err(); err != nil {
		return t.best, err
	}
	return t.best, nil
}
