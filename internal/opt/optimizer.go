package opt

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownStrategy is returned by New for an unrecognised strategy name.
var ErrUnknownStrategy = errors.New("unknown optimizer strategy")

// Objective evaluates a point of the unit cube at the given fidelity and
// returns its fitness (lower is better).
type Objective func(ctx context.Context, x []float64, fidelity float64) float64

// Incumbent is the best point found so far.
type Incumbent struct {
	Position []float64
	Fitness  float64
	Fidelity float64
}

// Optimizer defines a black-box search over [0,1]^dim.
type Optimizer interface {
	// Name identifies the strategy in logs and stored records.
	Name() string

	// Run calls obj exactly budget times, one call at a time, unless ctx
	// is cancelled first, and returns the best point seen.
	Run(ctx context.Context, obj Objective, dim, budget int) (Incumbent, error)
}

// Settings configures the optimizer built by New.
type Settings struct {
	MinFidelity float64
	MaxFidelity float64
	Eta         int
	PopSize     int
	Seed        int64
}

// Strategies lists the names accepted by New.
func Strategies() []string {
	return []string{"hyperband", "mayfly"}
}

// New creates the optimizer for a strategy name.
func New(strategy string, s Settings) (Optimizer, error) {
	switch strategy {
	case "hyperband", "":
		return NewHyperband(HyperbandConfig{
			MinFidelity: s.MinFidelity,
			MaxFidelity: s.MaxFidelity,
			Eta:         s.Eta,
			Seed:        s.Seed,
		})
	case "mayfly":
		return NewMayfly(s.PopSize, s.MaxFidelity, s.Seed), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

func validateRun(obj Objective, dim, budget int) error {
	if obj == nil {
		return errors.New("objective is required")
	}
	if dim <= 0 {
		return fmt.Errorf("dimension must be > 0, got %d", dim)
	}
	if budget <= 0 {
		return fmt.Errorf("budget must be > 0, got %d", budget)
	}
	return nil
}

// track keeps the incumbent; ties keep the earlier point.
type track struct {
	best Incumbent
	seen bool
}

func (t *track) observe(x []float64, fitness, fidelity float64) {
	if t.seen && fitness >= t.best.Fitness {
		return
	}
	t.best = Incumbent{
		Position: append([]float64(nil), x...),
		Fitness:  fitness,
		Fidelity: fidelity,
	}
	t.seen = true
}
