package opt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// HyperbandConfig configures the multi-fidelity scheduler.
type HyperbandConfig struct {
	MinFidelity float64
	MaxFidelity float64
	Eta         int   // halving rate, >= 2
	Seed        int64 // seeds sampling and DE proposals

	// Differential evolution knobs for proposing new candidates once enough
	// points have been evaluated. Zero values select 0.5 / 0.5.
	MutationFactor float64
	CrossoverProb  float64
}

// Trial is one candidate handed out by Ask.
type Trial struct {
	ID       int
	Position []float64
	Fidelity float64
	Bracket  int
	Rung     int
}

type scored struct {
	x       []float64
	fitness float64
}

// Hyperband runs successive halving over hyperband brackets. The first
// bracket samples uniformly; later candidates come from DE rand/1/bin over
// the better half of everything evaluated so far.
//
// It follows an ask/tell protocol: every Ask must be answered by a Tell
// before the next Ask.
type Hyperband struct {
	cfg  HyperbandConfig
	rng  *rand.Rand
	sMax int

	dim     int
	bracket int
	rung    int
	size    int // candidates at rung 0 of the current bracket

	pending [][]float64
	next    int
	results []scored
	pool    []scored

	nextID      int
	outstanding *Trial
	t           track
}

// NewHyperband validates cfg and creates a scheduler.
func NewHyperband(cfg HyperbandConfig) (*Hyperband, error) {
	if cfg.MinFidelity <= 0 {
		return nil, fmt.Errorf("min fidelity must be > 0, got %g", cfg.MinFidelity)
	}
	if cfg.MaxFidelity < cfg.MinFidelity {
		return nil, fmt.Errorf("max fidelity %g is below min fidelity %g", cfg.MaxFidelity, cfg.MinFidelity)
	}
	if cfg.Eta == 0 {
		cfg.Eta = 3
	}
	if cfg.Eta < 2 {
		return nil, fmt.Errorf("eta must be >= 2, got %d", cfg.Eta)
	}
	if cfg.MutationFactor == 0 {
		cfg.MutationFactor = 0.5
	}
	if cfg.CrossoverProb == 0 {
		cfg.CrossoverProb = 0.5
	}
	if cfg.MutationFactor < 0 || cfg.CrossoverProb < 0 || cfg.CrossoverProb > 1 {
		return nil, errors.New("mutation factor must be >= 0 and crossover probability in [0,1]")
	}

	sMax := int(math.Floor(math.Log(cfg.MaxFidelity/cfg.MinFidelity)/math.Log(float64(cfg.Eta)) + 1e-9))
	return &Hyperband{cfg: cfg, sMax: sMax}, nil
}

func (h *Hyperband) Name() string { return "hyperband" }

// Reset prepares a fresh search over [0,1]^dim.
func (h *Hyperband) Reset(dim int) {
	h.rng = rand.New(rand.NewSource(h.cfg.Seed))
	h.dim = dim
	h.pool = nil
	h.nextID = 0
	h.outstanding = nil
	h.t = track{}
	h.startBracket(h.sMax)
}

// Ask returns the next candidate and the fidelity to evaluate it at.
func (h *Hyperband) Ask() (Trial, error) {
	if h.dim == 0 {
		return Trial{}, errors.New("scheduler not reset")
	}
	if h.outstanding != nil {
		return Trial{}, fmt.Errorf("trial %d is still awaiting its result", h.outstanding.ID)
	}

	trial := Trial{
		ID:       h.nextID,
		Position: append([]float64(nil), h.pending[h.next]...),
		Fidelity: h.fidelity(h.rung),
		Bracket:  h.bracket,
		Rung:     h.rung,
	}
	h.nextID++
	h.next++
	h.outstanding = &trial
	return trial, nil
}

// Tell reports the fitness of the trial returned by the last Ask.
func (h *Hyperband) Tell(trial Trial, fitness float64) error {
	if h.outstanding == nil || h.outstanding.ID != trial.ID {
		return fmt.Errorf("unexpected result for trial %d", trial.ID)
	}
	h.outstanding = nil

	s := scored{x: trial.Position, fitness: fitness}
	h.results = append(h.results, s)
	h.pool = append(h.pool, s)
	h.t.observe(trial.Position, fitness, trial.Fidelity)

	if len(h.results) == len(h.pending) {
		h.advance()
	}
	return nil
}

// Incumbent returns the best point told so far.
func (h *Hyperband) Incumbent() Incumbent {
	return h.t.best
}

// Run drives Ask/Tell against obj until budget evaluations have been made.
func (h *Hyperband) Run(ctx context.Context, obj Objective, dim, budget int) (Incumbent, error) {
	if err := validateRun(obj, dim, budget); err != nil {
		return Incumbent{}, err
	}
	h.Reset(dim)

	for i := 0; i < budget; i++ {
		if err := ctx.Err(); err != nil {
			return h.Incumbent(), err
		}
		trial, err := h.Ask()
		if err != nil {
			return h.Incumbent(), err
		}
		fitness := obj(ctx, trial.Position, trial.Fidelity)
		if err := h.Tell(trial, fitness); err != nil {
			return h.Incumbent(), err
		}
	}
	return h.Incumbent(), nil
}

// fidelity for rung i of bracket s is max * eta^(i-s), never below min.
func (h *Hyperband) fidelity(rung int) float64 {
	f := h.cfg.MaxFidelity * math.Pow(float64(h.cfg.Eta), float64(rung-h.bracket))
	return math.Max(f, h.cfg.MinFidelity)
}

func (h *Hyperband) startBracket(s int) {
	eta := float64(h.cfg.Eta)
	h.bracket = s
	h.rung = 0
	h.size = int(math.Ceil(float64(h.sMax+1) / float64(s+1) * math.Pow(eta, float64(s))))

	h.pending = make([][]float64, h.size)
	for i := range h.pending {
		h.pending[i] = h.propose()
	}
	h.next = 0
	h.results = nil
}

// advance promotes the best 1/eta of the finished rung, or moves on to the
// next bracket. Brackets cycle from sMax down to 0 and start over.
func (h *Hyperband) advance() {
	if h.rung < h.bracket {
		keep := int(float64(h.size) / math.Pow(float64(h.cfg.Eta), float64(h.rung+1)))
		keep = max(keep, 1)

		sort.SliceStable(h.results, func(i, j int) bool {
			return h.results[i].fitness < h.results[j].fitness
		})
		promoted := make([][]float64, 0, keep)
		for _, r := range h.results[:min(keep, len(h.results))] {
			promoted = append(promoted, r.x)
		}

		h.rung++
		h.pending = promoted
		h.next = 0
		h.results = nil
		return
	}

	s := h.bracket - 1
	if s < 0 {
		s = h.sMax
	}
	h.startBracket(s)
}

func (h *Hyperband) propose() []float64 {
	if len(h.pool) < 4 {
		return h.randomPoint()
	}

	parents := make([]scored, len(h.pool))
	copy(parents, h.pool)
	sort.SliceStable(parents, func(i, j int) bool { return parents[i].fitness < parents[j].fitness })
	parents = parents[:max(3, len(parents)/2)]

	idx := h.rng.Perm(len(parents))[:3]
	a, b, c := parents[idx[0]].x, parents[idx[1]].x, parents[idx[2]].x
	target := h.pool[h.rng.Intn(len(h.pool))].x

	x := make([]float64, h.dim)
	jRand := h.rng.Intn(h.dim)
	for j := range x {
		if j == jRand || h.rng.Float64() < h.cfg.CrossoverProb {
			v := a[j] + h.cfg.MutationFactor*(b[j]-c[j])
			if v < 0 || v > 1 {
				v = h.rng.Float64()
			}
			x[j] = v
		} else {
			x[j] = target[j]
		}
	}
	return x
}

func (h *Hyperband) randomPoint() []float64 {
	x := make([]float64, h.dim)
	for j := range x {
		x[j] = h.rng.Float64()
	}
	return x
}
