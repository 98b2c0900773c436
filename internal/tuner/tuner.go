// Package tuner drives one optimization run: it asks the optimizer for
// candidates, evaluates them through the harness and reports the incumbent.
package tuner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cwbudde/ftltune/internal/harness"
	"github.com/cwbudde/ftltune/internal/opt"
	"github.com/cwbudde/ftltune/internal/space"
)

// Options are the fixed run parameters.
type Options struct {
	Budget      int
	MinFidelity float64
	MaxFidelity float64
	Workers     int

	// Preflight is started once before the first trial; empty skips the check.
	Preflight []string
}

// Result is the best configuration of a finished run.
type Result struct {
	Config   space.Configuration
	Score    float64
	Fitness  float64
	Fidelity float64
	State    harness.TrialState
	Strategy string
	Elapsed  time.Duration
}

// Driver owns the optimizer and feeds it trials from the harness.
type Driver struct {
	space     *space.Space
	harness   *harness.Harness
	optimizer opt.Optimizer
	opts      Options
	out       io.Writer
	preflight func(ctx context.Context, argv []string) error
}

// New validates the run setup. Every error returned here is fatal and
// happens before any trial is spent.
func New(s *space.Space, h *harness.Harness, o opt.Optimizer, opts Options) (*Driver, error) {
	if s == nil || s.Dim() == 0 {
		return nil, fmt.Errorf("%w: no parameters", space.ErrMalformedSpace)
	}
	if h == nil {
		return nil, errors.New("harness is required")
	}
	if o == nil {
		return nil, errors.New("optimizer is required")
	}
	if opts.Budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %d", opts.Budget)
	}
	if opts.MinFidelity <= 0 || opts.MaxFidelity < opts.MinFidelity {
		return nil, fmt.Errorf("invalid fidelity range [%g, %g]", opts.MinFidelity, opts.MaxFidelity)
	}
	if opts.Workers != 1 {
		return nil, fmt.Errorf("only a single worker is supported, got %d", opts.Workers)
	}

	return &Driver{
		space:     s,
		harness:   h,
		optimizer: o,
		opts:      opts,
		out:       os.Stdout,
		preflight: harness.Preflight,
	}, nil
}

// SetOutput redirects the final summary.
func (d *Driver) SetOutput(w io.Writer) {
	d.out = w
}

// Run spends the budget and returns the incumbent. A cancelled ctx ends the
// run with ctx's error and no result.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	if err := d.preflight(ctx, d.opts.Preflight); err != nil {
		return nil, err
	}

	tracker := d.harness.Tracker()
	tracker.Reset(d.opts.Budget)

	slog.Info("Starting optimization",
		"strategy", d.optimizer.Name(),
		"budget", d.opts.Budget,
		"min_fidelity", d.opts.MinFidelity,
		"max_fidelity", d.opts.MaxFidelity,
		"space_size", d.space.Size(),
	)

	objective := func(ctx context.Context, x []float64, fidelity float64) float64 {
		return d.harness.Evaluate(ctx, d.space.Decode(x), fidelity).Fitness
	}

	start := time.Now()
	inc, err := d.optimizer.Run(ctx, objective, d.space.Dim(), d.opts.Budget)
	if err != nil {
		return nil, fmt.Errorf("optimization aborted: %w", err)
	}
	if inc.Position == nil {
		return nil, errors.New("optimizer returned no incumbent")
	}

	res := &Result{
		Config:   d.space.Decode(inc.Position),
		Score:    harness.ScoreFromFitness(inc.Fitness),
		Fitness:  inc.Fitness,
		Fidelity: inc.Fidelity,
		State:    tracker.Snapshot(),
		Strategy: d.optimizer.Name(),
		Elapsed:  time.Since(start),
	}

	if !res.Succeeded() {
		res.Score = 0
		slog.Warn("No trial produced a usable score", "trials", res.State.Completed)
	}
	slog.Info("Optimization complete",
		"elapsed", res.Elapsed,
		"trials", res.State.Completed,
		"failed", res.State.Failed,
		"best_score", res.Score,
		"config", res.Config.String(),
	)

	fmt.Fprint(d.out, Summary(res))
	return res, nil
}

// Succeeded reports whether the incumbent came from a trial that produced a
// score rather than from the failure sentinel.
func (r *Result) Succeeded() bool {
	return r.Fitness < harness.FailureFitness
}

// Summary renders the final report.
func Summary(res *Result) string {
	rule := strings.Repeat("=", 40)

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintln(&b, "Best Config Found:")
	fmt.Fprintf(&b, "Score: %.4f\n", res.Score)
	for _, a := range res.Config.Assignments() {
		fmt.Fprintf(&b, "  %s: %d\n", a.Name, a.Value)
	}
	fmt.Fprintf(&b, "%s\n\n", rule)
	return b.String()
}
