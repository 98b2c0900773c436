package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/ftltune/internal/space"
)

// Harness turns one configuration into one Result by running the benchmark
// with the configuration injected into its environment.
type Harness struct {
	runner  Runner
	tracker *Tracker
	out     io.Writer
	baseEnv func() []string
	logger  *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithProgress sets where the per-trial progress line is written.
func WithProgress(w io.Writer) Option {
	return func(h *Harness) { h.out = w }
}

// WithBaseEnv replaces os.Environ as the environment every trial starts from.
func WithBaseEnv(fn func() []string) Option {
	return func(h *Harness) { h.baseEnv = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a harness that records into tracker.
func New(runner Runner, tracker *Tracker, opts ...Option) *Harness {
	h := &Harness{
		runner:  runner,
		tracker: tracker,
		out:     os.Stdout,
		baseEnv: os.Environ,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Tracker returns the tracker the harness records into.
func (h *Harness) Tracker() *Tracker {
	return h.tracker
}

// Evaluate runs one trial. Fidelity is accepted for the optimizer's benefit
// but the benchmark always runs at full cost.
//
// Trial failures never escape as errors: a benchmark that exits non-zero,
// times out or prints no parseable score yields FailureFitness. The budget is
// consumed either way.
func (h *Harness) Evaluate(ctx context.Context, cfg space.Configuration, fidelity float64) Result {
	env := Environment(h.baseEnv(), cfg)
	h.logger.Debug("Starting trial", "config", cfg.String(), "fidelity", fidelity)

	prefix := h.progressPrefix(cfg)

	out, err := h.runner.Run(ctx, env)
	if err != nil {
		return h.fail(prefix, "run error", "error", err)
	}
	if out.TimedOut {
		return h.fail(prefix, "timeout", "duration", out.Duration, "stderr", tail(out.Stderr))
	}
	if out.ExitCode != 0 {
		return h.fail(prefix, fmt.Sprintf("exit %d", out.ExitCode), "exit_code", out.ExitCode, "stderr", tail(out.Stderr))
	}

	score, err := ParseScore(out.Stdout)
	if err != nil {
		return h.fail(prefix, "bad output", "error", err, "stdout", tail(out.Stdout))
	}

	best := h.tracker.Best()
	if score > best {
		best = score
	}
	fmt.Fprintf(h.out, "%s | Score: %8.4f | Best: %8.4f\n", prefix, score, best)
	h.tracker.RecordSuccess(score)

	h.logger.Debug("Trial complete", "config", cfg.String(), "score", score, "duration", out.Duration)
	return Result{Fitness: Fitness(score), Cost: TrialCost}
}

func (h *Harness) fail(prefix, reason string, attrs ...any) Result {
	fmt.Fprintf(h.out, "%s | Score:   FAILED | Best: %8.4f (%s)\n", prefix, h.tracker.Best(), reason)
	h.tracker.RecordFailure()
	h.logger.Warn("Trial failed", append([]any{"reason", reason}, attrs...)...)
	return failed()
}

func (h *Harness) progressPrefix(cfg space.Configuration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%2d]", h.tracker.Remaining())
	for _, a := range cfg.Assignments() {
		fmt.Fprintf(&b, " %s=%-*d", a.Label, a.Width, a.Value)
	}
	return b.String()
}

// ParseScore returns the score printed on the first non-empty line of stdout.
func ParseScore(stdout string) (float64, error) {
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		score, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid score line %q: %w", line, err)
		}
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return 0, fmt.Errorf("score is not finite: %q", line)
		}
		return score, nil
	}
	return 0, fmt.Errorf("benchmark printed no score")
}

// Environment overlays cfg onto a copy of base. Existing entries for the
// same names are replaced; base itself is never modified.
func Environment(base []string, cfg space.Configuration) []string {
	assignments := cfg.Assignments()
	override := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		override[a.Name] = true
	}

	env := make([]string, 0, len(base)+len(assignments))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if override[name] {
			continue
		}
		env = append(env, kv)
	}
	for _, a := range assignments {
		env = append(env, a.Name+"="+strconv.Itoa(a.Value))
	}
	return env
}

func tail(s string) string {
	const limit = 512
	s = strings.TrimSpace(s)
	if len(s) > limit {
		return "..." + s[len(s)-limit:]
	}
	return s
}
