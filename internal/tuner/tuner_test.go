package tuner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/cwbudde/ftltune/internal/harness"
	"github.com/cwbudde/ftltune/internal/opt"
	"github.com/cwbudde/ftltune/internal/space"
)

// benchRunner plays back one scripted output per trial and keeps the
// environment each trial ran with.
type benchRunner struct {
	outputs []harness.Output
	envs    [][]string
}

func (r *benchRunner) Run(ctx context.Context, env []string) (harness.Output, error) {
	i := len(r.envs)
	r.envs = append(r.envs, env)
	if i < len(r.outputs) {
		return r.outputs[i], nil
	}
	return harness.Output{ExitCode: 1}, nil
}

func (r *benchRunner) configOf(t *testing.T, trial int) map[string]int {
	t.Helper()

	values := map[string]int{}
	for _, kv := range r.envs[trial] {
		k, v, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(k, "FTL_") {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			t.Fatalf("Bad injected value %q", kv)
		}
		values[k] = n
	}
	return values
}

type fixture struct {
	driver   *Driver
	runner   *benchRunner
	progress *bytes.Buffer
	summary  *bytes.Buffer
}

func newFixture(t *testing.T, outputs []harness.Output, budget int) *fixture {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := &benchRunner{outputs: outputs}
	progress := &bytes.Buffer{}
	h := harness.New(runner, harness.NewTracker(budget),
		harness.WithProgress(progress),
		harness.WithBaseEnv(func() []string { return []string{"HOME=/tmp"} }),
		harness.WithLogger(quiet),
	)

	o, err := opt.NewHyperband(opt.HyperbandConfig{MinFidelity: 1, MaxFidelity: 10, Eta: 3, Seed: 42})
	if err != nil {
		t.Fatalf("NewHyperband failed: %v", err)
	}

	d, err := New(space.FTL(), h, o, Options{Budget: budget, MinFidelity: 1, MaxFidelity: 10, Workers: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	summary := &bytes.Buffer{}
	d.SetOutput(summary)

	return &fixture{driver: d, runner: runner, progress: progress, summary: summary}
}

func TestRunScenario(t *testing.T) {
	f := newFixture(t, []harness.Output{
		{Stdout: "100\n"},
		{Stdout: "", ExitCode: 101},
		{Stdout: "150\n"},
	}, 3)

	res, err := f.driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(f.runner.envs) != 3 {
		t.Fatalf("Expected 3 trials, got %d", len(f.runner.envs))
	}
	if res.State.Remaining != 0 || res.State.Completed != 3 || res.State.Failed != 1 {
		t.Errorf("Unexpected trial state: %+v", res.State)
	}
	if res.State.Best != 150 {
		t.Errorf("Expected best 150, got %f", res.State.Best)
	}
	if math.Abs(res.Score-150) > 1e-6 {
		t.Errorf("Expected score 150, got %f", res.Score)
	}
	if math.Abs(res.Fitness-harness.Fitness(150)) > 1e-6 {
		t.Errorf("Expected fitness %g, got %g", harness.Fitness(150), res.Fitness)
	}
	if !res.Succeeded() {
		t.Error("Expected a successful incumbent")
	}

	// The incumbent is the configuration the third trial ran with.
	want := f.runner.configOf(t, 2)
	for k, v := range want {
		if got, _ := res.Config.Get(k); got != v {
			t.Errorf("%s: expected %d, got %d", k, v, got)
		}
	}

	lines := strings.Split(strings.TrimSpace(f.progress.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 progress lines, got %d:\n%s", len(lines), f.progress.String())
	}
	for i, prefix := range []string{"[ 3]", "[ 2]", "[ 1]"} {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("Line %d: expected prefix %q, got %q", i, prefix, lines[i])
		}
	}
	if !strings.HasSuffix(lines[0], "Score: 100.0000 | Best: 100.0000") {
		t.Errorf("Unexpected first line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "FAILED | Best: 100.0000") {
		t.Errorf("Unexpected second line: %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "Score: 150.0000 | Best: 150.0000") {
		t.Errorf("Unexpected third line: %q", lines[2])
	}

	summary := f.summary.String()
	if !strings.Contains(summary, "Best Config Found:") || !strings.Contains(summary, "Score: 150.0000") {
		t.Errorf("Unexpected summary:\n%s", summary)
	}
	for k, v := range want {
		if !strings.Contains(summary, "  "+k+": "+strconv.Itoa(v)) {
			t.Errorf("Summary missing %s=%d:\n%s", k, v, summary)
		}
	}
}

func TestRunAllTrialsFail(t *testing.T) {
	f := newFixture(t, nil, 4)

	res, err := f.driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Succeeded() {
		t.Error("Incumbent from failed trials must not count as success")
	}
	if res.Fitness != harness.FailureFitness {
		t.Errorf("Expected failure fitness, got %g", res.Fitness)
	}
	if res.Score != 0 {
		t.Errorf("Expected score 0 without a successful trial, got %f", res.Score)
	}
	if res.State.Failed != 4 || res.State.Best != 0 {
		t.Errorf("Unexpected state: %+v", res.State)
	}
}

func TestRunPreflightFailure(t *testing.T) {
	f := newFixture(t, []harness.Output{{Stdout: "1"}}, 2)
	f.driver.preflight = func(ctx context.Context, argv []string) error {
		return harness.ErrToolchainMissing
	}

	_, err := f.driver.Run(context.Background())
	if !errors.Is(err, harness.ErrToolchainMissing) {
		t.Fatalf("Expected ErrToolchainMissing, got %v", err)
	}
	if len(f.runner.envs) != 0 {
		t.Errorf("No trial may run after a failed preflight, got %d", len(f.runner.envs))
	}
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t, []harness.Output{{Stdout: "1"}}, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.driver.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if f.summary.Len() != 0 {
		t.Error("No summary expected for a cancelled run")
	}
}

func TestNewValidation(t *testing.T) {
	h := harness.New(&benchRunner{}, harness.NewTracker(1))
	o, _ := opt.NewHyperband(opt.HyperbandConfig{MinFidelity: 1, MaxFidelity: 10})
	good := Options{Budget: 5, MinFidelity: 1, MaxFidelity: 10, Workers: 1}

	tests := []struct {
		name  string
		space *space.Space
		opts  Options
	}{
		{"nil space", nil, good},
		{"zero budget", space.FTL(), Options{Budget: 0, MinFidelity: 1, MaxFidelity: 10, Workers: 1}},
		{"bad fidelity", space.FTL(), Options{Budget: 5, MinFidelity: 5, MaxFidelity: 1, Workers: 1}},
		{"parallel workers", space.FTL(), Options{Budget: 5, MinFidelity: 1, MaxFidelity: 10, Workers: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.space, h, o, tt.opts); err == nil {
				t.Error("Expected construction error")
			}
		})
	}

	if _, err := New(nil, h, o, good); !errors.Is(err, space.ErrMalformedSpace) {
		t.Errorf("Expected ErrMalformedSpace for nil space, got %v", err)
	}
	if _, err := New(space.FTL(), h, o, good); err != nil {
		t.Errorf("Valid setup rejected: %v", err)
	}
}

func TestSummaryFormat(t *testing.T) {
	res := &Result{Config: space.FTL().Default(), Score: 123.45678}

	want := "\n" + strings.Repeat("=", 40) + "\n" +
		"Best Config Found:\n" +
		"Score: 123.4568\n" +
		"  FTL_GROUP_SIZE: 2048\n" +
		"  FTL_BUFFER_CAPACITY: 1048576\n" +
		"  FTL_PGM_EPSILON: 128\n" +
		strings.Repeat("=", 40) + "\n\n"

	if got := Summary(res); got != want {
		t.Errorf("Summary mismatch:\n got: %q\nwant: %q", got, want)
	}
}
