package opt

import (
	"context"
	"errors"
	"math"
	"testing"
)

func newTestHyperband(t *testing.T) *Hyperband {
	t.Helper()

	h, err := NewHyperband(HyperbandConfig{MinFidelity: 1, MaxFidelity: 10, Eta: 3, Seed: 7})
	if err != nil {
		t.Fatalf("NewHyperband failed: %v", err)
	}
	return h
}

func TestNewHyperbandValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  HyperbandConfig
	}{
		{"zero min", HyperbandConfig{MinFidelity: 0, MaxFidelity: 10}},
		{"max below min", HyperbandConfig{MinFidelity: 5, MaxFidelity: 1}},
		{"eta one", HyperbandConfig{MinFidelity: 1, MaxFidelity: 10, Eta: 1}},
		{"bad crossover", HyperbandConfig{MinFidelity: 1, MaxFidelity: 10, CrossoverProb: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewHyperband(tt.cfg); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestHyperbandSpendsExactBudget(t *testing.T) {
	for _, budget := range []int{1, 3, 22, 50, 101} {
		h := newTestHyperband(t)
		c := &counting{obj: sphere}

		if _, err := h.Run(context.Background(), c.eval, 3, budget); err != nil {
			t.Fatalf("budget %d: Run failed: %v", budget, err)
		}
		if c.calls != budget {
			t.Errorf("budget %d: objective called %d times", budget, c.calls)
		}
	}
}

func TestHyperbandFidelitySchedule(t *testing.T) {
	// min=1, max=10, eta=3 gives sMax=2 and brackets
	// s=2: 9 @ 10/9, 3 @ 10/3, 1 @ 10
	// s=1: 5 @ 10/3, 1 @ 10
	// s=0: 3 @ 10
	h := newTestHyperband(t)
	c := &counting{obj: sphere}

	if _, err := h.Run(context.Background(), c.eval, 2, 22); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	type step struct {
		count    int
		fidelity float64
	}
	want := []step{{9, 10.0 / 9}, {3, 10.0 / 3}, {1, 10}, {5, 10.0 / 3}, {1, 10}, {3, 10}}

	i := 0
	for _, s := range want {
		for k := 0; k < s.count; k++ {
			if math.Abs(c.fidelities[i]-s.fidelity) > 1e-9 {
				t.Fatalf("Trial %d: expected fidelity %g, got %g", i, s.fidelity, c.fidelities[i])
			}
			i++
		}
	}
	for _, f := range c.fidelities {
		if f < 1 || f > 10 {
			t.Errorf("Fidelity %g outside [1,10]", f)
		}
	}
}

func TestHyperbandPromotesBest(t *testing.T) {
	h := newTestHyperband(t)
	h.Reset(1)

	// Rung 0 of the first bracket has 9 candidates; the 3 with the lowest
	// fitness must be the ones asked for at rung 1.
	var rung0 []Trial
	for i := 0; i < 9; i++ {
		trial, err := h.Ask()
		if err != nil {
			t.Fatalf("Ask failed: %v", err)
		}
		rung0 = append(rung0, trial)
		if err := h.Tell(trial, float64(9-i)); err != nil {
			t.Fatalf("Tell failed: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		trial, err := h.Ask()
		if err != nil {
			t.Fatalf("Ask failed: %v", err)
		}
		if trial.Rung != 1 {
			t.Fatalf("Expected rung 1, got %d", trial.Rung)
		}
		expected := rung0[8-i].Position[0]
		if trial.Position[0] != expected {
			t.Errorf("Promotion %d: expected position %f, got %f", i, expected, trial.Position[0])
		}
		if err := h.Tell(trial, float64(i)); err != nil {
			t.Fatalf("Tell failed: %v", err)
		}
	}
}

func TestHyperbandAskTellProtocol(t *testing.T) {
	h := newTestHyperband(t)

	if _, err := h.Ask(); err == nil {
		t.Error("Expected error when asking before Reset")
	}

	h.Reset(2)
	trial, err := h.Ask()
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if _, err := h.Ask(); err == nil {
		t.Error("Expected error when asking twice without Tell")
	}
	if err := h.Tell(Trial{ID: trial.ID + 1}, 1); err == nil {
		t.Error("Expected error for mismatched trial")
	}
	if err := h.Tell(trial, 1); err != nil {
		t.Errorf("Tell failed: %v", err)
	}
}

func TestHyperbandIncumbentIsBestTold(t *testing.T) {
	h := newTestHyperband(t)
	h.Reset(2)

	fitnesses := []float64{5, 2, 8, 2, 3}
	var best Trial
	for i, f := range fitnesses {
		trial, _ := h.Ask()
		if i == 1 {
			best = trial
		}
		h.Tell(trial, f)
	}

	inc := h.Incumbent()
	if inc.Fitness != 2 {
		t.Errorf("Expected incumbent fitness 2, got %f", inc.Fitness)
	}
	if inc.Position[0] != best.Position[0] || inc.Position[1] != best.Position[1] {
		t.Error("Tie must keep the earlier point")
	}
}

func TestHyperbandConverges(t *testing.T) {
	h := newTestHyperband(t)

	inc, err := h.Run(context.Background(), sphere, 3, 300)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if inc.Fitness > 0.01 {
		t.Errorf("Expected fitness near 0, got %f", inc.Fitness)
	}
	for _, v := range inc.Position {
		if v < 0 || v > 1 {
			t.Errorf("Position %v left the unit cube", inc.Position)
		}
	}
}

func TestHyperbandCancelled(t *testing.T) {
	h := newTestHyperband(t)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	obj := func(ctx context.Context, x []float64, fidelity float64) float64 {
		calls++
		if calls == 4 {
			cancel()
		}
		return 1
	}

	_, err := h.Run(ctx, obj, 2, 50)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if calls != 4 {
		t.Errorf("Expected 4 evaluations, got %d", calls)
	}
}

func TestNewStrategy(t *testing.T) {
	settings := Settings{MinFidelity: 1, MaxFidelity: 10, Eta: 3, PopSize: 20, Seed: 1}

	for _, name := range Strategies() {
		o, err := New(name, settings)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", name, err)
		}
		if o.Name() != name {
			t.Errorf("Expected name %q, got %q", name, o.Name())
		}
	}

	if _, err := New("annealing", settings); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("Expected ErrUnknownStrategy, got %v", err)
	}
}
