package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/ftltune/internal/space"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config is invalid: %v", err)
	}
	if cfg.Budget != 50 || cfg.MinFidelity != 1 || cfg.MaxFidelity != 10 || cfg.Workers != 1 {
		t.Errorf("Unexpected run parameters: %+v", cfg)
	}
	if strings.Join(cfg.Command, " ") != "cargo run --quiet --example score --release -- data/quick.bin 250.0 40.0" {
		t.Errorf("Unexpected command: %v", cfg.Command)
	}

	s, err := cfg.Space()
	if err != nil {
		t.Fatalf("Default space is malformed: %v", err)
	}
	if s.Size() != space.FTL().Size() {
		t.Errorf("Expected FTL space, got size %d", s.Size())
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tune.yaml")
	data := `
command: ["./target/release/score", "data/full.bin"]
budget: 12
strategy: mayfly
trial_timeout: 90s
parameters:
  - name: FTL_GROUP_SIZE
    label: G
    values: [256, 512]
    default: 512
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Budget != 12 {
		t.Errorf("Expected budget 12, got %d", cfg.Budget)
	}
	if cfg.Strategy != "mayfly" {
		t.Errorf("Expected strategy mayfly, got %s", cfg.Strategy)
	}
	if cfg.TrialTimeout != 90*time.Second {
		t.Errorf("Expected 90s timeout, got %v", cfg.TrialTimeout)
	}
	if len(cfg.Command) != 2 || cfg.Command[0] != "./target/release/score" {
		t.Errorf("Unexpected command: %v", cfg.Command)
	}
	// Untouched keys keep their defaults.
	if cfg.MaxFidelity != 10 || cfg.DefaultsFile != "build.rs" {
		t.Errorf("Defaults not preserved: %+v", cfg)
	}
	if len(cfg.Parameters) != 1 || len(cfg.Parameters[0].Values) != 2 {
		t.Errorf("Parameters not replaced: %+v", cfg.Parameters)
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty command", "command: []", "command"},
		{"zero budget", "budget: 0", "budget"},
		{"zero min fidelity", "min_fidelity: 0", "min_fidelity"},
		{"inverted fidelity", "min_fidelity: 5\nmax_fidelity: 2", "max_fidelity"},
		{"small eta", "eta: 1", "eta"},
		{"parallel workers", "workers: 4", "workers"},
		{"unknown strategy", "strategy: annealing", "strategy"},
		{"negative timeout", "trial_timeout: -1s", "trial_timeout"},
		{"empty log dir", "log_dir: \"\"", "log_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("budget: [1, 2")); err == nil {
		t.Fatal("Expected YAML error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestSpaceRejectsMalformedParameters(t *testing.T) {
	cfg, err := Parse([]byte(`
parameters:
  - name: FTL_GROUP_SIZE
    values: [512, 256]
    default: 512
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if _, err := cfg.Space(); !errors.Is(err, space.ErrMalformedSpace) {
		t.Errorf("Expected ErrMalformedSpace, got %v", err)
	}
}
