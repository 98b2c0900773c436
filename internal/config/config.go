package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/ftltune/internal/opt"
	"github.com/cwbudde/ftltune/internal/persist"
	"github.com/cwbudde/ftltune/internal/space"
)

// Config holds the run parameters of a tuning session.
type Config struct {
	// Command is the benchmark argv; it is identical for every trial.
	Command []string `yaml:"command"`
	// Dir is the working directory for the benchmark (empty = current).
	Dir string `yaml:"dir"`
	// Preflight is run once before any trial to confirm the toolchain exists.
	Preflight []string `yaml:"preflight"`

	Budget      int     `yaml:"budget"`
	MinFidelity float64 `yaml:"min_fidelity"`
	MaxFidelity float64 `yaml:"max_fidelity"`
	Eta         int     `yaml:"eta"`
	Workers     int     `yaml:"workers"`
	PopSize     int     `yaml:"pop_size"`
	Strategy    string  `yaml:"strategy"`
	Seed        int64   `yaml:"seed"`

	// TrialTimeout bounds a single benchmark run; 0 disables it.
	TrialTimeout time.Duration `yaml:"trial_timeout"`

	// LogDir holds the tuner's own bookkeeping (best records per run).
	LogDir string `yaml:"log_dir"`

	DefaultsFile string `yaml:"defaults_file"`
	LookupCall   string `yaml:"lookup_call"`
	TypeSuffix   string `yaml:"type_suffix"`

	Parameters []Parameter `yaml:"parameters"`
}

// Parameter is the YAML form of an ordinal parameter.
type Parameter struct {
	Name    string `yaml:"name"`
	Label   string `yaml:"label"`
	Values  []int  `yaml:"values"`
	Default int    `yaml:"default"`
}

// Default returns the configuration used when no file is given: the score
// example on the quick trace, 50 trials, fidelity 1..10.
func Default() *Config {
	cfg := &Config{
		Command: []string{
			"cargo", "run", "--quiet", "--example", "score", "--release", "--",
			"data/quick.bin", "250.0", "40.0",
		},
		Preflight:    []string{"cargo", "--version"},
		Budget:       50,
		MinFidelity:  1,
		MaxFidelity:  10,
		Eta:          3,
		Workers:      1,
		PopSize:      20,
		Strategy:     "hyperband",
		Seed:         42,
		TrialTimeout: 10 * time.Minute,
		LogDir:       "./dehb_logs",
		DefaultsFile: "build.rs",
		LookupCall:   persist.DefaultLookupCall,
		TypeSuffix:   persist.DefaultTypeSuffix,
	}
	for _, p := range space.FTLParameters() {
		cfg.Parameters = append(cfg.Parameters, Parameter{
			Name:    p.Name,
			Label:   p.Label,
			Values:  p.Values,
			Default: p.Default,
		})
	}
	return cfg
}

// Load reads a YAML file and overlays it on Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse overlays YAML bytes on Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the run parameters. The parameter list is checked when the
// space is built, see Space.
func (c *Config) Validate() error {
	if len(c.Command) == 0 || c.Command[0] == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if c.Budget <= 0 {
		return fmt.Errorf("budget must be positive, got %d", c.Budget)
	}
	if c.MinFidelity <= 0 {
		return fmt.Errorf("min_fidelity must be positive, got %g", c.MinFidelity)
	}
	if c.MaxFidelity < c.MinFidelity {
		return fmt.Errorf("max_fidelity (%g) must be >= min_fidelity (%g)", c.MaxFidelity, c.MinFidelity)
	}
	if c.Eta < 2 {
		return fmt.Errorf("eta must be >= 2, got %d", c.Eta)
	}
	if c.Workers != 1 {
		return fmt.Errorf("workers must be 1, got %d (trials run sequentially)", c.Workers)
	}
	if !slices.Contains(opt.Strategies(), c.Strategy) {
		return fmt.Errorf("invalid strategy: %s (must be one of %v)", c.Strategy, opt.Strategies())
	}
	if c.TrialTimeout < 0 {
		return fmt.Errorf("trial_timeout cannot be negative")
	}
	if c.LogDir == "" {
		return fmt.Errorf("log_dir cannot be empty")
	}
	if c.LookupCall == "" {
		return fmt.Errorf("lookup_call cannot be empty")
	}
	return nil
}

// Space builds the configuration space from Parameters.
func (c *Config) Space() (*space.Space, error) {
	params := make([]space.Parameter, len(c.Parameters))
	for i, p := range c.Parameters {
		params[i] = space.Parameter{
			Name:    p.Name,
			Label:   p.Label,
			Values:  p.Values,
			Default: p.Default,
		}
	}
	return space.New(params...)
}

// OptimizerSettings returns the settings for opt.New.
func (c *Config) OptimizerSettings() opt.Settings {
	return opt.Settings{
		MinFidelity: c.MinFidelity,
		MaxFidelity: c.MaxFidelity,
		Eta:         c.Eta,
		PopSize:     c.PopSize,
		Seed:        c.Seed,
	}
}
