package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/ftltune/internal/config"
	"github.com/cwbudde/ftltune/internal/harness"
	"github.com/cwbudde/ftltune/internal/opt"
	"github.com/cwbudde/ftltune/internal/persist"
	"github.com/cwbudde/ftltune/internal/store"
	"github.com/cwbudde/ftltune/internal/tuner"
)

var (
	budget       int
	strategy     string
	seed         int64
	trialTimeout time.Duration
	defaultsFile string
	logDir       string
	noPersist    bool
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Run the parameter search",
	Long: `Runs the benchmark once per trial until the evaluation budget is spent, prints
the best configuration, stores it under the log directory and rewrites the
defaults in the build script.`,
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().IntVar(&budget, "budget", 50, "Number of trials")
	tuneCmd.Flags().StringVar(&strategy, "strategy", "hyperband", "Optimizer: hyperband, mayfly")
	tuneCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	tuneCmd.Flags().DurationVar(&trialTimeout, "timeout", 10*time.Minute, "Per-trial timeout (0 disables)")
	tuneCmd.Flags().StringVar(&defaultsFile, "defaults-file", "build.rs", "Build script whose defaults are rewritten")
	tuneCmd.Flags().StringVar(&logDir, "log-dir", "./dehb_logs", "Directory for run records")
	tuneCmd.Flags().BoolVar(&noPersist, "no-persist", false, "Do not rewrite the defaults file")

	rootCmd.AddCommand(tuneCmd)
}

// applyTuneFlags lets explicitly set flags win over the config file.
func applyTuneFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("budget") {
		cfg.Budget = budget
	}
	if flags.Changed("strategy") {
		cfg.Strategy = strategy
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("timeout") {
		cfg.TrialTimeout = trialTimeout
	}
	if flags.Changed("defaults-file") {
		cfg.DefaultsFile = defaultsFile
	}
	if flags.Changed("log-dir") {
		cfg.LogDir = logDir
	}
	return cfg.Validate()
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyTuneFlags(cmd, cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s, err := cfg.Space()
	if err != nil {
		return fmt.Errorf("failed to build configuration space: %w", err)
	}

	optimizer, err := opt.New(cfg.Strategy, cfg.OptimizerSettings())
	if err != nil {
		return fmt.Errorf("failed to create optimizer: %w", err)
	}

	runner := harness.NewExecRunner(cfg.Command, cfg.TrialTimeout)
	runner.Dir = cfg.Dir
	h := harness.New(runner, harness.NewTracker(cfg.Budget), harness.WithLogger(logger))

	driver, err := tuner.New(s, h, optimizer, tuner.Options{
		Budget:      cfg.Budget,
		MinFidelity: cfg.MinFidelity,
		MaxFidelity: cfg.MaxFidelity,
		Workers:     cfg.Workers,
		Preflight:   cfg.Preflight,
	})
	if err != nil {
		return fmt.Errorf("failed to create optimizer driver: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Starting Optimization...")
	res, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	if !res.Succeeded() {
		fmt.Println("No trial produced a score; nothing stored or persisted.")
		return nil
	}

	runID := uuid.New().String()
	record := &store.Record{
		RunID:     runID,
		Values:    res.Config.Map(),
		Score:     res.Score,
		Fitness:   res.Fitness,
		Trials:    res.State.Completed,
		Failed:    res.State.Failed,
		Budget:    res.State.Budget,
		Strategy:  res.Strategy,
		Timestamp: time.Now(),
	}
	if err := saveRecord(cfg.LogDir, record); err != nil {
		slog.Warn("Failed to store run record", "run_id", runID, "error", err)
	} else {
		slog.Info("Stored run record", "run_id", runID, "log_dir", cfg.LogDir)
	}

	if noPersist {
		return nil
	}
	p := persist.New(persist.Rules(s, cfg.LookupCall, cfg.TypeSuffix), os.Stdout)
	if _, err := p.Apply(cfg.DefaultsFile, res.Config); err != nil {
		return fmt.Errorf("failed to persist best config: %w", err)
	}
	return nil
}

func saveRecord(dir string, record *store.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	fs, err := store.NewFSStore(dir)
	if err != nil {
		return err
	}
	return fs.SaveRecord(record.RunID, record)
}
