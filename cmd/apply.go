package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/ftltune/internal/persist"
)

var applyDefaultsFile string

var applyCmd = &cobra.Command{
	Use:   "apply [run-id]",
	Short: "Write a stored run's best config into the build script",
	Args:  cobra.ExactArgs(1),
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applyDefaultsFile, "defaults-file", "", "Build script to rewrite (default from config)")
	applyCmd.Flags().StringVar(&recordDataDir, "log-dir", "", "Directory holding run records (default from config)")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := cfg.Space()
	if err != nil {
		return fmt.Errorf("failed to build configuration space: %w", err)
	}

	recordStore, err := openRecordStore()
	if err != nil {
		return err
	}

	record, err := recordStore.LoadRecord(args[0])
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", args[0], err)
	}
	best, err := record.Configuration(s)
	if err != nil {
		return err
	}

	target := cfg.DefaultsFile
	if applyDefaultsFile != "" {
		target = applyDefaultsFile
	}
	p := persist.New(persist.Rules(s, cfg.LookupCall, cfg.TypeSuffix), os.Stdout)
	if _, err := p.Apply(target, best); err != nil {
		return fmt.Errorf("failed to persist run %s: %w", args[0], err)
	}
	return nil
}
