package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var spaceCmd = &cobra.Command{
	Use:   "space",
	Short: "Print the configuration space",
	Long:  `Lists every tunable parameter with its legal values and default, in search order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := cfg.Space()
		if err != nil {
			return fmt.Errorf("failed to build configuration space: %w", err)
		}

		fmt.Print(s.Describe())
		fmt.Printf("\n%d configurations\n", s.Size())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(spaceCmd)
}
