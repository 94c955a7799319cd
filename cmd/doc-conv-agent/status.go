// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/doc-conv-agent/internal/linker"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every task in the agent's directories",
	Long: `Status reads the marker files in the target, result, and error directories
and prints one YAML record per task with its phase and outcome code.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("phase", "", "only show tasks in this phase (e.g. claimed, failed)")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadPaths()
	if err != nil {
		return err
	}
	phase, _ := cmd.Flags().GetString("phase")

	states, err := linker.NewOS(cfg.Paths, cfg.ResultExt).Inspect()
	if err != nil {
		return err
	}

	shown := states[:0]
	for _, st := range states {
		if phase == "" || string(st.Phase) == phase {
			shown = append(shown, st)
		}
	}
	if len(shown) == 0 {
		fmt.Fprintln(os.Stderr, "no tasks")
		return nil
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(shown)
}
