// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/doc-conv-agent/internal/linker"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Complete finalize transitions interrupted by a crash",
	Long: `Recover replays every .fin journal in the target directory, finishing the
success or failure transition it records. run does this automatically at
startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadPaths()
		if err != nil {
			return err
		}
		n, err := linker.NewOS(cfg.Paths, cfg.ResultExt).Recover()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recovered %d task(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}
