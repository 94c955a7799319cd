// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/doc-conv-agent/internal/linker"
)

var releaseCmd = &cobra.Command{
	Use:   "release [names...]",
	Short: "Remove claim markers so tasks are picked up again",
	Long: `Release deletes the .ing claim marker of each named task (base name or file
name) in the target directory. Use it for files left claimed after an aborted
submission or a shutdown with tasks in flight. Tasks with a pending finalize
journal are refused; run recover for those.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRelease,
}

func init() {
	rootCmd.AddCommand(releaseCmd)
}

func runRelease(cmd *cobra.Command, args []string) error {
	cfg, err := loadPaths()
	if err != nil {
		return err
	}
	store := linker.NewOS(cfg.Paths, cfg.ResultExt)

	var errs []error
	for _, name := range args {
		base := linker.BaseName(name)
		if err := store.Release(base); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "released %s\n", base)
	}
	return errors.Join(errs...)
}
