// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/doc-conv-agent/internal/agent"
	"github.com/pdiddy/doc-conv-agent/internal/converter"
	"github.com/pdiddy/doc-conv-agent/internal/linker"
	"github.com/pdiddy/doc-conv-agent/internal/report"
	"github.com/pdiddy/doc-conv-agent/internal/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the conversion agent until interrupted",
	Long: `Run completes any finalize transition left over from a previous run, then
claims ready files from the target directory, submits them to the sandbox,
and polls each task until its result is written. SIGINT or SIGTERM stops the
agent; files with tasks still in flight stay claimed and can be released.`,
	RunE: runAgent,
}

func init() {
	runCmd.Flags().String("converter-url", "", "sandbox REST API root")
	runCmd.Flags().String("metrics-addr", "", "listen address for /metrics (disabled when empty)")
	runCmd.Flags().Bool("watch", true, "wake up on filesystem notifications in the target directory")

	viper.BindPFlag("converter.url", runCmd.Flags().Lookup("converter-url"))
	viper.BindPFlag("metrics_addr", runCmd.Flags().Lookup("metrics-addr"))
	viper.BindPFlag("watch", runCmd.Flags().Lookup("watch"))

	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper(), afero.NewOsFs())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdown(flushCtx)
	}()

	store := linker.NewOS(cfg.Paths, cfg.ResultExt)
	client := &http.Client{Timeout: cfg.Converter.Timeout}
	conv := converter.NewSandboxConverter(client, cfg.Converter, report.NewAnalyser(cfg.Report.Signatures))

	return agent.NewSupervisor(cfg, store, conv).Run(ctx)
}
