// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/pdiddy/doc-conv-agent/internal/metrics"
	"github.com/pdiddy/doc-conv-agent/internal/watch"
	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

// Supervisor starts the workers on a shared context and waits for them.
type Supervisor struct {
	cfg       types.AgentConfig
	workspace Workspace
	conv      Converter
}

// NewSupervisor creates a supervisor. cfg must already carry defaults.
func NewSupervisor(cfg types.AgentConfig, workspace Workspace, conv Converter) *Supervisor {
	return &Supervisor{cfg: cfg, workspace: workspace, conv: conv}
}

// Run recovers journaled transitions, then runs the submitter, the poller
// and the optional watcher and metrics server until ctx is cancelled. If any
// of them stops early, the rest are shut down too. A panic in a worker is
// returned as an error.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.workspace.EnsureDirs(); err != nil {
		return err
	}
	n, err := s.workspace.Recover()
	if err != nil {
		return fmt.Errorf("recovering journaled tasks: %w", err)
	}
	if n > 0 {
		metrics.RecoveredTotal.Add(float64(n))
		log.Info().Int("tasks", n).Msg("completed interrupted transitions")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu   sync.Mutex
		errs []error
		wg   conc.WaitGroup
	)
	spawn := func(name string, run func(context.Context) error) {
		wg.Go(func() {
			defer cancel()
			if err := run(ctx); err != nil {
				log.Error().Err(err).Str("worker", name).Msg("worker stopped with error")
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
		})
	}

	var wake <-chan struct{}
	if s.cfg.Watch {
		w, err := watch.New(s.cfg.Paths.TargetDir)
		if err != nil {
			log.Warn().Err(err).Msg("watcher unavailable, relying on the submit delay")
		} else {
			wake = w.Wake()
			spawn("watcher", w.Run)
		}
	}
	if s.cfg.MetricsAddr != "" {
		spawn("metrics", func(ctx context.Context) error {
			return metrics.Serve(ctx, s.cfg.MetricsAddr)
		})
	}

	queue := NewQueue(s.cfg.QueueCapacity)
	spawn("submitter", NewSubmitter(s.workspace, s.conv, queue, s.cfg.Submitter, wake).Run)
	spawn("poller", NewPoller(s.workspace, s.conv, queue, s.cfg.Poller).Run)

	log.Info().
		Str("target_dir", s.cfg.Paths.TargetDir).
		Str("result_dir", s.cfg.Paths.ResultDir).
		Str("error_dir", s.cfg.Paths.ErrorDir).
		Msg("agent running")

	if r := wg.WaitAndRecover(); r != nil {
		errs = append(errs, r.AsError())
	}
	if queued := queue.Len(); queued > 0 {
		log.Warn().Int("tasks", queued).Msg("stopped with tasks in flight; their files stay claimed")
	}
	return errors.Join(errs...)
}
