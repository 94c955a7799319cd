// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/doc-conv-agent/internal/metrics"
	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

const popWait = 1 * time.Second

// Poller tracks queued tasks until they reach a terminal status.
type Poller struct {
	store           Store
	conv            Converter
	queue           *Queue
	delay           time.Duration
	deleteCompleted bool
	maxStatusErrors int

	// held keeps an entry that could not be re-enqueued because the
	// submitter filled the freed slot. It is handled before the next pop.
	held *types.Entry
}

// NewPoller creates a polling worker.
func NewPoller(store Store, conv Converter, queue *Queue, cfg types.PollerConfig) *Poller {
	maxErrs := cfg.MaxStatusErrors
	if maxErrs <= 0 {
		maxErrs = types.DefaultMaxStatusErrors
	}
	return &Poller{
		store:           store,
		conv:            conv,
		queue:           queue,
		delay:           cfg.Delay,
		deleteCompleted: cfg.DeleteCompleted,
		maxStatusErrors: maxErrs,
	}
}

// Run polls queued tasks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	log.Info().Msg("poller started")
	defer log.Info().Msg("poller stopped")

	for ctx.Err() == nil {
		e, ok := p.next(ctx)
		if !ok {
			continue
		}
		p.handle(ctx, e)

		select {
		case <-ctx.Done():
		case <-time.After(p.delay):
		}
	}
	return nil
}

func (p *Poller) next(ctx context.Context) (types.Entry, bool) {
	if p.held != nil {
		e := *p.held
		p.held = nil
		return e, true
	}
	return p.queue.Pop(ctx, popWait)
}

func (p *Poller) requeue(e types.Entry) {
	if !p.queue.TryPush(e) {
		p.held = &e
	}
}

// handle runs one status check for e and acts on the answer.
func (p *Poller) handle(ctx context.Context, e types.Entry) {
	status, err := p.conv.Status(ctx, e.TaskID)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn().Str("task_id", e.TaskID).Str("path", e.Path).
				Msg("shutdown while polling, file left claimed until released")
			return
		}
		metrics.StatusErrorsTotal.Inc()
		p.retry(e, err)
		return
	}
	metrics.StatusPolledTotal.WithLabelValues(string(status)).Inc()

	if !status.Terminal() {
		log.Debug().Str("task_id", e.TaskID).Str("status", string(status)).Msg("task not finished")
		e.StatusErrors = 0
		p.requeue(e)
		return
	}
	if status == types.StatusError {
		fail(p.store, e.Path, types.CodeRemoteFailed)
		return
	}
	p.collect(ctx, e)
}

// retry re-enqueues e after a failed query, or fails the task once the
// consecutive failure count reaches the cap.
func (p *Poller) retry(e types.Entry, err error) {
	e.StatusErrors++
	if e.StatusErrors >= p.maxStatusErrors {
		log.Error().Err(err).Str("task_id", e.TaskID).Int("attempts", e.StatusErrors).
			Msg("giving up on task after repeated failures")
		fail(p.store, e.Path, types.CodeStatusLost)
		return
	}
	log.Warn().Err(err).Str("task_id", e.TaskID).Int("attempt", e.StatusErrors).
		Int("max", p.maxStatusErrors).Msg("task check failed, re-enqueued")
	p.requeue(e)
}

// collect fetches the result of a completed task and finalizes it.
func (p *Poller) collect(ctx context.Context, e types.Entry) {
	out := p.conv.Result(ctx, e.TaskID)
	if ctx.Err() != nil {
		log.Warn().Str("task_id", e.TaskID).Str("path", e.Path).
			Msg("shutdown while fetching report, file left claimed until released")
		return
	}
	if !out.OK() {
		fail(p.store, e.Path, out.Code)
		return
	}

	if err := p.store.Succeed(e.Path, out.Payload); err != nil {
		p.retry(e, err)
		return
	}
	metrics.TasksFinishedTotal.WithLabelValues(types.CodeSuccess).Inc()
	log.Info().Str("task_id", e.TaskID).Str("path", e.Path).Int("bytes", len(out.Payload)).Msg("task converted")

	if p.deleteCompleted {
		p.conv.DeleteTask(ctx, e.TaskID)
	}
}
