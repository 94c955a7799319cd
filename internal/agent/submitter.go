// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/doc-conv-agent/internal/converter"
	"github.com/pdiddy/doc-conv-agent/internal/metrics"
	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

// Submitter claims ready files and turns them into queued remote tasks.
type Submitter struct {
	store     Store
	conv      Converter
	queue     *Queue
	delay     time.Duration
	queueWait time.Duration
	wake      <-chan struct{}
}

// NewSubmitter creates a submission worker. wake may be nil; when set, a
// value on it cuts the idle delay short.
func NewSubmitter(store Store, conv Converter, queue *Queue, cfg types.SubmitterConfig, wake <-chan struct{}) *Submitter {
	return &Submitter{
		store:     store,
		conv:      conv,
		queue:     queue,
		delay:     cfg.Delay,
		queueWait: cfg.QueueWait,
		wake:      wake,
	}
}

// Run claims and submits files until ctx is cancelled.
func (s *Submitter) Run(ctx context.Context) error {
	log.Info().Msg("submitter started")
	defer log.Info().Msg("submitter stopped")

	for ctx.Err() == nil {
		if s.step(ctx) {
			continue
		}
		select {
		case <-ctx.Done():
		case <-s.wake:
		case <-time.After(s.delay):
		}
	}
	return nil
}

// step handles at most one file and reports whether it claimed one.
func (s *Submitter) step(ctx context.Context) bool {
	path, ok, err := s.store.Claim()
	if err != nil {
		log.Error().Err(err).Msg("claim failed")
		return false
	}
	if !ok {
		return false
	}
	metrics.TasksClaimedTotal.Inc()
	s.submit(ctx, path)
	return true
}

func (s *Submitter) submit(ctx context.Context, path string) {
	taskID, err := s.conv.CreateTask(ctx, path)
	switch {
	case errors.Is(err, converter.ErrUnsupportedFileType):
		fail(s.store, path, types.CodeUnsupportedType)
		return
	case errors.Is(err, converter.ErrConverter):
		fail(s.store, path, types.CodeConverterError)
		return
	case err != nil:
		log.Error().Err(err).Str("path", path).Msg("submission aborted, file left claimed until released")
		return
	}

	entry := types.Entry{TaskID: taskID, Path: path}
	err = s.queue.Push(ctx, entry, s.queueWait)
	switch {
	case errors.Is(err, ErrQueueFull):
		log.Error().Str("task_id", taskID).Str("path", path).Dur("wait", s.queueWait).
			Msg("queue saturated, remote task abandoned")
		fail(s.store, path, types.CodeQueueSaturated)
	case err != nil:
		log.Warn().Str("task_id", taskID).Str("path", path).
			Msg("shutdown before task was queued, file left claimed until released")
	default:
		metrics.TasksSubmittedTotal.Inc()
		log.Debug().Str("task_id", taskID).Str("path", path).Int("queued", s.queue.Len()).Msg("task queued")
	}
}
