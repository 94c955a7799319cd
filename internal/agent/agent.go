// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent runs the conversion pipeline: a submission worker claims
// files and creates remote tasks, a polling worker tracks those tasks and
// finalizes them, and a supervisor ties both to a shared context.
//
// The workers share only the work queue and the context. All filesystem
// state lives behind Store; all remote calls go through Converter.
package agent

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/doc-conv-agent/internal/metrics"
	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

// Store is the marker-file state store the workers drive.
type Store interface {
	Claim() (path string, ok bool, err error)
	Succeed(origin string, payload []byte) error
	Fail(origin string, code string)
}

// Workspace is a Store that can also prepare its directories and complete
// finalize transitions left over from a previous run.
type Workspace interface {
	Store
	EnsureDirs() error
	Recover() (int, error)
}

// Converter is the remote task protocol.
type Converter interface {
	CreateTask(ctx context.Context, path string) (string, error)
	Status(ctx context.Context, taskID string) (types.LocalStatus, error)
	Result(ctx context.Context, taskID string) types.Outcome
	DeleteTask(ctx context.Context, taskID string)
}

// fail finalizes origin with code and counts the outcome.
func fail(store Store, origin, code string) {
	log.Error().Str("path", origin).Str("code", code).Msg("task failed")
	store.Fail(origin, code)
	metrics.TasksFinishedTotal.WithLabelValues(code).Inc()
}
