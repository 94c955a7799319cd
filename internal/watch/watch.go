// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch notifies the submission worker when a producer finishes
// writing a file into the target directory, so claims do not wait for the
// next idle tick.
package watch

import (
	"context"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher turns .eof marker creation in a directory into wake-up signals.
type Watcher struct {
	fsw  *fsnotify.Watcher
	dir  string
	wake chan struct{}
}

// New starts watching dir. Call Run to deliver events and Close when done.
func New(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{fsw: fsw, dir: dir, wake: make(chan struct{}, 1)}, nil
}

// Wake receives a value after one or more markers appeared. Bursts coalesce
// into a single signal.
func (w *Watcher) Wake() <-chan struct{} { return w.wake }

// Run forwards events until ctx is cancelled and then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".eof") {
				continue
			}
			log.Debug().Str("path", ev.Name).Msg("marker appeared")
			select {
			case w.wake <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("dir", w.dir).Msg("watcher error")
		}
	}
}
