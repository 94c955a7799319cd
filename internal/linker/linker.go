// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package linker implements the marker-file state store that links external
// producers and consumers to the conversion pipeline.
//
// A task is a base file name. Its state is the set of sibling files that share
// the base name in the target, result, and error directories:
//
//	target/<base>.<ext>  the file to convert
//	target/<base>.eof    the producer finished writing; the task may be claimed
//	target/<base>.ing    the task is claimed by a worker
//	target/<base>.fin    a finalize transition is journaled but not complete
//	result/<base>.eof    the outcome: "0" on success, otherwise an error code
//	result/<base>.<rext> the converted payload (success only)
//	error/<base>.<ext>   the original of a failed task
//
// The result .eof is always written last, so a consumer that waits for it
// never observes a partial outcome.
package linker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

const (
	extEOF = ".eof"
	extIng = ".ing"
	extFin = ".fin"
)

// Linker claims and finalizes tasks through marker files. All filesystem
// access goes through fs so tests can substitute an in-memory filesystem.
type Linker struct {
	fs        afero.Fs
	targetDir string
	resultDir string
	errorDir  string
	resultExt string

	// suffix returns the random component used to rename colliding files
	// in the error directory.
	suffix func() string
}

// New creates a Linker over the given filesystem and directories. resultExt
// is the extension given to converted payloads, with or without a leading dot.
func New(fsys afero.Fs, paths types.PathConfig, resultExt string) *Linker {
	resultExt = strings.TrimPrefix(resultExt, ".")
	if resultExt == "" {
		resultExt = types.DefaultResultExt
	}
	return &Linker{
		fs:        fsys,
		targetDir: paths.TargetDir,
		resultDir: paths.ResultDir,
		errorDir:  paths.ErrorDir,
		resultExt: resultExt,
		suffix: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

// NewOS creates a Linker backed by the operating system filesystem.
func NewOS(paths types.PathConfig, resultExt string) *Linker {
	return New(afero.NewOsFs(), paths, resultExt)
}

// EnsureDirs creates the target, result, and error directories if missing.
func (l *Linker) EnsureDirs() error {
	for _, dir := range []string{l.targetDir, l.resultDir, l.errorDir} {
		if err := l.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// Claim scans the target directory for a task whose .eof marker exists and
// that is neither claimed (.ing) nor finalizing (.fin). The .ing marker is
// created exclusively, so concurrent claimers never select the same base
// name. It returns the path of the claimed file, or ok=false when nothing is
// claimable.
func (l *Linker) Claim() (path string, ok bool, err error) {
	entries, err := afero.ReadDir(l.fs, l.targetDir)
	if err != nil {
		return "", false, fmt.Errorf("listing target directory %s: %w", l.targetDir, err)
	}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			present[e.Name()] = true
		}
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || isMarker(name) {
			continue
		}
		base := baseName(name)
		if !present[base+extEOF] || present[base+extIng] || present[base+extFin] {
			continue
		}

		claimed, err := l.createExclusive(l.target(base + extIng))
		if err != nil {
			return "", false, err
		}
		if !claimed {
			continue
		}

		// The listing may be stale: another worker could have finished this
		// base between the scan and the exclusive create.
		origin := l.target(name)
		if !l.exists(origin) || !l.exists(l.target(base+extEOF)) {
			l.remove(l.target(base + extIng))
			continue
		}

		log.Debug().Str("path", origin).Msg("claimed task")
		return origin, true, nil
	}

	return "", false, nil
}

// createExclusive creates an empty file at path, failing if it exists. It
// reports false without error when another claimer created it first.
func (l *Linker) createExclusive(path string) (bool, error) {
	f, err := l.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) || os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("creating claim marker %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("closing claim marker %s: %w", path, err)
	}
	return true, nil
}

func (l *Linker) target(name string) string { return filepath.Join(l.targetDir, name) }
func (l *Linker) result(name string) string { return filepath.Join(l.resultDir, name) }

// resultPath returns the payload path for base.
func (l *Linker) resultPath(base string) string {
	return l.result(base + "." + l.resultExt)
}

func (l *Linker) exists(path string) bool {
	ok, err := afero.Exists(l.fs, path)
	return err == nil && ok
}

// remove deletes path, logging any failure other than the file already
// being gone.
func (l *Linker) remove(path string) {
	if err := l.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error().Err(err).Str("path", path).Msg("could not remove file")
	}
}

// writeFile writes data to path through a temporary sibling and a rename,
// so readers see either the old content or the complete new content.
func (l *Linker) writeFile(path string, data []byte) error {
	dir, name := filepath.Split(path)
	tmp, err := afero.TempFile(l.fs, dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		l.fs.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		l.fs.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := l.fs.Rename(tmpName, path); err != nil {
		l.fs.Remove(tmpName)
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// isMarker reports whether name is one of the agent's marker files.
func isMarker(name string) bool {
	switch filepath.Ext(name) {
	case extEOF, extIng, extFin:
		return true
	}
	return strings.HasPrefix(name, ".") && strings.Contains(name, ".tmp-")
}

// baseName strips the directory and the last extension from path.
func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
