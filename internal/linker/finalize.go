// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package linker

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

// journal is the content of a .fin marker. It records the outcome of a
// finalize transition before any target file is removed, so an interrupted
// transition can be completed by Recover.
type journal struct {
	// Outcome is "0" for success or the failure code.
	Outcome string `yaml:"outcome"`

	// Origin is the file name of the task's original in the target directory.
	Origin string `yaml:"origin"`
}

// Succeed stores payload as the task's result and retires the task's target
// files. A stale result with the same name is replaced. The result .eof
// marker, containing "0", is written last.
//
// Only a failure to store the payload is returned; the target directory is
// untouched in that case. Every later step is best-effort and logged.
func (l *Linker) Succeed(origin string, payload []byte) error {
	base := baseName(origin)
	resultPath := l.resultPath(base)

	if l.exists(resultPath) {
		log.Warn().Str("path", resultPath).Msg("result already exists, replacing it")
		l.remove(l.result(base + extEOF))
		l.remove(resultPath)
	}

	if err := l.writeFile(resultPath, payload); err != nil {
		return fmt.Errorf("storing result for %s: %w", base, err)
	}

	j := journal{Outcome: types.CodeSuccess, Origin: filepath.Base(origin)}
	l.writeJournal(base, j)
	l.complete(base, j)
	return nil
}

// Fail moves the task's original into the error directory and records code
// as the task's outcome. A file already in the error directory under the
// same name is renamed out of the way first. Failures are logged and never
// returned.
func (l *Linker) Fail(origin string, code string) {
	base := baseName(origin)
	j := journal{Outcome: code, Origin: filepath.Base(origin)}
	l.writeJournal(base, j)
	l.complete(base, j)
}

// complete performs the part of a finalize transition that follows the
// journal write. It is shared by Succeed, Fail, and Recover and tolerates
// steps that were already done.
func (l *Linker) complete(base string, j journal) {
	origin := l.target(j.Origin)

	if j.Outcome == types.CodeSuccess {
		l.remove(origin)
	} else {
		l.moveToErrorDir(origin)
		// A payload left by an earlier success must not sit next to a failure code.
		if stale := l.resultPath(base); l.exists(stale) {
			log.Warn().Str("path", stale).Str("code", j.Outcome).Msg("removing stale result")
			l.remove(stale)
		}
	}
	l.remove(l.target(base + extEOF))
	l.remove(l.target(base + extIng))

	if err := l.writeFile(l.result(base+extEOF), []byte(j.Outcome)); err != nil {
		log.Error().Err(err).Str("base", base).Str("code", j.Outcome).Msg("could not write result marker")
		return
	}
	l.remove(l.target(base + extFin))
}

// moveToErrorDir moves origin into the error directory.
func (l *Linker) moveToErrorDir(origin string) {
	name := filepath.Base(origin)
	dest := filepath.Join(l.errorDir, name)

	if !l.exists(origin) {
		log.Warn().Str("path", origin).Msg("original already gone, nothing to move to error directory")
		return
	}

	if l.exists(dest) {
		ext := filepath.Ext(name)
		renamed := filepath.Join(l.errorDir, baseName(name)+l.suffix()+ext)
		log.Warn().Str("path", dest).Str("renamed", renamed).Msg("file already in error directory, renaming existing file")
		if err := l.fs.Rename(dest, renamed); err != nil {
			log.Error().Err(err).Str("path", dest).Msg("could not rename existing error file")
		}
	}

	if err := l.move(origin, dest); err != nil {
		log.Error().Err(err).Str("path", origin).Str("dest", dest).Msg("could not move file to error directory")
	}
}

// move renames src to dst, falling back to copy and remove when the
// directories are on different devices.
func (l *Linker) move(src, dst string) error {
	err := l.fs.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	in, openErr := l.fs.Open(src)
	if openErr != nil {
		return err
	}
	defer in.Close()

	out, createErr := l.fs.Create(dst)
	if createErr != nil {
		return fmt.Errorf("%w (copy fallback: %v)", err, createErr)
	}
	if _, copyErr := io.Copy(out, in); copyErr != nil {
		out.Close()
		l.fs.Remove(dst)
		return fmt.Errorf("%w (copy fallback: %v)", err, copyErr)
	}
	if closeErr := out.Close(); closeErr != nil {
		return fmt.Errorf("%w (copy fallback: %v)", err, closeErr)
	}
	return l.fs.Remove(src)
}

func (l *Linker) writeJournal(base string, j journal) {
	data, err := yaml.Marshal(j)
	if err == nil {
		err = l.writeFile(l.target(base+extFin), data)
	}
	if err != nil {
		log.Error().Err(err).Str("base", base).Msg("could not journal finalize transition")
	}
}

// Recover completes finalize transitions that were journaled but not
// finished, typically because the process stopped mid-way. It returns the
// number of transitions completed.
func (l *Linker) Recover() (int, error) {
	entries, err := afero.ReadDir(l.fs, l.targetDir)
	if err != nil {
		return 0, fmt.Errorf("listing target directory %s: %w", l.targetDir, err)
	}

	recovered := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != extFin {
			continue
		}
		base := baseName(e.Name())
		path := l.target(e.Name())

		data, err := afero.ReadFile(l.fs, path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Error().Err(err).Str("path", path).Msg("could not read journal")
			continue
		}
		var j journal
		if err := yaml.Unmarshal(data, &j); err != nil || j.Outcome == "" || j.Origin == "" {
			log.Error().Err(err).Str("path", path).Msg("unusable journal, leaving it for an operator")
			continue
		}

		log.Info().Str("base", base).Str("code", j.Outcome).Msg("resuming interrupted finalize")
		l.complete(base, j)
		recovered++
	}
	return recovered, nil
}
