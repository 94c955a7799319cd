// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package linker

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

// Phase describes where a task stands according to its marker files.
type Phase string

// PhaseIncoming means the original exists but the producer has not written
// .eof yet. PhaseUnmarked means a result payload exists without an outcome
// marker.
const (
	PhaseIncoming   Phase = "incoming"
	PhaseNew        Phase = "new"
	PhaseClaimed    Phase = "claimed"
	PhaseFinalizing Phase = "finalizing"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
	PhaseUnmarked   Phase = "unmarked"
	PhasePreserved  Phase = "preserved"
)

// TaskState is one base name as seen in one directory.
type TaskState struct {
	Dir   string   `json:"dir" yaml:"dir"`
	Base  string   `json:"base" yaml:"base"`
	Phase Phase    `json:"phase" yaml:"phase"`
	Code  string   `json:"code,omitempty" yaml:"code,omitempty"`
	Files []string `json:"files" yaml:"files"`
}

// ErrNotClaimed is returned by Release when the base name has no .ing marker.
var ErrNotClaimed = errors.New("task is not claimed")

// ErrFinalizing is returned by Release when a finalize transition is pending.
var ErrFinalizing = errors.New("task has a pending finalize transition")

// Release removes the claim marker of base so the task can be claimed again.
// It is the operator's remedy for a task left claimed after a failed
// submission or a lost queue entry.
func (l *Linker) Release(base string) error {
	if l.exists(l.target(base + extFin)) {
		return fmt.Errorf("releasing %s: %w", base, ErrFinalizing)
	}
	err := l.fs.Remove(l.target(base + extIng))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("releasing %s: %w", base, ErrNotClaimed)
	}
	if err != nil {
		return fmt.Errorf("releasing %s: %w", base, err)
	}
	log.Info().Str("base", base).Msg("released claim")
	return nil
}

// Inspect reports the state of every base name found in the target, result,
// and error directories, ordered by directory then base name.
func (l *Linker) Inspect() ([]TaskState, error) {
	var states []TaskState

	target, err := l.group(l.targetDir)
	if err != nil {
		return nil, err
	}
	for _, base := range sortedKeys(target) {
		files := target[base]
		has := func(ext string) bool { return slices.Contains(files, base+ext) }
		st := TaskState{Dir: "target", Base: base, Files: files}
		switch {
		case has(extFin):
			st.Phase = PhaseFinalizing
		case has(extIng):
			st.Phase = PhaseClaimed
		case has(extEOF):
			st.Phase = PhaseNew
		default:
			st.Phase = PhaseIncoming
		}
		states = append(states, st)
	}

	result, err := l.group(l.resultDir)
	if err != nil {
		return nil, err
	}
	for _, base := range sortedKeys(result) {
		files := result[base]
		st := TaskState{Dir: "result", Base: base, Files: files, Phase: PhaseUnmarked}
		if slices.Contains(files, base+extEOF) {
			data, err := afero.ReadFile(l.fs, l.result(base+extEOF))
			if err != nil {
				return nil, fmt.Errorf("reading outcome of %s: %w", base, err)
			}
			st.Code = strings.TrimSpace(string(data))
			if st.Code == types.CodeSuccess {
				st.Phase = PhaseSucceeded
			} else {
				st.Phase = PhaseFailed
			}
		}
		states = append(states, st)
	}

	preserved, err := l.group(l.errorDir)
	if err != nil {
		return nil, err
	}
	for _, base := range sortedKeys(preserved) {
		states = append(states, TaskState{Dir: "error", Base: base, Phase: PhasePreserved, Files: preserved[base]})
	}

	return states, nil
}

// group lists dir and groups file names by base name, skipping temporary
// files. A missing directory yields no entries.
func (l *Linker) group(dir string) (map[string][]string, error) {
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string][]string{}, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	groups := make(map[string][]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (strings.HasPrefix(name, ".") && strings.Contains(name, ".tmp-")) {
			continue
		}
		base := baseName(name)
		groups[base] = append(groups[base], name)
	}
	return groups, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BaseName returns the task base name of a path: the file name without its
// last extension.
func BaseName(path string) string { return baseName(filepath.Base(path)) }
