// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package linker

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

// newTestLinker creates a Linker over fresh target, result, and error
// directories under a temp dir.
func newTestLinker(t *testing.T) (*Linker, types.PathConfig) {
	t.Helper()
	root := t.TempDir()
	paths := types.PathConfig{
		TargetDir: filepath.Join(root, "target"),
		ResultDir: filepath.Join(root, "result"),
		ErrorDir:  filepath.Join(root, "error"),
	}
	l := NewOS(paths, "pdf")
	require.NoError(t, l.EnsureDirs())
	return l, paths
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestClaim(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		wantOK   bool
		wantPath string
	}{
		{
			name:     "claims file with eof marker",
			files:    []string{"sample.docx", "sample.eof"},
			wantOK:   true,
			wantPath: "sample.docx",
		},
		{
			name:   "skips file still being written",
			files:  []string{"sample.docx"},
			wantOK: false,
		},
		{
			name:   "skips claimed file",
			files:  []string{"sample.docx", "sample.eof", "sample.ing"},
			wantOK: false,
		},
		{
			name:   "skips finalizing file",
			files:  []string{"sample.docx", "sample.eof", "sample.fin"},
			wantOK: false,
		},
		{
			name:   "ignores orphan markers",
			files:  []string{"orphan.eof"},
			wantOK: false,
		},
		{
			name:     "claims first unclaimed in name order",
			files:    []string{"a.doc", "a.eof", "a.ing", "b.xls", "b.eof", "c.ppt", "c.eof"},
			wantOK:   true,
			wantPath: "b.xls",
		},
		{
			name:   "empty directory",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, paths := newTestLinker(t)
			for _, f := range tt.files {
				writeFile(t, paths.TargetDir, f, "")
			}

			path, ok, err := l.Claim()
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Empty(t, path)
				return
			}
			assert.Equal(t, filepath.Join(paths.TargetDir, tt.wantPath), path)
			assert.FileExists(t, filepath.Join(paths.TargetDir, BaseName(tt.wantPath)+".ing"))
		})
	}
}

func TestClaim_SecondCallSkipsClaimed(t *testing.T) {
	l, paths := newTestLinker(t)
	writeFile(t, paths.TargetDir, "sample.docx", "data")
	writeFile(t, paths.TargetDir, "sample.eof", "")

	_, ok, err := l.Claim()
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Claim()
	require.NoError(t, err)
	assert.False(t, ok, "a claimed task must not be claimed twice")
}

func TestClaim_ConcurrentClaimersAreExclusive(t *testing.T) {
	l, paths := newTestLinker(t)
	bases := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	for _, b := range bases {
		writeFile(t, paths.TargetDir, b+".docx", b)
		writeFile(t, paths.TargetDir, b+".eof", "")
	}

	var (
		mu      sync.Mutex
		claimed []string
		wg      sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				path, ok, err := l.Claim()
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if !ok {
					return
				}
				mu.Lock()
				claimed = append(claimed, BaseName(path))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Strings(claimed)
	assert.Equal(t, bases, claimed, "every task claimed exactly once")
}

func TestClaim_MissingTargetDir(t *testing.T) {
	l := NewOS(types.PathConfig{TargetDir: filepath.Join(t.TempDir(), "missing")}, "pdf")
	_, _, err := l.Claim()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing target directory")
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/in/sample.docx", "sample"},
		{"sample.tar.gz", "sample.tar"},
		{"noext", "noext"},
		{"/in/report.2024.xlsx", "report.2024"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BaseName(tt.path), tt.path)
	}
}
