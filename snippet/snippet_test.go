// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snippet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "source.cpp")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestGetReturnsSurroundingLines(t *testing.T) {
	path := writeTempFile(t, strings.Join([]string{"l1", "l2", "l3", "l4", "l5"}, "\n"))
	r := NewReader()
	lines, ok := r.Get(path, 3, 1)
	require.True(t, ok)
	assert.Equal(t, []string{"l2", "l3", "l4"}, lines)
}

func TestGetClampsAtFileBoundaries(t *testing.T) {
	path := writeTempFile(t, strings.Join([]string{"l1", "l2", "l3"}, "\n"))
	r := NewReader()
	lines, ok := r.Get(path, 1, 5)
	require.True(t, ok)
	assert.Equal(t, []string{"l1", "l2", "l3"}, lines)
}

func TestGetTrimsLeadingBlankLines(t *testing.T) {
	path := writeTempFile(t, strings.Join([]string{"a", "", "", "b", "c"}, "\n"))
	r := NewReader()
	lines, ok := r.Get(path, 4, 2)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "c"}, lines)
}

func TestGetMissingFileIsNonFatal(t *testing.T) {
	r := NewReader()
	_, ok := r.Get("/no/such/file.cpp", 1, 1)
	assert.False(t, ok)
}

func TestGetCachesAcrossCalls(t *testing.T) {
	path := writeTempFile(t, "a\nb\nc")
	r := NewReader()
	_, ok := r.Get(path, 1, 0)
	require.True(t, ok)
	require.NoError(t, os.Remove(path))
	// Second call must be served from cache, not re-read the now-deleted file.
	lines, ok := r.Get(path, 2, 0)
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, lines)
}
