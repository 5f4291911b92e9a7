// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package snippet reads source-line context around a resolved frame's
// (file, line), independent of the rest of the pipeline:
// nothing here touches DWARF, object files, or module resolution.
package snippet

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// maxFileSize is the hard cap past which a file is silently skipped rather
// than read, guarding against snippet requests against huge generated
// sources.
const maxFileSize = 10 << 20 // 10 MiB

// Reader caches a file's decoded lines so repeated Get calls for the same
// file (common: many frames in one trace often share a handful of source
// files) pay the read-and-split cost once.
type Reader struct {
	cache map[string][]string // nil entry recorded for a file that failed or was too big
}

// NewReader creates an empty Reader.
func NewReader() *Reader { return &Reader{cache: make(map[string][]string)} }

// Get returns the lines in [target-context, target+context] (1-indexed,
// inclusive) from file, with leading blank lines trimmed from the result.
// A file that can't be read, or exceeds the 10 MiB cap, yields (nil, false)
// rather than an error: this failure is always non-fatal to the caller,
// which typically just omits the snippet from its output.
func (r *Reader) Get(file string, target, context int) ([]string, bool) {
	lines, ok := r.lines(file)
	if !ok {
		return nil, false
	}
	if target < 1 {
		return nil, false
	}
	lo := target - context
	if lo < 1 {
		lo = 1
	}
	hi := target + context
	if hi > len(lines) {
		hi = len(lines)
	}
	if lo > hi {
		return nil, false
	}
	out := lines[lo-1 : hi]
	for len(out) > 0 && strings.TrimSpace(out[0]) == "" {
		out = out[1:]
	}
	return out, true
}

func (r *Reader) lines(file string) ([]string, bool) {
	if lines, ok := r.cache[file]; ok {
		return lines, lines != nil
	}
	lines, err := readLines(file)
	r.cache[file] = lines // nil on failure, marking the file as permanently unavailable for this Reader
	return lines, err == nil
}

func readLines(file string) ([]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("snippet: opening %s: %w (io_error)", file, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("snippet: stat %s: %w (io_error)", file, err)
	}
	if st.Size() > maxFileSize {
		return nil, fmt.Errorf("snippet: %s exceeds %d byte cap (unsupported)", file, maxFileSize)
	}

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxFileSize)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("snippet: reading %s: %w (io_error)", file, err)
	}
	return lines, nil
}
