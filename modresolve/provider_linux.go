// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package modresolve

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-debug/symbolize/frame"
)

// procMapsProvider enumerates loaded modules from /proc/<pid>/maps, the
// standard Linux source of truth for a process's memory layout.
type procMapsProvider struct{}

func defaultProvider() Provider { return procMapsProvider{} }

func (procMapsProvider) Modules(pid int) ([]Record, error) {
	path := "/proc/self/maps"
	if pid != 0 {
		path = fmt.Sprintf("/proc/%d/maps", pid)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("modresolve: %w", err)
	}
	defer f.Close()

	type span struct{ low, high frame.PC }
	byPath := map[string]*span{}
	var order []string

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		objPath := fields[5]
		if objPath == "" || strings.HasPrefix(objPath, "[") {
			continue
		}
		addrs := strings.SplitN(fields[0], "-", 2)
		if len(addrs) != 2 {
			continue
		}
		low, err1 := strconv.ParseUint(addrs[0], 16, 64)
		high, err2 := strconv.ParseUint(addrs[1], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		s, ok := byPath[objPath]
		if !ok {
			s = &span{low: frame.PC(low), high: frame.PC(high)}
			byPath[objPath] = s
			order = append(order, objPath)
		} else {
			if frame.PC(low) < s.low {
				s.low = frame.PC(low)
			}
			if frame.PC(high) > s.high {
				s.high = frame.PC(high)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("modresolve: reading %s: %w", path, err)
	}

	recs := make([]Record, 0, len(order))
	for _, p := range order {
		s := byPath[p]
		recs = append(recs, Record{ObjectPath: p, RuntimeBase: s.low, Low: s.low, High: s.high})
	}
	return recs, nil
}
