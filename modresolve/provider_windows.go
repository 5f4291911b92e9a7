// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package modresolve

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/golang-debug/symbolize/frame"
)

// toolhelpProvider enumerates loaded modules through the ToolHelp32
// snapshot API (CreateToolhelp32Snapshot + Module32First/Next), the
// standard non-debugger way to list a process's loaded DLLs on Windows.
type toolhelpProvider struct{}

func defaultProvider() Provider { return toolhelpProvider{} }

func (toolhelpProvider) Modules(pid int) ([]Record, error) {
	targetPID := uint32(pid)
	if pid == 0 {
		targetPID = windows.GetCurrentProcessId()
	}

	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, targetPID)
	if err != nil {
		return nil, fmt.Errorf("modresolve: CreateToolhelp32Snapshot: %w (io_error)", err)
	}
	defer windows.CloseHandle(snap)

	var me windows.ModuleEntry32
	me.Size = uint32(unsafe.Sizeof(me))

	var recs []Record
	for err = windows.Module32First(snap, &me); err == nil; err = windows.Module32Next(snap, &me) {
		path := windows.UTF16ToString(me.ExePath[:])
		base := frame.PC(me.ModBaseAddr)
		recs = append(recs, Record{
			ObjectPath:  path,
			RuntimeBase: base,
			Low:         base,
			High:        base + frame.PC(me.ModBaseSize),
		})
	}
	if err != syscall.ERROR_NO_MORE_FILES {
		return nil, fmt.Errorf("modresolve: Module32Next: %w (io_error)", err)
	}
	return recs, nil
}
