// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arch contains architecture-specific definitions used while
// parsing object file containers: pointer width, byte order, and the
// CPU type/subtype pairs Mach-O fat binaries use to pick a slice.
package arch

import "encoding/binary"

// Architecture describes the address-width and byte-order conventions of a
// target CPU, and (for Mach-O) the CPU type/subtype pair used to select a
// fat-binary slice.
type Architecture struct {
	Name        string
	PointerSize int // 4 or 8
	ByteOrder   binary.ByteOrder

	// Mach-O CPU_TYPE_* / CPU_SUBTYPE_* values. Zero for formats that don't
	// use fat binaries (ELF, PE).
	MachOCPU    int32
	MachOSubCPu int32
}

// Uint reads a pointer-sized unsigned integer in a's byte order.
func (a *Architecture) Uint(buf []byte) uint64 {
	if len(buf) != a.PointerSize {
		panic("bad PointerSize")
	}
	switch a.PointerSize {
	case 4:
		return uint64(a.ByteOrder.Uint32(buf))
	case 8:
		return a.ByteOrder.Uint64(buf)
	}
	panic("no PointerSize")
}

const (
	machoCPUTypeX86    = 0x00000007
	machoCPUTypeX86_64 = 0x01000007
	machoCPUTypeArm    = 0x0000000c
	machoCPUTypeArm64  = 0x0100000c

	machoCPUSubtypeAll = 0x00000000
)

var (
	AMD64 = Architecture{Name: "amd64", PointerSize: 8, ByteOrder: binary.LittleEndian, MachOCPU: machoCPUTypeX86_64, MachOSubCPu: machoCPUSubtypeAll}
	X86   = Architecture{Name: "386", PointerSize: 4, ByteOrder: binary.LittleEndian, MachOCPU: machoCPUTypeX86, MachOSubCPu: machoCPUSubtypeAll}
	ARM64 = Architecture{Name: "arm64", PointerSize: 8, ByteOrder: binary.LittleEndian, MachOCPU: machoCPUTypeArm64, MachOSubCPu: machoCPUSubtypeAll}
	ARM   = Architecture{Name: "arm", PointerSize: 4, ByteOrder: binary.LittleEndian, MachOCPU: machoCPUTypeArm, MachOSubCPu: machoCPUSubtypeAll}
)

// byName indexes the known architectures for Lookup.
var byName = map[string]*Architecture{
	AMD64.Name: &AMD64,
	X86.Name:   &X86,
	ARM64.Name: &ARM64,
	ARM.Name:   &ARM,
}

// Lookup returns the Architecture for a Go GOARCH-style name ("amd64",
// "386", "arm64", "arm"), or nil if unknown.
func Lookup(name string) *Architecture {
	return byName[name]
}
