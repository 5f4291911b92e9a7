// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package objfile defines the common contract the three object-file
// parsers (ELF, Mach-O, PE) implement, and dispatches Open to the right one
// by sniffing the file's magic bytes.
package objfile

import (
	"fmt"
	"os"

	"github.com/golang-debug/symbolize/frame"
)

// Parser is the contract every container format satisfies.
type Parser interface {
	// Path is the file this parser was opened from.
	Path() string

	// ImageBase is the preferred virtual address of the module's text, as
	// recorded in the container (not where it was actually loaded).
	ImageBase() frame.PC

	// LookupSymbol does a best-effort static lookup of objectPC in this
	// parser's own symbol table(s). ok is false on a lookup miss, never an
	// error: a lookup miss, not a failure.
	LookupSymbol(objectPC frame.PC) (name string, ok bool)

	// DebugSection exposes DWARF section bytes (already decompressed) by
	// their canonical name (".debug_info", ".debug_line", ...), or nil if
	// absent.
	DebugSection(name string) []byte

	// DebugLink returns the file name recorded in .gnu_debuglink and its
	// CRC-32, if present. Mach-O and PE parsers always report ok == false.
	DebugLink() (path string, crc32 uint32, ok bool)

	Close() error
}

// Magic-sniffs the first few bytes of path and opens it with the matching
// parser.
func Open(path string) (Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("objfile: %w", err)
	}
	var magic [4]byte
	if _, err := f.ReadAt(magic[:], 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("objfile: reading magic of %s: %w", path, err)
	}
	f.Close()

	switch {
	case magic[0] == 0x7F && magic[1] == 'E' && magic[2] == 'L' && magic[3] == 'F':
		return openELF(path)
	case isMachOMagic(magic):
		return openMachO(path)
	case magic[0] == 'M' && magic[1] == 'Z':
		return openPE(path)
	default:
		return nil, fmt.Errorf("objfile: %s: unrecognized container format (format_error)", path)
	}
}

// OpenBytes magic-sniffs an in-memory object image (e.g. a JIT-emitted
// blob with no backing file) and opens it with the matching parser, through
// package breader's borrowed-span reader.
func OpenBytes(data []byte) (Parser, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("objfile: in-memory image: too short to sniff container format (format_error)")
	}
	var magic [4]byte
	copy(magic[:], data[:4])

	switch {
	case magic[0] == 0x7F && magic[1] == 'E' && magic[2] == 'L' && magic[3] == 'F':
		return openELFBytes(data)
	case isMachOMagic(magic):
		return openMachOBytes(data)
	case magic[0] == 'M' && magic[1] == 'Z':
		return openPEBytes(data)
	default:
		return nil, fmt.Errorf("objfile: in-memory image: unrecognized container format (format_error)")
	}
}

func isMachOMagic(m [4]byte) bool {
	be := uint32(m[0])<<24 | uint32(m[1])<<16 | uint32(m[2])<<8 | uint32(m[3])
	switch be {
	case 0xfeedface, 0xcefaedfe, // MH_MAGIC, MH_CIGAM
		0xfeedfacf, 0xcffaedfe, // MH_MAGIC_64, MH_CIGAM_64
		0xcafebabe, 0xbebafeca: // FAT_MAGIC, FAT_CIGAM
		return true
	}
	return false
}

// these are overridden by the elf/macho/pe sub-packages via init-time
// registration so objfile itself has no import-cycle on them.
var (
	openELFFunc   func(path string) (Parser, error)
	openMachOFunc func(path string) (Parser, error)
	openPEFunc    func(path string) (Parser, error)

	openELFBytesFunc   func(data []byte) (Parser, error)
	openMachOBytesFunc func(data []byte) (Parser, error)
	openPEBytesFunc    func(data []byte) (Parser, error)
)

func openELF(path string) (Parser, error) {
	if openELFFunc == nil {
		return nil, fmt.Errorf("objfile: elf backend not registered")
	}
	return openELFFunc(path)
}

func openMachO(path string) (Parser, error) {
	if openMachOFunc == nil {
		return nil, fmt.Errorf("objfile: macho backend not registered")
	}
	return openMachOFunc(path)
}

func openPE(path string) (Parser, error) {
	if openPEFunc == nil {
		return nil, fmt.Errorf("objfile: pe backend not registered")
	}
	return openPEFunc(path)
}

func openELFBytes(data []byte) (Parser, error) {
	if openELFBytesFunc == nil {
		return nil, fmt.Errorf("objfile: elf backend not registered")
	}
	return openELFBytesFunc(data)
}

func openMachOBytes(data []byte) (Parser, error) {
	if openMachOBytesFunc == nil {
		return nil, fmt.Errorf("objfile: macho backend not registered")
	}
	return openMachOBytesFunc(data)
}

func openPEBytes(data []byte) (Parser, error) {
	if openPEBytesFunc == nil {
		return nil, fmt.Errorf("objfile: pe backend not registered")
	}
	return openPEBytesFunc(data)
}

// RegisterELF lets the objfile/elf package plug itself in without objfile
// importing it directly (avoids elf/macho/pe each depending on each other).
func RegisterELF(open func(path string) (Parser, error))   { openELFFunc = open }
func RegisterMachO(open func(path string) (Parser, error)) { openMachOFunc = open }
func RegisterPE(open func(path string) (Parser, error))    { openPEFunc = open }

// RegisterELFBytes, RegisterMachOBytes and RegisterPEBytes do the same for
// the in-memory entry point, OpenBytes.
func RegisterELFBytes(open func(data []byte) (Parser, error))   { openELFBytesFunc = open }
func RegisterMachOBytes(open func(data []byte) (Parser, error)) { openMachOBytesFunc = open }
func RegisterPEBytes(open func(data []byte) (Parser, error))    { openPEBytesFunc = open }
