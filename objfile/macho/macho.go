// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package macho parses thin and fat (universal) Mach-O object files, and
// reconstructs STAB-based debug maps for statically linked binaries. It is
// built on github.com/blacktop/go-macho rather than the standard library's
// debug/macho: the stdlib reader has no STAB/N_OSO support and only a
// bare-bones fat-binary API, both of which this package needs.
package macho

import (
	"fmt"
	"runtime"
	"sort"

	gomacho "github.com/blacktop/go-macho"
	"github.com/blacktop/go-macho/types"

	"github.com/golang-debug/symbolize/arch"
	"github.com/golang-debug/symbolize/breader"
	"github.com/golang-debug/symbolize/frame"
	"github.com/golang-debug/symbolize/objfile"
)

func init() {
	objfile.RegisterMachO(func(path string) (objfile.Parser, error) { return Open(path) })
	objfile.RegisterMachOBytes(func(data []byte) (objfile.Parser, error) { return OpenBytes(data) })
}

type symbol struct {
	name  string
	value uint64
}

// stabFunc records one N_FUN-delimited function inside an N_OSO object
// file, for reconstructing a per-object debug map from STAB-style
// debug symbols.
type stabFunc struct {
	name      string
	addr      uint64
	size      uint64
	objectOSO string
}

// File is an opened (possibly fat, slice-selected) Mach-O object.
type File struct {
	path      string
	f         *gomacho.File
	imageBase frame.PC

	syms  []symbol // sorted by value
	stabs []stabFunc
}

// Open opens path, picking the first slice whose CPU type matches the
// running CPU for fat binaries. The CPU subtype is not compared.
func Open(path string) (*File, error) {
	ff, ferr := gomacho.OpenFat(path)
	if ferr == nil {
		defer ff.Close()
		host := hostArch()
		var chosen *gomacho.File
		for _, a := range ff.Arches {
			if int32(a.CPU) == host.MachOCPU {
				chosen = a.File
				break
			}
		}
		if chosen == nil {
			return nil, fmt.Errorf("macho: %s: no slice for host arch %s (format_error)", path, host.Name)
		}
		return newFile(path, chosen)
	}

	f, err := gomacho.Open(path)
	if err != nil {
		return nil, fmt.Errorf("macho: %s: %w (format_error)", path, err)
	}
	return newFile(path, f)
}

// OpenBytes parses an in-memory (necessarily thin, never fat) Mach-O image
// through breader's borrowed-span reader, for JIT-emitted blobs with no
// backing file.
func OpenBytes(data []byte) (*File, error) {
	br := breader.FromBytes(data)
	f, err := gomacho.NewFile(br.StdReaderAt())
	if err != nil {
		return nil, fmt.Errorf("macho: in-memory image: %w (format_error)", err)
	}
	return newFile("<memory>", f)
}

func hostArch() *arch.Architecture {
	if a := arch.Lookup(runtime.GOARCH); a != nil {
		return a
	}
	return &arch.AMD64
}

func newFile(path string, f *gomacho.File) (*File, error) {
	mf := &File{path: path, f: f}
	mf.imageBase = mf.findImageBase()
	mf.loadSymbols()
	return mf, nil
}

func (f *File) Path() string        { return f.path }
func (f *File) Close() error        { return f.f.Close() }
func (f *File) ImageBase() frame.PC { return f.imageBase }

// findImageBase uses the __TEXT segment's vmaddr.
func (f *File) findImageBase() frame.PC {
	if seg := f.f.Segment("__TEXT"); seg != nil {
		return frame.PC(seg.Addr)
	}
	return 0
}

func (f *File) loadSymbols() {
	if f.f.Symtab == nil {
		return
	}
	var curOSO string
	var funStart string
	var funAddr uint64
	for _, s := range f.f.Symtab.Syms {
		if s.Type&types.N_STAB != 0 {
			switch s.Type {
			case types.N_OSO:
				curOSO = s.Name
			case types.N_FUN:
				if s.Name != "" {
					funStart, funAddr = s.Name, s.Value
				} else if funStart != "" {
					f.stabs = append(f.stabs, stabFunc{name: funStart, addr: funAddr, size: s.Value - funAddr, objectOSO: curOSO})
					funStart = ""
				}
			}
			continue
		}
		if s.Name == "" {
			continue
		}
		f.syms = append(f.syms, symbol{name: s.Name, value: s.Value})
	}
	sort.Slice(f.syms, func(i, j int) bool { return f.syms[i].value < f.syms[j].value })
}

// LookupSymbol does a best-effort static lookup: the last symbol-table entry
// whose value <= objectPC (no size bound), or, only when no such entry
// exists, a STAB function range reconstructed from N_FUN pairs.
func (f *File) LookupSymbol(objectPC frame.PC) (string, bool) {
	pc := uint64(objectPC)
	i := sort.Search(len(f.syms), func(i int) bool { return f.syms[i].value > pc })
	if i > 0 {
		return f.syms[i-1].name, true
	}
	for _, sf := range f.stabs {
		if pc >= sf.addr && pc < sf.addr+sf.size {
			return sf.name, true
		}
	}
	return "", false
}

func (f *File) DebugSection(name string) []byte {
	sec := f.f.Section("__DWARF", name)
	if sec == nil {
		return nil
	}
	data, err := sec.Data()
	if err != nil {
		return nil
	}
	return data
}

// DebugLink has no direct Mach-O equivalent; the resolver instead looks for
// a sibling .dSYM bundle (see objfile/debuglink.DSYMPath).
func (f *File) DebugLink() (string, uint32, bool) { return "", 0, false }
