// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pe parses PE/COFF object files (PE32 and PE32+): DOS stub,
// "PE\0\0" signature, the optional header's ImageBase field, all
// end-to-end bounds-checked against malformed input.
// It is built on github.com/saferwall/pe, a parser written for malware
// analysis that already does the defensive, bounds-checked parsing this
// package needs, rather than re-deriving it on top of the narrower stdlib
// debug/pe.
package pe

import (
	"fmt"
	"sort"

	saferpe "github.com/saferwall/pe"

	"github.com/golang-debug/symbolize/frame"
	"github.com/golang-debug/symbolize/objfile"
)

func init() {
	objfile.RegisterPE(func(path string) (objfile.Parser, error) { return Open(path) })
	objfile.RegisterPEBytes(func(data []byte) (objfile.Parser, error) { return OpenBytes(data) })
}

type symbol struct {
	name  string
	value uint64
}

// File is an opened PE32/PE32+ object.
type File struct {
	path      string
	pf        *saferpe.File
	imageBase frame.PC
	syms      []symbol
}

// Open parses the DOS stub / NT headers / optional header and records
// ImageBase.
func Open(path string) (*File, error) {
	pf, err := saferpe.New(path, &saferpe.Options{})
	if err != nil {
		return nil, fmt.Errorf("pe: %s: %w (format_error)", path, err)
	}
	if err := pf.Parse(); err != nil {
		return nil, fmt.Errorf("pe: %s: %w (format_error)", path, err)
	}

	f := &File{path: path, pf: pf}
	f.imageBase = f.findImageBase()
	f.loadSymbols()
	return f, nil
}

// OpenBytes parses an in-memory PE image (e.g. a JIT-emitted blob with no
// backing file). Unlike the ELF and Mach-O backends, saferwall/pe already
// accepts a byte slice directly, so this doesn't need breader's span
// adapter.
func OpenBytes(data []byte) (*File, error) {
	pf, err := saferpe.NewBytes(data, &saferpe.Options{})
	if err != nil {
		return nil, fmt.Errorf("pe: in-memory image: %w (format_error)", err)
	}
	if err := pf.Parse(); err != nil {
		return nil, fmt.Errorf("pe: in-memory image: %w (format_error)", err)
	}
	f := &File{path: "<memory>", pf: pf}
	f.imageBase = f.findImageBase()
	f.loadSymbols()
	return f, nil
}

func (f *File) findImageBase() frame.PC {
	if f.pf.Is64 {
		return frame.PC(f.pf.NtHeader.OptionalHeader.(saferpe.ImageOptionalHeader64).ImageBase)
	}
	return frame.PC(f.pf.NtHeader.OptionalHeader.(saferpe.ImageOptionalHeader32).ImageBase)
}

func (f *File) loadSymbols() {
	for _, s := range f.pf.Symbols {
		if s.Name == "" || s.SectionNumber <= 0 {
			continue
		}
		sectIdx := int(s.SectionNumber) - 1
		if sectIdx < 0 || sectIdx >= len(f.pf.Sections) {
			continue
		}
		base := uint64(f.pf.Sections[sectIdx].Header.VirtualAddress)
		f.syms = append(f.syms, symbol{name: s.Name, value: base + uint64(s.Value)})
	}
	sort.Slice(f.syms, func(i, j int) bool { return f.syms[i].value < f.syms[j].value })
}

func (f *File) Path() string        { return f.path }
func (f *File) Close() error        { return nil }
func (f *File) ImageBase() frame.PC { return f.imageBase }

// LookupSymbol uses the last COFF symbol whose value <= objectPC; PE COFF
// symbol tables rarely carry a size, so this is last-symbol-wins rather
// than a bounded-interval accept, the same degradation accepted for
// stripped/partial symbol tables.
func (f *File) LookupSymbol(objectPC frame.PC) (string, bool) {
	pc := uint64(objectPC)
	i := sort.Search(len(f.syms), func(i int) bool { return f.syms[i].value > pc })
	if i == 0 {
		return "", false
	}
	return f.syms[i-1].name, true
}

func (f *File) DebugSection(name string) []byte {
	for _, s := range f.pf.Sections {
		if s.Header.Name.String() == name {
			data, err := s.Data(0, 0, f.pf)
			if err != nil {
				return nil
			}
			return data
		}
	}
	return nil
}

// DebugLink: PE has no .gnu_debuglink convention of its own; PDB-based
// external debug info is a separate lookup this package doesn't implement.
func (f *File) DebugLink() (string, uint32, bool) { return "", 0, false }
