// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elf parses ELF32/ELF64 object files, in both endiannesses,
// directly on top of the standard library's debug/elf, which is the
// ecosystem's canonical ELF reader for Go tooling. This package adds an
// explicit PT_PHDR-derived image base and transparent ELFCOMPRESS_ZSTD
// section decompression (stdlib only handles ZLIB), and a sorted-by-value
// symbol table for PC lookup.
package elf

import (
	"debug/elf"
	"fmt"
	"sort"

	"github.com/golang-debug/symbolize/breader"
	"github.com/golang-debug/symbolize/frame"
	"github.com/golang-debug/symbolize/objfile"
	"github.com/golang-debug/symbolize/objfile/compress"
)

func init() {
	objfile.RegisterELF(func(path string) (objfile.Parser, error) { return Open(path) })
	objfile.RegisterELFBytes(func(data []byte) (objfile.Parser, error) { return OpenBytes(data) })
}

type symbol struct {
	name  string
	value uint64
	size  uint64
}

// File is an opened ELF object.
type File struct {
	path      string
	ef        *elf.File
	imageBase frame.PC

	symsOnce bool
	syms     []symbol // sorted ascending by value; .symtab then .dynsym

	debugSections map[string][]byte
}

// Open validates the ELF magic/class/endianness/version and prepares lazy
// section and symbol access.
func Open(path string) (*File, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elf: %s: %w (format_error)", path, err)
	}
	f := &File{path: path, ef: ef}
	f.imageBase = f.findImageBase()
	return f, nil
}

// OpenBytes parses an in-memory ELF image (e.g. a JIT-emitted blob with no
// backing file) through breader's borrowed-span reader.
func OpenBytes(data []byte) (*File, error) {
	br := breader.FromBytes(data)
	ef, err := elf.NewFile(br.StdReaderAt())
	if err != nil {
		return nil, fmt.Errorf("elf: in-memory image: %w (format_error)", err)
	}
	f := &File{path: "<memory>", ef: ef}
	f.imageBase = f.findImageBase()
	return f, nil
}

func (f *File) Path() string { return f.path }

func (f *File) Close() error { return f.ef.Close() }

func (f *File) ImageBase() frame.PC { return f.imageBase }

// findImageBase derives the preferred base from the PT_PHDR program
// header: p_vaddr - p_offset. Without PT_PHDR it uses the lowest PT_LOAD's
// p_vaddr - p_offset, and 0 when there is no PT_LOAD either.
func (f *File) findImageBase() frame.PC {
	for _, p := range f.ef.Progs {
		if p.Type == elf.PT_PHDR {
			return frame.PC(p.Vaddr - p.Off)
		}
	}
	// Fallback: use the lowest PT_LOAD's vaddr-off, the convention most
	// non-PIE and many PIE linkers produce when there's no PT_PHDR.
	var base uint64
	have := false
	for _, p := range f.ef.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		b := p.Vaddr - p.Off
		if !have || b < base {
			base, have = b, true
		}
	}
	return frame.PC(base)
}

func (f *File) loadSymbols() {
	if f.symsOnce {
		return
	}
	f.symsOnce = true

	add := func(syms []elf.Symbol) {
		for _, s := range syms {
			if elf.ST_TYPE(s.Info) != elf.STT_FUNC && elf.ST_TYPE(s.Info) != elf.STT_OBJECT {
				continue
			}
			if s.Name == "" {
				continue
			}
			f.syms = append(f.syms, symbol{name: s.Name, value: s.Value, size: s.Size})
		}
	}
	if syms, err := f.ef.Symbols(); err == nil {
		add(syms)
	}
	if syms, err := f.ef.DynamicSymbols(); err == nil {
		add(syms)
	}
	sort.Slice(f.syms, func(i, j int) bool { return f.syms[i].value < f.syms[j].value })
}

// LookupSymbol finds the last symbol whose value <= objectPC, accepted only
// if objectPC falls within [value, value+size] (objectPC <= value+size).
func (f *File) LookupSymbol(objectPC frame.PC) (string, bool) {
	f.loadSymbols()
	pc := uint64(objectPC)
	i := sort.Search(len(f.syms), func(i int) bool { return f.syms[i].value > pc })
	if i == 0 {
		return "", false
	}
	s := f.syms[i-1]
	if pc > s.value+s.size {
		return "", false
	}
	return s.name, true
}

// DebugSection returns the (decompressed) contents of a DWARF section, or
// nil if absent.
func (f *File) DebugSection(name string) []byte {
	if f.debugSections == nil {
		f.debugSections = map[string][]byte{}
	}
	if b, ok := f.debugSections[name]; ok {
		return b
	}
	sec := f.ef.Section(name)
	if sec == nil {
		return nil
	}
	var data []byte
	var err error
	if sec.Flags&elf.SHF_COMPRESSED != 0 {
		raw, rerr := sec.Data()
		if rerr != nil {
			// stdlib only understands ELFCOMPRESS_ZLIB; fall back to
			// reading the raw (still-compressed) bytes ourselves and
			// trying ZSTD too.
			raw, err = readRawSection(sec)
			if err == nil {
				data, err = compress.Decompress(raw, f.ef.Class == elf.ELFCLASS64, f.ef.ByteOrder)
			}
		} else {
			data = raw
		}
	} else {
		data, err = sec.Data()
	}
	if err != nil {
		return nil
	}
	f.debugSections[name] = data
	return data
}

func readRawSection(sec *elf.Section) ([]byte, error) {
	r := sec.Open()
	buf := make([]byte, sec.Size)
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			if n == len(buf) {
				break
			}
			return nil, fmt.Errorf("elf: reading section %s: %w (io_error)", sec.Name, err)
		}
	}
	return buf, nil
}

// DebugLink reads .gnu_debuglink, if present.
func (f *File) DebugLink() (string, uint32, bool) {
	sec := f.ef.Section(".gnu_debuglink")
	if sec == nil {
		return "", 0, false
	}
	data, err := sec.Data()
	if err != nil {
		return "", 0, false
	}
	i := 0
	for i < len(data) && data[i] != 0 {
		i++
	}
	if i == len(data) {
		return "", 0, false
	}
	name := string(data[:i])
	crcOff := (i + 1 + 3) &^ 3
	if crcOff+4 > len(data) {
		return "", 0, false
	}
	crc := f.ef.ByteOrder.Uint32(data[crcOff : crcOff+4])
	return name, crc, true
}
