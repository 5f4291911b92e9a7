// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dwarfresolver turns an object-relative PC into symbol, file, line
// and column information, expanding any inlined calls active at that PC.
// It is built directly on stdlib debug/dwarf: a Resolver wraps
// one object's DWARF data and lazily builds the caches described below as
// they're needed, never eagerly parsing the whole compilation unit tree.
//
// A Resolver moves through a small state machine: unopened, open (sections
// parsed into a *dwarf.Data but nothing indexed), open-with-aranges (the
// .debug_aranges fast path is available), cu-cache-built (top-level
// compilation units enumerated and their PC ranges known), and poisoned
// (a prior operation hit malformed DWARF; the Resolver refuses further work
// rather than risk returning data tied to the wrong compilation unit).
package dwarfresolver

import (
	"debug/dwarf"
	"fmt"
	"sort"
	"sync"

	"github.com/golang-debug/symbolize/frame"
	"github.com/golang-debug/symbolize/objfile"
)

type state int

const (
	stateUnopened state = iota
	stateOpen
	stateOpenWithAranges
	stateCUCacheBuilt
	statePoisoned
)

// Logger is the minimal ambient logging seam a caller threads down into a
// Resolver for non-fatal diagnostics; a *slog.Logger satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// Resolver resolves PCs against one object's DWARF data. It is not safe for
// unsynchronized concurrent use; callers share a single "dwarf lock" across
// all Resolvers (see package symcache), matching libdwarf's single-threaded
// contract that this package was grounded on.
type Resolver struct {
	parser objfile.Parser
	data   *dwarf.Data
	log    Logger

	mu    sync.Mutex
	state state

	aranges []arange // sorted by low, valid once state >= stateOpenWithAranges

	cus          []cuEntry // sorted by low, valid once state == stateCUCacheBuilt
	subprogCache map[dwarf.Offset][]subprogEntry
	lineCache    map[dwarf.Offset][]lineRow

	maxInlineDepth int
}

// Option configures a Resolver at Open time.
type Option func(*Resolver)

// WithLogger overrides the default no-op Logger.
func WithLogger(l Logger) Option { return func(r *Resolver) { r.log = l } }

// WithMaxInlineDepth bounds the number of synthesized inline frames a single
// PC can expand into, guarding against a malformed or adversarial
// DW_AT_abstract_origin / inlined_subroutine cycle (supplemented from
// original_source's dwarf_options.cpp, which defaults this to 64).
func WithMaxInlineDepth(n int) Option { return func(r *Resolver) { r.maxInlineDepth = n } }

const defaultMaxInlineDepth = 64

// Open reads the DWARF sections off parser and constructs a Resolver. It
// does not yet enumerate compilation units; that happens lazily on first
// use so that objects which are never actually symbolized pay no CU-walk
// cost.
func Open(parser objfile.Parser, opts ...Option) (*Resolver, error) {
	info := parser.DebugSection(".debug_info")
	if len(info) == 0 {
		return nil, fmt.Errorf("dwarfresolver: %s has no .debug_info section (format_error)", parser.Path())
	}
	abbrev := parser.DebugSection(".debug_abbrev")
	str := parser.DebugSection(".debug_str")
	line := parser.DebugSection(".debug_line")
	ranges := parser.DebugSection(".debug_ranges")
	aranges := parser.DebugSection(".debug_aranges")
	pubnames := parser.DebugSection(".debug_pubnames")
	frameSec := parser.DebugSection(".debug_frame")

	data, err := dwarf.New(abbrev, aranges, frameSec, info, line, pubnames, ranges, str)
	if err != nil {
		return nil, fmt.Errorf("dwarfresolver: parsing DWARF for %s: %w (format_error)", parser.Path(), err)
	}
	// DWARF5 auxiliary sections; AddSection is a no-op-safe way to feed
	// debug/dwarf the pieces it needs to resolve .debug_rnglists-based
	// DW_AT_ranges and DW_FORM_strx/addrx forms. Ignore the error: objects
	// built with DWARF<=4 simply won't have these sections and don't need
	// them.
	for _, name := range []string{".debug_rnglists", ".debug_str_offsets", ".debug_addr", ".debug_line_str", ".debug_loclists"} {
		if sec := parser.DebugSection(name); len(sec) > 0 {
			_ = data.AddSection(name, sec)
		}
	}

	r := &Resolver{
		parser:         parser,
		data:           data,
		log:            nopLogger{},
		state:          stateOpen,
		maxInlineDepth: defaultMaxInlineDepth,
	}
	for _, opt := range opts {
		opt(r)
	}

	if len(aranges) > 0 {
		parsed, err := parseAranges(aranges)
		if err != nil {
			r.log.Warn("dwarfresolver: malformed .debug_aranges, falling back to CU range scan", "object", parser.Path(), "err", err)
		} else {
			r.aranges = parsed
			r.state = stateOpenWithAranges
		}
	}
	return r, nil
}

func (r *Resolver) poison(reason error) error {
	r.state = statePoisoned
	return fmt.Errorf("dwarfresolver: %s poisoned: %w (internal_invariant)", r.parser.Path(), reason)
}

// ResolvePC resolves one object-relative PC into one or more frames: a
// single physical frame, or (when pc falls inside inlined code) a chain of
// synthesized inline frames followed by the enclosing physical frame, most
// recent call first.
func (r *Resolver) ResolvePC(pc frame.PC) ([]frame.Resolved, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == statePoisoned {
		return nil, fmt.Errorf("dwarfresolver: %s is poisoned from a prior error (internal_invariant)", r.parser.Path())
	}

	cu, err := r.findCU(uint64(pc))
	if err != nil {
		return nil, err
	}

	subprog, err := r.findSubprogram(cu, uint64(pc))
	if err != nil {
		return nil, err
	}
	if subprog == nil {
		// A PC inside a known CU but outside any DW_TAG_subprogram range is
		// still a partial success: we know the file (from the CU name) but
		// not the function.
		name, _ := cu.entry.Val(dwarf.AttrName).(string)
		return []frame.Resolved{frame.Partial(pc, pc, name)}, nil
	}

	line, lineOK := r.lookupLine(cu, uint64(pc))

	symbol, err := r.resolveName(subprog.entry)
	if err != nil {
		return nil, err
	}

	inlines, err := r.collectInlines(cu, subprog.entry, uint64(pc), 0)
	if err != nil {
		return nil, err
	}

	physical := frame.Resolved{
		ObjectPC: pc,
		Symbol:   symbol,
	}
	if lineOK {
		physical.File = line.file
		physical.Line = line.line
		physical.LineOk = true
		physical.Column = line.column
		physical.ColumnOk = line.column != 0
	}

	if len(inlines) == 0 {
		return []frame.Resolved{physical}, nil
	}
	return rotateAndFlatten(inlines, physical), nil
}

// Close is a no-op: it does not close the backing object parser. Resolver
// only reads through parser and never owns its lifetime; the caller closes
// the parser.
func (r *Resolver) Close() error { return nil }

func sortedByLow[T any](items []T, low func(T) uint64) {
	sort.Slice(items, func(i, j int) bool { return low(items[i]) < low(items[j]) })
}
