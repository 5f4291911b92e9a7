// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package modresolve maps an absolute PC to (object path, PC relative to
// the preferred image base), using whatever the OS offers for loaded-module
// enumeration. The *preferred* image base always comes from the
// object parser (objfile.Parser.ImageBase); this package only ever supplies
// the *runtime* load address, so the object_pc transform
// (raw_pc - runtime_base + preferred_image_base) is agnostic to ASLR.
package modresolve

import (
	"fmt"
	"sort"
	"sync"

	"github.com/golang-debug/symbolize/frame"
	"github.com/golang-debug/symbolize/objfile"
)

// Record is one loaded module.
type Record struct {
	ObjectPath  string
	RuntimeBase frame.PC
	Low, High   frame.PC // [Low, High) runtime address range covered by this module's mappings
}

// Provider enumerates the process's currently loaded modules. On Linux this
// is backed by /proc/<pid>/maps; other platforms register their own
// implementation (see provider_linux.go, provider_other.go).
type Provider interface {
	// Modules returns the loaded-module list for pid (0 meaning the
	// calling process itself), sorted by Low ascending.
	Modules(pid int) ([]Record, error)
}

// Resolver caches the module list (sorted by Low and indexed by object
// path; each Resolver holds its own copy, nothing is shared process-wide)
// and answers PC -> (path,
// relative PC) queries. A Resolver is safe for concurrent use; the
// dwarf lock in package symcache is a separate, coarser lock over the
// DWARF caches themselves.
type Resolver struct {
	provider Provider
	pid      int

	mu      sync.Mutex
	records []Record // sorted by Low
	byPath  map[string]*Record
}

// New creates a resolver over the OS's default Provider for the given pid
// (0 = the calling process).
func New(pid int) *Resolver {
	return &Resolver{provider: defaultProvider(), pid: pid}
}

// NewWithProvider lets tests (or an unwinder collaborator that already has
// its own module map) supply a Provider instead of querying the OS.
func NewWithProvider(pid int, p Provider) *Resolver {
	return &Resolver{provider: p, pid: pid}
}

// Refresh re-reads the OS module list, e.g. after a dlopen/dlclose. It is
// not called automatically; callers decide when the map may be stale.
func (r *Resolver) Refresh() error {
	recs, err := r.provider.Modules(r.pid)
	if err != nil {
		return fmt.Errorf("modresolve: %w (io_error)", err)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Low < recs[j].Low })

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = recs
	r.byPath = make(map[string]*Record, len(recs))
	for i := range r.records {
		rec := &r.records[i]
		if _, ok := r.byPath[rec.ObjectPath]; !ok {
			r.byPath[rec.ObjectPath] = rec
		}
	}
	return nil
}

func (r *Resolver) ensureLoaded() error {
	r.mu.Lock()
	loaded := r.records != nil
	r.mu.Unlock()
	if loaded {
		return nil
	}
	return r.Refresh()
}

// Resolve maps an absolute PC to the object file that contains it and its
// PC relative to that object's preferred image base, reading the preferred
// base from the already-opened parser for the object_pc transform. Callers
// typically keep parser open via a cache (symcache) rather than opening it
// per call.
func Resolve(r *Resolver, raw frame.PC, parser objfile.Parser) (frame.Object, error) {
	rec, err := r.find(raw)
	if err != nil {
		return frame.Object{}, err
	}
	objectPC := raw - rec.RuntimeBase + parser.ImageBase()
	return frame.Object{RawPC: raw, ObjectPC: objectPC, ObjectPath: rec.ObjectPath}, nil
}

// Find returns the module record covering raw, without needing an opened
// parser; the symbolization driver uses this first to decide which object
// to open at all.
func (r *Resolver) Find(raw frame.PC) (Record, error) {
	return r.find(raw)
}

func (r *Resolver) find(raw frame.PC) (Record, error) {
	if err := r.ensureLoaded(); err != nil {
		return Record{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := sort.Search(len(r.records), func(i int) bool { return r.records[i].High > raw })
	if n == len(r.records) || raw < r.records[n].Low || raw >= r.records[n].High {
		return Record{}, fmt.Errorf("modresolve: no loaded module contains pc %#x (lookup_miss)", raw)
	}
	return r.records[n], nil
}

// ByPath returns the cached record for an object path, if its module list
// has already been loaded.
func (r *Resolver) ByPath(path string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byPath[path]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}
