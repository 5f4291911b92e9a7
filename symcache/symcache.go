// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package symcache owns the lifetime of every open object parser and DWARF
// resolver behind one process-wide lock (the "dwarf lock"): libdwarf
// (and by extension this package's adaptation of it) is not safe for
// concurrent use, so every cache operation, and every PC resolution that
// touches a cached Resolver, serializes on Cache.mu.
package symcache

import (
	"container/list"
	"fmt"
	"os"
	"sync"

	"github.com/golang-debug/symbolize/dwarfresolver"
	"github.com/golang-debug/symbolize/objfile"
	"github.com/golang-debug/symbolize/objfile/debuglink"
)

// Mode selects the memory/speed tradeoff for how long opened objects and
// their DWARF caches are retained.
type Mode int

const (
	// PrioritizeMemory never retains an object past the call that needed
	// it: each resolution opens, resolves, and closes. Best for a single
	// trace captured once in a long-lived process's lifetime.
	PrioritizeMemory Mode = iota
	// Hybrid retains up to a bounded number of objects, evicting the least
	// recently used once the bound is hit, within the scope of a single
	// Cache instance - callers that want this bound to apply per top-level
	// resolve call rather than for the process's whole lifetime (see
	// symbolize.Driver) construct a fresh Hybrid Cache per call and
	// discard it afterward. Best for a trace that touches a handful of
	// objects repeatedly (its own binary and a few shared libraries)
	// without wanting them to outlive the call that resolved them.
	Hybrid
	// PrioritizeSpeed retains every object ever opened for the lifetime of
	// the Cache. Best for a process that captures many traces in a tight
	// loop (profiling, crash-reporting under load).
	PrioritizeSpeed
)

// defaultHybridBound is the LRU size used by Hybrid when the caller doesn't
// specify one.
const defaultHybridBound = 8

// Entry is what the cache hands back for one object: the parser (for
// symbol-table and module-relative lookups) paired with its DWARF resolver
// (nil if the object carries no usable DWARF data).
type Entry struct {
	Parser   objfile.Parser
	Resolver *dwarfresolver.Resolver
}

type cachedEntry struct {
	path string
	e    Entry
	elem *list.Element // nil outside Hybrid's LRU list
}

// Cache opens and resolves against object files, keyed by path, according to
// Mode.
type Cache struct {
	mode           Mode
	maxEntries     int
	logger         dwarfresolver.Logger
	maxInlineDepth int
	openFn         func(string) (Entry, error)          // overridden by tests to avoid real files
	openBytesFn    func(string, []byte) (Entry, error)  // overridden by tests to avoid real format bytes
	openDebugFn    func(string) (objfile.Parser, error) // overridden by tests; resolves a debug-link/dSYM sibling path

	mu      sync.Mutex // the dwarf lock
	objects map[string]*cachedEntry
	lru     *list.List
}

// Option configures a Cache at New time.
type Option func(*Cache)

// WithMaxEntries overrides Hybrid's default LRU bound. Ignored for the other
// modes.
func WithMaxEntries(n int) Option { return func(c *Cache) { c.maxEntries = n } }

// WithLogger threads a Logger down into every Resolver this Cache opens.
func WithLogger(l dwarfresolver.Logger) Option { return func(c *Cache) { c.logger = l } }

// WithMaxInlineDepth threads an inline-expansion bound down into every
// Resolver this Cache opens; 0 keeps dwarfresolver's own default.
func WithMaxInlineDepth(n int) Option { return func(c *Cache) { c.maxInlineDepth = n } }

// New creates a Cache operating in mode.
func New(mode Mode, opts ...Option) *Cache {
	c := &Cache{
		mode:       mode,
		maxEntries: defaultHybridBound,
		objects:    make(map[string]*cachedEntry),
		lru:        list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.openFn = c.open
	c.openBytesFn = c.openBytes
	c.openDebugFn = objfile.Open
	return c
}

// Get returns the parser and resolver for path, opening and indexing it if
// this is the first time path has been seen (or if PrioritizeMemory already
// evicted it). In PrioritizeMemory mode nothing is retained: the caller owns
// the returned Entry and closes it by passing it to Release when done.
func (c *Cache) Get(path string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != PrioritizeMemory {
		if ce, ok := c.objects[path]; ok {
			if c.mode == Hybrid {
				c.lru.MoveToFront(ce.elem)
			}
			return ce.e, nil
		}
	}

	entry, err := c.openFn(path)
	if err != nil {
		return Entry{}, err
	}

	switch c.mode {
	case PrioritizeMemory:
		// Caller gets a one-shot Entry; nothing is retained. The parser
		// stays open only as long as the caller holds onto it - PrioritizeMemory
		// callers are expected to finish with it immediately (see
		// symbolize.Driver, which always uses the Cache this way).
		return entry, nil
	case Hybrid:
		ce := &cachedEntry{path: path, e: entry}
		ce.elem = c.lru.PushFront(path)
		c.objects[path] = ce
		c.evictLocked()
		return entry, nil
	default: // PrioritizeSpeed
		c.objects[path] = &cachedEntry{path: path, e: entry}
		return entry, nil
	}
}

// Release returns an Entry obtained under PrioritizeMemory; it's a no-op for
// the other modes, where the Cache itself owns the lifetime. Callers should
// call Release unconditionally after use regardless of mode.
func (c *Cache) Release(path string, e Entry) {
	if c.mode != PrioritizeMemory {
		return
	}
	e.Parser.Close()
}

func (c *Cache) open(path string) (Entry, error) {
	parser, err := objfile.Open(path)
	if err != nil {
		return Entry{}, fmt.Errorf("symcache: %w", err)
	}
	if resolver, ok := c.tryOpenResolver(parser); ok {
		return Entry{Parser: parser, Resolver: resolver}, nil
	}
	// parser itself carries no usable .debug_info; look for the DWARF
	// elsewhere before giving up on more than symbol-table lookups.
	if resolver, ok := c.resolverFromDebugLink(path, parser); ok {
		return Entry{Parser: parser, Resolver: resolver}, nil
	}
	return Entry{Parser: parser}, nil
}

func (c *Cache) resolverOptions() []dwarfresolver.Option {
	var opts []dwarfresolver.Option
	if c.logger != nil {
		opts = append(opts, dwarfresolver.WithLogger(c.logger))
	}
	if c.maxInlineDepth > 0 {
		opts = append(opts, dwarfresolver.WithMaxInlineDepth(c.maxInlineDepth))
	}
	return opts
}

func (c *Cache) tryOpenResolver(parser objfile.Parser) (*dwarfresolver.Resolver, bool) {
	resolver, err := dwarfresolver.Open(parser, c.resolverOptions()...)
	if err != nil {
		return nil, false
	}
	return resolver, true
}

// resolverFromDebugLink locates a stripped object's DWARF in a separate
// file - a ".gnu_debuglink"-named sibling with a matching CRC-32, or (for
// Mach-O, which carries no .gnu_debuglink) the conventional .dSYM bundle -
// opens that file as its own Parser just long enough to read its DWARF
// sections into a Resolver, then closes it: once dwarfresolver.Open has
// copied the section bytes into a *dwarf.Data, the debug file's own handle
// is no longer needed.
func (c *Cache) resolverFromDebugLink(path string, parser objfile.Parser) (*dwarfresolver.Resolver, bool) {
	if name, crc, ok := parser.DebugLink(); ok {
		if debugPath, err := debuglink.Resolve(path, name, crc); err == nil {
			if resolver, ok := c.openResolverFrom(debugPath); ok {
				return resolver, true
			}
		}
	}
	if dsym := debuglink.DSYMPath(path); fileExists(dsym) {
		if resolver, ok := c.openResolverFrom(dsym); ok {
			return resolver, true
		}
	}
	return nil, false
}

func (c *Cache) openResolverFrom(debugPath string) (*dwarfresolver.Resolver, bool) {
	debugParser, err := c.openDebugFn(debugPath)
	if err != nil {
		return nil, false
	}
	defer debugParser.Close()
	return c.tryOpenResolver(debugParser)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (c *Cache) openBytes(_ string, data []byte) (Entry, error) {
	parser, err := objfile.OpenBytes(data)
	if err != nil {
		return Entry{}, fmt.Errorf("symcache: %w", err)
	}
	entry := Entry{Parser: parser}
	if resolver, ok := c.tryOpenResolver(parser); ok {
		entry.Resolver = resolver
	}
	return entry, nil
}

// GetBytes is Get's in-memory counterpart: it resolves DWARF for a
// JIT-emitted or otherwise unbacked object image via objfile.OpenBytes
// instead of objfile.Open, caching the result under the caller-chosen key
// the same way Get caches by path. Callers that never have a real file path
// to give the file-backed parsers (debug/elf, go-macho, saferwall/pe) reach
// this instead of Get.
func (c *Cache) GetBytes(key string, data []byte) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != PrioritizeMemory {
		if ce, ok := c.objects[key]; ok {
			if c.mode == Hybrid {
				c.lru.MoveToFront(ce.elem)
			}
			return ce.e, nil
		}
	}

	entry, err := c.openBytesFn(key, data)
	if err != nil {
		return Entry{}, err
	}

	switch c.mode {
	case PrioritizeMemory:
		return entry, nil
	case Hybrid:
		ce := &cachedEntry{path: key, e: entry}
		ce.elem = c.lru.PushFront(key)
		c.objects[key] = ce
		c.evictLocked()
		return entry, nil
	default: // PrioritizeSpeed
		c.objects[key] = &cachedEntry{path: key, e: entry}
		return entry, nil
	}
}

func (c *Cache) evictLocked() {
	if c.mode != Hybrid {
		return
	}
	for len(c.objects) > c.maxEntries {
		back := c.lru.Back()
		if back == nil {
			return
		}
		path := back.Value.(string)
		c.lru.Remove(back)
		if ce, ok := c.objects[path]; ok {
			ce.e.Parser.Close()
			delete(c.objects, path)
		}
	}
}

// Close releases every object this Cache has retained. Safe to call once
// the Cache is no longer in use.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, ce := range c.objects {
		ce.e.Parser.Close()
		delete(c.objects, path)
	}
	c.lru = list.New()
	return nil
}
