// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package symbolize is the public façade over the pipeline: breader reads
// object files, objfile parses their containers, modresolve maps a raw PC
// to the object that owns it, dwarfresolver walks that object's DWARF data,
// and symcache owns all of their lifetimes behind one lock. Everything
// upstream of a PC list - stack unwinding, signal/exception interception -
// is an external collaborator; this package only implements capture and
// resolve.
package symbolize

import (
	"fmt"
	"runtime"

	"github.com/golang-debug/symbolize/dwarfresolver"
	"github.com/golang-debug/symbolize/frame"
	"github.com/golang-debug/symbolize/modresolve"
	"github.com/golang-debug/symbolize/symcache"
)

// Config controls how a Driver resolves traces.
type Config struct {
	// Mode trades memory for speed across repeated resolutions.
	Mode symcache.Mode
	// AbsorbErrors makes Resolve degrade a PC it can't fully resolve to a
	// Partial frame instead of failing the whole batch, mirroring
	// original_source's should_absorb_trace_exceptions() knob.
	AbsorbErrors bool
	// MaxInlineDepth bounds synthesized inline frames per PC.
	MaxInlineDepth int
	// LRUBound sizes the Hybrid cache mode's object retention; 0 uses
	// symcache's default.
	LRUBound int
	// PID is the process whose loaded modules are resolved against; 0
	// means the calling process.
	PID int
	// Logger receives non-fatal diagnostics (malformed aranges, degraded
	// lookups). Defaults to discarding everything.
	Logger dwarfresolver.Logger
	// Demangler is a pure string -> string collaborator;
	// nil leaves mangled names untouched. See package demangle for the stock
	// adapter.
	Demangler func(string) string
}

// DefaultConfig matches original_source's defaults: Hybrid-equivalent
// caching, 64 levels of inline expansion, exceptions (here, errors) not
// absorbed by default so callers see resolution failures unless they opt in.
func DefaultConfig() Config {
	return Config{Mode: symcache.Hybrid, MaxInlineDepth: 64}
}

// Option mutates a Config; used with New.
type Option func(*Config)

func WithMode(m symcache.Mode) Option           { return func(c *Config) { c.Mode = m } }
func WithAbsorbErrors(b bool) Option            { return func(c *Config) { c.AbsorbErrors = b } }
func WithMaxInlineDepth(n int) Option           { return func(c *Config) { c.MaxInlineDepth = n } }
func WithLRUBound(n int) Option                 { return func(c *Config) { c.LRUBound = n } }
func WithPID(pid int) Option                    { return func(c *Config) { c.PID = pid } }
func WithLogger(l dwarfresolver.Logger) Option  { return func(c *Config) { c.Logger = l } }
func WithDemangler(d func(string) string) Option { return func(c *Config) { c.Demangler = d } }

// Driver batches a raw PC list by owning object, resolves each PC against
// that object's parser/DWARF data, and reassembles the results as one
// flattened frame list in the original order.
type Driver struct {
	cfg       Config
	cacheOpts []symcache.Option
	// cache is nil for Hybrid: that mode's retention is scoped to a single
	// Resolve call (see newCallCache), not the Driver's whole lifetime.
	// PrioritizeMemory and PrioritizeSpeed both keep one Cache for as long
	// as the Driver itself lives.
	cache *symcache.Cache
	mods  *modresolve.Resolver
}

// New builds a Driver. Each Driver owns its own Cache and module resolver;
// most programs want exactly one, long-lived (see the package-level
// Resolve for that common case).
func New(opts ...Option) *Driver {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	var cacheOpts []symcache.Option
	if cfg.Logger != nil {
		cacheOpts = append(cacheOpts, symcache.WithLogger(cfg.Logger))
	}
	if cfg.LRUBound > 0 {
		cacheOpts = append(cacheOpts, symcache.WithMaxEntries(cfg.LRUBound))
	}
	if cfg.MaxInlineDepth > 0 {
		cacheOpts = append(cacheOpts, symcache.WithMaxInlineDepth(cfg.MaxInlineDepth))
	}
	d := &Driver{cfg: cfg, cacheOpts: cacheOpts, mods: modresolve.New(cfg.PID)}
	if cfg.Mode != symcache.Hybrid {
		d.cache = symcache.New(cfg.Mode, cacheOpts...)
	}
	return d
}

// Close releases every object the Driver's cache has retained. A no-op for
// Hybrid, which never retains anything past the Resolve call that opened it.
func (d *Driver) Close() error {
	if d.cache == nil {
		return nil
	}
	return d.cache.Close()
}

// newCallCache returns the Cache this call should use: the Driver's own
// long-lived Cache for PrioritizeMemory/PrioritizeSpeed, or a fresh, bounded
// Cache for Hybrid that the caller must close when the call finishes. This
// keeps Hybrid's retention scoped to one top-level resolve, rebuilding its
// DWARF caches from scratch each call rather than letting them persist,
// subject only to eviction, across unrelated calls.
func (d *Driver) newCallCache() (cache *symcache.Cache, closeAfter bool) {
	if d.cache != nil {
		return d.cache, false
	}
	return symcache.New(symcache.Hybrid, d.cacheOpts...), true
}

// Resolve turns a PC list into a flattened, ordered frame list. An object
// that can't be located, or a PC that falls outside any known module, still
// produces output: a Partial frame, never a hole in the slice - unless
// AbsorbErrors is false, in which case the first unresolvable PC fails the
// whole call.
func (d *Driver) Resolve(pcs []frame.PC) ([]frame.Resolved, error) {
	cache, closeAfter := d.newCallCache()
	if closeAfter {
		defer cache.Close()
	}

	type group struct {
		raws []frame.PC
		idxs []int
	}
	byPath := make(map[string]*group)
	var order []string
	results := make([][]frame.Resolved, len(pcs))

	for i, raw := range pcs {
		rec, err := d.mods.Find(raw)
		if err != nil {
			if d.cfg.AbsorbErrors {
				d.warn("module lookup failed", raw, err)
				results[i] = []frame.Resolved{frame.Partial(raw, 0, "")}
				continue
			}
			return nil, err
		}
		g, ok := byPath[rec.ObjectPath]
		if !ok {
			g = &group{}
			byPath[rec.ObjectPath] = g
			order = append(order, rec.ObjectPath)
		}
		g.raws = append(g.raws, raw)
		g.idxs = append(g.idxs, i)
	}

	for _, path := range order {
		g := byPath[path]
		entry, err := cache.Get(path)
		if err != nil {
			if d.cfg.AbsorbErrors {
				d.warn("opening object failed", 0, err)
				for _, i := range g.idxs {
					results[i] = []frame.Resolved{frame.Partial(pcs[i], 0, path)}
				}
				continue
			}
			return nil, err
		}
		rec, _ := d.mods.ByPath(path)
		for n, raw := range g.raws {
			i := g.idxs[n]
			objectPC := raw - rec.RuntimeBase + entry.Parser.ImageBase()
			frames, err := d.resolveInObject(entry, raw, objectPC, path)
			if err != nil {
				if d.cfg.AbsorbErrors {
					d.warn("dwarf resolution failed", raw, err)
					frames = []frame.Resolved{frame.Partial(raw, objectPC, path)}
				} else {
					cache.Release(path, entry)
					return nil, err
				}
			}
			results[i] = frames
		}
		cache.Release(path, entry)
	}

	out := make([]frame.Resolved, 0, len(pcs))
	for _, fs := range results {
		out = append(out, fs...)
	}
	return out, nil
}

func (d *Driver) resolveInObject(entry symcache.Entry, raw, objectPC frame.PC, path string) ([]frame.Resolved, error) {
	if entry.Resolver == nil {
		return []frame.Resolved{d.symbolTableFallback(entry, raw, objectPC, path)}, nil
	}
	frames, err := entry.Resolver.ResolvePC(objectPC)
	if err != nil {
		return []frame.Resolved{d.symbolTableFallback(entry, raw, objectPC, path)}, nil
	}
	for i := range frames {
		if !frames[i].IsInline {
			frames[i].RawPC = raw
			frames[i].ObjectPC = objectPC
		}
		if d.cfg.Demangler != nil && frames[i].Symbol != "" {
			frames[i].Symbol = d.cfg.Demangler(frames[i].Symbol)
		}
	}
	return frames, nil
}

func (d *Driver) symbolTableFallback(entry symcache.Entry, raw, objectPC frame.PC, path string) frame.Resolved {
	res := frame.Partial(raw, objectPC, path)
	if name, ok := entry.Parser.LookupSymbol(objectPC); ok {
		res.Symbol = name
		if d.cfg.Demangler != nil {
			res.Symbol = d.cfg.Demangler(res.Symbol)
		}
	}
	return res
}

func (d *Driver) warn(msg string, pc frame.PC, err error) {
	if d.cfg.Logger == nil {
		return
	}
	d.cfg.Logger.Warn(fmt.Sprintf("symbolize: %s", msg), "pc", pc, "err", err)
}

// defaultDriver backs the package-level convenience functions; created
// lazily so importing this package without ever calling CaptureNow/Resolve
// costs nothing.
var defaultDriver *Driver

func ensureDefaultDriver() *Driver {
	if defaultDriver == nil {
		defaultDriver = New()
	}
	return defaultDriver
}

// CaptureNow walks the calling goroutine's stack with runtime.Callers,
// producing the raw trace an exception-carrying-trace collaborator would
// hand to resolve(). runtime.Callers and CaptureNow itself are always
// omitted; skip == 0 starts the trace at CaptureNow's caller, and each
// further unit of skip drops one more frame above it.
func CaptureNow(skip int) []frame.PC {
	pcs := make([]uintptr, 128)
	n := runtime.Callers(skip+2, pcs)
	out := make([]frame.PC, n)
	for i := 0; i < n; i++ {
		out[i] = frame.PC(pcs[i])
	}
	return out
}

// Resolve symbolizes pcs using a shared, lazily-created Driver configured
// with DefaultConfig. Programs that want non-default caching or error
// behavior should build their own Driver with New instead.
func Resolve(pcs []frame.PC) ([]frame.Resolved, error) {
	return ensureDefaultDriver().Resolve(pcs)
}
