// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfresolver

import (
	"debug/dwarf"
	"fmt"
	"sort"
)

// cuEntry caches one compilation unit's PC coverage alongside its DIE, so
// later lookups (subprogram, line table) don't have to re-walk .debug_info
// to find the CU they belong to.
type cuEntry struct {
	low, high uint64 // 0,0 if the CU has no contiguous or discontiguous PC range at all
	entry     *dwarf.Entry
}

// ensureCUCache walks the top-level compilation units once, recording each
// one's PC range (from DW_AT_low_pc/high_pc or DW_AT_ranges) the same way
// golang-debug's funcTab is built once and then binary-searched (grounded
// on internal/gocore/module.go's readModules+funcTab.sort pattern).
func (r *Resolver) ensureCUCache() error {
	if r.state == stateCUCacheBuilt {
		return nil
	}
	reader := r.data.Reader()
	var cus []cuEntry
	for {
		e, err := reader.Next()
		if err != nil {
			return r.poison(fmt.Errorf("walking compilation units: %w", err))
		}
		if e == nil {
			break
		}
		if e.Tag != dwarf.TagCompileUnit {
			reader.SkipChildren()
			continue
		}
		low, high, ok := r.entryPCRange(e)
		ce := cuEntry{entry: e}
		if ok {
			ce.low, ce.high = low, high
		}
		cus = append(cus, ce)
		reader.SkipChildren()
	}
	sort.Slice(cus, func(i, j int) bool { return cus[i].low < cus[j].low })
	r.cus = cus
	r.subprogCache = make(map[dwarf.Offset][]subprogEntry)
	r.lineCache = make(map[dwarf.Offset][]lineRow)
	r.state = stateCUCacheBuilt
	return nil
}

// entryPCRange computes the PC range covered by any DIE that may carry
// DW_AT_low_pc/DW_AT_high_pc or DW_AT_ranges: compilation units,
// subprograms, and inlined subroutines all share this shape.
func (r *Resolver) entryPCRange(e *dwarf.Entry) (low, high uint64, ok bool) {
	if ranges, err := r.data.Ranges(e); err == nil && len(ranges) > 0 {
		low, high = ranges[0][0], ranges[0][1]
		for _, rg := range ranges[1:] {
			if rg[0] < low {
				low = rg[0]
			}
			if rg[1] > high {
				high = rg[1]
			}
		}
		return low, high, true
	}
	lowVal := e.Val(dwarf.AttrLowpc)
	if lowVal == nil {
		return 0, 0, false
	}
	lowPC, ok := lowVal.(uint64)
	if !ok {
		return 0, 0, false
	}
	highField := e.AttrField(dwarf.AttrHighpc)
	if highField == nil {
		return 0, 0, false
	}
	switch v := highField.Val.(type) {
	case uint64:
		if highField.Class == dwarf.ClassAddress {
			return lowPC, v, true
		}
		// ClassConstant: DW_AT_high_pc is an offset from low_pc (DWARF4+).
		return lowPC, lowPC + v, true
	case int64:
		return lowPC, lowPC + uint64(v), true
	default:
		return 0, 0, false
	}
}

// pcInRange reports whether pc falls in [low, high); CUs/subprograms with no
// discoverable range (low==high==0 here means "unknown", not "empty") are
// never matched by range and must be confirmed by containment elsewhere.
func pcInRange(low, high, pc uint64) bool {
	return low != high && pc >= low && pc < high
}

// findCU locates the compilation unit containing pc, preferring the
// .debug_aranges fast path and falling back to a scan of the
// CU cache (building it on first use) when aranges are absent, incomplete,
// or don't cover pc.
func (r *Resolver) findCU(pc uint64) (*cuEntry, error) {
	if r.state != statePoisoned {
		if len(r.aranges) > 0 {
			if off, ok := findArange(r.aranges, pc); ok {
				if err := r.ensureCUCache(); err != nil {
					return nil, err
				}
				for i := range r.cus {
					if r.cus[i].entry.Offset == dwarf.Offset(off) {
						return &r.cus[i], nil
					}
				}
				// The aranges table pointed at a CU offset we didn't find
				// during the cache build; fall through to the linear scan
				// below rather than treat this as fatal.
			}
		}
	}
	if err := r.ensureCUCache(); err != nil {
		return nil, err
	}
	n := sort.Search(len(r.cus), func(i int) bool { return r.cus[i].high > pc })
	if n < len(r.cus) && pcInRange(r.cus[n].low, r.cus[n].high, pc) {
		return &r.cus[n], nil
	}
	// Some compilers emit CUs with no DW_AT_ranges/low_pc at all (pure
	// declaration CUs) interleaved with ones that do; a binary-searchable
	// range isn't guaranteed contiguous across the whole slice, so fall
	// back to a linear scan before giving up.
	for i := range r.cus {
		if pcInRange(r.cus[i].low, r.cus[i].high, pc) {
			return &r.cus[i], nil
		}
	}
	return nil, fmt.Errorf("dwarfresolver: no compilation unit covers pc %#x (lookup_miss)", pc)
}
