// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfresolver

import (
	"debug/dwarf"
	"fmt"
	"sort"
)

// subprogEntry caches one DW_TAG_subprogram's PC range within a CU.
type subprogEntry struct {
	low, high uint64
	entry     *dwarf.Entry
}

// scopeTags are the DIE kinds worth descending into while hunting for
// DW_TAG_subprogram: they can contain further subprograms (nested functions,
// methods, closures) but never are one themselves.
var scopeTags = map[dwarf.Tag]bool{
	dwarf.TagLexDwarfBlock: true,
	dwarf.TagNamespace:     true,
	dwarf.TagStructType:    true,
	dwarf.TagClassType:     true,
	dwarf.TagUnionType:     true,
	dwarf.TagModule:        true,
}

// ensureSubprogramCache walks cu's DIE subtree once, recording every
// DW_TAG_subprogram's PC range, sorted for binary search the same way
// ensureCUCache indexes compilation units.
func (r *Resolver) ensureSubprogramCache(cu *cuEntry) ([]subprogEntry, error) {
	if cached, ok := r.subprogCache[cu.entry.Offset]; ok {
		return cached, nil
	}
	reader := r.data.Reader()
	reader.Seek(cu.entry.Offset)
	if _, err := reader.Next(); err != nil { // re-read the CU DIE itself to position at its first child
		return nil, r.poison(fmt.Errorf("re-seeking compilation unit: %w", err))
	}

	var subs []subprogEntry
	depth := 0
	for {
		e, err := reader.Next()
		if err != nil {
			return nil, r.poison(fmt.Errorf("walking subprogram tree: %w", err))
		}
		if e == nil {
			break
		}
		if e.Tag == 0 { // end of the current scope's children
			if depth == 0 {
				break
			}
			depth--
			continue
		}
		switch {
		case e.Tag == dwarf.TagSubprogram:
			if low, high, ok := r.entryPCRange(e); ok {
				subs = append(subs, subprogEntry{low: low, high: high, entry: e})
			}
			if e.Children {
				reader.SkipChildren()
			}
		case scopeTags[e.Tag]:
			if e.Children {
				depth++
			}
		default:
			if e.Children {
				reader.SkipChildren()
			}
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].low < subs[j].low })
	r.subprogCache[cu.entry.Offset] = subs
	return subs, nil
}

// findSubprogram returns the DW_TAG_subprogram DIE covering pc within cu, or
// nil (not an error) if pc falls in the CU but outside any known function
// (e.g. padding, or a function DWARF simply has no range for).
func (r *Resolver) findSubprogram(cu *cuEntry, pc uint64) (*subprogEntry, error) {
	subs, err := r.ensureSubprogramCache(cu)
	if err != nil {
		return nil, err
	}
	n := sort.Search(len(subs), func(i int) bool { return subs[i].high > pc })
	if n < len(subs) && pcInRange(subs[n].low, subs[n].high, pc) {
		return &subs[n], nil
	}
	for i := range subs {
		if pcInRange(subs[i].low, subs[i].high, pc) {
			return &subs[i], nil
		}
	}
	return nil, nil
}
