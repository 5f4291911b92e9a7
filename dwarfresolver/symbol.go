// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfresolver

import (
	"debug/dwarf"
	"fmt"
)

// DWARF attribute codes debug/dwarf doesn't name as constants; values are
// from the DWARF standard (grounded on golang-debug's own style of
// declaring ad hoc dwarf.Attr constants for vendor/uncommon attributes, see
// internal/gocore/dwarf.go's AttrGoKind).
const (
	attrLinkageName     dwarf.Attr = 0x6e   // DW_AT_linkage_name
	attrMIPSLinkageName dwarf.Attr = 0x2007 // DW_AT_MIPS_linkage_name
)

// maxSpecificationChases bounds the DW_AT_specification / DW_AT_abstract_origin
// chase so a malformed (cyclic) reference chain can't spin forever;
// supplemented from original_source's dwarf.hpp cycle guard.
const maxSpecificationChases = 16

// resolveName finds the best available name for a subprogram or inlined
// subroutine DIE: its own linkage name, then its own DW_AT_name, then the
// same two attributes on whatever DW_AT_specification/DW_AT_abstract_origin
// points at (a declaration DIE elsewhere in the same or another CU often
// carries the name that a defining DIE omits).
func (r *Resolver) resolveName(e *dwarf.Entry) (string, error) {
	cur := e
	for i := 0; i < maxSpecificationChases; i++ {
		if name, ok := directName(cur); ok {
			return name, nil
		}
		next, ok := cur.Val(dwarf.AttrSpecification).(dwarf.Offset)
		if !ok {
			next, ok = cur.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset)
		}
		if !ok {
			break
		}
		entry, err := r.entryAt(next)
		if err != nil {
			return "", err
		}
		cur = entry
	}
	return "", nil
}

func directName(e *dwarf.Entry) (string, bool) {
	if name, ok := e.Val(attrLinkageName).(string); ok && name != "" {
		return name, true
	}
	if name, ok := e.Val(attrMIPSLinkageName).(string); ok && name != "" {
		return name, true
	}
	if name, ok := e.Val(dwarf.AttrName).(string); ok && name != "" {
		return name, true
	}
	return "", false
}

// entryAt reads the DIE at a raw .debug_info offset, used to follow
// DW_AT_specification/DW_AT_abstract_origin references which may point
// anywhere in the unit (or, for DW_FORM_ref_addr, another unit entirely).
func (r *Resolver) entryAt(off dwarf.Offset) (*dwarf.Entry, error) {
	reader := r.data.Reader()
	reader.Seek(off)
	e, err := reader.Next()
	if err != nil {
		return nil, fmt.Errorf("dwarfresolver: resolving reference at offset %#x: %w (format_error)", off, err)
	}
	if e == nil {
		return nil, fmt.Errorf("dwarfresolver: reference at offset %#x resolves to nothing (format_error)", off)
	}
	return e, nil
}
