// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfresolver

import (
	"debug/dwarf"

	"github.com/golang-debug/symbolize/frame"
)

// inlineFrame is one DW_TAG_inlined_subroutine match, recorded with the
// call-site fields carried on *that* DIE (DWARF's convention: the call site
// of an inlined routine lives on the routine's own DIE, not its caller's).
type inlineFrame struct {
	symbol            string
	callFile          string
	callLine, callCol uint32
}

// collectInlines walks parent's direct children looking for
// DW_TAG_inlined_subroutine DIEs whose PC range contains pc, recursing into
// any match (an inlined call can itself contain further inlined calls).
// Grounded on original_source's get_inlines_info in
// src/symbols/symbols_with_libdwarf.cpp: same depth-first, match-then-recurse
// shape, rewritten against debug/dwarf's Reader instead of libdwarf's
// die_object/walk_die_list.
func (r *Resolver) collectInlines(cu *cuEntry, parent *dwarf.Entry, pc uint64, depth int) ([]inlineFrame, error) {
	if depth >= r.maxInlineDepth || !parent.Children {
		return nil, nil
	}
	reader := r.data.Reader()
	reader.Seek(parent.Offset)
	if _, err := reader.Next(); err != nil {
		return nil, r.poison(err)
	}

	var result []inlineFrame
	for {
		e, err := reader.Next()
		if err != nil {
			return nil, r.poison(err)
		}
		if e == nil || e.Tag == 0 { // Tag 0 terminates parent's children
			break
		}
		if e.Tag == dwarf.TagInlinedSubroutine {
			if low, high, ok := r.entryPCRange(e); ok && pcInRange(low, high, pc) {
				name, err := r.resolveName(e)
				if err != nil {
					return nil, err
				}
				var callFile string
				if fi, ok := e.Val(dwarf.AttrCallFile).(int64); ok {
					callFile = r.fileNameForIndex(cu, fi)
				}
				callLine, _ := e.Val(dwarf.AttrCallLine).(int64)
				callCol, _ := e.Val(dwarf.AttrCallColumn).(int64)
				result = append(result, inlineFrame{
					symbol:   name,
					callFile: callFile,
					callLine: uint32(callLine),
					callCol:  uint32(callCol),
				})
				children, err := r.collectInlines(cu, e, pc, depth+1)
				if err != nil {
					return nil, err
				}
				result = append(result, children...)
				if e.Children {
					reader.SkipChildren()
				}
				continue
			}
		}
		if e.Children {
			reader.SkipChildren()
		}
	}
	return result, nil
}

// fileNameForIndex resolves a DW_AT_call_file (or DW_AT_decl_file) index
// against cu's line-number-program file table.
func (r *Resolver) fileNameForIndex(cu *cuEntry, idx int64) string {
	if idx < 0 {
		return ""
	}
	lr, err := r.data.LineReader(cu.entry)
	if err != nil || lr == nil {
		return ""
	}
	files := lr.Files()
	if int(idx) >= len(files) || files[idx] == nil {
		return ""
	}
	return files[idx].Name
}

// rotateAndFlatten assembles the final frame chain for a PC that resolved
// into one or more inline frames plus the enclosing physical frame, and
// rotates the line/column/file fields one position toward the physical
// frame, matching the flatten-with-inlines loop in resolve_all
// (symbols_with_libdwarf.cpp): without the rotation,
// every frame would show where *it itself* was called from rather than
// where it made its next call — backwards for a human-readable backtrace.
func rotateAndFlatten(inlines []inlineFrame, physical frame.Resolved) []frame.Resolved {
	n := len(inlines)
	out := make([]frame.Resolved, n+1)
	for i := 0; i < n; i++ {
		src := inlines[n-1-i] // most recent call first
		out[i] = frame.Resolved{
			Symbol:   src.symbol,
			IsInline: true,
			File:     src.callFile,
			Line:     src.callLine,
			LineOk:   src.callLine != 0,
			Column:   src.callCol,
			ColumnOk: src.callCol != 0,
		}
	}
	out[n] = physical

	carry := out[n]
	for i := n; i >= 1; i-- {
		out[i].File, out[i].Line, out[i].LineOk = out[i-1].File, out[i-1].Line, out[i-1].LineOk
		out[i].Column, out[i].ColumnOk = out[i-1].Column, out[i-1].ColumnOk
	}
	out[0].File, out[0].Line, out[0].LineOk = carry.File, carry.Line, carry.LineOk
	out[0].Column, out[0].ColumnOk = carry.Column, carry.ColumnOk
	return out
}
