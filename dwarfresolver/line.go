// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfresolver

import (
	"debug/dwarf"
	"fmt"
	"io"
	"sort"
)

// lineRow is one decoded row of a compilation unit's line number program,
// resolved eagerly (file name, line, column) since debug/dwarf's LineReader
// already resolves the file name for us as it scans; nothing is gained by
// re-deferring that lookup.
type lineRow struct {
	pc     uint64
	file   string
	line   uint32
	column uint32
}

// ensureLineCache decodes cu's line number program once. Later duplicate
// addresses (multiple statements compiling to the same PC, or multiple
// sequences covering overlapping ranges) keep the last entry seen for a
// given address, matching the "most recently emitted row wins" rule real
// line programs rely on.
func (r *Resolver) ensureLineCache(cu *cuEntry) ([]lineRow, error) {
	if cached, ok := r.lineCache[cu.entry.Offset]; ok {
		return cached, nil
	}
	lr, err := r.data.LineReader(cu.entry)
	if err != nil {
		return nil, fmt.Errorf("dwarfresolver: line table for CU %#x: %w (format_error)", cu.entry.Offset, err)
	}
	if lr == nil {
		r.lineCache[cu.entry.Offset] = nil
		return nil, nil
	}

	byAddr := make(map[uint64]lineRow)
	var order []uint64
	var le dwarf.LineEntry
	for {
		err := lr.Next(&le)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dwarfresolver: decoding line table for CU %#x: %w (format_error)", cu.entry.Offset, err)
		}
		if le.EndSequence {
			continue
		}
		if _, seen := byAddr[le.Address]; !seen {
			order = append(order, le.Address)
		}
		name := ""
		if le.File != nil {
			name = le.File.Name
		}
		byAddr[le.Address] = lineRow{pc: le.Address, file: name, line: uint32(le.Line), column: uint32(le.Column)}
	}
	rows := make([]lineRow, 0, len(order))
	for _, addr := range order {
		rows = append(rows, byAddr[addr])
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].pc < rows[j].pc })
	r.lineCache[cu.entry.Offset] = rows
	return rows, nil
}

// lookupLine returns the line table row governing pc: the last row whose
// address is <= pc (a line program describes the line in force from its
// address up to, but not including, the next row's address).
func (r *Resolver) lookupLine(cu *cuEntry, pc uint64) (lineRow, bool) {
	rows, err := r.ensureLineCache(cu)
	if err != nil || len(rows) == 0 {
		return lineRow{}, false
	}
	n := sort.Search(len(rows), func(i int) bool { return rows[i].pc > pc })
	if n == 0 {
		return lineRow{}, false
	}
	return rows[n-1], true
}
