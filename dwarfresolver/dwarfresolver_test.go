// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfresolver

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golang-debug/symbolize/frame"
)

func buildAranges(t *testing.T, cuOffset uint32, pairs [][2]uint32) []byte {
	t.Helper()
	order := binary.LittleEndian
	body := make([]byte, 0, 64)
	body = order.AppendUint16(body, 2) // version
	body = order.AppendUint32(body, cuOffset)
	body = append(body, 8, 0) // address_size=8, segment_selector_size=0
	// Pad so the first tuple starts 16 bytes past the 4-byte unit_length's
	// first byte, i.e. at body offset 12.
	for len(body)%(2*8) != 12 {
		body = append(body, 0)
	}
	for _, p := range pairs {
		body = order.AppendUint64(body, uint64(p[0]))
		body = order.AppendUint64(body, uint64(p[1]))
	}
	body = order.AppendUint64(body, 0) // terminator
	body = order.AppendUint64(body, 0)

	out := make([]byte, 0, len(body)+4)
	out = order.AppendUint32(out, uint32(len(body)))
	out = append(out, body...)
	return out
}

func TestParseArangesSingleSet(t *testing.T) {
	sec := buildAranges(t, 0x40, [][2]uint32{{0x1000, 0x100}, {0x2000, 0x50}})
	got, err := parseAranges(sec)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, arange{low: 0x1000, high: 0x1100, cuOffset: 0x40}, got[0])
	assert.Equal(t, arange{low: 0x2000, high: 0x2050, cuOffset: 0x40}, got[1])
}

func TestFindArange(t *testing.T) {
	sorted := []arange{
		{low: 0x1000, high: 0x1100, cuOffset: 1},
		{low: 0x2000, high: 0x2050, cuOffset: 2},
	}
	off, ok := findArange(sorted, 0x1050)
	require.True(t, ok)
	assert.EqualValues(t, 1, off)

	_, ok = findArange(sorted, 0x1500)
	assert.False(t, ok)
}

func TestPcInRange(t *testing.T) {
	assert.True(t, pcInRange(10, 20, 15))
	assert.False(t, pcInRange(10, 20, 20))
	assert.False(t, pcInRange(0, 0, 0)) // unknown range never matches
}

func TestRotateAndFlattenSingleInline(t *testing.T) {
	physical := frame.Resolved{Symbol: "B", ObjectPC: 0x500, File: "deep.cpp", Line: 99, LineOk: true, Column: 3, ColumnOk: true}
	inlines := []inlineFrame{
		{symbol: "W", callFile: "b.cpp", callLine: 10, callCol: 1},
	}
	out := rotateAndFlatten(inlines, physical)
	require.Len(t, out, 2)

	assert.Equal(t, "W", out[0].Symbol)
	assert.True(t, out[0].IsInline)
	assert.Equal(t, "deep.cpp", out[0].File)
	assert.EqualValues(t, 99, out[0].Line)

	assert.Equal(t, "B", out[1].Symbol)
	assert.False(t, out[1].IsInline)
	assert.Equal(t, "b.cpp", out[1].File)
	assert.EqualValues(t, 10, out[1].Line)
}

func TestRotateAndFlattenTwoLevelInline(t *testing.T) {
	physical := frame.Resolved{Symbol: "B", File: "x.cpp", Line: 42, LineOk: true}
	// W called from B; X called from W (discovery order outer->inner).
	inlines := []inlineFrame{
		{symbol: "W", callFile: "b.cpp", callLine: 5},
		{symbol: "X", callFile: "w.cpp", callLine: 7},
	}
	out := rotateAndFlatten(inlines, physical)
	require.Len(t, out, 3)

	assert.Equal(t, "X", out[0].Symbol)
	assert.Equal(t, "x.cpp", out[0].File)
	assert.EqualValues(t, 42, out[0].Line)

	assert.Equal(t, "W", out[1].Symbol)
	assert.Equal(t, "w.cpp", out[1].File)
	assert.EqualValues(t, 7, out[1].Line)

	assert.Equal(t, "B", out[2].Symbol)
	assert.Equal(t, "b.cpp", out[2].File)
	assert.EqualValues(t, 5, out[2].Line)
}
