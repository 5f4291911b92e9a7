// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package breader

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBytesReadAt(t *testing.T) {
	r := FromBytes([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	v, err := r.Uint32(0, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x04030201), v)

	v64, err := r.Uint64(0, binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v64)
}

func TestReadPastEOFFails(t *testing.T) {
	r := FromBytes([]byte{0x01, 0x02})
	_, err := r.Bytes(0, 4)
	assert.Error(t, err)
}

func TestCStringTrailingNUL(t *testing.T) {
	r := FromBytes([]byte("hello\x00world"))
	s, err := r.CString(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestCStringTruncatedTableIsSafe(t *testing.T) {
	// No NUL before EOF: must still terminate instead of reading forever.
	r := FromBytes([]byte("abc"))
	s, err := r.CString(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", s)
}

func TestStdReaderAtFullRead(t *testing.T) {
	r := FromBytes([]byte{0x01, 0x02, 0x03, 0x04})
	sr := r.StdReaderAt()

	buf := make([]byte, 4)
	n, err := sr.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf)
}

func TestStdReaderAtShortReadAtEOFReturnsPartialPlusEOF(t *testing.T) {
	r := FromBytes([]byte{0x01, 0x02, 0x03})
	sr := r.StdReaderAt()

	buf := make([]byte, 4)
	n, err := sr.ReadAt(buf, 1)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0x02, 0x03}, buf[:n])
}

func TestStdReaderAtOffsetPastEndReturnsEOF(t *testing.T) {
	r := FromBytes([]byte{0x01, 0x02})
	sr := r.StdReaderAt()

	n, err := sr.ReadAt(make([]byte, 2), 5)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, n)
}

func TestStdReaderAtSatisfiesIOReaderAt(t *testing.T) {
	var _ io.ReaderAt = FromBytes(nil).StdReaderAt()
}
