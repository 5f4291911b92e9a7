// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package breader is the random-access byte source behind objfile.OpenBytes:
// a kept-open file, or a borrowed in-memory span for JIT-emitted object
// images that have no backing path to open. The file-backed path
// (objfile.Open) reads through each format's own canonical library instead
// (debug/elf, go-macho, saferwall/pe already do their own bounds-checked
// file I/O); breader.StdReaderAt is what lets those same libraries accept
// an in-memory span. It does no caching of its own; repeated reads of the
// same region are the caller's concern.
package breader

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Reader is a random-access byte source.
type Reader struct {
	f    *os.File // nil when backed by an in-memory span
	span []byte   // nil when backed by a file
	size int64
}

// Open opens path and keeps the descriptor open for the Reader's lifetime.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("breader: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("breader: %w", err)
	}
	return &Reader{f: f, size: fi.Size()}, nil
}

// FromBytes wraps a borrowed in-memory object image (e.g. a JIT-emitted
// blob). The caller retains ownership of span; the Reader never mutates it.
func FromBytes(span []byte) *Reader {
	return &Reader{span: span, size: int64(len(span))}
}

// Close releases the underlying file handle, if any.
func (r *Reader) Close() error {
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}

// Size returns the total number of addressable bytes.
func (r *Reader) Size() int64 { return r.size }

// StdReaderAt adapts Reader to the standard io.ReaderAt interface, for
// handing a file-backed or in-memory span to libraries (stdlib debug/elf,
// blacktop/go-macho) that read an object file through io.ReaderAt rather
// than a path.
func (r *Reader) StdReaderAt() io.ReaderAt { return stdReaderAt{r} }

type stdReaderAt struct{ r *Reader }

func (s stdReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n := len(p)
	if int64(n) > s.r.size-off {
		n = int(s.r.size - off)
	}
	if n <= 0 {
		return 0, io.EOF
	}
	if err := s.r.ReadAt(p[:n], off); err != nil {
		return 0, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadAt fills dest from offset, failing with an io-kind error if the read
// straddles EOF or the underlying syscall fails.
func (r *Reader) ReadAt(dest []byte, offset int64) error {
	if offset < 0 || offset > r.size {
		return fmt.Errorf("breader: offset %d out of range [0,%d]", offset, r.size)
	}
	if int64(len(dest)) > r.size-offset {
		return fmt.Errorf("breader: read of %d bytes at %d exceeds size %d: %w", len(dest), offset, r.size, io.ErrUnexpectedEOF)
	}
	if r.span != nil {
		copy(dest, r.span[offset:offset+int64(len(dest))])
		return nil
	}
	n, err := r.f.ReadAt(dest, offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("breader: %w", err)
	}
	if n != len(dest) {
		return fmt.Errorf("breader: short read (%d of %d) at %d: %w", n, len(dest), offset, io.ErrUnexpectedEOF)
	}
	return nil
}

// Bytes returns n bytes starting at offset.
func (r *Reader) Bytes(offset int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := r.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// Uint8 loads a single byte at offset.
func (r *Reader) Uint8(offset int64) (uint8, error) {
	var b [1]byte
	if err := r.ReadAt(b[:], offset); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 loads a 16-bit unsigned integer at offset in the given byte order.
func (r *Reader) Uint16(offset int64, order binary.ByteOrder) (uint16, error) {
	var b [2]byte
	if err := r.ReadAt(b[:], offset); err != nil {
		return 0, err
	}
	return order.Uint16(b[:]), nil
}

// Uint32 loads a 32-bit unsigned integer at offset in the given byte order.
func (r *Reader) Uint32(offset int64, order binary.ByteOrder) (uint32, error) {
	var b [4]byte
	if err := r.ReadAt(b[:], offset); err != nil {
		return 0, err
	}
	return order.Uint32(b[:]), nil
}

// Uint64 loads a 64-bit unsigned integer at offset in the given byte order.
func (r *Reader) Uint64(offset int64, order binary.ByteOrder) (uint64, error) {
	var b [8]byte
	if err := r.ReadAt(b[:], offset); err != nil {
		return 0, err
	}
	return order.Uint64(b[:]), nil
}

// CString reads a NUL-terminated string starting at offset, scanning at
// most maxLen bytes. A trailing NUL is always implied even if the
// underlying table is truncated, matching the ELF string-table lookup
// behavior: a trailing NUL is appended for safety.
func (r *Reader) CString(offset int64, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = 4096
	}
	buf := make([]byte, 0, 64)
	var b [1]byte
	for i := 0; i < maxLen; i++ {
		if err := r.ReadAt(b[:], offset+int64(i)); err != nil {
			// Truncated table: return what we have, NUL-terminated.
			return string(buf), nil
		}
		if b[0] == 0 {
			return string(buf), nil
		}
		buf = append(buf, b[0])
	}
	return string(buf), nil
}
