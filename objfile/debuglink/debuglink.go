// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package debuglink resolves a ".gnu_debuglink" section (or a macOS .dSYM
// sibling) to the sibling file that actually carries DWARF, and verifies
// its CRC-32.
package debuglink

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
)

// Parse decodes the contents of a .gnu_debuglink section: a NUL-terminated
// file name, padded to a 4-byte boundary, followed by a little-endian
// CRC-32 of the linked file.
func Parse(section []byte) (name string, crc uint32, err error) {
	i := 0
	for i < len(section) && section[i] != 0 {
		i++
	}
	if i == len(section) {
		return "", 0, fmt.Errorf("debuglink: missing NUL terminator (format_error)")
	}
	name = string(section[:i])
	// Skip to the 4-byte-aligned CRC.
	crcOff := (i + 1 + 3) &^ 3
	if crcOff+4 > len(section) {
		return "", 0, fmt.Errorf("debuglink: truncated CRC (format_error)")
	}
	crc = binary.LittleEndian.Uint32(section[crcOff : crcOff+4])
	return name, crc, nil
}

// Resolve looks for name next to objectPath (the usual .gnu_debuglink
// convention: same directory, then ./.debug/, then /usr/lib/debug/<dir>)
// and verifies its CRC matches want.
func Resolve(objectPath, name string, want uint32) (string, error) {
	dir := filepath.Dir(objectPath)
	candidates := []string{
		filepath.Join(dir, name),
		filepath.Join(dir, ".debug", name),
		filepath.Join("/usr/lib/debug", dir, name),
	}
	for _, c := range candidates {
		got, err := crcFile(c)
		if err != nil {
			continue
		}
		if got == want {
			return c, nil
		}
	}
	return "", fmt.Errorf("debuglink: no candidate for %s matched CRC %08x (io_error)", name, want)
}

// DSYMPath returns the conventional .dSYM DWARF path for a macOS binary,
// e.g. "/path/to/a.out" -> "/path/to/a.out.dSYM/Contents/Resources/DWARF/a.out".
func DSYMPath(objectPath string) string {
	base := filepath.Base(objectPath)
	return filepath.Join(objectPath+".dSYM", "Contents", "Resources", "DWARF", base)
}

// crcFile streams path in <=1000-byte chunks and returns its IEEE CRC-32.
func crcFile(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	buf := make([]byte, 1000)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return h.Sum32(), nil
}
