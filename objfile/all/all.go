// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package all registers every object-file backend (ELF, Mach-O, PE) with
// objfile.Open, the same way the image package's format registration works:
// importing this package for its side effects is enough to make all three
// formats available.
package all

import (
	_ "github.com/golang-debug/symbolize/objfile/elf"
	_ "github.com/golang-debug/symbolize/objfile/macho"
	_ "github.com/golang-debug/symbolize/objfile/pe"
)
