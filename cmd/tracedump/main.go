// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tracedump is a small CLI front end over packages objfile and
// dwarfresolver: given
// an object file and a list of PCs (hex, relative to that object's
// preferred image base), it prints the resolved frames, including any
// inline expansion. It exists to exercise the pipeline end to end, not as a
// production debugging tool.
package main

func main() {
	Execute()
}
