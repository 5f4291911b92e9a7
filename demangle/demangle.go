// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package demangle provides the default (string -> string) demangler
// adapter the core treats as a pure, external collaborator: the
// core itself never links a demangling library directly, it only ever calls
// whatever func(string) string a caller configures it with. This package is
// just the stock choice for that slot.
package demangle

import "github.com/ianlancetaylor/demangle"

// Default demangles a C++ or Rust mangled symbol name, returning name
// unchanged if it doesn't look mangled or demangle.Filter can't parse it.
func Default() func(string) string {
	return func(name string) string {
		return demangle.Filter(name)
	}
}

// WithOptions builds a demangler using specific demangle.Option values
// (e.g. demangle.NoParams to drop parameter types from the output), for
// callers who want more than Default's conservative behavior.
func WithOptions(opts ...demangle.Option) func(string) string {
	return func(name string) string {
		return demangle.Filter(name, opts...)
	}
}
