// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/golang-debug/symbolize/demangle"
	"github.com/golang-debug/symbolize/dwarfresolver"
	"github.com/golang-debug/symbolize/frame"
	"github.com/golang-debug/symbolize/objfile"
	_ "github.com/golang-debug/symbolize/objfile/all"
)

var (
	resolveVerbose    bool
	resolveNoDemangle bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <object> <pc> [pc...]",
	Short: "Resolve one or more object-relative PCs (hex, e.g. 0x401234)",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().BoolVarP(&resolveVerbose, "verbose", "v", false, "log non-fatal resolution diagnostics")
	resolveCmd.Flags().BoolVar(&resolveNoDemangle, "no-demangle", false, "skip demangling C++/Rust symbol names")
}

// runResolve operates on a single named object file directly: unlike the
// library's Driver (which maps a raw, loaded-process PC through modresolve
// first), a CLI invocation already knows exactly which file it means, so
// the PCs given on the command line are taken as already object-relative.
func runResolve(cmd *cobra.Command, args []string) error {
	path := args[0]
	parser, err := objfile.Open(path)
	if err != nil {
		return fmt.Errorf("tracedump: %w", err)
	}
	defer parser.Close()

	resolver, resolverErr := dwarfresolver.Open(parser, dwarfresolver.WithLogger(newLogger(resolveVerbose)))

	demangler := func(s string) string { return s }
	if !resolveNoDemangle {
		demangler = demangle.Default()
	}

	for _, s := range args[1:] {
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return fmt.Errorf("tracedump: invalid pc %q: %w", s, err)
		}
		pc := frame.PC(v)

		var frames []frame.Resolved
		if resolverErr == nil {
			frames, err = resolver.ResolvePC(pc)
		}
		if resolverErr != nil || err != nil {
			name, ok := parser.LookupSymbol(pc)
			f := frame.Partial(pc, pc, path)
			if ok {
				f.Symbol = demangler(name)
			}
			frames = []frame.Resolved{f}
		} else {
			for i := range frames {
				if !frames[i].IsInline {
					frames[i].RawPC = pc
				}
				if frames[i].Symbol != "" {
					frames[i].Symbol = demangler(frames[i].Symbol)
				}
			}
		}
		printFrames(cmd, frames)
	}
	return nil
}

func printFrames(cmd *cobra.Command, frames []frame.Resolved) {
	for _, f := range frames {
		marker := ""
		if f.IsInline {
			marker = " (inlined)"
		}
		loc := f.File
		if f.HasLine() {
			loc = fmt.Sprintf("%s:%d", loc, f.Line)
			if f.HasColumn() {
				loc = fmt.Sprintf("%s:%d", loc, f.Column)
			}
		}
		symbol := f.Symbol
		if symbol == "" {
			symbol = "??"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%#016x  %s  %s%s\n", f.RawPC, symbol, loc, marker)
	}
}
