// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/golang-debug/symbolize/demangle"
	"github.com/golang-debug/symbolize/dwarfresolver"
	"github.com/golang-debug/symbolize/frame"
	"github.com/golang-debug/symbolize/objfile"
	_ "github.com/golang-debug/symbolize/objfile/all"
)

var replCmd = &cobra.Command{
	Use:   "repl <object>",
	Short: "Open an object and interactively resolve PCs typed at a prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runREPL,
}

// runREPL keeps one object open for the session instead of re-parsing it per
// query, the interactive analogue of what symcache.PrioritizeSpeed buys a
// long-running process.
func runREPL(cmd *cobra.Command, args []string) error {
	path := args[0]
	parser, err := objfile.Open(path)
	if err != nil {
		return fmt.Errorf("tracedump: %w", err)
	}
	defer parser.Close()

	resolver, resolverErr := dwarfresolver.Open(parser)
	demangler := demangle.Default()

	rl, err := readline.New(fmt.Sprintf("%s> ", path))
	if err != nil {
		return fmt.Errorf("tracedump: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tracedump: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		v, err := strconv.ParseUint(line, 0, 64)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "invalid pc %q: %v\n", line, err)
			continue
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
}
