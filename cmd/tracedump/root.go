// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tracedump",
	Short: "Resolve program counters against an object file's debug info",
	Long: `tracedump parses an object file's container format (ELF, Mach-O, or PE),
walks its DWARF debug information, and resolves a list of program counters
to (function, file, line, column), expanding any inlined calls along the way.`,
}

// Execute adds all child commands to rootCmd and runs it. Called once from
// main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.tracedump.yaml)")
	rootCmd.AddCommand(resolveCmd, replCmd)
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tracedump")
	}
	viper.SetEnvPrefix("TRACEDUMP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "tracedump: using config file", viper.ConfigFileUsed())
	}
}

// newLogger builds the slog.Logger the resolve subcommand threads down into
// its dwarfresolver.Resolver; -v raises the level to debug.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
