// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	logFile      string
	verbose      bool
	hashCapacity int
)

var rootCmd = &cobra.Command{
	Use:   "dwarfidx",
	Short: "Index DWARF debug info in ELF object files by name",
	Long: `dwarfidx builds an in-memory (name, tag) index over the DWARF debug
information of a set of ELF64 object files, then answers queries against it.

It indexes top-level type and variable declarations only; materializing full
DIEs is left to whatever debugger sits on top of it.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.dwarfidx.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "also write JSON logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at info level, not just warnings")
	rootCmd.PersistentFlags().IntVar(&hashCapacity, "hash-capacity", 1<<17, "index hash table slots (power of two)")

	viper.BindPFlag("hash-capacity", rootCmd.PersistentFlags().Lookup("hash-capacity"))
	viper.BindPFlag("log", rootCmd.PersistentFlags().Lookup("log"))

	rootCmd.AddCommand(buildCmd, findCmd)
}

// initConfig reads in config file and DWARFIDX_* environment variables
// if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dwarfidx")
	}

	viper.SetEnvPrefix("dwarfidx")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the logger the subcommands share: a text handler on
// stderr, fanned out to a JSON file handler as well when --log (or the
// equivalent config key) is set.
func newLogger() (*slog.Logger, func(), error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}
	cleanup := func() {}

	if path := viper.GetString("log"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
		cleanup = func() { f.Close() }
	}

	return slog.New(slogmulti.Fanout(handlers...)), cleanup, nil
}
