// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/aclements/go-dwarfidx"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	colorCount = color.New(color.FgCyan)
	colorLabel = color.New(color.FgHiBlack)
)

var buildCmd = &cobra.Command{
	Use:   "build <file>...",
	Short: "Build the index and report its statistics",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, cleanup, err := newLogger()
		if err != nil {
			return err
		}
		defer cleanup()

		start := time.Now()
		idx, err := dwarfidx.Open(args, dwarfidx.WithHashCapacity(viper.GetInt("hash-capacity")))
		if err != nil {
			logger.Error("index construction failed", "err", err)
			return err
		}
		defer idx.Close()
		elapsed := time.Since(start)

		stats := idx.Stats()
		logger.Info("index built", "files", stats.Files, "cus", stats.CUs,
			"entries", stats.Entries, "elapsed", elapsed)

		row := func(label string, value interface{}) {
			fmt.Printf("%s %s\n", colorLabel.Sprintf("%-14s", label), colorCount.Sprint(value))
		}
		row("files", stats.Files)
		row("CUs", stats.CUs)
		row("entries", stats.Entries)
		row("capacity", stats.Capacity)
		row("load factor", fmt.Sprintf("%.4f", stats.LoadFactor))
		row("address size", stats.AddressSize)
		row("elapsed", elapsed)
		return nil
	},
}
