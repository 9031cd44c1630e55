// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aclements/go-dwarfidx"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	colorHit  = color.New(color.FgGreen, color.Bold)
	colorMiss = color.New(color.FgRed, color.Bold)
	colorTag  = color.New(color.FgYellow)
	colorName = color.New(color.FgCyan)
)

// tagNames maps the spellable names of the indexable DWARF tags to
// their tag values. Only tags the index actually stores are listed;
// anything else could never produce a hit anyway.
var tagNames = map[string]uint8{
	"base_type":        0x24,
	"class_type":       0x02,
	"enumeration_type": 0x04,
	"structure_type":   0x13,
	"typedef":          0x16,
	"union_type":       0x17,
	"variable":         0x34,
}

// parseTag accepts an indexable tag by name ("structure_type",
// "DW_TAG_structure_type") or by number ("0x13", "19").
func parseTag(s string) (uint8, error) {
	name := strings.TrimPrefix(strings.ToLower(s), "dw_tag_")
	if tag, ok := tagNames[name]; ok {
		return tag, nil
	}
	if v, err := strconv.ParseUint(s, 0, 8); err == nil {
		return uint8(v), nil
	}
	known := make([]string, 0, len(tagNames))
	for n := range tagNames {
		known = append(known, n)
	}
	sort.Strings(known)
	return 0, fmt.Errorf("unknown tag %q (want a number or one of: %s)", s, strings.Join(known, ", "))
}

var findCmd = &cobra.Command{
	Use:   "find <tag> <name> <file>...",
	Short: "Look up one (tag, name) pair in the index",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, err := parseTag(args[0])
		if err != nil {
			return err
		}
		name := args[1]

		logger, cleanup, err := newLogger()
		if err != nil {
			return err
		}
		defer cleanup()

		idx, err := dwarfidx.Open(args[2:], dwarfidx.WithHashCapacity(viper.GetInt("hash-capacity")))
		if err != nil {
			logger.Error("index construction failed", "err", err)
			return err
		}
		defer idx.Close()

		key := fmt.Sprintf("(%s, %s)", colorTag.Sprintf("%#x", tag), colorName.Sprint(name))
		loc, ok := idx.Find(tag, name)
		if !ok {
			fmt.Printf("%s %s\n", colorMiss.Sprint("not found"), key)
			return nil
		}
		fmt.Printf("%s %s file=%s cu=%#x die=%#x\n",
			colorHit.Sprint("found"), key, loc.File.Path, loc.CUOffset, loc.DIEOffset)
		return nil
	},
}
