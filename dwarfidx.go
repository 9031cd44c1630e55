// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dwarfidx builds a fast, read-only name index over the DWARF
// debug information in a set of ELF object files: given a tag and a
// name, it locates the DIE that declares it without materializing any
// DWARF itself. See the accompanying design documents for the full
// component breakdown.
package dwarfidx

import "fmt"

// DwarfIndex is an immutable index over the DWARF debug information in
// one or more ELF object files. Build it with Open; look things up with
// Find.
type DwarfIndex struct {
	files       []*File
	hash        *HashIndex
	addressSize int
	cus         int
}

// Open builds a DwarfIndex over paths. Each path is mapped, relocated,
// and indexed. By default files are indexed concurrently (see
// WithParallel).
//
// On error, no files remain open: Open cleans up everything it mapped.
func Open(paths []string, opts ...Option) (*DwarfIndex, error) {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	files, hash, addressSize, cus, err := buildIndex(paths, cfg)
	if err != nil {
		return nil, err
	}

	return &DwarfIndex{files: files, hash: hash, addressSize: addressSize, cus: cus}, nil
}

// Find looks up the entry for (tag, name), returning its Locator and
// whether it was found.
func (x *DwarfIndex) Find(tag uint8, name string) (Locator, bool) {
	return x.hash.find(tag, []byte(name))
}

// AddressSize returns the target address size, in bytes, of the last
// CU indexed (in input order), or 0 if no CU was indexed, as when Open
// was given no files. It does not check that the CUs agree.
func (x *DwarfIndex) AddressSize() int {
	return x.addressSize
}

// Close unmaps every file backing this index. The index must not be
// used afterward.
func (x *DwarfIndex) Close() error {
	var firstErr error
	for _, f := range x.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats summarizes the state of a DwarfIndex, mainly for diagnostics
// and the build CLI command.
type Stats struct {
	Files       int
	CUs         int
	Entries     int
	Capacity    int
	LoadFactor  float64
	AddressSize int
}

// Stats reports summary statistics about x.
func (x *DwarfIndex) Stats() Stats {
	entries := x.hash.len()
	cap := x.hash.cap()
	lf := 0.0
	if cap > 0 {
		lf = float64(entries) / float64(cap)
	}
	return Stats{
		Files:       len(x.files),
		CUs:         x.cus,
		Entries:     entries,
		Capacity:    cap,
		LoadFactor:  lf,
		AddressSize: x.addressSize,
	}
}

// String renders Stats on one line for humans.
func (s Stats) String() string {
	return fmt.Sprintf("files=%d entries=%d capacity=%d load_factor=%.4f address_size=%d",
		s.Files, s.Entries, s.Capacity, s.LoadFactor, s.AddressSize)
}
