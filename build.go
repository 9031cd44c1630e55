// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfidx

import (
	"fmt"
	"sync"
)

// fileIndexResult is what indexing one file contributes to a
// DwarfIndex: its opened File (so the caller can Close it later) and
// the address size of its last CU, if any.
type fileIndexResult struct {
	file        *File
	addressSize int
	cus         int
}

// buildIndex opens and indexes every path in paths into a freshly
// allocated HashIndex, either one file at a time or concurrently across
// files per cfg.parallel. Hash table insertion is always safe to run
// concurrently: HashIndex.insert serializes on its own mutex, so the
// parallel path is simply "do the CPU-heavy per-file parsing
// concurrently, then funnel every DIE found into the same table".
//
// On any error, every File opened so far (including ones whose
// indexing hadn't finished) is closed before buildIndex returns.
func buildIndex(paths []string, cfg buildConfig) (files []*File, hash *HashIndex, addressSize int, totalCUs int, err error) {
	hash, err = newHashIndex(cfg.hashCapacity)
	if err != nil {
		return nil, nil, 0, 0, err
	}

	results := make([]fileIndexResult, len(paths))
	errs := make([]error, len(paths))

	indexOne := func(i int) {
		f, err := openFile(paths[i])
		if err != nil {
			errs[i] = err
			return
		}
		n, addrSize, err := indexFile(f, hash)
		if err != nil {
			f.Close()
			errs[i] = fmt.Errorf("%s: %w", paths[i], err)
			return
		}
		results[i] = fileIndexResult{file: f, addressSize: addrSize, cus: n}
	}

	if cfg.parallel {
		var wg sync.WaitGroup
		wg.Add(len(paths))
		for i := range paths {
			i := i
			go func() {
				defer wg.Done()
				indexOne(i)
			}()
		}
		wg.Wait()
	} else {
		for i := range paths {
			indexOne(i)
		}
	}

	var firstErr error
	for i, r := range results {
		if errs[i] != nil {
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		if r.file != nil {
			files = append(files, r.file)
			totalCUs += r.cus
		}
	}
	if firstErr != nil {
		for _, f := range files {
			f.Close()
		}
		return nil, nil, 0, 0, firstErr
	}

	// x86-64 debug info always agrees on address size, so the last CU
	// processed (in input order) stands for all of them.
	for _, r := range results {
		if r.cus > 0 {
			addressSize = r.addressSize
		}
	}

	return files, hash, addressSize, totalCUs, nil
}

// indexFile walks every CU in f, compiling its abbreviation table and
// indexing its top-level DIEs into hash. It returns the number of CUs
// found and the address size of the last one.
func indexFile(f *File, hash *HashIndex) (cus int, addressSize int, err error) {
	info := f.DebugInfo()
	err = walkCUHeaders(f, info, func(cu *CompilationUnit) error {
		decls, err := parseAbbrevTable(f.DebugAbbrev(), cu.DebugAbbrevOffset, cu.Is64Bit, cu.AddressSize)
		if err != nil {
			return fmt.Errorf("CU at %#x: %w", cu.HeaderOffset, err)
		}
		cu.decls = decls

		addressSize = int(cu.AddressSize)
		cus++

		return indexCU(cu, hash)
	})
	if err != nil {
		return 0, 0, err
	}
	return cus, addressSize, nil
}
