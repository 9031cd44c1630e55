// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfidx

import (
	"fmt"
	"os"
	"syscall"
)

// File owns a private, writable mmap of one ELF object file and the
// three debug section byte ranges the index needs. It is immutable once
// openFile returns: relocations have already been patched into the
// mapping, and nothing after construction writes to it again.
type File struct {
	Path string

	mapped []byte // the full private mmap; unmapped on Close

	debugAbbrev []byte
	debugInfo   []byte
	debugStr    []byte
}

// DebugInfo returns the file's relocated .debug_info section bytes. An
// external DIE materializer decodes attribute payloads from this range;
// the index itself only ever reads name and sibling out of it.
func (f *File) DebugInfo() []byte { return f.debugInfo }

// DebugAbbrev returns the file's relocated .debug_abbrev section bytes.
func (f *File) DebugAbbrev() []byte { return f.debugAbbrev }

// DebugStr returns the file's relocated .debug_str section bytes.
func (f *File) DebugStr() []byte { return f.debugStr }

// Close unmaps f's backing file. After Close, dereferencing any byte
// slice obtained from f (or any Locator pointing into f) may fault.
func (f *File) Close() error {
	if f.mapped == nil {
		return nil
	}
	m := f.mapped
	f.mapped, f.debugAbbrev, f.debugInfo, f.debugStr = nil, nil, nil, nil
	return syscall.Munmap(m)
}

// openFile mmaps path privately and writably, validates its ELF header
// and section table, and applies every x86-64 relocation targeting a
// debug section in place.
func openFile(path string) (*File, error) {
	osf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}
	defer osf.Close()

	fi, err := osf.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
	}
	size := fi.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrELFFormat, path)
	}

	// MAP_PRIVATE + PROT_WRITE gives us a copy-on-write mapping: we can
	// patch relocations into it without touching the file on disk, and
	// without a separate owned heap buffer.
	mapped, err := syscall.Mmap(int(osf.Fd()), 0, int(size), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %s: %v", ErrIO, path, err)
	}

	layout, err := readSections(mapped)
	if err != nil {
		syscall.Munmap(mapped)
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for _, ds := range []*debugSection{&layout.abbrev, &layout.info, &layout.str} {
		if ds.relaShdr == nil {
			continue
		}
		if err := applyRelocations(mapped, ds.shdr, *ds.relaShdr, layout.symtab); err != nil {
			syscall.Munmap(mapped)
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	abbrevBytes, err := sectionBytes(mapped, layout.abbrev.shdr)
	if err != nil {
		syscall.Munmap(mapped)
		return nil, err
	}
	infoBytes, err := sectionBytes(mapped, layout.info.shdr)
	if err != nil {
		syscall.Munmap(mapped)
		return nil, err
	}
	strBytes, err := sectionBytes(mapped, layout.str.shdr)
	if err != nil {
		syscall.Munmap(mapped)
		return nil, err
	}

	return &File{
		Path:        path,
		mapped:      mapped,
		debugAbbrev: abbrevBytes,
		debugInfo:   infoBytes,
		debugStr:    strBytes,
	}, nil
}
