// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfidx

import "errors"

// The sentinel errors below classify every way building or querying an
// index can fail. Call sites wrap one of these with fmt.Errorf("...: %w", ...)
// to attach path/offset context; callers distinguish kinds with errors.Is.
var (
	// ErrIO indicates an open, fstat, or mmap failure on an input file.
	ErrIO = errors.New("dwarfidx: I/O error")

	// ErrELFFormat indicates malformed ELF: bad magic, wrong class,
	// truncated headers, section bounds outside the file, or a bad
	// relocation symbol/offset.
	ErrELFFormat = errors.New("dwarfidx: malformed ELF")

	// ErrDWARFFormat indicates malformed DWARF: unknown CU version,
	// unknown attribute form, unknown abbrev code, a missing required
	// debug section, or a non-NUL-terminated string table.
	ErrDWARFFormat = errors.New("dwarfidx: malformed DWARF")

	// ErrNotImplemented indicates valid-but-unsupported input: 32-bit
	// ELF, non-host endianness, an unsupported relocation type,
	// DW_FORM_indirect, or non-sequential abbreviation codes.
	ErrNotImplemented = errors.New("dwarfidx: not implemented")

	// ErrEOF indicates a reader ran past a section or CU bound while
	// expecting more bytes.
	ErrEOF = errors.New("dwarfidx: unexpected end of section")

	// ErrOverflow indicates a LEB128 value would not fit in 64 bits.
	ErrOverflow = errors.New("dwarfidx: LEB128 overflow")

	// ErrOutOfMemory indicates an allocation failure, or that the fixed
	// hash table is full.
	ErrOutOfMemory = errors.New("dwarfidx: out of memory")
)
