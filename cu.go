// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfidx

import "fmt"

// CompilationUnit is one compilation unit's worth of DWARF, as read out
// of a File's .debug_info section.
type CompilationUnit struct {
	File *File

	// HeaderOffset is the offset of this CU's length field within
	// File.DebugInfo().
	HeaderOffset uint64
	// UnitLength is the CU's unit_length field: the number of bytes
	// following the length field(s), excluding the length field(s)
	// themselves.
	UnitLength uint64
	// Version is the CU's DWARF version, always 2, 3, or 4.
	Version uint16
	// DebugAbbrevOffset is this CU's offset into .debug_abbrev.
	DebugAbbrevOffset uint64
	// AddressSize is the size, in bytes, of a target address in this
	// CU, always between 1 and 8.
	AddressSize uint8
	// Is64Bit is true if this CU uses the 64-bit DWARF format (an
	// initial length field of 0xffffffff followed by an 8-byte length).
	Is64Bit bool

	// firstDIE is the offset of the first (root) DIE, immediately after
	// the header: HeaderOffset+11 for 32-bit DWARF, HeaderOffset+23 for
	// 64-bit.
	firstDIE uint64
	// end is the offset one past the end of this CU's body in
	// .debug_info.
	end uint64

	// decls holds the compiled abbreviation declarations for this CU,
	// indexed by abbreviation code - 1.
	decls []abbrevDecl
}

// readCUHeader parses the CU header at offset in info (a File's
// .debug_info bytes). It does not parse the CU's abbreviation table;
// call parseAbbrevTable for that.
func readCUHeader(f *File, info []byte, offset uint64) (*CompilationUnit, error) {
	r := newReader(info)
	if err := r.seek(int(offset)); err != nil {
		return nil, fmt.Errorf("CU header at %#x: %w", offset, err)
	}

	first, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("CU header at %#x: %w", offset, err)
	}

	cu := &CompilationUnit{File: f, HeaderOffset: offset}
	var lengthFieldSize uint64 = 4
	if first == 0xffffffff {
		cu.Is64Bit = true
		lengthFieldSize = 12
		cu.UnitLength, err = r.u64()
		if err != nil {
			return nil, fmt.Errorf("CU header at %#x: %w", offset, err)
		}
	} else {
		cu.UnitLength = uint64(first)
	}

	version, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("CU header at %#x: %w", offset, err)
	}
	if version < 2 || version > 4 {
		return nil, fmt.Errorf("%w: CU at %#x has unsupported version %d", ErrDWARFFormat, offset, version)
	}
	cu.Version = version

	if cu.Is64Bit {
		cu.DebugAbbrevOffset, err = r.u64()
	} else {
		var v uint32
		v, err = r.u32()
		cu.DebugAbbrevOffset = uint64(v)
	}
	if err != nil {
		return nil, fmt.Errorf("CU header at %#x: %w", offset, err)
	}

	addrSize, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("CU header at %#x: %w", offset, err)
	}
	if addrSize < 1 || addrSize > 8 {
		return nil, fmt.Errorf("%w: CU at %#x has invalid address_size %d", ErrDWARFFormat, offset, addrSize)
	}
	cu.AddressSize = addrSize

	cu.firstDIE = uint64(r.offset())
	cu.end = offset + lengthFieldSize + cu.UnitLength
	if cu.end > uint64(len(info)) || cu.end < offset {
		return nil, fmt.Errorf("%w: CU at %#x has unit_length %d extending past .debug_info", ErrDWARFFormat, offset, cu.UnitLength)
	}
	if cu.firstDIE > cu.end {
		return nil, fmt.Errorf("%w: CU at %#x header extends past its own end", ErrDWARFFormat, offset)
	}

	return cu, nil
}

// walkCUHeaders calls fn for every CU header found in info, in
// ascending order, stopping at the first error fn or header parsing
// returns.
func walkCUHeaders(f *File, info []byte, fn func(*CompilationUnit) error) error {
	offset := uint64(0)
	for offset < uint64(len(info)) {
		cu, err := readCUHeader(f, info, offset)
		if err != nil {
			return err
		}
		if err := fn(cu); err != nil {
			return err
		}
		offset = cu.end
	}
	return nil
}
