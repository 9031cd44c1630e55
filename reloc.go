// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfidx

import "fmt"

// applyRelocations walks rela's Elf64_Rela entries and patches symbol
// values plus addends directly into data inside target's byte range.
// The debug sections of a relocatable object carry no meaningful
// addresses or cross-section offsets of their own until relocated, so
// this runs before any DWARF parsing touches them.
func applyRelocations(data []byte, target elfShdr, rela elfShdr, symtab elfShdr) error {
	relaBytes, err := sectionBytes(data, rela)
	if err != nil {
		return fmt.Errorf("relocation section: %w", err)
	}
	symBytes, err := sectionBytes(data, symtab)
	if err != nil {
		return fmt.Errorf("symbol table: %w", err)
	}
	numSyms := len(symBytes) / elfSymSize

	if len(relaBytes)%elfRelaSize != 0 {
		return fmt.Errorf("%w: relocation section size %d is not a multiple of %d", ErrELFFormat, len(relaBytes), elfRelaSize)
	}

	r := newReader(relaBytes)
	for r.avail() > 0 {
		offset, err := r.u64()
		if err != nil {
			return err
		}
		info, err := r.u64()
		if err != nil {
			return err
		}
		addend, err := r.u64() // read as unsigned, reinterpreted below
		if err != nil {
			return err
		}

		symIdx := info >> 32
		relType := uint32(info)

		if relType == rX86_64None {
			continue
		}

		if symIdx >= uint64(numSyms) {
			return fmt.Errorf("%w: relocation references symbol %d, have %d symbols", ErrELFFormat, symIdx, numSyms)
		}
		symValue, err := symbolValue(symBytes, int(symIdx))
		if err != nil {
			return err
		}

		value := symValue + addend

		var size int
		switch relType {
		case rX86_64_32:
			size = 4
		case rX86_64_64:
			size = 8
		default:
			return fmt.Errorf("%w: relocation type %d", ErrNotImplemented, relType)
		}

		end := offset + uint64(size)
		if end < offset || end > target.size {
			return fmt.Errorf("%w: relocation offset 0x%x out of section bounds", ErrELFFormat, offset)
		}
		targetOff := target.offset + offset
		patch(data[targetOff:targetOff+uint64(size)], value, size)
	}
	return nil
}

// symbolValue returns the Elf64_Sym.st_value field of the i'th symbol in
// symBytes.
func symbolValue(symBytes []byte, i int) (uint64, error) {
	off := i * elfSymSize
	if off+elfSymSize > len(symBytes) {
		return 0, fmt.Errorf("%w: symbol %d outside symbol table", ErrELFFormat, i)
	}
	// Elf64_Sym: name(4) info(1) other(1) shndx(2) value(8) size(8).
	return hostLayout.Uint64(symBytes[off+8:]), nil
}

func patch(dst []byte, value uint64, size int) {
	switch size {
	case 4:
		dst[0] = byte(value)
		dst[1] = byte(value >> 8)
		dst[2] = byte(value >> 16)
		dst[3] = byte(value >> 24)
	case 8:
		dst[0] = byte(value)
		dst[1] = byte(value >> 8)
		dst[2] = byte(value >> 16)
		dst[3] = byte(value >> 24)
		dst[4] = byte(value >> 32)
		dst[5] = byte(value >> 40)
		dst[6] = byte(value >> 48)
		dst[7] = byte(value >> 56)
	}
}
