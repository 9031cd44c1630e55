// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfidx

import "fmt"

// This file implements a minimal, validated ELF64 section reader. It
// deliberately does not use debug/elf: the index needs to apply
// relocations to the debug sections in place before any DWARF parsing
// happens (see reloc.go), and it only ever needs five sections, so a
// small purpose-built reader is both simpler and keeps the hot path
// free of interface dispatch.

const (
	elfHeaderSize = 64
	elfShdrSize   = 64
	elfSymSize    = 24 // Elf64_Sym
	elfRelaSize   = 24 // Elf64_Rela

	eiClassOff   = 4
	eiDataOff    = 5
	eiVersionOff = 6

	elfClass32     = 1
	elfClass64     = 2
	elfData2LSB    = 1
	elfVersionCurr = 1

	elfMachineX86_64 = 0x3e

	shtNull     = 0
	shtProgbits = 1
	shtSymtab   = 2
	shtStrtab   = 3
	shtRela     = 4
	shtNobits   = 8

	shnUndef  = 0
	shnXindex = 0xffff

	rX86_64None = 0
	rX86_64_64  = 1
	rX86_64_32  = 10
)

var elfMagic = [4]byte{0x7f, 'E', 'L', 'F'}

// elfShdr is a parsed Elf64_Shdr.
type elfShdr struct {
	name      uint32
	shType    uint32
	flags     uint64
	addr      uint64
	offset    uint64
	size      uint64
	link      uint32
	info      uint32
	addralign uint64
	entsize   uint64
}

// debugSection is one of the three debug sections this package cares
// about, together with the SHT_RELA section (if any) that relocates it.
type debugSection struct {
	shdr     elfShdr
	shIndex  int
	relaShdr *elfShdr
}

// elfLayout holds everything readSections extracted from the ELF and
// section header tables: the byte ranges of the sections the index
// needs, and enough of the symbol table to resolve relocations.
type elfLayout struct {
	shnum int

	abbrev debugSection
	info   debugSection
	str    debugSection

	symtab     elfShdr
	symtabIdx  int
	haveSymtab bool
}

// readSections validates file's ELF header and section header table and
// locates .debug_abbrev, .debug_info, .debug_str, .symtab, and any
// SHT_RELA sections targeting the three debug sections.
func readSections(data []byte) (*elfLayout, error) {
	if len(data) < elfHeaderSize {
		return nil, fmt.Errorf("%w: file too small for ELF header", ErrELFFormat)
	}
	if [4]byte(data[0:4]) != elfMagic {
		return nil, fmt.Errorf("%w: bad ELF magic", ErrELFFormat)
	}
	if data[eiVersionOff] != elfVersionCurr {
		return nil, fmt.Errorf("%w: unsupported EI_VERSION %d", ErrELFFormat, data[eiVersionOff])
	}
	switch data[eiDataOff] {
	case elfData2LSB:
		// Host-matching: this package only runs on little-endian hosts.
	default:
		return nil, fmt.Errorf("%w: non-host ELF data encoding %d", ErrNotImplemented, data[eiDataOff])
	}
	switch data[eiClassOff] {
	case elfClass64:
	case elfClass32:
		return nil, fmt.Errorf("%w: 32-bit ELF is not supported", ErrNotImplemented)
	default:
		return nil, fmt.Errorf("%w: invalid EI_CLASS %d", ErrELFFormat, data[eiClassOff])
	}

	r := newReader(data)
	if err := r.skip(16); err != nil {
		return nil, err
	}
	if _, err := r.u16(); err != nil { // e_type
		return nil, err
	}
	machine, err := r.u16()
	if err != nil {
		return nil, err
	}
	if _, err := r.u32(); err != nil { // e_version
		return nil, err
	}
	if err := r.skip(8); err != nil { // e_entry
		return nil, err
	}
	if err := r.skip(8); err != nil { // e_phoff
		return nil, err
	}
	eShoff, err := r.u64()
	if err != nil {
		return nil, err
	}
	if err := r.skip(4); err != nil { // e_flags
		return nil, err
	}
	if err := r.skip(2); err != nil { // e_ehsize
		return nil, err
	}
	if err := r.skip(2); err != nil { // e_phentsize
		return nil, err
	}
	if err := r.skip(2); err != nil { // e_phnum
		return nil, err
	}
	eShentsize, err := r.u16()
	if err != nil {
		return nil, err
	}
	eShnum, err := r.u16()
	if err != nil {
		return nil, err
	}
	eShstrndx, err := r.u16()
	if err != nil {
		return nil, err
	}

	if eShnum == 0 {
		return nil, fmt.Errorf("%w: e_shnum is 0", ErrELFFormat)
	}
	if eShentsize != elfShdrSize {
		return nil, fmt.Errorf("%w: unexpected e_shentsize %d", ErrELFFormat, eShentsize)
	}

	shdrs, err := readShdrTable(data, eShoff, int(eShnum))
	if err != nil {
		return nil, err
	}

	// SHN_XINDEX: the real string table index is in shdrs[0].link.
	shstrndx := uint32(eShstrndx)
	if shstrndx == shnXindex {
		shstrndx = shdrs[0].link
	}
	if int(shstrndx) >= len(shdrs) {
		return nil, fmt.Errorf("%w: section name string table index %d out of range", ErrELFFormat, shstrndx)
	}
	shstrtab, err := sectionBytes(data, shdrs[shstrndx])
	if err != nil {
		return nil, fmt.Errorf("section name string table: %w", err)
	}

	layout := &elfLayout{shnum: len(shdrs)}
	var abbrevIdx, infoIdx, strIdx = -1, -1, -1

	for i, sh := range shdrs {
		if sh.shType == shtNull {
			continue
		}
		if sh.shType == shtProgbits {
			name, err := sectionName(shstrtab, sh.name)
			if err != nil {
				return nil, err
			}
			switch name {
			case ".debug_abbrev":
				layout.abbrev = debugSection{shdr: sh, shIndex: i}
				abbrevIdx = i
			case ".debug_info":
				layout.info = debugSection{shdr: sh, shIndex: i}
				infoIdx = i
			case ".debug_str":
				layout.str = debugSection{shdr: sh, shIndex: i}
				strIdx = i
			}
		}
		if sh.shType == shtSymtab && !layout.haveSymtab {
			layout.symtab = sh
			layout.symtabIdx = i
			layout.haveSymtab = true
		}
	}

	// Second pass: bind SHT_RELA sections to the debug section they
	// target. A rela section bound here must take its symbols from the
	// symbol table found above.
	haveRela := false
	for _, sh := range shdrs {
		if sh.shType != shtRela {
			continue
		}
		target := int(sh.info)
		var slot *debugSection
		switch target {
		case abbrevIdx:
			slot = &layout.abbrev
		case infoIdx:
			slot = &layout.info
		case strIdx:
			slot = &layout.str
		default:
			continue
		}
		if !layout.haveSymtab || sh.link != uint32(layout.symtabIdx) {
			return nil, fmt.Errorf("%w: RELA section references unexpected symbol table", ErrELFFormat)
		}
		sh := sh
		slot.relaShdr = &sh
		haveRela = true
	}

	if abbrevIdx < 0 || infoIdx < 0 || strIdx < 0 || !layout.haveSymtab {
		return nil, fmt.Errorf("%w: missing required section (.debug_abbrev, .debug_info, .debug_str, or .symtab)", ErrDWARFFormat)
	}
	if haveRela && machine != elfMachineX86_64 {
		return nil, fmt.Errorf("%w: relocations for machine %#x are not supported", ErrNotImplemented, machine)
	}

	// Bounds-check every section we located against the file.
	located := []elfShdr{layout.symtab}
	for _, ds := range []debugSection{layout.abbrev, layout.info, layout.str} {
		located = append(located, ds.shdr)
		if ds.relaShdr != nil {
			located = append(located, *ds.relaShdr)
		}
	}
	for _, sh := range located {
		if _, err := sectionBytes(data, sh); err != nil {
			return nil, err
		}
	}

	return layout, nil
}

func readShdrTable(data []byte, off uint64, n int) ([]elfShdr, error) {
	size := uint64(n) * elfShdrSize
	if off+size < off || off+size > uint64(len(data)) {
		return nil, fmt.Errorf("%w: section header table [0x%x,0x%x) outside file of size %d", ErrELFFormat, off, off+size, len(data))
	}
	r := newReader(data)
	if err := r.seek(int(off)); err != nil {
		return nil, err
	}
	out := make([]elfShdr, n)
	for i := range out {
		sh, err := readShdr(r)
		if err != nil {
			return nil, fmt.Errorf("section header %d: %w", i, err)
		}
		out[i] = sh
	}
	return out, nil
}

func readShdr(r *reader) (elfShdr, error) {
	var sh elfShdr
	var err error
	if sh.name, err = r.u32(); err != nil {
		return sh, err
	}
	if sh.shType, err = r.u32(); err != nil {
		return sh, err
	}
	if sh.flags, err = r.u64(); err != nil {
		return sh, err
	}
	if sh.addr, err = r.u64(); err != nil {
		return sh, err
	}
	if sh.offset, err = r.u64(); err != nil {
		return sh, err
	}
	if sh.size, err = r.u64(); err != nil {
		return sh, err
	}
	if sh.link, err = r.u32(); err != nil {
		return sh, err
	}
	if sh.info, err = r.u32(); err != nil {
		return sh, err
	}
	if sh.addralign, err = r.u64(); err != nil {
		return sh, err
	}
	if sh.entsize, err = r.u64(); err != nil {
		return sh, err
	}
	return sh, nil
}

// sectionBytes returns the (saturating) bounds-checked byte range of sh
// within data.
func sectionBytes(data []byte, sh elfShdr) ([]byte, error) {
	if sh.shType == shtNobits {
		return nil, nil
	}
	end := sh.offset + sh.size
	if end < sh.offset || end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: section [0x%x,0x%x) outside file of size %d", ErrELFFormat, sh.offset, end, len(data))
	}
	return data[sh.offset:end], nil
}

func sectionName(strtab []byte, off uint32) (string, error) {
	if uint64(off) >= uint64(len(strtab)) {
		return "", fmt.Errorf("%w: section name offset %d outside string table of size %d", ErrELFFormat, off, len(strtab))
	}
	end := off
	for end < uint32(len(strtab)) && strtab[end] != 0 {
		end++
	}
	if end == uint32(len(strtab)) {
		return "", fmt.Errorf("%w: unterminated section name", ErrELFFormat)
	}
	return string(strtab[off:end]), nil
}
