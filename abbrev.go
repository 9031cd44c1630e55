// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfidx

import "fmt"

// This file is the hardest subsystem: it compiles a CU's abbreviation
// table into a compact command stream for a tight skip/extract
// interpreter (indexCU, in index_cu.go). The interpreter dominates CU
// indexing time, so decoding (attr, form) pairs per DIE the way a naive
// walker would is far too slow; instead each abbreviation is compiled
// once into a byte program and every DIE using it just replays the
// program.

// DWARF tags this index cares about. Anything else compiles to
// effective tag 0 ("walk structurally, do not insert").
const (
	dwTagClassType       = 0x02
	dwTagEnumerationType = 0x04
	dwTagStructureType   = 0x13
	dwTagTypedef         = 0x16
	dwTagUnionType       = 0x17
	dwTagVariable        = 0x34
	dwTagBaseType        = 0x24
)

const (
	dwAtSibling     = 0x01
	dwAtName        = 0x03
	dwAtDeclaration = 0x3c
)

const (
	dwFormAddr        = 0x01
	dwFormBlock2      = 0x03
	dwFormBlock4      = 0x04
	dwFormData2       = 0x05
	dwFormData4       = 0x06
	dwFormData8       = 0x07
	dwFormString      = 0x08
	dwFormBlock       = 0x09
	dwFormBlock1      = 0x0a
	dwFormData1       = 0x0b
	dwFormFlag        = 0x0c
	dwFormSdata       = 0x0d
	dwFormStrp        = 0x0e
	dwFormUdata       = 0x0f
	dwFormRefAddr     = 0x10
	dwFormRef1        = 0x11
	dwFormRef2        = 0x12
	dwFormRef4        = 0x13
	dwFormRef8        = 0x14
	dwFormRefUdata    = 0x15
	dwFormIndirect    = 0x16
	dwFormSecOffset   = 0x17
	dwFormExprloc     = 0x18
	dwFormFlagPresent = 0x19
	dwFormRefSig8     = 0x20
)

// Command stream opcodes. Values 0..242 mean "skip this many bytes" and
// are produced by fusing adjacent fixed-size attributes; 243..255 are
// the special commands below. Code that fuses short skips relies on
// this exact boundary (cmdShortSkipMax == cmdBlock1-1).
const (
	cmdShortSkipMax    = 242
	cmdBlock1          = 243
	cmdBlock2          = 244
	cmdBlock4          = 245
	cmdExprloc         = 246
	cmdLEB128          = 247
	cmdString          = 248
	cmdSiblingRef1     = 249
	cmdSiblingRef2     = 250
	cmdSiblingRef4     = 251
	cmdSiblingRef8     = 252
	cmdSiblingRefUdata = 253
	cmdNameStrp        = 254
	cmdNameString      = 255
)

// whitelistedTags is the set of DW_TAG values that produce index
// entries. All other tags are compiled with effective tag 0.
var whitelistedTags = map[uint64]bool{
	dwTagBaseType:        true,
	dwTagClassType:       true,
	dwTagEnumerationType: true,
	dwTagStructureType:   true,
	dwTagTypedef:         true,
	dwTagUnionType:       true,
	dwTagVariable:        true,
}

// abbrevDecl is a compiled abbreviation declaration: a program for the
// skip/extract interpreter, plus the (possibly remapped) tag and
// children flag the interpreter needs once the program finishes.
type abbrevDecl struct {
	cmds        []byte
	tag         uint8
	hasChildren bool
}

type attrFormPair struct {
	attr uint64
	form uint64
}

// parseAbbrevTable parses the abbreviation table for one CU, starting
// at offset in debugAbbrev, and compiles each declaration. Declarations
// are returned indexed by abbreviation code - 1.
func parseAbbrevTable(debugAbbrev []byte, offset uint64, is64Bit bool, addressSize uint8) ([]abbrevDecl, error) {
	r := newReader(debugAbbrev)
	if err := r.seek(int(offset)); err != nil {
		return nil, fmt.Errorf("abbrev table at %#x: %w", offset, err)
	}

	var decls []abbrevDecl
	for {
		code, err := r.uleb128()
		if err != nil {
			return nil, fmt.Errorf("abbrev table at %#x: %w", offset, err)
		}
		if code == 0 {
			return decls, nil
		}
		if code != uint64(len(decls))+1 {
			return nil, fmt.Errorf("%w: abbreviation table is not sequential (got code %d, expected %d)", ErrNotImplemented, code, len(decls)+1)
		}

		tag, err := r.uleb128()
		if err != nil {
			return nil, fmt.Errorf("abbrev declaration %d: %w", code, err)
		}
		childrenByte, err := r.u8()
		if err != nil {
			return nil, fmt.Errorf("abbrev declaration %d: %w", code, err)
		}

		var attrs []attrFormPair
		for {
			attr, err := r.uleb128()
			if err != nil {
				return nil, fmt.Errorf("abbrev declaration %d: %w", code, err)
			}
			form, err := r.uleb128()
			if err != nil {
				return nil, fmt.Errorf("abbrev declaration %d: %w", code, err)
			}
			if attr == 0 && form == 0 {
				break
			}
			attrs = append(attrs, attrFormPair{attr, form})
		}

		decl, err := compileDecl(tag, childrenByte != 0, attrs, is64Bit, addressSize)
		if err != nil {
			return nil, fmt.Errorf("abbrev declaration %d: %w", code, err)
		}
		decls = append(decls, decl)
	}
}

// compileDecl compiles one abbreviation declaration into a skip/extract
// program.
func compileDecl(tag uint64, hasChildren bool, attrs []attrFormPair, is64Bit bool, addressSize uint8) (abbrevDecl, error) {
	effectiveTag := uint8(0)
	if whitelistedTags[tag] {
		effectiveTag = uint8(tag)
	}
	if effectiveTag != 0 && tag != dwTagVariable {
		for _, a := range attrs {
			if a.attr == dwAtDeclaration {
				effectiveTag = 0
				break
			}
		}
	}

	c := &cmdBuilder{}
	offsetSize := 4
	if is64Bit {
		offsetSize = 8
	}

	for _, a := range attrs {
		if a.attr == dwAtSibling {
			switch a.form {
			case dwFormRef1:
				c.special(cmdSiblingRef1)
				continue
			case dwFormRef2:
				c.special(cmdSiblingRef2)
				continue
			case dwFormRef4:
				c.special(cmdSiblingRef4)
				continue
			case dwFormRef8:
				c.special(cmdSiblingRef8)
				continue
			case dwFormRefUdata:
				c.special(cmdSiblingRefUdata)
				continue
			}
			// Other forms fall through to the generic form handling
			// below.
		}
		if a.attr == dwAtName && effectiveTag != 0 {
			switch a.form {
			case dwFormStrp:
				c.special(cmdNameStrp)
				continue
			case dwFormString:
				c.special(cmdNameString)
				continue
			}
			// Other forms fall through to the generic form handling
			// below.
		}

		switch a.form {
		case dwFormAddr:
			c.skip(int(addressSize))
		case dwFormData1, dwFormRef1, dwFormFlag:
			c.skip(1)
		case dwFormData2, dwFormRef2:
			c.skip(2)
		case dwFormData4, dwFormRef4:
			c.skip(4)
		case dwFormData8, dwFormRef8, dwFormRefSig8:
			c.skip(8)
		case dwFormRefAddr, dwFormSecOffset, dwFormStrp:
			c.skip(offsetSize)
		case dwFormBlock1:
			c.special(cmdBlock1)
		case dwFormBlock2:
			c.special(cmdBlock2)
		case dwFormBlock4:
			c.special(cmdBlock4)
		case dwFormExprloc:
			c.special(cmdExprloc)
		case dwFormSdata, dwFormUdata, dwFormRefUdata:
			c.special(cmdLEB128)
		case dwFormString:
			c.special(cmdString)
		case dwFormFlagPresent:
			// Zero-length payload: no command at all.
		case dwFormIndirect:
			return abbrevDecl{}, fmt.Errorf("%w: DW_FORM_indirect", ErrNotImplemented)
		default:
			return abbrevDecl{}, fmt.Errorf("%w: unknown attribute form %#x", ErrDWARFFormat, a.form)
		}
	}
	c.flush()

	return abbrevDecl{cmds: c.cmds, tag: effectiveTag, hasChildren: hasChildren}, nil
}

// cmdBuilder accumulates a compiled command stream, fusing adjacent
// fixed-size skips by summing them and capping at cmdShortSkipMax.
type cmdBuilder struct {
	cmds    []byte
	pending int
}

func (c *cmdBuilder) skip(n int) {
	if c.pending+n >= cmdBlock1 {
		c.cmds = append(c.cmds, cmdShortSkipMax)
		c.pending = c.pending + n - cmdShortSkipMax
		return
	}
	c.pending += n
}

func (c *cmdBuilder) flush() {
	if c.pending > 0 {
		c.cmds = append(c.cmds, byte(c.pending))
		c.pending = 0
	}
}

func (c *cmdBuilder) special(cmd byte) {
	c.flush()
	c.cmds = append(c.cmds, cmd)
}
