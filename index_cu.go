// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfidx

import "fmt"

// Locator is an opaque reference to one DIE: the File it came from, the
// offset of that DIE's owning CU header within File.DebugInfo(), and
// the offset of the DIE itself within that CU (counted from the CU
// header start). Materializing the full DIE (its other
// attributes, its children) is outside this package's scope; Locator
// carries just enough for a caller with its own DWARF decoder to find
// it again.
type Locator struct {
	File      *File
	CUOffset  uint64
	DIEOffset uint64
}

// indexCU walks the top-level (depth 1) DIEs of cu - the direct
// children of the CU's root DIE - and inserts one entry per named,
// whitelisted-tag DIE into idx. It inserts nothing below depth 1:
// deeper subtrees are skipped via DW_AT_sibling when available, or
// walked structurally (without inserting anything) when not.
func indexCU(cu *CompilationUnit, idx *HashIndex) error {
	// Clamp the reader to the CU body: a DIE payload running past the
	// CU end is an error, not a read into the next CU.
	info := cu.File.DebugInfo()[:cu.end]
	r := newReader(info)
	if err := r.seek(int(cu.firstDIE)); err != nil {
		return fmt.Errorf("CU at %#x: %w", cu.HeaderOffset, err)
	}

	depth := 0
	for {
		if uint64(r.offset()) >= cu.end {
			if depth != 0 {
				return fmt.Errorf("%w: CU at %#x: DIE tree not closed before CU end", ErrDWARFFormat, cu.HeaderOffset)
			}
			return nil
		}

		dieOffset := uint64(r.offset())
		code, err := r.uleb128()
		if err != nil {
			return fmt.Errorf("CU at %#x: %w", cu.HeaderOffset, err)
		}
		if code == 0 {
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: CU at %#x: unbalanced null DIE entry", ErrDWARFFormat, cu.HeaderOffset)
			}
			if depth == 0 {
				return nil
			}
			continue
		}
		if code > uint64(len(cu.decls)) {
			return fmt.Errorf("%w: CU at %#x: DIE at %#x uses unknown abbreviation code %d", ErrDWARFFormat, cu.HeaderOffset, dieOffset, code)
		}
		decl := cu.decls[code-1]

		name, siblingOff, haveSibling, err := runDeclCmds(r, decl.cmds, cu)
		if err != nil {
			return fmt.Errorf("CU at %#x: DIE at %#x: %w", cu.HeaderOffset, dieOffset, err)
		}

		if depth == 1 && decl.tag != 0 && name != nil {
			loc := Locator{File: cu.File, CUOffset: cu.HeaderOffset, DIEOffset: dieOffset - cu.HeaderOffset}
			if err := idx.insert(decl.tag, name, loc); err != nil {
				return err
			}
		}

		if decl.hasChildren {
			if depth >= 1 && haveSibling {
				// The sibling must land after this DIE and inside the
				// CU, or the walk could run away or loop.
				if siblingOff <= dieOffset || siblingOff > cu.end {
					return fmt.Errorf("%w: CU at %#x: DIE at %#x has sibling offset %#x outside its CU", ErrDWARFFormat, cu.HeaderOffset, dieOffset, siblingOff)
				}
				if err := r.seek(int(siblingOff)); err != nil {
					return fmt.Errorf("CU at %#x: DIE at %#x: bad sibling: %w", cu.HeaderOffset, dieOffset, err)
				}
			} else {
				depth++
			}
		}
	}
}

// runDeclCmds replays decl's compiled command stream starting at r's
// current position, returning the DIE's name (if any) and its sibling
// offset (if it had a usable DW_AT_sibling), and leaving r positioned
// just past the DIE.
func runDeclCmds(r *reader, cmds []byte, cu *CompilationUnit) (name []byte, siblingOff uint64, haveSibling bool, err error) {
	for i := 0; i < len(cmds); i++ {
		cmd := cmds[i]
		switch {
		case cmd <= cmdShortSkipMax:
			if err := r.skip(int(cmd)); err != nil {
				return nil, 0, false, err
			}
		case cmd == cmdBlock1:
			n, err := r.u8()
			if err != nil {
				return nil, 0, false, err
			}
			if err := r.skip(int(n)); err != nil {
				return nil, 0, false, err
			}
		case cmd == cmdBlock2:
			n, err := r.u16()
			if err != nil {
				return nil, 0, false, err
			}
			if err := r.skip(int(n)); err != nil {
				return nil, 0, false, err
			}
		case cmd == cmdBlock4:
			n, err := r.u32()
			if err != nil {
				return nil, 0, false, err
			}
			if err := r.skip(int(n)); err != nil {
				return nil, 0, false, err
			}
		case cmd == cmdExprloc:
			n, err := r.uleb128()
			if err != nil {
				return nil, 0, false, err
			}
			if err := r.skip(int(n)); err != nil {
				return nil, 0, false, err
			}
		case cmd == cmdLEB128:
			if err := r.skipLEB128(); err != nil {
				return nil, 0, false, err
			}
		case cmd == cmdString:
			if _, err := r.cstring(); err != nil {
				return nil, 0, false, err
			}
		case cmd == cmdSiblingRef1:
			v, err := r.u8()
			if err != nil {
				return nil, 0, false, err
			}
			siblingOff, haveSibling = cu.HeaderOffset+uint64(v), true
		case cmd == cmdSiblingRef2:
			v, err := r.u16()
			if err != nil {
				return nil, 0, false, err
			}
			siblingOff, haveSibling = cu.HeaderOffset+uint64(v), true
		case cmd == cmdSiblingRef4:
			v, err := r.u32()
			if err != nil {
				return nil, 0, false, err
			}
			siblingOff, haveSibling = cu.HeaderOffset+uint64(v), true
		case cmd == cmdSiblingRef8:
			v, err := r.u64()
			if err != nil {
				return nil, 0, false, err
			}
			siblingOff, haveSibling = cu.HeaderOffset+v, true
		case cmd == cmdSiblingRefUdata:
			v, err := r.uleb128()
			if err != nil {
				return nil, 0, false, err
			}
			siblingOff, haveSibling = cu.HeaderOffset+v, true
		case cmd == cmdNameStrp:
			var off uint64
			if cu.Is64Bit {
				off, err = r.u64()
			} else {
				var v uint32
				v, err = r.u32()
				off = uint64(v)
			}
			if err != nil {
				return nil, 0, false, err
			}
			name, err = readStrpString(cu.File.DebugStr(), off)
			if err != nil {
				return nil, 0, false, err
			}
		case cmd == cmdNameString:
			name, err = r.cstring()
			if err != nil {
				return nil, 0, false, err
			}
		default:
			return nil, 0, false, fmt.Errorf("%w: unknown compiled command %d", ErrDWARFFormat, cmd)
		}
	}
	return name, siblingOff, haveSibling, nil
}

// readStrpString reads a NUL-terminated string at offset off in
// debugStr, the target of a DW_FORM_strp attribute.
func readStrpString(debugStr []byte, off uint64) ([]byte, error) {
	if off > uint64(len(debugStr)) {
		return nil, fmt.Errorf("%w: strp offset %d outside .debug_str of size %d", ErrDWARFFormat, off, len(debugStr))
	}
	r := newReader(debugStr)
	if err := r.seek(int(off)); err != nil {
		return nil, err
	}
	return r.cstring()
}
