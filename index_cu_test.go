// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfidx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFile wraps raw section bytes in a File without going through
// an ELF image, for tests that target the CU walk directly.
func newTestFile(abbrev, info, str []byte) *File {
	return &File{
		Path:        "test.o",
		debugAbbrev: abbrev,
		debugInfo:   info,
		debugStr:    str,
	}
}

// rootAbbrev returns the abbreviation bytes for code 1: a
// DW_TAG_compile_unit with children and no attributes, the root every
// test CU starts with.
func rootAbbrev() []byte {
	var bb byteBuilder
	bb.uleb(1)
	bb.uleb(0x11)
	bb.u8(1)
	bb.uleb(0)
	bb.uleb(0)
	return bb.b
}

func TestIndexCUSiblingJumpSkipsSubtree(t *testing.T) {
	var abbrev byteBuilder
	abbrev.raw(rootAbbrev())
	// Code 2: structure_type with children, DW_AT_sibling ref4 then
	// DW_AT_name string.
	abbrev.uleb(2)
	abbrev.uleb(uint64(dwTagStructureType))
	abbrev.u8(1)
	abbrev.uleb(uint64(dwAtSibling))
	abbrev.uleb(uint64(dwFormRef4))
	abbrev.uleb(uint64(dwAtName))
	abbrev.uleb(uint64(dwFormString))
	abbrev.uleb(0)
	abbrev.uleb(0)
	// Code 3: variable, no children, DW_AT_name string.
	abbrev.uleb(3)
	abbrev.uleb(uint64(dwTagVariable))
	abbrev.u8(0)
	abbrev.uleb(uint64(dwAtName))
	abbrev.uleb(uint64(dwFormString))
	abbrev.uleb(0)
	abbrev.uleb(0)
	abbrev.uleb(0)

	// The structure's subtree is two bytes of garbage that would fail
	// the walk if it were ever decoded (0x63 is no abbreviation code in
	// this CU); the sibling jump must step straight over it.
	var body byteBuilder
	body.uleb(1)   // 11: root
	body.uleb(2)   // 12: structure_type
	body.u32(21)   // 13: sibling -> the variable DIE below
	body.cstr("s") // 17
	body.raw([]byte{0x63, 0x63}) // 19: never-decoded "children"
	body.uleb(3)   // 21: variable
	body.cstr("v") // 22
	body.u8(0)     // 24: closes the root's children

	f := newTestFile(abbrev.b, cu32(body.b, 0, 8), nil)
	hash, err := newHashIndex(16)
	require.NoError(t, err)
	cus, _, err := indexFile(f, hash)
	require.NoError(t, err)
	assert.Equal(t, 1, cus)

	loc, ok := hash.find(dwTagStructureType, []byte("s"))
	require.True(t, ok)
	assert.Equal(t, uint64(12), loc.DIEOffset)

	loc, ok = hash.find(dwTagVariable, []byte("v"))
	require.True(t, ok)
	assert.Equal(t, uint64(21), loc.DIEOffset)

	assert.Equal(t, 2, hash.len())
}

func TestIndexCUSiblingOutsideCU(t *testing.T) {
	var abbrev byteBuilder
	abbrev.raw(rootAbbrev())
	abbrev.uleb(2)
	abbrev.uleb(uint64(dwTagStructureType))
	abbrev.u8(1)
	abbrev.uleb(uint64(dwAtSibling))
	abbrev.uleb(uint64(dwFormRef4))
	abbrev.uleb(0)
	abbrev.uleb(0)
	abbrev.uleb(0)

	var body byteBuilder
	body.uleb(1)
	body.uleb(2)
	body.u32(9999) // sibling far past the CU end
	body.u8(0)

	f := newTestFile(abbrev.b, cu32(body.b, 0, 8), nil)
	hash, err := newHashIndex(16)
	require.NoError(t, err)
	_, _, err = indexFile(f, hash)
	assert.ErrorIs(t, err, ErrDWARFFormat)
}

func TestIndexCUNestedDIEsNotIndexed(t *testing.T) {
	var abbrev byteBuilder
	abbrev.raw(rootAbbrev())
	// Code 2: class_type with children and an inline-string name, but
	// no sibling attribute, forcing a structural walk of its subtree.
	abbrev.uleb(2)
	abbrev.uleb(uint64(dwTagClassType))
	abbrev.u8(1)
	abbrev.uleb(uint64(dwAtName))
	abbrev.uleb(uint64(dwFormString))
	abbrev.uleb(0)
	abbrev.uleb(0)
	// Code 3: variable with an inline-string name.
	abbrev.uleb(3)
	abbrev.uleb(uint64(dwTagVariable))
	abbrev.u8(0)
	abbrev.uleb(uint64(dwAtName))
	abbrev.uleb(uint64(dwFormString))
	abbrev.uleb(0)
	abbrev.uleb(0)
	abbrev.uleb(0)

	var body byteBuilder
	body.uleb(1)       // root
	body.uleb(2)       // class_type "c" at depth 1
	body.cstr("c")
	body.uleb(3)       // variable "inner" at depth 2
	body.cstr("inner")
	body.u8(0)         // closes the class's children
	body.uleb(3)       // variable "outer" back at depth 1
	body.cstr("outer")
	body.u8(0)         // closes the root's children

	f := newTestFile(abbrev.b, cu32(body.b, 0, 8), nil)
	hash, err := newHashIndex(16)
	require.NoError(t, err)
	_, _, err = indexFile(f, hash)
	require.NoError(t, err)

	_, ok := hash.find(dwTagClassType, []byte("c"))
	assert.True(t, ok)
	_, ok = hash.find(dwTagVariable, []byte("outer"))
	assert.True(t, ok)
	// The nested variable was walked for structure but never indexed.
	_, ok = hash.find(dwTagVariable, []byte("inner"))
	assert.False(t, ok)
	assert.Equal(t, 2, hash.len())
}

func TestIndexCUDeclarationThenDefinition(t *testing.T) {
	// CU 1 declares "opaque" with DW_AT_declaration; CU 2 defines it.
	// Only the definition lands in the index.
	declTable := func(withDeclaration bool) []byte {
		var bb byteBuilder
		bb.raw(rootAbbrev())
		bb.uleb(2)
		bb.uleb(uint64(dwTagStructureType))
		bb.u8(0)
		bb.uleb(uint64(dwAtName))
		bb.uleb(uint64(dwFormString))
		if withDeclaration {
			bb.uleb(uint64(dwAtDeclaration))
			bb.uleb(uint64(dwFormFlagPresent))
		}
		bb.uleb(0)
		bb.uleb(0)
		bb.uleb(0)
		return bb.b
	}
	table1 := declTable(true)
	table2 := declTable(false)
	abbrev := append(append([]byte(nil), table1...), table2...)

	var body byteBuilder
	body.uleb(1)
	body.uleb(2)
	body.cstr("opaque")
	body.u8(0)

	cu1 := cu32(body.b, 0, 8)
	cu2 := cu32(body.b, uint32(len(table1)), 8)
	info := append(append([]byte(nil), cu1...), cu2...)

	f := newTestFile(abbrev, info, nil)
	hash, err := newHashIndex(16)
	require.NoError(t, err)
	cus, _, err := indexFile(f, hash)
	require.NoError(t, err)
	assert.Equal(t, 2, cus)

	loc, ok := hash.find(dwTagStructureType, []byte("opaque"))
	require.True(t, ok)
	assert.Equal(t, uint64(len(cu1)), loc.CUOffset)
	// The DIE offset is relative to its own CU's header.
	assert.Equal(t, uint64(12), loc.DIEOffset)
	assert.Equal(t, 1, hash.len())
}

func TestIndexCUDuplicateAcrossCUsKeepsFirst(t *testing.T) {
	var abbrev byteBuilder
	abbrev.raw(rootAbbrev())
	abbrev.uleb(2)
	abbrev.uleb(uint64(dwTagStructureType))
	abbrev.u8(0)
	abbrev.uleb(uint64(dwAtName))
	abbrev.uleb(uint64(dwFormString))
	abbrev.uleb(0)
	abbrev.uleb(0)
	abbrev.uleb(0)

	var body byteBuilder
	body.uleb(1)
	body.uleb(2)
	body.cstr("point")
	body.u8(0)

	cu1 := cu32(body.b, 0, 8)
	info := append(append([]byte(nil), cu1...), cu32(body.b, 0, 8)...)

	f := newTestFile(abbrev.b, info, nil)
	hash, err := newHashIndex(16)
	require.NoError(t, err)
	_, _, err = indexFile(f, hash)
	require.NoError(t, err)

	loc, ok := hash.find(dwTagStructureType, []byte("point"))
	require.True(t, ok)
	assert.Equal(t, uint64(0), loc.CUOffset)
	assert.Equal(t, 1, hash.len())
}

func TestIndexCUDwarf64(t *testing.T) {
	var abbrev byteBuilder
	abbrev.raw(rootAbbrev())
	// Code 2: typedef named via strp; in the 64-bit format the strp
	// offset is 8 bytes.
	abbrev.uleb(2)
	abbrev.uleb(uint64(dwTagTypedef))
	abbrev.u8(0)
	abbrev.uleb(uint64(dwAtName))
	abbrev.uleb(uint64(dwFormStrp))
	abbrev.uleb(0)
	abbrev.uleb(0)
	abbrev.uleb(0)

	var str byteBuilder
	str.cstr("mytype")

	var body byteBuilder
	body.uleb(1)
	body.uleb(2)
	body.u64(0) // 8-byte strp -> "mytype"
	body.u8(0)

	f := newTestFile(abbrev.b, cu64(body.b, 0, 8), str.b)
	hash, err := newHashIndex(16)
	require.NoError(t, err)
	cus, addrSize, err := indexFile(f, hash)
	require.NoError(t, err)
	assert.Equal(t, 1, cus)
	assert.Equal(t, 8, addrSize)

	loc, ok := hash.find(dwTagTypedef, []byte("mytype"))
	require.True(t, ok)
	// The first DIE of a 64-bit CU starts at header offset 23; the
	// typedef follows the one-byte root code.
	assert.Equal(t, uint64(24), loc.DIEOffset)
}

func TestIndexCUUnknownAbbrevCode(t *testing.T) {
	var body byteBuilder
	body.uleb(1)
	body.uleb(5) // no such code
	body.u8(0)

	// rootAbbrev plus the table terminator: code 1 is the only code.
	f := newTestFile(append(rootAbbrev(), 0), cu32(body.b, 0, 8), nil)
	hash, err := newHashIndex(16)
	require.NoError(t, err)
	_, _, err = indexFile(f, hash)
	assert.ErrorIs(t, err, ErrDWARFFormat)
}

func TestIndexCUTruncatedDIE(t *testing.T) {
	var abbrev byteBuilder
	abbrev.raw(rootAbbrev())
	abbrev.uleb(2)
	abbrev.uleb(uint64(dwTagVariable))
	abbrev.u8(0)
	abbrev.uleb(uint64(dwAtName))
	abbrev.uleb(uint64(dwFormStrp))
	abbrev.uleb(0)
	abbrev.uleb(0)
	abbrev.uleb(0)

	// The variable DIE claims a 4-byte strp payload, but the CU ends
	// after one byte of it.
	var body byteBuilder
	body.uleb(1)
	body.uleb(2)
	body.u8(0xaa)

	f := newTestFile(abbrev.b, cu32(body.b, 0, 8), nil)
	hash, err := newHashIndex(16)
	require.NoError(t, err)
	_, _, err = indexFile(f, hash)
	assert.ErrorIs(t, err, ErrEOF)
}
