// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfidx

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/aclements/go-dwarfidx/arch"
)

// hostLayout is the data layout used to decode every multi-byte ELF and
// DWARF field this package reads. x86-64 is always little-endian, and
// relocations, the only architecture-specific piece of this index, are
// only supported for x86-64 (see readSections), so this is the only
// Layout the package ever needs.
var hostLayout = arch.NewLayout(binary.LittleEndian)

// reader is a bounds-checked cursor over a byte slice. It returns
// errors rather than panicking: every byte in a DWARF or ELF section
// here comes from an untrusted input file.
type reader struct {
	b []byte
	p int
}

func newReader(b []byte) *reader {
	return &reader{b: b}
}

// offset returns the reader's current position in its backing slice.
func (r *reader) offset() int { return r.p }

// avail returns the number of unread bytes.
func (r *reader) avail() int { return len(r.b) - r.p }

func (r *reader) need(n int) error {
	if n < 0 || r.p+n > len(r.b) || r.p+n < r.p {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrEOF, n, r.p, len(r.b))
	}
	return nil
}

func (r *reader) skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.p += n
	return nil
}

func (r *reader) seek(off int) error {
	if off < 0 || off > len(r.b) {
		return fmt.Errorf("%w: seek to %d out of range [0,%d]", ErrEOF, off, len(r.b))
	}
	r.p = off
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.b[r.p]
	r.p++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := hostLayout.Uint16(r.b[r.p:])
	r.p += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := hostLayout.Uint32(r.b[r.p:])
	r.p += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := hostLayout.Uint64(r.b[r.p:])
	r.p += 8
	return v, nil
}

// uleb128 decodes a ULEB128 from the reader's current position.
func (r *reader) uleb128() (uint64, error) {
	v, n, err := uleb128(r.b[r.p:])
	if err != nil {
		return 0, err
	}
	r.p += n
	return v, nil
}

// skipLEB128 advances past one LEB128-encoded value (ULEB128 or
// SLEB128; the encodings are indistinguishable without knowing the
// field's signedness, and the command interpreter never needs the
// value, only its length) without decoding it.
func (r *reader) skipLEB128() error {
	n, err := skipLEB128(r.b[r.p:])
	if err != nil {
		return err
	}
	r.p += n
	return nil
}

// cstring reads a NUL-terminated string starting at the reader's
// current position and advances past the NUL. The result omits the NUL.
func (r *reader) cstring() ([]byte, error) {
	i := bytes.IndexByte(r.b[r.p:], 0)
	if i < 0 {
		return nil, fmt.Errorf("%w: unterminated string at offset %d", ErrDWARFFormat, r.p)
	}
	s := r.b[r.p : r.p+i]
	r.p += i + 1
	return s, nil
}
