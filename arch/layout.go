// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arch provides data-layout helpers for decoding the
// fixed-width fields of binary file formats.
package arch

import (
	"encoding/binary"
	"fmt"
)

// Layout decodes multi-byte integers in a fixed byte order. It is a
// concrete type rather than a binary.ByteOrder because the interface
// call (and the inlining it prevents) is costly in loops that decode
// millions of fields.
type Layout struct {
	big bool
}

// NewLayout returns the Layout for the given byte order.
func NewLayout(order binary.ByteOrder) Layout {
	switch order {
	case binary.LittleEndian:
		return Layout{big: false}
	case binary.BigEndian:
		return Layout{big: true}
	}
	panic(fmt.Errorf("unknown byte order %v", order))
}

// Order returns the byte order of l.
func (l Layout) Order() binary.ByteOrder {
	if l.big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (l Layout) Uint16(b []byte) uint16 {
	_ = b[1]
	if l.big {
		return uint16(b[1]) | uint16(b[0])<<8
	}
	return uint16(b[0]) | uint16(b[1])<<8
}

func (l Layout) Uint32(b []byte) uint32 {
	_ = b[3]
	if l.big {
		return uint32(b[3]) | uint32(b[2])<<8 | uint32(b[1])<<16 | uint32(b[0])<<24
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (l Layout) Uint64(b []byte) uint64 {
	_ = b[7]
	if l.big {
		return uint64(b[7]) | uint64(b[6])<<8 | uint64(b[5])<<16 | uint64(b[4])<<24 |
			uint64(b[3])<<32 | uint64(b[2])<<40 | uint64(b[1])<<48 | uint64(b[0])<<56
	}
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}
