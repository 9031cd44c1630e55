// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfidx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestULEB128(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint64
		n     int
	}{
		{"zero", []byte{0x00}, 0, 1},
		{"single byte", []byte{0x08}, 8, 1},
		{"single byte max", []byte{0x7f}, 0x7f, 1},
		{"two bytes", []byte{0x80, 0x01}, 128, 2},
		{"two bytes 624", []byte{0xf0, 0x04}, 624, 2},
		{"trailing garbage ignored", []byte{0x01, 0xff, 0xff}, 1, 1},
		{"max uint64", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, ^uint64(0), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, err := uleb128(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.n, n)
		})
	}
}

func TestULEB128Overflow(t *testing.T) {
	// 10 bytes, all continuation bits set: the value would need a 71st
	// data bit, which doesn't fit in uint64.
	buf := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	_, _, err := uleb128(buf)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestULEB128Truncated(t *testing.T) {
	buf := []byte{0x80, 0x80, 0x80}
	_, _, err := uleb128(buf)
	assert.ErrorIs(t, err, ErrEOF)
}

func TestSLEB128(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  int64
	}{
		{"zero", []byte{0x00}, 0},
		{"positive single byte", []byte{0x08}, 8},
		{"positive max single byte", []byte{0x3f}, 63},
		{"negative one", []byte{0x7f}, -1},
		{"negative 64", []byte{0x40}, -64},
		{"positive two bytes 128", []byte{0x80, 0x01}, 128},
		{"negative two bytes", []byte{0x80, 0x7f}, -128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := sleb128(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSkipLEB128(t *testing.T) {
	n, err := skipLEB128([]byte{0x80, 0x80, 0x01, 0xff})
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = skipLEB128([]byte{0x80, 0x80})
	assert.True(t, errors.Is(err, ErrEOF))
}
