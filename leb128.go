// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfidx

import "fmt"

// uleb128 decodes an unsigned LEB128 value from the front of buf. It
// returns the value and the number of bytes consumed. An all-high-bit
// byte run that would set a bit above 63 is rejected with ErrOverflow;
// running off the end of buf without finding a terminating byte is
// rejected with ErrEOF.
func uleb128(buf []byte) (val uint64, n int, err error) {
	var shift uint
	for i, b := range buf {
		if shift >= 64 || (shift == 63 && b&0x7f > 1) {
			return 0, 0, fmt.Errorf("%w: ULEB128 does not fit in 64 bits", ErrOverflow)
		}
		val |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return val, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("%w: truncated ULEB128", ErrEOF)
}

// sleb128 decodes a signed LEB128 value from the front of buf, the same
// way uleb128 does, but sign-extends based on bit 0x40 of the final
// byte.
func sleb128(buf []byte) (val int64, n int, err error) {
	var shift uint
	var b byte
	for i := 0; i < len(buf); i++ {
		b = buf[i]
		if shift >= 64 {
			return 0, 0, fmt.Errorf("%w: SLEB128 does not fit in 64 bits", ErrOverflow)
		}
		val |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				val |= -1 << shift
			}
			return val, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: truncated SLEB128", ErrEOF)
}

// skipLEB128 returns the number of bytes a ULEB128/SLEB128 value at the
// front of buf occupies, without materializing the value. Used by the
// abbrev command interpreter's LEB128 skip command, which doesn't care
// whether the encoded value is signed.
func skipLEB128(buf []byte) (n int, err error) {
	for i, b := range buf {
		if b&0x80 == 0 {
			return i + 1, nil
		}
		if i == 9 && b&0x80 != 0 {
			return 0, fmt.Errorf("%w: LEB128 longer than 10 bytes", ErrOverflow)
		}
	}
	return 0, fmt.Errorf("%w: truncated LEB128", ErrEOF)
}
