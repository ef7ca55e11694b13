// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamrec

import (
	"github.com/grailbio/base/simd"
)

// seqChars is the fixed 16-symbol nucleotide alphabet of the 4-bit sequence
// encoding; a base's code is its index here.
const seqChars = "=ACMGRSVTWYHKDBN"

var seqCharTable = simd.MakeNibbleLookupTable([16]byte{
	'=', 'A', 'C', 'M', 'G', 'R', 'S', 'V', 'T', 'W', 'Y', 'H', 'K', 'D', 'B', 'N'})

// seqCodeTable maps an ASCII base, either case, to its 4-bit code. Anything
// outside the alphabet encodes as N (0xf).
var seqCodeTable = func() (t [256]byte) {
	for i := range t {
		t[i] = 0xf
	}
	for code := 0; code < len(seqChars); code++ {
		c := seqChars[code]
		t[c] = byte(code)
		if 'A' <= c && c <= 'Z' {
			t[c+'a'-'A'] = byte(code)
		}
	}
	return
}()

// packSeq fills dst with the 4-bit codes of src, two bases per byte, high
// nibble first. If len(src) is odd the low nibble of the last byte is zero.
//
// REQUIRES: len(dst) == (len(src) + 1) / 2.
func packSeq(dst, src []byte) {
	nFull := len(src) >> 1
	for i := 0; i < nFull; i++ {
		dst[i] = seqCodeTable[src[2*i]]<<4 | seqCodeTable[src[2*i+1]]
	}
	if len(src)&1 == 1 {
		dst[nFull] = seqCodeTable[src[len(src)-1]] << 4
	}
}

// unpackSeq fills dst with the ASCII bases of the packed codes in src.
//
// REQUIRES: len(src) == (len(dst) + 1) / 2.
func unpackSeq(dst, src []byte) {
	nFull := len(dst) >> 1
	for i := 0; i < nFull; i++ {
		b := src[i]
		dst[2*i] = seqCharTable.Get(b >> 4)
		dst[2*i+1] = seqCharTable.Get(b & 15)
	}
	if len(dst)&1 == 1 {
		dst[len(dst)-1] = seqCharTable.Get(src[nFull] >> 4)
	}
}
