// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package cigar implements the compact CIGAR alignment representation: a
// packed (operation, length) codec, the canonical "MIDNSHP=XB" text form, and
// per-base iterators that map CIGAR runs onto query and reference
// coordinates.
package cigar

import (
	"strconv"

	"github.com/grailbio/base/errors"
)

// Op is one CIGAR operation, bit-packed the way BAM stores it: the kind in
// the low 4 bits and the run length in the high 28. This form is retained at
// the serialization boundary; use Kind()/Len() everywhere else.
type Op uint32

// MaxLen is the largest representable run length.
const MaxLen = 1<<28 - 1

// NewOp returns an operation of kind k with run length n.
//
// REQUIRES: 0 <= n <= MaxLen.
func NewOp(k Kind, n int) Op {
	return Op(k) | Op(n)<<4
}

// Kind returns the operation kind.
func (o Op) Kind() Kind { return Kind(o & 0xf) }

// Len returns the run length.
func (o Op) Len() int { return int(o >> 4) }

// String returns the canonical text form, e.g. "78M".
func (o Op) String() string {
	return strconv.Itoa(o.Len()) + o.Kind().String()
}

// Kind enumerates the ten CIGAR operation kinds.
type Kind byte

const (
	Match     Kind = iota // M: alignment match (sequence match or mismatch)
	Insertion             // I: insertion to the reference
	Deletion              // D: deletion from the reference
	RefSkip               // N: skipped region of the reference
	SoftClip              // S: clipped bases present in the sequence
	HardClip              // H: clipped bases absent from the sequence
	Pad                   // P: silent deletion from a padded reference
	Equal                 // =: sequence match
	Diff                  // X: sequence mismatch
	Back                  // B: skip backwards
	numKinds
)

const opChars = "MIDNSHP=XB"

// String returns the single-character text form of the kind.
func (k Kind) String() string {
	if k >= numKinds {
		return "?"
	}
	return opChars[k : k+1]
}

// consume packs two classification bits per kind: bit 0 set if the kind
// consumes a query base, bit 1 set if it consumes a reference base. Twenty
// bits cover all ten kinds, so hot loops can classify with a shift and mask
// instead of a branch.
//
//	M=11 I=01 D=10 N=10 S=01 H=00 P=00 ==11 X=11 B=00
const consume uint32 = 0x3<<(2*uint(Match)) |
	0x1<<(2*uint(Insertion)) |
	0x2<<(2*uint(Deletion)) |
	0x2<<(2*uint(RefSkip)) |
	0x1<<(2*uint(SoftClip)) |
	0x3<<(2*uint(Equal)) |
	0x3<<(2*uint(Diff))

// ConsumesQuery returns true if the kind advances the query coordinate.
func (k Kind) ConsumesQuery() bool {
	return consume>>(2*uint(k))&0x1 != 0
}

// ConsumesReference returns true if the kind advances the reference
// coordinate.
func (k Kind) ConsumesReference() bool {
	return consume>>(2*uint(k))&0x2 != 0
}

// Cigar is an ordered operation sequence describing one read alignment.
type Cigar []Op

// String returns the canonical text form, or "*" for an empty cigar.
func (c Cigar) String() string {
	if len(c) == 0 {
		return "*"
	}
	var buf []byte
	for _, op := range c {
		buf = strconv.AppendInt(buf, int64(op.Len()), 10)
		buf = append(buf, opChars[op.Kind()])
	}
	return string(buf)
}

// ReferenceSpan returns the number of reference bases covered by the
// alignment: the summed lengths of the reference-consuming operations.
func (c Cigar) ReferenceSpan() int {
	span := 0
	for _, op := range c {
		n := int(consume>>(2*uint(op.Kind()))&0x2) >> 1
		span += n * op.Len()
	}
	return span
}

// QuerySpan returns the number of query bases covered by the alignment,
// soft-clipped bases included.
func (c Cigar) QuerySpan() int {
	span := 0
	for _, op := range c {
		n := int(consume >> (2 * uint(op.Kind())) & 0x1)
		span += n * op.Len()
	}
	return span
}

var kindForChar = func() (t [256]Kind) {
	for i := range t {
		t[i] = numKinds
	}
	for i := 0; i < len(opChars); i++ {
		t[opChars[i]] = Kind(i)
	}
	return
}()

// Parse decodes the canonical text form. Every operation must be a run
// length followed by a character from "MIDNSHP=XB"; anything else is a
// malformed cigar. "*" and "" parse as an empty cigar.
func Parse(s string) (Cigar, error) {
	if s == "" || s == "*" {
		return nil, nil
	}
	var c Cigar
	for i := 0; i < len(s); {
		j := i
		n := 0
		for ; j < len(s) && s[j] >= '0' && s[j] <= '9'; j++ {
			n = n*10 + int(s[j]-'0')
			if n > MaxLen {
				return nil, errors.E("cigar: operation length overflow in", s)
			}
		}
		if j == i || j == len(s) {
			return nil, errors.E("cigar: malformed cigar string", s)
		}
		k := kindForChar[s[j]]
		if k == numKinds {
			return nil, errors.E("cigar: unrecognized operation character", string(s[j]), "in", s)
		}
		c = append(c, NewOp(k, n))
		i = j + 1
	}
	return c, nil
}
