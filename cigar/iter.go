// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cigar

import "github.com/grailbio/base/errors"

// Iter expands a cigar into its per-base operation stream: each (kind, n)
// run yields the kind n times. The zero Iter is an exhausted iterator, and a
// plain value copy of an Iter restarts iteration from the copied position.
type Iter struct {
	ops Cigar
	idx int // current op
	rem int // bases left in ops[idx]
}

// NewIter returns an iterator over the per-base expansion of c. An empty
// cigar yields an empty stream.
func NewIter(c Cigar) Iter {
	it := Iter{ops: c}
	it.skipEmpty()
	return it
}

func (it *Iter) skipEmpty() {
	for it.rem == 0 && it.idx < len(it.ops) {
		it.rem = it.ops[it.idx].Len()
		if it.rem == 0 {
			it.idx++
		}
	}
}

// Next returns the next per-base operation kind, or false when the stream is
// exhausted.
func (it *Iter) Next() (Kind, bool) {
	if it.rem == 0 {
		return 0, false
	}
	k := it.ops[it.idx].Kind()
	it.rem--
	if it.rem == 0 {
		it.idx++
		it.skipEmpty()
	}
	return k, true
}

// Coord locates one CIGAR-expanded base unit: the query and reference
// positions after applying the operation, or -1 before the first consuming
// base on that axis.
type Coord struct {
	QueryPos int
	RefPos   int
	Op       Kind
}

// CoordIter walks the per-base expansion of a cigar while tracking query and
// reference coordinates. Positions are 0-based and start at -1; each yielded
// operation advances QueryPos if it consumes a query base and RefPos if it
// consumes a reference base. The unbounded form yields one Coord per
// expanded base unit, consuming or not.
type CoordIter struct {
	it       Iter
	queryPos int
	refPos   int
	start    int
	end      int
	bounded  bool
}

// NewCoordIter returns a coordinate iterator over the full expansion of c.
func NewCoordIter(c Cigar) CoordIter {
	return CoordIter{it: NewIter(c), queryPos: -1, refPos: -1}
}

// NewCoordIterRange returns a coordinate iterator restricted to entries whose
// RefPos lies in [start, end). Entries are filtered with an internal cursor;
// the unrestricted expansion is never materialized. The range must lie within
// [0, c.ReferenceSpan()].
func NewCoordIterRange(c Cigar, start, end int) (CoordIter, error) {
	if start < 0 || start > end || end > c.ReferenceSpan() {
		return CoordIter{}, errors.E("cigar: coordinate range outside the alignment's reference span")
	}
	ci := NewCoordIter(c)
	ci.start = start
	ci.end = end
	ci.bounded = true
	return ci, nil
}

// Next returns the next coordinate entry, or false when the stream (or the
// requested reference range) is exhausted.
func (ci *CoordIter) Next() (Coord, bool) {
	for {
		k, ok := ci.it.Next()
		if !ok {
			return Coord{}, false
		}
		bits := consume >> (2 * uint(k))
		ci.queryPos += int(bits & 0x1)
		ci.refPos += int(bits&0x2) >> 1
		if ci.bounded {
			if ci.refPos >= ci.end {
				// RefPos never decreases, so nothing further can land
				// in range.
				ci.it = Iter{}
				return Coord{}, false
			}
			if ci.refPos < ci.start {
				continue
			}
		}
		return Coord{QueryPos: ci.queryPos, RefPos: ci.refPos, Op: k}, true
	}
}
