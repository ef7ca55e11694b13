// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package pairs iterates over the aligned (query base, reference base)
// pairs of one alignment record. The cigar drives the coordinate walk; when
// reference bases are requested they are reconstructed from the record's MD
// tag, advanced in lockstep with the reference coordinate, so no reference
// sequence is needed.
package pairs

import (
	"github.com/grailbio/align/cigar"
	"github.com/grailbio/align/encoding/bamrec"
	"github.com/grailbio/align/md"
	"github.com/grailbio/base/errors"
)

// None is the base placeholder for a position with no base available: the
// query base of a deletion or of a record stored without a sequence, or the
// reference base of an insertion or soft clip.
const None = '-'

// ErrNoMD is returned when reference-base reconstruction is requested for a
// record that carries no MD tag.
var ErrNoMD = errors.E("pairs: record has no MD tag")

// Pair is one CIGAR-expanded alignment unit. QueryPos and RefPos are
// 0-based; a position the operation does not consume repeats the previous
// value (-1 before the first consuming base). RefBase is None unless the
// iterator was built with reference reconstruction.
type Pair struct {
	QueryPos  int
	RefPos    int
	Op        cigar.Kind
	QueryBase byte
	RefBase   byte
}

// Iter yields one Pair per CIGAR-expanded unit of a record, in alignment
// order. Insertions do not advance RefPos but still appear once per inserted
// base. Iteration over the same record and range is deterministic and
// repeatable.
type Iter struct {
	coords  cigar.CoordIter
	seq     []byte
	md      *md.Iter
	withRef bool
	err     error
}

// New returns an iterator over every expanded unit of rec. If withRef is
// true the record must carry an MD tag, and each yielded Pair carries the
// reconstructed reference base.
func New(rec *bamrec.Record, withRef bool) (*Iter, error) {
	return newIter(rec, 0, 0, false, withRef)
}

// NewRange returns an iterator restricted to units whose RefPos lies in
// [start, end), which must lie within [0, referenceSpan]. A withRef iterator
// skips the MD entries preceding start so the edit script stays aligned with
// the first yielded unit.
func NewRange(rec *bamrec.Record, start, end int, withRef bool) (*Iter, error) {
	return newIter(rec, start, end, true, withRef)
}

func newIter(rec *bamrec.Record, start, end int, bounded, withRef bool) (*Iter, error) {
	c := rec.Cigar()
	it := &Iter{seq: rec.Seq(), withRef: withRef}
	if bounded {
		var err error
		if it.coords, err = cigar.NewCoordIterRange(c, start, end); err != nil {
			return nil, err
		}
	} else {
		it.coords = cigar.NewCoordIter(c)
	}
	if withRef {
		s, ok := rec.MD()
		if !ok {
			return nil, ErrNoMD
		}
		it.md = md.NewIter(s)
		if bounded {
			if err := it.md.Skip(start); err != nil {
				return nil, err
			}
		}
	}
	return it, nil
}

// Next returns the next aligned pair, or false when the range is exhausted.
// Check Err after Next returns false.
func (it *Iter) Next() (Pair, bool) {
	if it.err != nil {
		return Pair{}, false
	}
	c, ok := it.coords.Next()
	if !ok {
		return Pair{}, false
	}
	p := Pair{QueryPos: c.QueryPos, RefPos: c.RefPos, Op: c.Op, QueryBase: None, RefBase: None}
	// Records may carry a cigar but no stored sequence (secondary
	// alignments, for one); their query bases are unknowable, not an error.
	if c.Op.ConsumesQuery() && c.QueryPos < len(it.seq) {
		p.QueryBase = it.seq[c.QueryPos]
	}
	if it.withRef && c.Op.ConsumesReference() {
		mc, ok := it.md.Next()
		if !ok {
			if err := it.md.Err(); err != nil {
				it.err = err
			} else {
				it.err = errors.E("pairs: MD tag shorter than the alignment's reference span")
			}
			return Pair{}, false
		}
		if mc == md.Match {
			p.RefBase = p.QueryBase
		} else {
			p.RefBase = mc
		}
	}
	return p, true
}

// Err returns the first error encountered during iteration.
func (it *Iter) Err() error { return it.err }
