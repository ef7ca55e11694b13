// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamrec

import (
	gunsafe "github.com/grailbio/base/unsafe"
)

// fieldLayout caches the boundaries of the five variable-length fields in
// the arena. Only field lengths are stored; every offset is recomputed from
// the lengths of the fields before it, so a setter that changes a field's
// size updates its length here and the later offsets follow.
type fieldLayout struct {
	nameLen int // display bytes, excluding NUL and padding
	namePad int // trailing NUL bytes: terminator plus alignment pad, 1..4
	numOps  int // cigar operations, 4 bytes each
	seqLen  int // bases; seq packs 2 per byte, qual is 1 per base
	auxLen  int // aux block bytes, opaque here
}

// nameSpace returns the padded size of a name block: display length plus a
// NUL terminator, rounded up to a 4-byte boundary with additional NULs.
func nameSpace(nameLen int) int { return (nameLen + 1 + 3) &^ 3 }

func (l *fieldLayout) nameEnd() int  { return l.nameLen + l.namePad }
func (l *fieldLayout) cigarEnd() int { return l.nameEnd() + 4*l.numOps }
func (l *fieldLayout) seqEnd() int   { return l.cigarEnd() + (l.seqLen+1)/2 }
func (l *fieldLayout) qualEnd() int  { return l.seqEnd() + l.seqLen }
func (l *fieldLayout) size() int     { return l.qualEnd() + l.auxLen }

// resizeArena makes *buf exactly n bytes long, preserving contents up to
// min(len, n). Reallocation over-allocates slightly to damp repeated growth.
func resizeArena(buf *[]byte, n int) {
	if cap(*buf) < n {
		size := (n/16 + 1) * 16
		nb := make([]byte, n, size)
		copy(nb, *buf)
		*buf = nb
		return
	}
	if n >= len(*buf) {
		gunsafe.ExtendBytes(buf, n)
		return
	}
	*buf = (*buf)[:n]
}

// splice replaces r.buf[start:end] with repl, shifting every byte after end
// and growing or shrinking the arena to the exact new size. It is the single
// byte-moving primitive behind all field setters; callers validate first and
// update the layout afterwards.
func (r *Record) splice(start, end int, repl []byte) {
	old := len(r.buf)
	delta := len(repl) - (end - start)
	switch {
	case delta > 0:
		resizeArena(&r.buf, old+delta)
		copy(r.buf[end+delta:], r.buf[end:old])
	case delta < 0:
		copy(r.buf[end+delta:], r.buf[end:old])
		r.buf = r.buf[:old+delta]
	}
	copy(r.buf[start:], repl)
}
