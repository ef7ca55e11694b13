// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamrec

import (
	"encoding/binary"

	"github.com/grailbio/align/cigar"
)

// Name returns the read name.
func (r *Record) Name() string {
	return string(r.buf[:r.layout.nameLen])
}

// SetName replaces the read name. The name block is stored NUL-terminated
// and NUL-padded to a 4-byte boundary; the pad count is tracked in the
// layout. The fields after the name shift to their new offsets.
func (r *Record) SetName(name string) error {
	if len(name) == 0 || len(name) > MaxNameLen {
		return ErrNameLength
	}
	space := nameSpace(len(name))
	if err := r.checkSize(space - r.layout.nameEnd()); err != nil {
		return err
	}
	block := make([]byte, space)
	copy(block, name)
	r.splice(0, r.layout.nameEnd(), block)
	r.layout.nameLen = len(name)
	r.layout.namePad = space - len(name)
	return nil
}

// Cigar returns a copy of the record's cigar.
func (r *Record) Cigar() cigar.Cigar {
	l := &r.layout
	if l.numOps == 0 {
		return nil
	}
	c := make(cigar.Cigar, l.numOps)
	enc := r.buf[l.nameEnd():l.cigarEnd()]
	for i := range c {
		c[i] = cigar.Op(binary.LittleEndian.Uint32(enc[4*i:]))
	}
	return c
}

// SetCigar replaces the cigar, shifting the seq, qual and aux fields as
// needed. An empty cigar is valid and stores no bytes.
func (r *Record) SetCigar(c cigar.Cigar) error {
	if len(c) > MaxCigarOps {
		return ErrCigarLength
	}
	if err := r.checkSize(4*len(c) - 4*r.layout.numOps); err != nil {
		return err
	}
	enc := make([]byte, 4*len(c))
	for i, op := range c {
		binary.LittleEndian.PutUint32(enc[4*i:], uint32(op))
	}
	r.splice(r.layout.nameEnd(), r.layout.cigarEnd(), enc)
	r.layout.numOps = len(c)
	return nil
}

// SeqLen returns the sequence length in bases.
func (r *Record) SeqLen() int { return r.layout.seqLen }

// Seq returns the sequence decoded to ASCII bases.
func (r *Record) Seq() []byte {
	l := &r.layout
	seq := make([]byte, l.seqLen)
	unpackSeq(seq, r.buf[l.cigarEnd():l.seqEnd()])
	return seq
}

// SetSeq replaces the sequence, nibble-packing two bases per byte. Bases
// outside the "=ACMGRSVTWYHKDBN" alphabet encode as N. Because quality is
// meaningless for a sequence it was not read with, the quality field is
// resized alongside and every byte reset to NoQual; assign a real quality
// with SetQual afterwards. A zero-length sequence is valid.
func (r *Record) SetSeq(seq []byte) error {
	l := &r.layout
	n := len(seq)
	newSpace := (n+1)/2 + n
	if err := r.checkSize(newSpace - (l.qualEnd() - l.cigarEnd())); err != nil {
		return err
	}
	block := make([]byte, newSpace)
	packSeq(block[:(n+1)/2], seq)
	qual := block[(n+1)/2:]
	for i := range qual {
		qual[i] = NoQual
	}
	r.splice(l.cigarEnd(), l.qualEnd(), block)
	l.seqLen = n
	return nil
}

// Qual returns a copy of the per-base quality bytes.
func (r *Record) Qual() []byte {
	l := &r.layout
	return append([]byte(nil), r.buf[l.seqEnd():l.qualEnd()]...)
}

// SetQual overwrites the quality bytes in place. The length must equal the
// current sequence length; on mismatch the record is left unmodified.
func (r *Record) SetQual(qual []byte) error {
	l := &r.layout
	if len(qual) != l.seqLen {
		return ErrLengthMismatch
	}
	copy(r.buf[l.seqEnd():l.qualEnd()], qual)
	return nil
}

// checkSize refuses a mutation that would grow the arena past the maximum
// encodable record size.
func (r *Record) checkSize(delta int) error {
	if delta > 0 && len(r.buf)+delta > maxRecordBytes {
		return ErrRecordTooLarge
	}
	return nil
}
