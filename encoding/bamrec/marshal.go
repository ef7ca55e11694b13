// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamrec

import (
	"bytes"
	"encoding/binary"

	"github.com/grailbio/align/cigar"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// bamFixedBytes is the size of the fixed-length record prefix, the
// block_size word excluded.
const bamFixedBytes = 32

var errRecordTooShort = errors.E("bamrec: record too short")

type binaryWriter struct {
	w   *bytes.Buffer
	buf [4]byte
}

func (w *binaryWriter) writeUint8(v uint8) {
	w.buf[0] = v
	w.w.Write(w.buf[:1])
}

func (w *binaryWriter) writeUint16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	w.w.Write(w.buf[:2])
}

func (w *binaryWriter) writeInt32(v int32) {
	binary.LittleEndian.PutUint32(w.buf[:4], uint32(v))
	w.w.Write(w.buf[:4])
}

// refSpan sums the reference-consuming cigar run lengths straight off the
// packed encoding.
func (r *Record) refSpan() int {
	l := &r.layout
	enc := r.buf[l.nameEnd():l.cigarEnd()]
	span := 0
	for i := 0; i < len(enc); i += 4 {
		op := cigar.Op(binary.LittleEndian.Uint32(enc[i:]))
		if op.Kind().ConsumesReference() {
			span += op.Len()
		}
	}
	return span
}

// reg2bin computes the UCSC binning index of [beg, end). This matches the
// BAM specification's pseudocode, including bin 4680 for unplaced records.
func reg2bin(beg, end int32) uint16 {
	end--
	if end < beg {
		end = beg
	}
	switch {
	case beg>>14 == end>>14:
		return uint16(((1<<15)-1)/7 + (beg >> 14))
	case beg>>17 == end>>17:
		return uint16(((1<<12)-1)/7 + (beg >> 17))
	case beg>>20 == end>>20:
		return uint16(((1<<9)-1)/7 + (beg >> 20))
	case beg>>23 == end>>23:
		return uint16(((1<<6)-1)/7 + (beg >> 23))
	case beg>>26 == end>>26:
		return uint16(((1<<3)-1)/7 + (beg >> 26))
	}
	return 0
}

// Marshal appends the record in BAM binary form, the leading block_size word
// included. The five-field block is written verbatim from the arena, so the
// on-disk form is bit-exact with the in-memory layout.
func Marshal(r *Record, buf *bytes.Buffer) error {
	l := &r.layout
	bin := binaryWriter{w: buf}
	bin.writeInt32(int32(bamFixedBytes + len(r.buf)))
	bin.writeInt32(r.RefID)
	bin.writeInt32(r.Pos)
	bin.writeUint8(uint8(l.nameEnd()))
	bin.writeUint8(r.MapQ)
	bin.writeUint16(reg2bin(r.Pos, r.Pos+int32(r.refSpan())))
	bin.writeUint16(uint16(l.numOps))
	bin.writeUint16(uint16(r.Flags))
	bin.writeInt32(int32(l.seqLen))
	bin.writeInt32(r.MateRefID)
	bin.writeInt32(r.MatePos)
	bin.writeInt32(r.TempLen)
	buf.Write(r.buf)
	return nil
}

// Unmarshal parses a BAM binary record (the block_size word excluded, as in
// the on-disk format after the length prefix). The name block is
// re-canonicalized: writers that pad the name differently unmarshal to the
// same arena bytes this package would produce.
func Unmarshal(b []byte) (*Record, error) {
	if len(b) < bamFixedBytes {
		return nil, errRecordTooShort
	}
	// int(int32(uint32)) for 2's complement extension of -1.
	rec := &Record{
		RefID:     int32(binary.LittleEndian.Uint32(b)),
		Pos:       int32(binary.LittleEndian.Uint32(b[4:])),
		MapQ:      b[9],
		MateRefID: int32(binary.LittleEndian.Uint32(b[20:])),
		MatePos:   int32(binary.LittleEndian.Uint32(b[24:])),
		TempLen:   int32(binary.LittleEndian.Uint32(b[28:])),
	}
	rec.Flags = sam.Flags(binary.LittleEndian.Uint16(b[14:]))
	nLen := int(b[8])
	nCigar := int(binary.LittleEndian.Uint16(b[12:]))
	lSeq := int(int32(binary.LittleEndian.Uint32(b[16:])))
	if lSeq < 0 {
		return nil, errRecordTooShort
	}

	src := b[bamFixedBytes:]
	nDoubletBytes := (lSeq + 1) / 2
	auxOffset := nLen + nCigar*4 + nDoubletBytes + lSeq
	if len(src) < auxOffset {
		return nil, errRecordTooShort
	}

	// The stored name length counts the NUL terminator and any alignment
	// padding; the display length stops at the first NUL.
	nameLen := bytes.IndexByte(src[:nLen], 0)
	if nameLen < 0 {
		return nil, errors.E("bamrec: name field not NUL-terminated")
	}
	if nameLen == 0 || nameLen > MaxNameLen {
		return nil, ErrNameLength
	}
	aux := src[auxOffset:]
	if err := validateAuxBlock(aux); err != nil {
		return nil, err
	}

	space := nameSpace(nameLen)
	rec.layout = fieldLayout{
		nameLen: nameLen,
		namePad: space - nameLen,
		numOps:  nCigar,
		seqLen:  lSeq,
		auxLen:  len(aux),
	}
	rec.buf = make([]byte, rec.layout.size())
	copy(rec.buf, src[:nameLen])
	copy(rec.buf[rec.layout.nameEnd():], src[nLen:auxOffset])
	copy(rec.buf[rec.layout.qualEnd():], aux)
	return rec, nil
}
