// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamrec

import (
	"github.com/grailbio/align/cigar"
	"github.com/grailbio/hts/sam"
)

// Conversions to and from sam.Record, the record type of the external
// alignment-format engine. The sam.CigarOp bit packing is identical to
// cigar.Op, so cigars convert by cast.

// buildAux serializes a slice of sam.Aux into one aux block, restoring the
// NUL terminators the sam.Aux views drop.
func buildAux(aa []sam.Aux, buf *[]byte) {
	for _, a := range aa {
		*buf = append(*buf, []byte(a)...)
		switch a.Type() {
		case 'Z', 'H':
			*buf = append(*buf, 0)
		}
	}
}

// FromSAM builds a packed record from a sam.Record.
func FromSAM(src *sam.Record) (*Record, error) {
	c := make(cigar.Cigar, len(src.Cigar))
	for i, op := range src.Cigar {
		c[i] = cigar.Op(op)
	}
	r, err := New(src.Name, int32(src.Ref.ID()), int32(src.Pos), src.MapQ, src.Flags, c, src.Seq.Expand())
	if err != nil {
		return nil, err
	}
	r.MateRefID = int32(src.MateRef.ID())
	r.MatePos = int32(src.MatePos)
	r.TempLen = int32(src.TempLen)
	if src.Qual != nil {
		if err := r.SetQual(src.Qual); err != nil {
			return nil, err
		}
	}
	if len(src.AuxFields) > 0 {
		var aux []byte
		buildAux(src.AuxFields, &aux)
		if err := r.setAuxBlock(aux); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ToSAM converts the record back to a sam.Record, resolving the reference
// ids against header.
func (r *Record) ToSAM(header *sam.Header) (*sam.Record, error) {
	refs := header.Refs()
	var ref, mateRef *sam.Reference
	if r.RefID >= 0 && int(r.RefID) < len(refs) {
		ref = refs[r.RefID]
	}
	if r.MateRefID >= 0 && int(r.MateRefID) < len(refs) {
		mateRef = refs[r.MateRefID]
	}
	c := r.Cigar()
	co := make([]sam.CigarOp, len(c))
	for i, op := range c {
		co[i] = sam.CigarOp(op)
	}
	rec, err := sam.NewRecord(r.Name(), ref, mateRef,
		int(r.Pos), int(r.MatePos), int(r.TempLen), r.MapQ,
		co, r.Seq(), r.Qual(), r.AuxFields())
	if err != nil {
		return nil, err
	}
	rec.Flags = r.Flags
	return rec, nil
}
