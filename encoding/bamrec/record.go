// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bamrec implements the packed in-memory form of one alignment
// record: a single contiguous byte arena holding the record's five
// variable-length fields, [name][cigar][seq][qual][aux], in BAM order.
//
// Field offsets are derived from the lengths of the preceding fields and are
// never stored independently, so resizing an earlier field shifts everything
// after it. All setters validate first and mutate second; a failed setter
// leaves the record untouched. Getters return owned copies, never views into
// the arena, since any mutating call may relocate it.
//
// The scalar core of the record (reference id, position, flags, mapping
// quality and the mate fields) lives outside the arena, mirroring the BAM
// fixed-size record prefix.
package bamrec

import (
	"github.com/grailbio/align/cigar"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

const (
	// MaxNameLen is the longest settable read name. The BAM on-disk name
	// length (display bytes, NUL terminator and alignment padding included)
	// is a uint8, which caps the display portion at 251 bytes.
	MaxNameLen = 251

	// MaxCigarOps is the longest settable cigar; the BAM op count is a
	// uint16.
	MaxCigarOps = 1<<16 - 1

	// maxRecordBytes caps the arena; the BAM record length prefix is an
	// int32. Growth past this limit is refused before any byte moves.
	maxRecordBytes = 1<<31 - 1

	// NoQual is the quality byte meaning "no quality available". SetSeq
	// resets the quality field to this value.
	NoQual = 0xff
)

var (
	// ErrNameLength is returned by SetName for an empty name or one longer
	// than MaxNameLen.
	ErrNameLength = errors.E("bamrec: name absent or too long")
	// ErrCigarLength is returned by SetCigar for a cigar with more than
	// MaxCigarOps operations.
	ErrCigarLength = errors.E("bamrec: too many cigar operations")
	// ErrLengthMismatch is returned by SetQual when the quality length does
	// not equal the current sequence length.
	ErrLengthMismatch = errors.E("bamrec: sequence/quality length mismatch")
	// ErrRecordTooLarge is returned when a mutation would grow the arena
	// past the maximum encodable record size.
	ErrRecordTooLarge = errors.E("bamrec: record exceeds maximum encodable size")
)

// Record is one alignment record. The exported scalar fields may be set
// directly; the variable-length fields live in the shared arena and are
// accessed through their setters and getters.
type Record struct {
	RefID     int32
	Pos       int32
	MapQ      byte
	Flags     sam.Flags
	MateRefID int32
	MatePos   int32
	TempLen   int32

	buf    []byte
	layout fieldLayout
}

// New returns a record with the given name, sequence and cigar, positioned at
// (refID, pos). Quality is initialized to NoQual for every base; the mate
// fields are set to the BAM "unset" values.
func New(name string, refID int32, pos int32, mapQ byte, flags sam.Flags, c cigar.Cigar, seq []byte) (*Record, error) {
	r := &Record{
		RefID:     refID,
		Pos:       pos,
		MapQ:      mapQ,
		Flags:     flags,
		MateRefID: -1,
		MatePos:   -1,
	}
	if err := r.SetName(name); err != nil {
		return nil, err
	}
	if err := r.SetCigar(c); err != nil {
		return nil, err
	}
	if err := r.SetSeq(seq); err != nil {
		return nil, err
	}
	return r, nil
}

// Clone returns a deep copy. A record is exclusively owned; this is the only
// way to hand one to another goroutine while the original keeps mutating.
func (r *Record) Clone() *Record {
	c := *r
	c.buf = append([]byte(nil), r.buf...)
	return &c
}

// consumed returns the number of arena bytes in use. It always equals the
// layout size and never exceeds the arena capacity.
func (r *Record) consumed() int { return len(r.buf) }
