// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package provider is the pass-through to the external alignment-format
// engine. It reads and writes packed records against BAM files, resolves
// indexed region queries through the .bai index, and maps reference ids back
// to display names. Paths may be local or anything grailbio/base/file
// understands. The coordinate and pair iterators in this module never touch
// this package; they operate purely in (referenceId, position) space.
package provider

import (
	"io"

	"github.com/grailbio/align/encoding/bamrec"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf/index"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
	"v.io/x/lib/vlog"
)

// Reader streams records from a BAM file in coordinate order, either the
// whole file or one indexed region. Thread compatible.
type Reader struct {
	in     file.File
	reader *bam.Reader

	bounded    bool
	refID      int
	start, end int

	rec  *bamrec.Record
	err  error
	done bool
}

// Open returns a Reader over every record of the BAM file at path.
func Open(path string) (*Reader, error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		_ = in.Close(ctx)
		return nil, errors.Wrapf(err, "read bam header of %s", path)
	}
	return &Reader{in: in, reader: reader}, nil
}

// OpenRange returns a Reader over the records whose alignment overlaps
// [start, end) on the reference with the given id, located through the .bai
// index. indexPath defaults to path + ".bai".
func OpenRange(path, indexPath string, refID, start, end int) (*Reader, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	refs := r.Header().Refs()
	if refID < 0 || refID >= len(refs) {
		_ = r.Close()
		return nil, errors.Errorf("%s: reference id %d out of range", path, refID)
	}
	r.bounded = true
	r.refID = refID
	r.start = start
	r.end = end

	if indexPath == "" {
		indexPath = path + ".bai"
	}
	ctx := vcontext.Background()
	indexIn, err := file.Open(ctx, indexPath)
	if err != nil {
		_ = r.Close()
		return nil, errors.Wrapf(err, "open index %s", indexPath)
	}
	defer indexIn.Close(ctx)
	idx, err := bam.ReadIndex(indexIn.Reader(ctx))
	if err != nil {
		_ = r.Close()
		return nil, errors.Wrapf(err, "read index %s", indexPath)
	}
	chunks, err := idx.Chunks(refs[refID], start, end)
	if err == index.ErrInvalid || len(chunks) == 0 {
		// No reads in the region; an empty iterator, not an error.
		r.done = true
		return r, nil
	}
	if err != nil {
		_ = r.Close()
		return nil, errors.Wrapf(err, "query index %s", indexPath)
	}
	if err := r.reader.Seek(chunks[0].Begin); err != nil {
		_ = r.Close()
		return nil, errors.Wrapf(err, "seek %s", path)
	}
	return r, nil
}

// Header returns the BAM header.
func (r *Reader) Header() *sam.Header { return r.reader.Header() }

// Scan advances to the next record in range, returning false at the end of
// the stream or region, or on error. Check Err after Scan returns false.
func (r *Reader) Scan() bool {
	if r.done || r.err != nil {
		return false
	}
	for {
		srec, err := r.reader.Read()
		if err == io.EOF {
			r.done = true
			return false
		}
		if err != nil {
			r.err = err
			return false
		}
		if r.bounded {
			id := srec.Ref.ID()
			// A region query returns every record overlapping [start, end),
			// including reads that begin before start. Records are in
			// coordinate order, so the first start past end terminates.
			if id < r.refID || (id == r.refID && srec.End() <= r.start) {
				continue
			}
			if id > r.refID || srec.Pos >= r.end {
				r.done = true
				return false
			}
		}
		rec, err := bamrec.FromSAM(srec)
		if err != nil {
			r.err = errors.Wrapf(err, "record %s", srec.Name)
			return false
		}
		r.rec = rec
		return true
	}
}

// Record returns the record found by the last successful Scan.
func (r *Reader) Record() *bamrec.Record { return r.rec }

// Err returns the first error encountered by Scan.
func (r *Reader) Err() error { return r.err }

// Close releases the reader. It must be called exactly once.
func (r *Reader) Close() error {
	if r.reader != nil {
		if err := r.reader.Close(); err != nil && r.err == nil {
			r.err = err
		}
		r.reader = nil
	}
	if r.in != nil {
		if err := r.in.Close(vcontext.Background()); err != nil && r.err == nil {
			r.err = err
		}
		r.in = nil
	}
	return r.err
}

// RefName resolves a record's reference id to its display name, or "*" for
// an unplaced record. Display only; all coordinate arithmetic stays in
// (referenceId, position) space.
func (r *Reader) RefName(rec *bamrec.Record) string {
	refs := r.Header().Refs()
	if rec.RefID < 0 || int(rec.RefID) >= len(refs) {
		return "*"
	}
	return refs[rec.RefID].Name()
}

// Writer appends records to a new BAM file.
type Writer struct {
	out    file.File
	bw     *bam.Writer
	header *sam.Header
}

// NewWriter creates a BAM file at path with the given header.
func NewWriter(path string, header *sam.Header) (*Writer, error) {
	ctx := vcontext.Background()
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	bw, err := bam.NewWriter(out.Writer(ctx), header, 1)
	if err != nil {
		_ = out.Close(ctx)
		return nil, errors.Wrapf(err, "write bam header of %s", path)
	}
	return &Writer{out: out, bw: bw, header: header}, nil
}

// Write appends one record.
func (w *Writer) Write(rec *bamrec.Record) error {
	srec, err := rec.ToSAM(w.header)
	if err != nil {
		return err
	}
	return w.bw.Write(srec)
}

// Close flushes and closes the file. It must be called exactly once.
func (w *Writer) Close() error {
	if w.bw == nil {
		vlog.Fatal("Writer closed twice")
	}
	err := w.bw.Close()
	w.bw = nil
	ctx := vcontext.Background()
	if cerr := w.out.Close(ctx); err == nil {
		err = cerr
	}
	return err
}
