// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

/*
align-pairs prints the per-base alignment of every read in a BAM region as
TSV, one row per CIGAR-expanded base unit. With -ref-bases, reference bases
are reconstructed from each read's MD tag, so no reference FASTA is needed.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/align/pairs"
	"github.com/grailbio/align/provider"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

var (
	refName   = flag.String("ref", "", "Reference (contig) name to query; required")
	start     = flag.Int("start", 0, "0-based inclusive start of the query region")
	end       = flag.Int("end", -1, "0-based exclusive end of the query region; -1 means the whole reference")
	indexPath = flag.String("index", "", "BAM index path; defaults to bampath + .bai")
	refBases  = flag.Bool("ref-bases", false, "Reconstruct reference bases from MD tags")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] bampath\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	shutdown := grail.Init()
	defer shutdown()
	flag.Usage = usage
	if flag.NArg() != 1 || *refName == "" {
		usage()
		os.Exit(1)
	}
	path := flag.Arg(0)

	// Resolve the reference name to an id; everything downstream works in
	// (referenceId, position) space.
	hr, err := provider.Open(path)
	if err != nil {
		log.Fatal(err)
	}
	refID := -1
	limit := -1
	for _, ref := range hr.Header().Refs() {
		if ref.Name() == *refName {
			refID = ref.ID()
			limit = ref.Len()
		}
	}
	if err := hr.Close(); err != nil {
		log.Fatal(err)
	}
	if refID < 0 {
		log.Fatalf("reference %q not found in %s", *refName, path)
	}
	regionEnd := *end
	if regionEnd < 0 {
		regionEnd = limit
	}

	r, err := provider.OpenRange(path, *indexPath, refID, *start, regionEnd)
	if err != nil {
		log.Fatal(err)
	}
	w := tsv.NewWriter(os.Stdout)
	for r.Scan() {
		rec := r.Record()
		span := rec.Cigar().ReferenceSpan()
		pstart := *start - int(rec.Pos)
		if pstart < 0 {
			pstart = 0
		}
		pend := regionEnd - int(rec.Pos)
		if pend > span {
			pend = span
		}
		if pstart >= pend {
			continue
		}
		it, err := pairs.NewRange(rec, pstart, pend, *refBases)
		if err != nil {
			log.Fatalf("%s: %v", rec.Name(), err)
		}
		for {
			p, ok := it.Next()
			if !ok {
				break
			}
			w.WriteString(rec.Name())
			w.WriteString(r.RefName(rec))
			w.WriteInt64(int64(p.QueryPos))
			w.WriteInt64(int64(rec.Pos) + int64(p.RefPos))
			w.WriteString(p.Op.String())
			w.WriteByte(p.QueryBase)
			if *refBases {
				w.WriteByte(p.RefBase)
			}
			if err := w.EndLine(); err != nil {
				log.Fatal(err)
			}
		}
		if err := it.Err(); err != nil {
			log.Fatalf("%s: %v", rec.Name(), err)
		}
	}
	if err := r.Err(); err != nil {
		log.Fatal(err)
	}
	if err := r.Close(); err != nil {
		log.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		log.Fatal(err)
	}
}
