// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package provider

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/align/cigar"
	"github.com/grailbio/align/encoding/bamrec"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"
)

func spanRecord(t *testing.T, name string, pos int32, cigarStr string) *bamrec.Record {
	c, err := cigar.Parse(cigarStr)
	require.NoError(t, err)
	seq := strings.Repeat("A", c.QuerySpan())
	r, err := bamrec.New(name, 0, pos, 60, 0, c, []byte(seq))
	require.NoError(t, err)
	return r
}

// The bounded filter must return every record overlapping [start, end): a
// read beginning before start still contributes its in-region bases.
func TestBoundedScanOverlap(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "test.bam")

	chr1, err := sam.NewReference("chr1", "", "", 10000, nil, nil)
	require.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{chr1})
	require.NoError(t, err)

	w, err := NewWriter(path, header)
	require.NoError(t, err)
	for _, rec := range []*bamrec.Record{
		spanRecord(t, "before", 10, "20M"),      // ends at 30, misses the region
		spanRecord(t, "abuts", 80, "20M"),       // ends exactly at start
		spanRecord(t, "straddles", 90, "20M"),   // 90..110, overlaps start
		spanRecord(t, "inside", 120, "20M"),     // wholly inside
		spanRecord(t, "tail", 195, "20M"),       // overlaps end
		spanRecord(t, "atEnd", 200, "20M"),      // starts at end, terminates
		spanRecord(t, "past", 400, "20M"),
	} {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	r.bounded = true
	r.refID = 0
	r.start = 100
	r.end = 200

	var got []string
	for r.Scan() {
		got = append(got, r.Record().Name())
	}
	require.NoError(t, r.Err())
	require.NoError(t, r.Close())
	require.Equal(t, []string{"straddles", "inside", "tail"}, got)
}
