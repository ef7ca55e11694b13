// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package pairs_test

import (
	"testing"

	"github.com/grailbio/align/cigar"
	"github.com/grailbio/align/encoding/bamrec"
	"github.com/grailbio/align/pairs"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func newRecord(t *testing.T, cigarStr, seq, mdStr string) *bamrec.Record {
	c, err := cigar.Parse(cigarStr)
	require.NoError(t, err)
	r, err := bamrec.New("read1", 0, 1000, 60, 0, c, []byte(seq))
	require.NoError(t, err)
	if mdStr != "" {
		aux, err := sam.NewAux(sam.NewTag("MD"), mdStr)
		require.NoError(t, err)
		require.NoError(t, r.SetTag(aux))
	}
	return r
}

func collect(t *testing.T, it *pairs.Iter) []pairs.Pair {
	var out []pairs.Pair
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, p)
	}
	require.NoError(t, it.Err())
	return out
}

func TestReferenceReconstruction(t *testing.T) {
	// Query laid out against MD "2G11^GATC7T6^A11": two matches, a G>C
	// mismatch, 11 matches, a 4-base deletion, and so on.
	seq := "CC" + "A" + "GGGGGGGGGGG" + "TTTTTTT" + "C" + "AAAAAA" + "GGGGGGGGGGG"
	rec := newRecord(t, "14M4D14M1D11M", seq, "2G11^GATC7T6^A11")

	it, err := pairs.New(rec, true)
	require.NoError(t, err)
	got := collect(t, it)
	require.Equal(t, 44, len(got))

	var refBases []byte
	for _, p := range got {
		if p.Op.ConsumesReference() {
			refBases = append(refBases, p.RefBase)
		}
		if p.Op == cigar.Deletion {
			expect.EQ(t, p.QueryBase, byte(pairs.None))
		}
	}
	expect.EQ(t, string(refBases),
		"CC"+"G"+"GGGGGGGGGGG"+"GATC"+"TTTTTTT"+"T"+"AAAAAA"+"A"+"GGGGGGGGGGG")

	// Every unit consumes the reference here, so RefPos counts 0..43.
	for i, p := range got {
		expect.EQ(t, p.RefPos, i)
	}
}

func TestInsertions(t *testing.T) {
	rec := newRecord(t, "2M2I2M", "AACCGG", "4")
	it, err := pairs.New(rec, true)
	require.NoError(t, err)
	got := collect(t, it)
	require.Equal(t, 6, len(got))

	// Inserted bases do not advance RefPos but still appear, sharing it
	// with the preceding aligned base.
	expect.EQ(t, got[1].RefPos, 1)
	expect.EQ(t, got[2].Op, cigar.Insertion)
	expect.EQ(t, got[2].RefPos, 1)
	expect.EQ(t, got[2].QueryBase, byte('C'))
	expect.EQ(t, got[2].RefBase, byte(pairs.None))
	expect.EQ(t, got[3].RefPos, 1)
	expect.EQ(t, got[4].RefPos, 2)

	expect.EQ(t, got[5].QueryBase, byte('G'))
	expect.EQ(t, got[5].RefBase, byte('G'))
}

func TestSoftClips(t *testing.T) {
	rec := newRecord(t, "2S3M", "TTACG", "3")
	it, err := pairs.New(rec, true)
	require.NoError(t, err)
	got := collect(t, it)
	require.Equal(t, 5, len(got))
	expect.EQ(t, got[0].Op, cigar.SoftClip)
	expect.EQ(t, got[0].QueryBase, byte('T'))
	expect.EQ(t, got[0].RefBase, byte(pairs.None))
	expect.EQ(t, got[0].RefPos, -1)
	expect.EQ(t, got[2].QueryPos, 2)
	expect.EQ(t, got[2].RefPos, 0)
}

func TestMissingMD(t *testing.T) {
	rec := newRecord(t, "4M", "ACGT", "")
	_, err := pairs.New(rec, true)
	require.Equal(t, pairs.ErrNoMD, err)

	// Without reference reconstruction the MD tag is not required.
	it, err := pairs.New(rec, false)
	require.NoError(t, err)
	got := collect(t, it)
	require.Equal(t, 4, len(got))
	expect.EQ(t, got[0].RefBase, byte(pairs.None))
}

func TestMissingSequence(t *testing.T) {
	// A record may carry a cigar but no stored sequence, as secondary
	// alignments do. Every query base reads as None.
	rec := newRecord(t, "4M", "", "4")
	it, err := pairs.New(rec, false)
	require.NoError(t, err)
	got := collect(t, it)
	require.Equal(t, 4, len(got))
	for i, p := range got {
		expect.EQ(t, p.QueryPos, i, i)
		expect.EQ(t, p.QueryBase, byte(pairs.None), i)
	}

	// Reference reconstruction still walks the MD script; a matching
	// position has no query base to copy.
	it, err = pairs.New(rec, true)
	require.NoError(t, err)
	got = collect(t, it)
	require.Equal(t, 4, len(got))
	expect.EQ(t, got[0].RefBase, byte(pairs.None))
}

func TestShortSequence(t *testing.T) {
	// The stored sequence covers only 2 of 4 query-consuming units.
	rec := newRecord(t, "4M", "AC", "2G1")
	it, err := pairs.New(rec, true)
	require.NoError(t, err)
	got := collect(t, it)
	require.Equal(t, 4, len(got))
	expect.EQ(t, got[0].QueryBase, byte('A'))
	expect.EQ(t, got[1].QueryBase, byte('C'))
	expect.EQ(t, got[2].QueryBase, byte(pairs.None))
	expect.EQ(t, got[3].QueryBase, byte(pairs.None))
	expect.EQ(t, got[2].RefBase, byte('G'))
}

func TestRangeMatchesFullIteration(t *testing.T) {
	seq := "CC" + "A" + "GGGGGGGGGGG" + "TTTTTTT" + "C" + "AAAAAA" + "GGGGGGGGGGG"
	rec := newRecord(t, "14M4D14M1D11M", seq, "2G11^GATC7T6^A11")

	full, err := pairs.New(rec, true)
	require.NoError(t, err)
	all := collect(t, full)

	for _, r := range [][2]int{{0, 44}, {5, 30}, {13, 19}, {43, 44}, {10, 10}} {
		it, err := pairs.NewRange(rec, r[0], r[1], true)
		require.NoError(t, err, r)
		got := collect(t, it)
		var want []pairs.Pair
		for _, p := range all {
			if p.RefPos >= r[0] && p.RefPos < r[1] {
				want = append(want, p)
			}
		}
		require.Equal(t, want, got, r)
	}
}

func TestRangeViolation(t *testing.T) {
	rec := newRecord(t, "10M", "AAAAAAAAAA", "10")
	for _, r := range [][2]int{{-1, 4}, {0, 11}, {6, 2}} {
		_, err := pairs.NewRange(rec, r[0], r[1], true)
		expect.NotNil(t, err, r)
	}
}

func TestShortMD(t *testing.T) {
	// The MD script covers only 2 of 4 aligned bases.
	rec := newRecord(t, "4M", "ACGT", "2")
	it, err := pairs.New(rec, true)
	require.NoError(t, err)
	n := 0
	for {
		if _, ok := it.Next(); !ok {
			break
		}
		n++
	}
	expect.EQ(t, n, 2)
	expect.NotNil(t, it.Err())
}
