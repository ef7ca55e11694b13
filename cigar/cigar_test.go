// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cigar_test

import (
	"testing"

	"github.com/grailbio/align/cigar"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"78M1D22M", "6H4S77M4I1M1D22M3S5H", "10M", "1S1M1S", "3=2X1="} {
		c, err := cigar.Parse(s)
		require.NoError(t, err, s)
		expect.EQ(t, c.String(), s)
	}
	c, err := cigar.Parse("78M1D22M")
	require.NoError(t, err)
	expect.EQ(t, c.ReferenceSpan(), 101)
	expect.EQ(t, c.QuerySpan(), 100)
}

func TestParseEmpty(t *testing.T) {
	for _, s := range []string{"", "*"} {
		c, err := cigar.Parse(s)
		require.NoError(t, err)
		expect.EQ(t, len(c), 0)
		expect.EQ(t, c.String(), "*")
	}
}

func TestParseMalformed(t *testing.T) {
	for _, s := range []string{"M", "10", "10Z", "10M3", "3m", "10M?", "-3M"} {
		_, err := cigar.Parse(s)
		expect.NotNil(t, err, s)
	}
	// Run lengths are capped at 28 bits.
	_, err := cigar.Parse("268435455M")
	expect.NoError(t, err)
	_, err = cigar.Parse("268435456M")
	expect.NotNil(t, err)
}

func TestConsumes(t *testing.T) {
	type classification struct {
		kind  cigar.Kind
		query bool
		ref   bool
	}
	for _, c := range []classification{
		{cigar.Match, true, true},
		{cigar.Insertion, true, false},
		{cigar.Deletion, false, true},
		{cigar.RefSkip, false, true},
		{cigar.SoftClip, true, false},
		{cigar.HardClip, false, false},
		{cigar.Pad, false, false},
		{cigar.Equal, true, true},
		{cigar.Diff, true, true},
		{cigar.Back, false, false},
	} {
		expect.EQ(t, c.kind.ConsumesQuery(), c.query, c.kind.String())
		expect.EQ(t, c.kind.ConsumesReference(), c.ref, c.kind.String())
	}
}

func TestOpPacking(t *testing.T) {
	op := cigar.NewOp(cigar.Deletion, 1234)
	expect.EQ(t, op.Kind(), cigar.Deletion)
	expect.EQ(t, op.Len(), 1234)
	expect.EQ(t, op.String(), "1234D")
	op = cigar.NewOp(cigar.Match, cigar.MaxLen)
	expect.EQ(t, op.Len(), cigar.MaxLen)
}

func collect(it cigar.CoordIter) []cigar.Coord {
	var out []cigar.Coord
	for {
		c, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func TestCoordIter(t *testing.T) {
	c, err := cigar.Parse("6H4S77M4I1M1D22M3S5H")
	require.NoError(t, err)
	entries := collect(cigar.NewCoordIter(c))
	require.Equal(t, 123, len(entries))

	// The ten leading clip entries precede any reference-consuming base.
	for i := 0; i < 10; i++ {
		expect.EQ(t, entries[i].RefPos, -1, i)
	}
	// Hard clips consume nothing; the soft-clipped bases are in the query.
	expect.EQ(t, entries[5].QueryPos, -1)
	expect.EQ(t, entries[6].Op, cigar.SoftClip)
	expect.EQ(t, entries[6].QueryPos, 0)
	expect.EQ(t, entries[9].QueryPos, 3)

	last := entries[len(entries)-1]
	expect.EQ(t, last.RefPos, 100)
	expect.EQ(t, last.Op, cigar.HardClip)
	expect.EQ(t, last.QueryPos, 110)

	// Entry count equals the summed op lengths; the span only counts
	// reference-consuming ops.
	total := 0
	for _, op := range c {
		total += op.Len()
	}
	expect.EQ(t, total, len(entries))
	expect.EQ(t, c.ReferenceSpan(), 101)
}

func TestCoordIterEmpty(t *testing.T) {
	it := cigar.NewCoordIter(nil)
	_, ok := it.Next()
	expect.False(t, ok)
}

func TestCoordIterCopyRestarts(t *testing.T) {
	c, err := cigar.Parse("2M1I2M")
	require.NoError(t, err)
	it := cigar.NewCoordIter(c)
	_, _ = it.Next()
	saved := it
	a, _ := it.Next()
	b, _ := saved.Next()
	expect.EQ(t, a, b)
}

func TestCoordIterRange(t *testing.T) {
	c, err := cigar.Parse("6H4S77M4I1M1D22M3S5H")
	require.NoError(t, err)

	it, err := cigar.NewCoordIterRange(c, 0, c.ReferenceSpan())
	require.NoError(t, err)
	entries := collect(it)
	// Only the ten leading clip entries fall outside [0, span).
	expect.EQ(t, len(entries), 113)
	expect.EQ(t, entries[0].Op, cigar.Match)
	expect.EQ(t, entries[0].RefPos, 0)

	it, err = cigar.NewCoordIterRange(c, 79, 101)
	require.NoError(t, err)
	entries = collect(it)
	// 22M covers refPos 79..100, and the trailing clips repeat refPos 100.
	require.Equal(t, 30, len(entries))
	expect.EQ(t, entries[0].RefPos, 79)
	expect.EQ(t, entries[21].RefPos, 100)
	expect.EQ(t, entries[22].Op, cigar.SoftClip)

	it, err = cigar.NewCoordIterRange(c, 10, 20)
	require.NoError(t, err)
	entries = collect(it)
	require.Equal(t, 10, len(entries))
	for i, e := range entries {
		expect.EQ(t, e.RefPos, 10+i)
	}
}

func TestCoordIterRangeViolation(t *testing.T) {
	c, err := cigar.Parse("10M")
	require.NoError(t, err)
	for _, r := range [][2]int{{-1, 5}, {0, 11}, {7, 3}} {
		_, err := cigar.NewCoordIterRange(c, r[0], r[1])
		expect.NotNil(t, err, r)
	}
	_, err = cigar.NewCoordIterRange(c, 0, 10)
	expect.NoError(t, err)
}
