// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package md parses the MD auxiliary tag, the compact edit script that
// records mismatches and deletions relative to the reference. Together with
// the read sequence it reconstructs per-position reference bases without the
// reference itself.
//
// The grammar is ``(\d+)([\^ACGTN]*)`` repeated: a run of matching bases,
// then either nothing, a single substituted reference base, or a '^'-prefixed
// block of deleted reference bases.
package md

import "github.com/grailbio/base/errors"

// Match is the sentinel emitted by Iter for a reference position whose base
// agrees with the query.
const Match = '='

// Pair is one step of the edit script: Count matching bases followed by one
// edit token. Edit is "", a single mismatch base, or "^" plus the deleted
// bases. The terminal pair of a well-formed MD string has an empty Edit.
type Pair struct {
	Count int
	Edit  string
}

func isBase(c byte) bool {
	switch c {
	case 'A', 'C', 'G', 'T', 'N':
		return true
	}
	return false
}

// Scanner decomposes an MD string into Pairs.
//
//	s := md.NewScanner("2G11^GATC7T6^A11")
//	for s.Scan() {
//		p := s.Pair()
//		...
//	}
//	err := s.Err()
type Scanner struct {
	s    string
	pos  int
	cur  Pair
	err  error
	done bool
}

// NewScanner returns a Scanner over the MD string s.
func NewScanner(s string) *Scanner {
	return &Scanner{s: s}
}

// Scan advances to the next pair, returning false at end of input or on a
// grammar violation. Check Err after Scan returns false.
func (s *Scanner) Scan() bool {
	if s.done || s.err != nil {
		return false
	}
	if s.pos >= len(s.s) {
		s.done = true
		return false
	}
	i := s.pos
	if s.s[i] < '0' || s.s[i] > '9' {
		s.err = errors.E("md: edit script must start each pair with a match count:", s.s)
		return false
	}
	n := 0
	for ; i < len(s.s) && s.s[i] >= '0' && s.s[i] <= '9'; i++ {
		n = n*10 + int(s.s[i]-'0')
	}
	j := i
	if i < len(s.s) {
		if s.s[i] == '^' {
			for i++; i < len(s.s) && isBase(s.s[i]); i++ {
			}
			if i == j+1 {
				s.err = errors.E("md: empty deletion block in edit script:", s.s)
				return false
			}
		} else if isBase(s.s[i]) {
			i++
		} else {
			s.err = errors.E("md: unexpected character in edit script:", s.s)
			return false
		}
	}
	s.cur = Pair{Count: n, Edit: s.s[j:i]}
	s.pos = i
	return true
}

// Pair returns the pair found by the last successful Scan.
func (s *Scanner) Pair() Pair { return s.cur }

// Err returns the first grammar violation encountered, if any.
func (s *Scanner) Err() error { return s.err }

// Iter flattens an MD string into its per-reference-base character stream:
// Match ('=') for each base of a match run, the substituted base for a
// mismatch, and one base per position of a deletion block. The stream length
// equals the number of reference-consuming positions the MD string covers.
type Iter struct {
	sc      *Scanner
	matches int    // '=' yields left in the current run
	edit    string // then these bases, one per position
	err     error
}

// NewIter returns a per-reference-base iterator over the MD string s.
func NewIter(s string) *Iter {
	return &Iter{sc: NewScanner(s)}
}

// Next returns the next reference-base character, or false when the stream is
// exhausted or malformed. Check Err after Next returns false.
func (i *Iter) Next() (byte, bool) {
	for {
		if i.matches > 0 {
			i.matches--
			return Match, true
		}
		if len(i.edit) > 0 {
			c := i.edit[0]
			i.edit = i.edit[1:]
			return c, true
		}
		if !i.sc.Scan() {
			i.err = i.sc.Err()
			return 0, false
		}
		p := i.sc.Pair()
		i.matches = p.Count
		i.edit = p.Edit
		if len(i.edit) > 1 {
			// Must be a deletion block; drop the '^' marker.
			i.edit = i.edit[1:]
		}
	}
}

// Skip drops the next n characters of the stream. It is used to align the
// stream with a reference range that starts inside the alignment.
func (i *Iter) Skip(n int) error {
	for ; n > 0; n-- {
		if _, ok := i.Next(); !ok {
			if err := i.Err(); err != nil {
				return err
			}
			return errors.E("md: edit script shorter than the requested skip")
		}
	}
	return nil
}

// Err returns the first grammar violation encountered, if any.
func (i *Iter) Err() error { return i.err }
