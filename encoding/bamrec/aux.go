// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamrec

import (
	"encoding/binary"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// The aux block is a run of {2-byte tag}{1-byte type}{value} entries sharing
// the arena with the other fields. Its contents are opaque to the layout
// logic beyond entry boundaries; typed access goes through sam.Aux.

var errCorruptAux = errors.E("bamrec: corrupt aux field")

// jumps maps an aux type byte to its fixed value size, or -1 for the
// variable-length types.
var jumps = [256]int{
	'A': 1,
	'c': 1, 'C': 1,
	's': 2, 'S': 2,
	'i': 4, 'I': 4,
	'f': 4,
	'Z': -1,
	'H': -1,
	'B': -1,
}

// auxSpan returns the serialized length of the aux entry starting at buf[i],
// tag and type bytes and any terminating NUL included.
func auxSpan(buf []byte, i int) (int, error) {
	if i+3 > len(buf) {
		return 0, errCorruptAux
	}
	t := buf[i+2]
	switch j := jumps[t]; {
	case j > 0:
		if i+3+j > len(buf) {
			return 0, errCorruptAux
		}
		return 3 + j, nil
	case j < 0:
		switch t {
		case 'Z', 'H':
			for k := i + 3; k < len(buf); k++ {
				if buf[k] == 0 { // C string termination
					return k - i + 1, nil
				}
			}
		case 'B':
			if i+8 > len(buf) {
				return 0, errCorruptAux
			}
			elem := jumps[buf[i+3]]
			if elem <= 0 {
				return 0, errCorruptAux
			}
			n := int(binary.LittleEndian.Uint32(buf[i+4 : i+8]))
			if i+8+n*elem > len(buf) {
				return 0, errCorruptAux
			}
			return 8 + n*elem, nil
		}
	}
	return 0, errCorruptAux
}

// validateAuxBlock walks raw, verifying that it is an exact sequence of
// well-formed aux entries.
func validateAuxBlock(raw []byte) error {
	for i := 0; i < len(raw); {
		n, err := auxSpan(raw, i)
		if err != nil {
			return err
		}
		i += n
	}
	return nil
}

// findTag returns the absolute [start, end) byte range of the entry with the
// given tag, or ok=false if absent.
func (r *Record) findTag(tag sam.Tag) (start, end int, ok bool) {
	i := r.layout.qualEnd()
	for i < len(r.buf) {
		n, err := auxSpan(r.buf, i)
		if err != nil {
			return 0, 0, false
		}
		if r.buf[i] == tag[0] && r.buf[i+1] == tag[1] {
			return i, i + n, true
		}
		i += n
	}
	return 0, 0, false
}

// viewLen returns the length of entry bytes exposed through sam.Aux: the
// serialized length minus the terminating NUL of the string types.
func viewLen(typ byte, n int) int {
	if typ == 'Z' || typ == 'H' {
		return n - 1
	}
	return n
}

// Tag returns an owned copy of the aux entry with the given tag.
func (r *Record) Tag(tag sam.Tag) (sam.Aux, bool) {
	start, end, ok := r.findTag(tag)
	if !ok {
		return nil, false
	}
	n := viewLen(r.buf[start+2], end-start)
	return sam.Aux(append([]byte(nil), r.buf[start:start+n]...)), true
}

// SetTag adds the aux entry to the record, replacing an existing entry with
// the same tag. The entry is spliced into the shared arena, shifting any
// entries after it.
func (r *Record) SetTag(aux sam.Aux) error {
	if len(aux) < 3 {
		return errCorruptAux
	}
	enc := append([]byte(nil), aux...)
	switch aux.Type() {
	case 'Z', 'H':
		enc = append(enc, 0)
	}
	if err := validateAuxBlock(enc); err != nil {
		return err
	}
	start, end, ok := r.findTag(aux.Tag())
	if !ok {
		start, end = len(r.buf), len(r.buf)
	}
	if err := r.checkSize(len(enc) - (end - start)); err != nil {
		return err
	}
	r.splice(start, end, enc)
	r.layout.auxLen += len(enc) - (end - start)
	return nil
}

// RemoveTag deletes the aux entry with the given tag, reporting whether it
// was present.
func (r *Record) RemoveTag(tag sam.Tag) bool {
	start, end, ok := r.findTag(tag)
	if !ok {
		return false
	}
	r.splice(start, end, nil)
	r.layout.auxLen -= end - start
	return true
}

// AuxFields returns owned copies of all aux entries, in arena order.
func (r *Record) AuxFields() []sam.Aux {
	var aa []sam.Aux
	i := r.layout.qualEnd()
	for i < len(r.buf) {
		n, err := auxSpan(r.buf, i)
		if err != nil {
			break
		}
		v := viewLen(r.buf[i+2], n)
		aa = append(aa, sam.Aux(append([]byte(nil), r.buf[i:i+v]...)))
		i += n
	}
	return aa
}

// setAuxBlock replaces the whole aux region with raw, which must be a
// well-formed entry sequence.
func (r *Record) setAuxBlock(raw []byte) error {
	if err := validateAuxBlock(raw); err != nil {
		return err
	}
	if err := r.checkSize(len(raw) - r.layout.auxLen); err != nil {
		return err
	}
	r.splice(r.layout.qualEnd(), len(r.buf), raw)
	r.layout.auxLen = len(raw)
	return nil
}

// mdTag is the aux key of the mismatch/deletion edit script.
var mdTag = sam.Tag{'M', 'D'}

// MD returns the record's MD tag value, or ok=false if the tag is absent or
// not a string.
func (r *Record) MD() (string, bool) {
	aux, ok := r.Tag(mdTag)
	if !ok {
		return "", false
	}
	s, ok := aux.Value().(string)
	return s, ok
}
