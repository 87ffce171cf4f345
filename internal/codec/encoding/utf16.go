// Package encoding provides the UTF-16LE helpers, case-fold table and
// collation order used throughout the dentry tree (spec.md §4.1), grounded on
// wimlib's encoding.c/case.h and adapted from the teacher's convention of
// decoding fixed-width fields with an explicit binary.ByteOrder
// (internal/parsers/file_system_objects/inode_reader.go) — here applied to
// transcoding via golang.org/x/text/encoding/unicode instead of a hand-rolled
// UTF-16 decoder.
package encoding

import (
	"golang.org/x/text/encoding/unicode"
)

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Name is an immutable UTF-16LE encoded dentry/stream name. The zero value
// represents "no name" and must compare equal by identity to EmptyName, per
// spec.md §3 Stream ("the sentinel 'no name' must compare equal-by-identity
// to the empty name").
type Name struct {
	units []uint16
}

// EmptyName is the shared singleton representing an absent/empty name.
var EmptyName = Name{}

// NewNameFromUTF16LEBytes builds a Name from raw UTF-16LE bytes (no
// terminator). Byte length must be even.
func NewNameFromUTF16LEBytes(b []byte) (Name, error) {
	if len(b)%2 != 0 {
		return Name{}, errOddLength
	}
	if len(b) == 0 {
		return EmptyName, nil
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return Name{units: units}, nil
}

// NewNameFromString builds a Name from a Go (UTF-8) string using the
// golang.org/x/text UTF-16LE transcoder.
func NewNameFromString(s string) (Name, error) {
	if s == "" {
		return EmptyName, nil
	}
	encoded, err := utf16LE.NewEncoder().String(s)
	if err != nil {
		return Name{}, err
	}
	return NewNameFromUTF16LEBytes([]byte(encoded))
}

// String decodes the name back to a Go string.
func (n Name) String() string {
	if len(n.units) == 0 {
		return ""
	}
	raw := n.Bytes()
	decoded, err := utf16LE.NewDecoder().Bytes(raw)
	if err != nil {
		// Lossy fallback: surrogate-unaware code unit pass-through.
		out := make([]rune, len(n.units))
		for i, u := range n.units {
			out[i] = rune(u)
		}
		return string(out)
	}
	return string(decoded)
}

// Bytes returns the raw UTF-16LE byte encoding (no terminator).
func (n Name) Bytes() []byte {
	b := make([]byte, len(n.units)*2)
	for i, u := range n.units {
		b[2*i] = byte(u)
		b[2*i+1] = byte(u >> 8)
	}
	return b
}

// NumBytes returns the length in bytes, excluding any terminator, matching
// the on-disk *_nbytes fields.
func (n Name) NumBytes() int { return len(n.units) * 2 }

// IsEmpty reports whether the name has zero length.
func (n Name) IsEmpty() bool { return len(n.units) == 0 }

// Units exposes the raw UTF-16 code units for collation purposes.
func (n Name) Units() []uint16 { return n.units }

type errOddLengthT struct{}

func (errOddLengthT) Error() string { return "odd UTF-16LE byte length" }

var errOddLength = errOddLengthT{}
