// Package wimtree holds the in-memory pointer-rich graph of an image: Inode,
// Stream, Dentry and the DentryTree operations over them (spec.md §3, §4.2),
// grounded on wimlib's inode.c/dentry.c and adapted from the teacher's
// convention of pairing a plain struct with constructor-returned accessor
// methods (internal/parsers/file_system_objects/inode_reader.go).
package wimtree

import (
	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/encoding"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// NoStreamName is the sentinel "no name" value shared by every unnamed
// stream, so that identity comparison works as required by spec.md §3.
var NoStreamName = encoding.EmptyName

// Stream is a (type, name, content) tuple attached to an inode (spec.md §3).
type Stream struct {
	Type StreamTypeValue
	Name encoding.Name

	// Resolved selects whether Hash or Blob is the authoritative content
	// reference.
	Resolved bool
	Hash     blobtable.Hash
	Blob     *blobtable.Descriptor

	// StreamID is unique within the owning inode and stable across
	// reallocations of Inode.Streams.
	StreamID uint32
}

// StreamTypeValue re-exports wimtypes.StreamType to keep call sites reading
// wimtree.Stream{Type: wimtree.StreamTypeData, ...}.
type StreamTypeValue = wimtypes.StreamType

const (
	StreamTypeData          = wimtypes.StreamTypeData
	StreamTypeReparsePoint  = wimtypes.StreamTypeReparsePoint
	StreamTypeEfsrpcRawData = wimtypes.StreamTypeEfsrpcRawData
	StreamTypeUnknown       = wimtypes.StreamTypeUnknown
)

// IsNamed reports whether the stream carries a non-empty name.
func (s *Stream) IsNamed() bool { return !s.Name.IsEmpty() }

// IsEmpty reports whether the stream's content is the zero hash (or a
// resolved nil blob), per spec.md §4.7: "If a stream's hash is the zero
// digest, the resolved pointer is null and the stream is considered empty."
func (s *Stream) IsEmpty() bool {
	if s.Resolved {
		return s.Blob == nil
	}
	return s.Hash.IsZero()
}

// Size returns the stream's content size, or 0 if unresolved/empty.
func (s *Stream) Size() uint64 {
	if s.Resolved && s.Blob != nil {
		return s.Blob.Size
	}
	return 0
}

// Resolve converts the stream's stored hash into a direct blob pointer,
// looking it up in table (spec.md §4.7 "Resolving"). A zero hash resolves to
// a nil blob (empty stream).
func (s *Stream) Resolve(table *blobtable.Table) {
	if s.Resolved {
		return
	}
	if s.Hash.IsZero() {
		s.Blob = nil
	} else {
		s.Blob = table.Lookup(s.Hash)
	}
	s.Resolved = true
}

// ForceResolve is like Resolve but synthesizes an empty descriptor in table
// when the hash is unknown, for pipe-mode reads (spec.md §4.7).
func (s *Stream) ForceResolve(table *blobtable.Table) {
	if s.Resolved {
		return
	}
	if s.Hash.IsZero() {
		s.Blob = nil
	} else {
		s.Blob = table.ForceResolve(s.Hash)
	}
	s.Resolved = true
}
