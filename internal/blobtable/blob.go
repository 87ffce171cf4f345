// Package blobtable implements BlobDescriptor and BlobTable (spec.md §3,
// §4.7), grounded on wimlib's blob_table.h. Blob lookup is keyed by SHA-1
// digest; "unhashed" blobs carry a back-pointer to their sole referring
// stream instead of a digest.
package blobtable

import (
	"encoding/hex"

	"github.com/openwim/wimcore/internal/wimtypes"
)

// Hash is a 20-byte SHA-1 message digest, or the all-zero "empty stream"
// sentinel.
type Hash [wimtypes.SHA1HashSize]byte

// ZeroHash is the special hash denoting an empty/absent stream
// (spec.md §4.3 main_hash).
var ZeroHash Hash

// IsZero reports whether h is the all-zero sentinel.
func (h Hash) IsZero() bool { return h == ZeroHash }

// String returns h as a lowercase hex digest.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// ArchiveRange locates a blob's compressed bytes within the owning archive's
// resource range; fields are opaque to the core (spec.md §1 scope).
type ArchiveRange struct {
	Offset         uint64
	Size           uint64
	UncompressedSize uint64
}

// Descriptor is a BlobDescriptor (spec.md §3).
type Descriptor struct {
	Hash     Hash
	Unhashed bool

	// UnhashedOwner/UnhashedStreamID back-point to the sole stream that
	// refers to this blob when Unhashed is true.
	UnhashedOwner    InodeKey
	UnhashedStreamID uint32

	Size uint64

	Location       wimtypes.BlobLocation
	ArchiveRange   ArchiveRange
	FilePath       string
	AttachedBuffer []byte
	StagingPath    string
	HostFilePath   string

	// Refcnt is the total number of hard-link-weighted references from
	// inode streams across all loaded images sharing this table.
	Refcnt uint32

	// OutRefcnt is planner-scoped: incremented once per selected
	// extraction target (spec.md §4.10 step 6).
	OutRefcnt uint32

	IsMetadata bool
	Corrupted  bool
	WasExported bool
}

// InodeKey is an opaque, comparable identity for an inode, used only as the
// back-pointer key for unhashed blobs. The wimtree package's *Inode satisfies
// this via its pointer identity; blobtable never dereferences it.
type InodeKey interface{}

// NewHashedDescriptor builds a Descriptor for a known digest.
func NewHashedDescriptor(hash Hash, size uint64) *Descriptor {
	return &Descriptor{Hash: hash, Size: size, Location: wimtypes.BlobLocationNoData}
}

// NewUnhashedDescriptor builds a Descriptor for a stream whose content has
// not yet been hashed (e.g. freshly added from an on-disk file), per the
// invariant in spec.md §3: "an unhashed blob has exactly one referring
// stream".
func NewUnhashedDescriptor(owner InodeKey, streamID uint32, size uint64) *Descriptor {
	return &Descriptor{
		Unhashed:         true,
		UnhashedOwner:    owner,
		UnhashedStreamID: streamID,
		Size:             size,
		Location:         wimtypes.BlobLocationNoData,
	}
}
