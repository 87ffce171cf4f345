package wimtree

import (
	"github.com/openwim/wimcore/internal/wimtypes"
)

// Inode is a file object: attributes, timestamps, security id, reparse
// fields, an ordered stream array, optional tagged items, and a list of
// aliases (spec.md §3).
type Inode struct {
	Attributes wimtypes.FileAttributes

	CreationTime   uint64
	LastAccessTime uint64
	LastWriteTime  uint64

	SecurityID int32

	ReparseTag  uint32
	RPReserved  uint16
	RPFlags     uint16
	Unknown0x54 uint32

	// Ino is the hard-link group id (not stored on-disk for reparse-point
	// files; spec.md §3).
	Ino uint64

	Streams      []*Stream
	NextStreamID uint32

	// Extra holds the raw tagged-items blob appended to this inode's
	// dentry record, decoded/encoded by internal/codec/taggeditems.
	Extra []byte

	children *childIndex

	aliasHead *Dentry
	Nlink     uint32

	// Visited is a transient flag, always cleared after use (spec.md §3
	// design notes echo this convention from the avl/hlist era).
	Visited bool

	// Extraction-scratch: set up by the planner, not persisted.
	firstExtractionAlias *Dentry
}

// NewInode allocates an inode with no streams and no aliases.
func NewInode() *Inode {
	return &Inode{SecurityID: -1}
}

// NewDirectoryInode allocates a directory inode with an empty child index.
func NewDirectoryInode() *Inode {
	in := NewInode()
	in.Attributes |= wimtypes.FileAttributeDirectory
	in.children = newChildIndex()
	return in
}

// IsDirectory reports whether the DIRECTORY attribute is set.
func (in *Inode) IsDirectory() bool { return in.Attributes.IsDirectory() }

// IsReparsePoint reports whether the REPARSE_POINT attribute is set.
func (in *Inode) IsReparsePoint() bool { return in.Attributes.IsReparsePoint() }

// IsEncrypted reports whether the ENCRYPTED attribute is set.
func (in *Inode) IsEncrypted() bool { return in.Attributes.IsEncrypted() }

// IsSymlink reports whether this is a symlink or junction reparse point.
func (in *Inode) IsSymlink() bool {
	return in.IsReparsePoint() &&
		(wimtypes.ReparseTag(in.ReparseTag) == wimtypes.ReparseTagSymlink ||
			wimtypes.ReparseTag(in.ReparseTag) == wimtypes.ReparseTagMountPoint)
}

// HasChildren reports whether this directory inode has any children.
func (in *Inode) HasChildren() bool {
	return in.children != nil && in.children.len() > 0
}

// ensureChildren lazily creates the child index; directories created via
// NewDirectoryInode already have one, but inodes built with NewInode and
// given the DIRECTORY attribute afterwards only gain one the first time a
// child is linked.
func (in *Inode) ensureChildren() *childIndex {
	if in.children == nil {
		in.children = newChildIndex()
	}
	return in.children
}

// AllocStreamID assigns and returns the next per-inode stream id.
func (in *Inode) AllocStreamID() uint32 {
	id := in.NextStreamID
	in.NextStreamID++
	return id
}

// AddStream appends a new stream to the inode, assigning it a stream id.
func (in *Inode) AddStream(s *Stream) {
	s.StreamID = in.AllocStreamID()
	in.Streams = append(in.Streams, s)
}

// UnnamedDataStream returns the inode's single unnamed Data stream, or nil.
// Invariant (spec.md §8 #4a): at most one may exist.
func (in *Inode) UnnamedDataStream() *Stream {
	for _, s := range in.Streams {
		if s.Type == StreamTypeData && s.Name.IsEmpty() {
			return s
		}
	}
	return nil
}

// ReparsePointStream returns the inode's ReparsePoint stream, or nil.
func (in *Inode) ReparsePointStream() *Stream {
	for _, s := range in.Streams {
		if s.Type == StreamTypeReparsePoint {
			return s
		}
	}
	return nil
}

// EfsrpcRawDataStream returns the inode's EfsrpcRawData stream, or nil.
func (in *Inode) EfsrpcRawDataStream() *Stream {
	for _, s := range in.Streams {
		if s.Type == StreamTypeEfsrpcRawData {
			return s
		}
	}
	return nil
}

// NamedDataStreams returns all named Data streams, in their stored order.
func (in *Inode) NamedDataStreams() []*Stream {
	var out []*Stream
	for _, s := range in.Streams {
		if s.Type == StreamTypeData && !s.Name.IsEmpty() {
			out = append(out, s)
		}
	}
	return out
}

// ForEachAlias calls fn for every dentry aliasing this inode. It is safe for
// fn to unlink the current dentry (the walk captures the next pointer before
// calling fn), matching the intrusive-list traversal idiom of spec.md §9.
func (in *Inode) ForEachAlias(fn func(*Dentry) bool) {
	d := in.aliasHead
	for d != nil {
		next := d.aliasNext
		if !fn(d) {
			return
		}
		d = next
	}
}

// addAlias links d into this inode's alias list and increments Nlink.
func (in *Inode) addAlias(d *Dentry) {
	d.Inode = in
	d.aliasPrev = nil
	d.aliasNext = in.aliasHead
	if in.aliasHead != nil {
		in.aliasHead.aliasPrev = d
	}
	in.aliasHead = d
	in.Nlink++
}

// removeAlias unlinks d from this inode's alias list and decrements Nlink.
// Returns true if Nlink dropped to zero (the inode should be freed).
func (in *Inode) removeAlias(d *Dentry) bool {
	if d.aliasPrev != nil {
		d.aliasPrev.aliasNext = d.aliasNext
	} else if in.aliasHead == d {
		in.aliasHead = d.aliasNext
	}
	if d.aliasNext != nil {
		d.aliasNext.aliasPrev = d.aliasPrev
	}
	d.aliasPrev, d.aliasNext = nil, nil
	if in.Nlink > 0 {
		in.Nlink--
	}
	return in.Nlink == 0
}

// FirstAlias returns any one alias of this inode, or nil if it has none.
func (in *Inode) FirstAlias() *Dentry { return in.aliasHead }
