// Package wimtypes holds the on-disk constants, bit layouts and enums shared
// by the metadata-resource codec and the in-memory dentry tree. It carries no
// logic of its own, mirroring how the teacher's internal/types package holds
// pure wire-format definitions for the APFS on-disk structures.
package wimtypes

// FileAttributes mirrors the Windows FILE_ATTRIBUTE_* bitmask stored in each
// dentry record's `attributes` field (spec.md §3 Inode, §4.3).
type FileAttributes uint32

const (
	FileAttributeReadonly          FileAttributes = 0x00000001
	FileAttributeHidden            FileAttributes = 0x00000002
	FileAttributeSystem            FileAttributes = 0x00000004
	FileAttributeDirectory         FileAttributes = 0x00000010
	FileAttributeArchive           FileAttributes = 0x00000020
	FileAttributeDevice            FileAttributes = 0x00000040
	FileAttributeNormal            FileAttributes = 0x00000080
	FileAttributeTemporary         FileAttributes = 0x00000100
	FileAttributeSparseFile        FileAttributes = 0x00000200
	FileAttributeReparsePoint      FileAttributes = 0x00000400
	FileAttributeCompressed        FileAttributes = 0x00000800
	FileAttributeOffline           FileAttributes = 0x00001000
	FileAttributeNotContentIndexed FileAttributes = 0x00002000
	FileAttributeEncrypted         FileAttributes = 0x00004000
	FileAttributeVirtual           FileAttributes = 0x00010000
)

func (a FileAttributes) Has(bit FileAttributes) bool { return a&bit != 0 }

// IsDirectory reports whether the DIRECTORY bit is set.
func (a FileAttributes) IsDirectory() bool { return a.Has(FileAttributeDirectory) }

// IsReparsePoint reports whether the REPARSE_POINT bit is set.
func (a FileAttributes) IsReparsePoint() bool { return a.Has(FileAttributeReparsePoint) }

// IsEncrypted reports whether the ENCRYPTED bit is set.
func (a FileAttributes) IsEncrypted() bool { return a.Has(FileAttributeEncrypted) }

// ReparseTag identifies the semantics of a reparse point (spec.md §4.5).
type ReparseTag uint32

const (
	ReparseTagMountPoint ReparseTag = 0xA0000003
	ReparseTagSymlink    ReparseTag = 0xA000000C
	ReparseTagDedup      ReparseTag = 0x80000013
	ReparseTagWOF        ReparseTag = 0x80000017
)

// IsMicrosoft reports whether the high "owned by Microsoft" bit is set; this
// determines whether complete_reparse_point subtracts a GUID's worth of bytes
// from the blob size to recover rpdatalen (spec.md §4.5).
func (t ReparseTag) IsMicrosoft() bool { return t&0x80000000 != 0 }

// ReparseFlags are the rp_flags bits carried alongside the reparse tag.
type ReparseFlags uint16

// NotFixed indicates the link target was not rewritten (rpfixed) when the
// file was captured.
const ReparseFlagNotFixed ReparseFlags = 0x0001

// SymlinkFlags are the flags embedded in a SYMLINK reparse buffer's body.
type SymlinkFlags uint32

const SymlinkFlagRelative SymlinkFlags = 0x00000001

const (
	// GUIDSize is the size in bytes of the GUID implicitly present at the
	// front of non-Microsoft reparse blobs (spec.md §4.5).
	GUIDSize = 16

	// ReparseBufferMaxSize bounds the total size of a reparse buffer,
	// header included (spec.md §4.5).
	ReparseBufferMaxSize = 16 * 1024

	// MaxDirectoryDepth bounds nesting depth accepted on decode
	// (spec.md §4.3 Validation on read).
	MaxDirectoryDepth = 16384

	// DentryDiskSizePrefix is the size, in bytes, of a dentry record's
	// fixed-length prefix, up to and including the name-length fields but
	// excluding the variable-length names (spec.md §4.3).
	DentryDiskSizePrefix = 102

	// ExtraStreamEntryDiskSizePrefix is the fixed prefix size of an extra
	// stream entry, excluding its variable-length name (spec.md §4.3).
	ExtraStreamEntryDiskSizePrefix = 40

	// SHA1HashSize is the length in bytes of a blob digest.
	SHA1HashSize = 20

	// MaxOpenFiles bounds the number of simultaneously open extraction
	// targets per blob before the planner stages to a temporary file
	// (spec.md §4.10 step 9).
	MaxOpenFiles = 512
)
