// Package wiminterfaces defines the narrow reader/writer contracts that
// internal/extract programs against, so that package can
// depend on behavior rather than on internal/codec/* concrete types directly
// (spec.md §2 module map). Grounds on the teacher's
// internal/interfaces/file_system_objects.go layering of parser/codec
// contracts ahead of the managers that consume them.
package wiminterfaces

import (
	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/reparse"
	"github.com/openwim/wimcore/internal/codec/security"
	"github.com/openwim/wimcore/internal/codec/taggeditems"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// DentryCodec decodes and encodes a full metadata resource: the dentry tree
// plus the SecurityData it references (spec.md §4.3).
type DentryCodec interface {
	DecodeMetadataResource(buf []byte, warn func(string)) (*wimtree.Dentry, security.Data, *wimtypes.WimError)
	EncodeMetadataResource(root *wimtree.Dentry, secData security.Data) ([]byte, *wimtypes.WimError)
}

// SecurityDataCodec decodes and encodes the SecurityData block embedded at
// the start of every metadata resource (spec.md §4.4).
type SecurityDataCodec interface {
	Decode(buf []byte) (security.Data, int, *wimtypes.WimError)
	Encode(data security.Data) []byte
}

// ReparsePointCodec decodes and encodes reparse buffers and performs rpfix
// rewriting of SYMLINK/MOUNT_POINT substitute names (spec.md §4.5).
type ReparsePointCodec interface {
	Decode(buf []byte) (reparse.Buffer, *wimtypes.WimError)
	Encode(b reparse.Buffer) ([]byte, *wimtypes.WimError)
	ParseLink(tag uint32, data []byte) (reparse.LinkReparsePoint, *wimtypes.WimError)
	Rpfix(link reparse.LinkReparsePoint, volumeNTPath string) string
}

// TaggedItemCodec decodes and encodes the variable-length tagged item list
// trailing a dentry record (spec.md §4.6).
type TaggedItemCodec interface {
	Decode(buf []byte) []taggeditems.Item
	Encode(items []taggeditems.Item) []byte
}

// FeatureSet reports which filesystem features an ExtractionBackend's target
// filesystem actually supports, so the planner's feature-check phase (spec.md
// §4.10 phase 8) can decide whether to strictly fail or degrade gracefully.
type FeatureSet struct {
	HardLinks            bool
	SymlinkReparsePoints bool
	NamedStreams         bool
	UnixData             bool
	ACLs                 bool
	CaseInsensitiveNames bool
	EncryptedFiles       bool
	EncryptedDirectories bool
}

// ExtractionBackend is the target filesystem an ExtractionPlanner drives: it
// receives one lifecycle call per planned stream and one call per planned
// directory/file's metadata, in the order the planner determines (spec.md
// §4.10 phases 9-10). Grounds on wimlib's struct apply_operations layering in
// extract.c, generalized to a Go interface instead of a C vtable of function
// pointers.
type ExtractionBackend interface {
	Features() FeatureSet

	CreateDirectory(extractionPath string, inode *wimtree.Inode) error
	CreateHardLink(extractionPath string, existingPath string) error

	BeginBlob(extractionPaths []string, blob *blobtable.Descriptor) (io ExtractionSink, err error)
	ContinueBlob(sink ExtractionSink, chunk []byte) error
	EndBlob(sink ExtractionSink) error

	ApplyMetadata(extractionPath string, dentry *wimtree.Dentry) error
}

// ExtractionSink is an open destination for one blob's bytes, as returned by
// ExtractionBackend.BeginBlob. Its concrete type is backend-defined (e.g. an
// *os.File, or a handle into a staged-file pool bounded by MAX_OPEN_FILES).
type ExtractionSink interface{}

// PatternMatcher abstracts internal/pattern's free functions behind an
// interface; pattern.Matcher implements it. No package in this module
// currently takes a PatternMatcher: pkg/wim calls internal/pattern directly.
type PatternMatcher interface {
	MatchPath(path, pat string, flags int) bool
	ExpandPattern(root *wimtree.Dentry, pat string, consume func(*wimtree.Dentry) error) error
}
