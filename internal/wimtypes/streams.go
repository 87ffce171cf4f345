package wimtypes

// StreamType classifies a wim_inode_stream. The on-disk format carries no
// type tag; types are inferred by the decision procedure in spec.md §4.3.
type StreamType int

const (
	StreamTypeData StreamType = iota
	StreamTypeReparsePoint
	StreamTypeEfsrpcRawData
	StreamTypeUnknown
)

func (t StreamType) String() string {
	switch t {
	case StreamTypeData:
		return "Data"
	case StreamTypeReparsePoint:
		return "ReparsePoint"
	case StreamTypeEfsrpcRawData:
		return "EfsrpcRawData"
	default:
		return "Unknown"
	}
}

// CaseSensitivityType selects the collation behavior used by path lookups
// (spec.md §4.2).
type CaseSensitivityType int

const (
	// CaseSensitivityDefault defers to the archive-wide default.
	CaseSensitivityDefault CaseSensitivityType = iota
	CaseSensitive
	CaseInsensitive
)

// TaggedItemTag identifies the kind of a tagged item appended to a dentry
// record (spec.md §6).
type TaggedItemTag uint32

const (
	TaggedItemObjectID              TaggedItemTag = 0x00000001
	TaggedItemXattrs                TaggedItemTag = 0x00000002
	TaggedItemWimLibUnixData        TaggedItemTag = 0x337DD873
	TaggedItemWimLibLinuxXattrsLeg  TaggedItemTag = 0x337DD874
)

// BlobLocation tags where a blob's bytes currently live (spec.md §3).
type BlobLocation int

const (
	BlobLocationNoData BlobLocation = iota
	BlobLocationInArchive
	BlobLocationInFileOnDisk
	BlobLocationInAttachedBuffer
	BlobLocationInStagingFile
	BlobLocationInHostFile
)
