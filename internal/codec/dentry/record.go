// Package dentry implements the MetadataCodec (spec.md §4.3): decoding and
// encoding the on-disk dentry tree of a metadata resource, grounded on
// wimlib's dentry.c (read_dentry/write_dentry, read_dentry_tree/
// write_dentry_tree, calculate_subdir_offsets).
package dentry

import (
	"encoding/binary"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/encoding"
	"github.com/openwim/wimcore/internal/codec/security"
	"github.com/openwim/wimcore/internal/codec/taggeditems"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

func align8(n int) int { return (n + 7) &^ 7 }

// Fixed field byte offsets within a dentry record (spec.md §4.3).
const (
	offLength         = 0
	offAttributes     = 8
	offSecurityID     = 12
	offSubdirOffset   = 16
	offUnused         = 24 // 16 bytes
	offCreationTime   = 40
	offLastAccessTime = 48
	offLastWriteTime  = 56
	offMainHash       = 64 // 20 bytes
	offUnknown0x54    = 84
	offUnion          = 88 // 8 bytes
	offNumExtra       = 96
	offShortNameNB    = 98
	offNameNB         = 100
)

// decodedRecord holds the fixed-prefix fields of one dentry record plus its
// raw tagged-items blob and extra stream entries, before stream-type
// inference and tree assembly.
type decodedRecord struct {
	attributes      wimtypes.FileAttributes
	securityID      int32
	subdirOffset    uint64
	unused          [16]byte
	creationTime    uint64
	lastAccessTime  uint64
	lastWriteTime   uint64
	mainHash        blobtable.Hash
	unknown0x54     uint32
	reparseTag      uint32
	rpReserved      uint16
	rpFlags         uint16
	hardLinkGroupID uint64
	name            encoding.Name
	shortName       encoding.Name
	extra           []byte
	extraStreams    []extraStreamEntry
}

// decodeDentry parses the dentry record at buf[offset:], including its
// trailing extra stream entries (which lie outside `length`). It returns the
// decoded record and the total number of bytes consumed, which covers the
// record itself plus its extra stream entries, so the caller can advance
// straight to the next sibling record. A length of 0
// signals an end-of-directory marker: (nil record, 8, nil).
func decodeDentry(buf []byte, offset uint64) (*decodedRecord, uint64, *wimtypes.WimError) {
	if offset+8 > uint64(len(buf)) {
		return nil, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "dentry record header truncated")
	}
	length := binary.LittleEndian.Uint64(buf[offset:])
	if length == 0 {
		return nil, 8, nil
	}
	if length < wimtypes.DentryDiskSizePrefix {
		return nil, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "dentry record shorter than fixed prefix")
	}
	if offset+length > uint64(len(buf)) {
		return nil, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "dentry record overruns buffer")
	}
	rec := buf[offset : offset+length]

	r := &decodedRecord{
		attributes:     wimtypes.FileAttributes(binary.LittleEndian.Uint32(rec[offAttributes:])),
		securityID:     int32(binary.LittleEndian.Uint32(rec[offSecurityID:])),
		subdirOffset:   binary.LittleEndian.Uint64(rec[offSubdirOffset:]),
		creationTime:   binary.LittleEndian.Uint64(rec[offCreationTime:]),
		lastAccessTime: binary.LittleEndian.Uint64(rec[offLastAccessTime:]),
		lastWriteTime:  binary.LittleEndian.Uint64(rec[offLastWriteTime:]),
		unknown0x54:    binary.LittleEndian.Uint32(rec[offUnknown0x54:]),
	}
	copy(r.unused[:], rec[offUnused:offUnused+16])
	copy(r.mainHash[:], rec[offMainHash:offMainHash+wimtypes.SHA1HashSize])

	if r.attributes.IsReparsePoint() {
		r.reparseTag = binary.LittleEndian.Uint32(rec[offUnion:])
		r.rpReserved = binary.LittleEndian.Uint16(rec[offUnion+4:])
		r.rpFlags = binary.LittleEndian.Uint16(rec[offUnion+6:])
	} else {
		r.hardLinkGroupID = binary.LittleEndian.Uint64(rec[offUnion:])
	}

	numExtraStreams := binary.LittleEndian.Uint16(rec[offNumExtra:])
	shortNameNBytes := binary.LittleEndian.Uint16(rec[offShortNameNB:])
	nameNBytes := binary.LittleEndian.Uint16(rec[offNameNB:])
	if nameNBytes%2 != 0 || shortNameNBytes%2 != 0 {
		return nil, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "odd name length")
	}

	pos := uint64(wimtypes.DentryDiskSizePrefix)
	nameEnd := pos + uint64(nameNBytes)
	if nameNBytes != 0 {
		nameEnd += 2
	}
	if nameEnd > length {
		return nil, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "dentry name overruns record length")
	}
	name, err := encoding.NewNameFromUTF16LEBytes(rec[pos : pos+uint64(nameNBytes)])
	if err != nil {
		return nil, 0, wimtypes.WrapError(wimtypes.ErrInvalidMetadataResource, "malformed dentry name", err)
	}
	r.name = name

	pos = nameEnd
	shortEnd := pos + uint64(shortNameNBytes)
	if shortNameNBytes != 0 {
		shortEnd += 2
	}
	if shortEnd > length {
		return nil, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "dentry short name overruns record length")
	}
	shortName, err := encoding.NewNameFromUTF16LEBytes(rec[pos : pos+uint64(shortNameNBytes)])
	if err != nil {
		return nil, 0, wimtypes.WrapError(wimtypes.ErrInvalidMetadataResource, "malformed dentry short name", err)
	}
	r.shortName = shortName

	taggedStart := uint64(align8(int(shortEnd)))
	if taggedStart > length {
		taggedStart = length
	}
	r.extra = append([]byte(nil), rec[taggedStart:length]...)

	extraOff := offset + length
	r.extraStreams = make([]extraStreamEntry, 0, numExtraStreams)
	for i := uint16(0); i < numExtraStreams; i++ {
		entry, consumed, eerr := decodeExtraStreamEntry(buf, extraOff)
		if eerr != nil {
			return nil, 0, eerr
		}
		r.extraStreams = append(r.extraStreams, entry)
		extraOff += consumed
	}
	recordSpan := (extraOff - offset)
	return r, recordSpan, nil
}

// nameValid reports whether name passes the per-dentry validation rules of
// spec.md §4.3 ("Validation on read"): no embedded NUL, not "." or "..", and
// (for non-root dentries) not empty.
func nameValid(name encoding.Name, allowEmpty bool) bool {
	s := name.String()
	if !allowEmpty && s == "" {
		return false
	}
	if s == "." || s == ".." {
		return false
	}
	for _, u := range name.Units() {
		if u == 0 {
			return false
		}
	}
	return true
}

// buildInode constructs a wimtree.Inode from a decoded record, resolving its
// security_id against secData and inferring its stream list.
func buildInode(r *decodedRecord, secData security.Data, warn func(string)) *wimtree.Inode {
	in := wimtree.NewInode()
	in.Attributes = r.attributes
	in.CreationTime = r.creationTime
	in.LastAccessTime = r.lastAccessTime
	in.LastWriteTime = r.lastWriteTime
	in.SecurityID = security.ResolveSecurityID(r.securityID, len(secData.Descriptors), warn)
	in.ReparseTag = r.reparseTag
	in.RPReserved = r.rpReserved
	in.RPFlags = r.rpFlags
	in.Unknown0x54 = r.unknown0x54
	if !r.attributes.IsReparsePoint() {
		in.Ino = r.hardLinkGroupID
	}
	in.Extra = r.extra
	if r.attributes.IsDirectory() {
		in = withDirectoryChildren(in)
	}
	for _, s := range inferStreams(r.attributes, r.mainHash, r.extraStreams) {
		in.AddStream(s)
	}
	return in
}

// withDirectoryChildren rebuilds a decoded directory inode through
// NewDirectoryInode, so it carries a child index from the start (AddChild
// would otherwise create one lazily on the first link).
func withDirectoryChildren(in *wimtree.Inode) *wimtree.Inode {
	dir := wimtree.NewDirectoryInode()
	dir.Attributes = in.Attributes
	dir.CreationTime = in.CreationTime
	dir.LastAccessTime = in.LastAccessTime
	dir.LastWriteTime = in.LastWriteTime
	dir.SecurityID = in.SecurityID
	dir.ReparseTag = in.ReparseTag
	dir.RPReserved = in.RPReserved
	dir.RPFlags = in.RPFlags
	dir.Unknown0x54 = in.Unknown0x54
	dir.Ino = in.Ino
	dir.Extra = in.Extra
	return dir
}

// encodeDentryRecord serializes one dentry's fixed-prefix record, its name
// pair and tagged items, and appends its extra stream entries (if any)
// immediately after — mirroring wimlib's write_dentry, which writes a
// dentry's own extra streams as part of emitting that one dentry (spec.md
// §4.3 "Writing"). d.SubdirOffset must already hold its final value.
func encodeDentryRecord(d *wimtree.Dentry, taggedItems []byte) []byte {
	in := d.Inode
	layout := planStreamLayout(in.IsDirectory(), in.Streams)

	nameBytes := d.Name.Bytes()
	shortNameBytes := d.ShortName.Bytes()

	prefixEnd := wimtypes.DentryDiskSizePrefix
	nameField := len(nameBytes)
	if nameField != 0 {
		nameField += 2
	}
	shortField := len(shortNameBytes)
	if shortField != 0 {
		shortField += 2
	}
	taggedStart := align8(prefixEnd + nameField + shortField)
	length := align8(taggedStart + len(taggedItems))

	buf := make([]byte, length)
	binary.LittleEndian.PutUint64(buf[offLength:], uint64(length))
	binary.LittleEndian.PutUint32(buf[offAttributes:], uint32(in.Attributes))
	binary.LittleEndian.PutUint32(buf[offSecurityID:], uint32(in.SecurityID))
	binary.LittleEndian.PutUint64(buf[offSubdirOffset:], d.SubdirOffset)
	copy(buf[offUnused:offUnused+16], d.ReservedUnused[:])
	binary.LittleEndian.PutUint64(buf[offCreationTime:], in.CreationTime)
	binary.LittleEndian.PutUint64(buf[offLastAccessTime:], in.LastAccessTime)
	binary.LittleEndian.PutUint64(buf[offLastWriteTime:], in.LastWriteTime)
	copy(buf[offMainHash:offMainHash+wimtypes.SHA1HashSize], layout.mainHash[:])
	binary.LittleEndian.PutUint32(buf[offUnknown0x54:], in.Unknown0x54)

	if in.IsReparsePoint() {
		binary.LittleEndian.PutUint32(buf[offUnion:], in.ReparseTag)
		binary.LittleEndian.PutUint16(buf[offUnion+4:], in.RPReserved)
		binary.LittleEndian.PutUint16(buf[offUnion+6:], in.RPFlags)
	} else {
		hardLinkGroupID := in.Ino
		if in.Nlink == 1 {
			hardLinkGroupID = 0
		}
		binary.LittleEndian.PutUint64(buf[offUnion:], hardLinkGroupID)
	}

	binary.LittleEndian.PutUint16(buf[offNumExtra:], uint16(len(layout.extras)))
	binary.LittleEndian.PutUint16(buf[offShortNameNB:], uint16(len(shortNameBytes)))
	binary.LittleEndian.PutUint16(buf[offNameNB:], uint16(len(nameBytes)))

	pos := prefixEnd
	copy(buf[pos:], nameBytes)
	pos += len(nameBytes)
	if len(nameBytes) != 0 {
		pos += 2 // terminator already zero
	}
	copy(buf[pos:], shortNameBytes)
	pos += len(shortNameBytes)
	if len(shortNameBytes) != 0 {
		pos += 2
	}
	copy(buf[taggedStart:], taggedItems)

	out := make([]byte, 0, length+extraStreamsSize(layout.extras))
	out = append(out, buf...)
	for _, e := range layout.extras {
		out = append(out, encodeExtraStreamEntry(e)...)
	}
	return out
}

func extraStreamsSize(extras []extraStreamEntry) int {
	total := 0
	for _, e := range extras {
		total += len(encodeExtraStreamEntry(e))
	}
	return total
}

// DentryOutTotalLength computes the exact on-disk byte span a single dentry
// (its record plus its own extra stream entries, but NOT its children) will
// occupy when encoded, matching wimlib's dentry_out_total_length (spec.md
// §4.3). It is used by CalculateSubdirOffsets and must stay in lockstep with
// encodeDentryRecord's actual output size.
func DentryOutTotalLength(d *wimtree.Dentry) uint64 {
	taggedItems := taggeditems.Encode(nil)
	if d.Inode.Extra != nil {
		taggedItems = d.Inode.Extra
	}
	return uint64(len(encodeDentryRecord(d, taggedItems)))
}
