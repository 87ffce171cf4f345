package dentry

import (
	"encoding/binary"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/encoding"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// extraStreamFixedPrefix is the size, in bytes, of an extra stream entry up
// to (but excluding) its variable-length name field: u64 length, u64
// reserved, u8[20] hash, u16 name_nbytes (spec.md §4.3).
const extraStreamFixedPrefix = 8 + 8 + wimtypes.SHA1HashSize + 2

// extraStreamEntry is one decoded "extra stream entry" record.
type extraStreamEntry struct {
	Hash blobtable.Hash
	Name encoding.Name
}

// decodeExtraStreamEntry parses one entry at buf[off:], returning it along
// with the number of bytes consumed (its own 8-byte-aligned length).
func decodeExtraStreamEntry(buf []byte, off uint64) (extraStreamEntry, uint64, *wimtypes.WimError) {
	if off+extraStreamFixedPrefix > uint64(len(buf)) {
		return extraStreamEntry{}, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "extra stream entry header truncated")
	}
	rec := buf[off:]
	length := binary.LittleEndian.Uint64(rec[0:])
	if length < wimtypes.ExtraStreamEntryDiskSizePrefix {
		return extraStreamEntry{}, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "extra stream entry length below minimum")
	}
	if off+length > uint64(len(buf)) {
		return extraStreamEntry{}, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "extra stream entry overruns buffer")
	}
	var hash blobtable.Hash
	copy(hash[:], rec[16:16+wimtypes.SHA1HashSize])
	nameNBytes := binary.LittleEndian.Uint16(rec[36:])
	nameStart := uint64(extraStreamFixedPrefix)
	nameEnd := nameStart + uint64(nameNBytes)
	if nameNBytes != 0 {
		nameEnd += 2 // terminator
	}
	if nameEnd > length {
		return extraStreamEntry{}, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "extra stream entry name overruns entry length")
	}
	name, err := encoding.NewNameFromUTF16LEBytes(rec[nameStart : nameStart+uint64(nameNBytes)])
	if err != nil {
		return extraStreamEntry{}, 0, wimtypes.WrapError(wimtypes.ErrInvalidMetadataResource, "malformed extra stream entry name", err)
	}
	return extraStreamEntry{Hash: hash, Name: name}, length, nil
}

// encodeExtraStreamEntry serializes a single entry, 8-byte padded.
func encodeExtraStreamEntry(e extraStreamEntry) []byte {
	nameBytes := e.Name.Bytes()
	size := extraStreamFixedPrefix + len(nameBytes)
	if len(nameBytes) != 0 {
		size += 2
	}
	total := align8(size)
	buf := make([]byte, total)
	binary.LittleEndian.PutUint64(buf[0:], uint64(total))
	copy(buf[16:16+wimtypes.SHA1HashSize], e.Hash[:])
	binary.LittleEndian.PutUint16(buf[36:], uint16(len(nameBytes)))
	off := extraStreamFixedPrefix
	copy(buf[off:], nameBytes)
	off += len(nameBytes)
	if len(nameBytes) != 0 {
		binary.LittleEndian.PutUint16(buf[off:], 0)
	}
	return buf
}
