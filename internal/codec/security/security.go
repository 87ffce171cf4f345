// Package security implements the SecurityData codec (spec.md §4.4):
// the table of security descriptors referenced by dentry records'
// security_id field, grounded on wimlib's security.c.
package security

import (
	"encoding/binary"

	"github.com/openwim/wimcore/internal/wimtypes"
)

// Data is a decoded SecurityData table: an ordered list of raw security
// descriptors, indexed by position (spec.md §4.4).
type Data struct {
	Descriptors [][]byte
}

func align8(n int) int { return (n + 7) &^ 7 }

// Decode parses a SecurityData table from the front of buf, returning the
// table and the number of bytes consumed.
//
//	u32 total_length; u32 num_entries; u64[num_entries] sizes;
//	concatenation of descriptors; -- 8-byte pad --
//
// total_length == 0 means no entries, with only the 8-byte header present.
func Decode(buf []byte) (Data, int, *wimtypes.WimError) {
	if len(buf) < 8 {
		return Data{}, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "security data header truncated")
	}
	totalLength := binary.LittleEndian.Uint32(buf[0:])
	numEntries := binary.LittleEndian.Uint32(buf[4:])
	if totalLength == 0 {
		return Data{}, 8, nil
	}
	if uint64(totalLength) > uint64(len(buf)) {
		return Data{}, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "security data total_length exceeds buffer")
	}
	sizesOff := 8
	sizesEnd := sizesOff + int(numEntries)*8
	if sizesEnd > int(totalLength) {
		return Data{}, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "security data size table overruns total_length")
	}
	sizes := make([]uint64, numEntries)
	for i := range sizes {
		sizes[i] = binary.LittleEndian.Uint64(buf[sizesOff+8*i:])
	}
	descs := make([][]byte, numEntries)
	off := sizesEnd
	for i, sz := range sizes {
		if off+int(sz) > int(totalLength) {
			return Data{}, 0, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "security descriptor overruns total_length")
		}
		d := make([]byte, sz)
		copy(d, buf[off:off+int(sz)])
		descs[i] = d
		off += int(sz)
	}
	return Data{Descriptors: descs}, align8(int(totalLength)), nil
}

// Encode serializes the table back to its on-disk form, 8-byte padded.
func Encode(d Data) []byte {
	if len(d.Descriptors) == 0 {
		return make([]byte, 8)
	}
	sizesLen := len(d.Descriptors) * 8
	total := 8 + sizesLen
	for _, desc := range d.Descriptors {
		total += len(desc)
	}
	padded := align8(total)
	buf := make([]byte, padded)
	binary.LittleEndian.PutUint32(buf[0:], uint32(total))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(d.Descriptors)))
	off := 8
	for _, desc := range d.Descriptors {
		binary.LittleEndian.PutUint64(buf[off:], uint64(len(desc)))
		off += 8
	}
	for _, desc := range d.Descriptors {
		copy(buf[off:], desc)
		off += len(desc)
	}
	return buf
}

// ResolveSecurityID clamps an inode's stored security_id against the table's
// bounds, resetting out-of-range (but non-negative) ids to -1 with a warning
// (spec.md §4.4).
func ResolveSecurityID(id int32, numEntries int, warn func(string)) int32 {
	if id >= 0 && int(id) >= numEntries {
		if warn != nil {
			warn("security_id out of range; resetting to -1")
		}
		return -1
	}
	return id
}
