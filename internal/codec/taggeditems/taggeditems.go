// Package taggeditems implements the tagged-item codec (spec.md §4.6, §6):
// typed, 8-byte-aligned variable-length items appended to a dentry record's
// trailing bytes, grounded on wimlib's tagged_items.c.
package taggeditems

import (
	"encoding/binary"

	"github.com/openwim/wimcore/internal/wimtypes"
)

// Item is a single decoded tagged item.
type Item struct {
	Tag     wimtypes.TaggedItemTag
	Payload []byte
}

func align8(n int) int { return (n + 7) &^ 7 }

// Decode parses a sequence of tagged items from buf (spec.md §4.6):
//
//	u32 tag; u32 length; u8[length] payload; -- padded to 8 bytes --
//
// Malformed trailing data (a header that doesn't fit) stops decoding and
// returns what was parsed so far, matching wimlib's tolerant treatment of
// extra inode data.
func Decode(buf []byte) []Item {
	var items []Item
	off := 0
	for off+8 <= len(buf) {
		tag := binary.LittleEndian.Uint32(buf[off:])
		length := binary.LittleEndian.Uint32(buf[off+4:])
		off += 8
		if int(length) < 0 || off+int(length) > len(buf) {
			break
		}
		payload := make([]byte, length)
		copy(payload, buf[off:off+int(length)])
		items = append(items, Item{Tag: wimtypes.TaggedItemTag(tag), Payload: payload})
		off += align8(int(length))
	}
	return items
}

// Encode serializes items back into their on-disk representation.
func Encode(items []Item) []byte {
	var total int
	for _, it := range items {
		total += 8 + align8(len(it.Payload))
	}
	buf := make([]byte, total)
	off := 0
	for _, it := range items {
		binary.LittleEndian.PutUint32(buf[off:], uint32(it.Tag))
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(len(it.Payload)))
		off += 8
		copy(buf[off:], it.Payload)
		off += align8(len(it.Payload))
	}
	return buf
}

// Get returns the payload of the first item matching tag whose length is at
// least minLen, or (nil, false) (spec.md §4.6 "get_item").
func Get(items []Item, tag wimtypes.TaggedItemTag, minLen int) ([]byte, bool) {
	for _, it := range items {
		if it.Tag == tag && len(it.Payload) >= minLen {
			return it.Payload, true
		}
	}
	return nil, false
}

// Set replaces all items of the given tag with a single new item carrying
// payload (spec.md §4.6 "set_item"). Passing a nil payload removes all items
// of that tag.
func Set(items []Item, tag wimtypes.TaggedItemTag, payload []byte) []Item {
	out := items[:0:0]
	for _, it := range items {
		if it.Tag != tag {
			out = append(out, it)
		}
	}
	if payload != nil {
		out = append(out, Item{Tag: tag, Payload: payload})
	}
	return out
}

// UnixData is the decoded WimLibUnixData payload: four little-endian u32
// fields (spec.md §4.6).
type UnixData struct {
	UID  uint32
	GID  uint32
	Mode uint32
	Rdev uint32
}

// DecodeUnixData parses a UnixData payload.
func DecodeUnixData(payload []byte) (UnixData, bool) {
	if len(payload) < 16 {
		return UnixData{}, false
	}
	return UnixData{
		UID:  binary.LittleEndian.Uint32(payload[0:]),
		GID:  binary.LittleEndian.Uint32(payload[4:]),
		Mode: binary.LittleEndian.Uint32(payload[8:]),
		Rdev: binary.LittleEndian.Uint32(payload[12:]),
	}, true
}

// EncodeUnixData serializes a UnixData payload.
func EncodeUnixData(u UnixData) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], u.UID)
	binary.LittleEndian.PutUint32(buf[4:], u.GID)
	binary.LittleEndian.PutUint32(buf[8:], u.Mode)
	binary.LittleEndian.PutUint32(buf[12:], u.Rdev)
	return buf
}

// XattrEntry is one decoded extended-attribute entry in the preferred
// (DISM-compatible) Xattrs tagged-item format (spec.md §6).
type XattrEntry struct {
	Name  string
	Value []byte
	Flags uint8
}

// DecodeXattrs parses the Xattrs payload: a packed sequence of entries with
// no padding between them (spec.md §6).
//
//	u16 value_len; u8 name_len; u8 flags; char[name_len] name; u8 0x00;
//	u8[value_len] value
func DecodeXattrs(payload []byte) ([]XattrEntry, *wimtypes.WimError) {
	var entries []XattrEntry
	off := 0
	for off < len(payload) {
		if off+6 > len(payload) {
			return nil, wimtypes.NewError(wimtypes.ErrInvalidXattr, "truncated entry header")
		}
		valueLen := int(binary.LittleEndian.Uint16(payload[off:]))
		nameLen := int(payload[off+2])
		flags := payload[off+3]
		off += 4
		if nameLen < 1 || nameLen > 255 {
			return nil, wimtypes.NewError(wimtypes.ErrInvalidXattr, "invalid name length")
		}
		if off+nameLen+1+valueLen > len(payload) {
			return nil, wimtypes.NewError(wimtypes.ErrInvalidXattr, "entry overruns payload")
		}
		name := string(payload[off : off+nameLen])
		off += nameLen
		if payload[off] != 0x00 {
			return nil, wimtypes.NewError(wimtypes.ErrInvalidXattr, "missing name terminator")
		}
		off++
		value := make([]byte, valueLen)
		copy(value, payload[off:off+valueLen])
		off += valueLen
		entries = append(entries, XattrEntry{Name: name, Value: value, Flags: flags})
	}
	return entries, nil
}

// EncodeXattrs serializes entries back to the packed Xattrs payload format.
func EncodeXattrs(entries []XattrEntry) ([]byte, *wimtypes.WimError) {
	var total int
	for _, e := range entries {
		if len(e.Name) < 1 || len(e.Name) > 255 {
			return nil, wimtypes.NewError(wimtypes.ErrInvalidXattr, "name length out of range")
		}
		if len(e.Value) > 65535 {
			return nil, wimtypes.NewError(wimtypes.ErrInvalidXattr, "value too large")
		}
		total += 4 + len(e.Name) + 1 + len(e.Value)
	}
	buf := make([]byte, total)
	off := 0
	for _, e := range entries {
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(e.Value)))
		buf[off+2] = byte(len(e.Name))
		buf[off+3] = e.Flags
		off += 4
		copy(buf[off:], e.Name)
		off += len(e.Name)
		buf[off] = 0x00
		off++
		copy(buf[off:], e.Value)
		off += len(e.Value)
	}
	return buf, nil
}
