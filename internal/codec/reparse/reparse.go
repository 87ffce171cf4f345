// Package reparse implements the ReparsePoint buffer codec and "rpfix"
// absolute-target rewriting (spec.md §4.5), grounded on wimlib's reparse.c.
package reparse

import (
	"encoding/binary"
	"strings"

	"github.com/openwim/wimcore/internal/wimtypes"
)

// headerSize is the fixed 8-byte reparse buffer header: u32 tag, u16
// rpdatalen, u16 reserved.
const headerSize = 8

// Buffer is a decoded reparse point buffer (spec.md §4.5).
type Buffer struct {
	Tag      uint32
	Reserved uint16
	Data     []byte
}

// Decode parses a complete reparse buffer (header + data).
func Decode(buf []byte) (Buffer, *wimtypes.WimError) {
	if len(buf) < headerSize {
		return Buffer{}, wimtypes.NewError(wimtypes.ErrInvalidReparseData, "buffer shorter than header")
	}
	tag := binary.LittleEndian.Uint32(buf[0:])
	rpdatalen := binary.LittleEndian.Uint16(buf[4:])
	reserved := binary.LittleEndian.Uint16(buf[6:])
	if headerSize+int(rpdatalen) > len(buf) {
		return Buffer{}, wimtypes.NewError(wimtypes.ErrInvalidReparseData, "rpdatalen overruns buffer")
	}
	data := append([]byte(nil), buf[headerSize:headerSize+int(rpdatalen)]...)
	return Buffer{Tag: tag, Reserved: reserved, Data: data}, nil
}

// Encode serializes a reparse buffer back to its on-disk form.
func Encode(b Buffer) ([]byte, *wimtypes.WimError) {
	total := headerSize + len(b.Data)
	if total > wimtypes.ReparseBufferMaxSize {
		return nil, wimtypes.NewError(wimtypes.ErrInvalidReparseData, "reparse buffer exceeds maximum size")
	}
	if len(b.Data) > 0xFFFF {
		return nil, wimtypes.NewError(wimtypes.ErrInvalidReparseData, "reparse data too large for rpdatalen field")
	}
	out := make([]byte, total)
	binary.LittleEndian.PutUint32(out[0:], b.Tag)
	binary.LittleEndian.PutUint16(out[4:], uint16(len(b.Data)))
	binary.LittleEndian.PutUint16(out[6:], b.Reserved)
	copy(out[headerSize:], b.Data)
	return out, nil
}

// CompleteReparsePoint reconstructs a full reparse buffer from an inode's
// reparse fields and the raw bytes of its blob, reversing the fact that only
// reparse *data* is stored in a WIM: the tag lives in the dentry/inode. The
// returned Buffer's Data is the blob content unchanged, so Encode writes the
// full blob size as rpdatalen; no GUID's worth of bytes is subtracted for a
// tag that is not Microsoft-owned. RPDataLen computes that adjusted value,
// but this function does not apply it.
func CompleteReparsePoint(tag uint32, reserved uint16, blobContent []byte) Buffer {
	return Buffer{Tag: tag, Reserved: reserved, Data: blobContent}
}

// RPDataLen returns the header rpdatalen value that would be written for a
// blob of blobSize bytes carrying the given tag, per spec.md §4.5.
func RPDataLen(tag uint32, blobSize uint16) uint16 {
	if blobSize >= wimtypes.GUIDSize && !wimtypes.ReparseTag(tag).IsMicrosoft() {
		return blobSize - wimtypes.GUIDSize
	}
	return blobSize
}

// LinkReparsePoint is the parsed body of a SYMLINK or MOUNT_POINT reparse
// buffer (spec.md §4.5).
type LinkReparsePoint struct {
	Tag             uint32
	Flags           wimtypes.SymlinkFlags
	SubstituteName  string
	PrintName       string
}

// IsRelative reports whether the link is a relative SYMLINK (never subject
// to rpfix rewriting).
func (l LinkReparsePoint) IsRelative() bool {
	return l.Tag == uint32(wimtypes.ReparseTagSymlink) && l.Flags&wimtypes.SymlinkFlagRelative != 0
}

// ParseLink decodes the SYMLINK/MOUNT_POINT-specific body that follows the
// generic 8-byte reparse header (spec.md §4.5).
func ParseLink(tag uint32, data []byte) (LinkReparsePoint, *wimtypes.WimError) {
	if tag != uint32(wimtypes.ReparseTagSymlink) && tag != uint32(wimtypes.ReparseTagMountPoint) {
		return LinkReparsePoint{}, wimtypes.NewError(wimtypes.ErrInvalidReparseData, "not a symlink or junction reparse tag")
	}
	fixedLen := 8
	if tag == uint32(wimtypes.ReparseTagSymlink) {
		fixedLen = 12
	}
	if len(data) < fixedLen {
		return LinkReparsePoint{}, wimtypes.NewError(wimtypes.ErrInvalidReparseData, "link reparse body truncated")
	}
	subOff := binary.LittleEndian.Uint16(data[0:])
	subLen := binary.LittleEndian.Uint16(data[2:])
	printOff := binary.LittleEndian.Uint16(data[4:])
	printLen := binary.LittleEndian.Uint16(data[6:])
	var flags wimtypes.SymlinkFlags
	nameData := data[8:]
	if tag == uint32(wimtypes.ReparseTagSymlink) {
		flags = wimtypes.SymlinkFlags(binary.LittleEndian.Uint32(data[8:]))
		nameData = data[12:]
	}
	sub, err := decodeUTF16Field(nameData, subOff, subLen)
	if err != nil {
		return LinkReparsePoint{}, err
	}
	print, err := decodeUTF16Field(nameData, printOff, printLen)
	if err != nil {
		return LinkReparsePoint{}, err
	}
	return LinkReparsePoint{Tag: tag, Flags: flags, SubstituteName: sub, PrintName: print}, nil
}

func decodeUTF16Field(nameData []byte, off, length uint16) (string, *wimtypes.WimError) {
	if int(off)+int(length) > len(nameData) {
		return "", wimtypes.NewError(wimtypes.ErrInvalidReparseData, "link name field overruns buffer")
	}
	raw := nameData[off : off+length]
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	out := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		out = append(out, rune(units[i]))
	}
	return string(out), nil
}

// NT path prefixes stripped/reprefixed by rpfix rewriting (spec.md §4.5).
var ntPrefixes = []string{`\??\`, `\DosDevices\`, `\Device\`}

// StripNTPrefix removes a leading NT prefix and the device name that follows
// it from an absolute substitute name, returning the device-relative
// remainder and true, or ("", false) if no recognized prefix was found
// (spec.md §4.5 "rpfix" rewriting, capture side).
func StripNTPrefix(substituteName string) (string, bool) {
	for _, prefix := range ntPrefixes {
		if !strings.HasPrefix(substituteName, prefix) {
			continue
		}
		rest := substituteName[len(prefix):]
		// The device name is the first path component; what follows
		// (including its separator) is the device-relative path.
		if i := strings.IndexByte(rest, '\\'); i >= 0 {
			return rest[i:], true
		}
		return "", true
	}
	return "", false
}

// ReprefixWithVolume re-prefixes a device-relative path with the NT path of
// the target volume root on extraction, avoiding a doubled separator
// (spec.md §4.5).
func ReprefixWithVolume(volumeNTPath, deviceRelativePath string) string {
	volumeNTPath = strings.TrimRight(volumeNTPath, `\`)
	if deviceRelativePath == "" {
		return volumeNTPath
	}
	if strings.HasPrefix(deviceRelativePath, `\`) {
		return volumeNTPath + deviceRelativePath
	}
	return volumeNTPath + `\` + deviceRelativePath
}

// PrintName derives the human-facing print name for a (possibly rpfixed)
// substitute name, stripping the leading "\??\" NT prefix when present
// (spec.md §4.5 S4: "the \??\ prefix stripped in the print name"). Other NT
// prefixes are left as-is since only "\??\" is meant for display.
func PrintName(substituteName string) string {
	return strings.TrimPrefix(substituteName, `\??\`)
}

// Rpfix rewrites an absolute, non-relative link's substitute name into the
// equivalent path under volumeNTPath, replacing its recognized NT prefix and
// device component. Relative
// symlinks and names lacking a recognized NT prefix are returned unchanged
// (spec.md §4.5: "Relative symlinks...are never rewritten"). A substitute
// name already rooted at volumeNTPath is left as-is, so a second rpfix pass
// with the same target is a no-op (spec.md §8 invariant #10).
func Rpfix(link LinkReparsePoint, volumeNTPath string) string {
	if link.IsRelative() {
		return link.SubstituteName
	}
	target := strings.TrimRight(volumeNTPath, `\`)
	if strings.HasPrefix(link.SubstituteName, target) {
		return link.SubstituteName
	}
	rel, ok := StripNTPrefix(link.SubstituteName)
	if !ok {
		return link.SubstituteName
	}
	return ReprefixWithVolume(volumeNTPath, rel)
}
