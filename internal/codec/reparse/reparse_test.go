package reparse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openwim/wimcore/internal/wimtypes"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := Buffer{Tag: uint32(wimtypes.ReparseTagSymlink), Reserved: 0, Data: []byte("some reparse payload")}
	encoded, werr := Encode(b)
	require.Nil(t, werr)

	decoded, werr := Decode(encoded)
	require.Nil(t, werr)
	require.Equal(t, b.Tag, decoded.Tag)
	require.Equal(t, b.Data, decoded.Data)
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	_, werr := Decode([]byte{1, 2, 3})
	require.NotNil(t, werr)
}

func TestDecodeRejectsOverrunningRPDataLen(t *testing.T) {
	buf := make([]byte, headerSize)
	buf[4] = 0xFF // rpdatalen far larger than the (empty) remaining buffer
	buf[5] = 0xFF
	_, werr := Decode(buf)
	require.NotNil(t, werr)
}

func TestRPDataLenSubtractsGUIDForNonMicrosoftTag(t *testing.T) {
	const nonMicrosoftTag = 0x00000001 // high bit clear => not Microsoft-owned
	require.EqualValues(t, 100-wimtypes.GUIDSize, RPDataLen(nonMicrosoftTag, 100))
}

func TestRPDataLenLeavesMicrosoftTagUnchanged(t *testing.T) {
	require.EqualValues(t, 100, RPDataLen(uint32(wimtypes.ReparseTagSymlink), 100))
}

func TestStripNTPrefixRecognizedPrefixes(t *testing.T) {
	rel, ok := StripNTPrefix(`\??\C:\Users\Public`)
	require.True(t, ok)
	require.Equal(t, `\Users\Public`, rel)
}

func TestStripNTPrefixUnrecognized(t *testing.T) {
	_, ok := StripNTPrefix(`C:\Users\Public`)
	require.False(t, ok)
}

func TestRpfixIdempotentWithSameTargetPrefix(t *testing.T) {
	link := LinkReparsePoint{
		Tag:            uint32(wimtypes.ReparseTagMountPoint),
		SubstituteName: `\??\C:\Users\Public`,
	}
	once := Rpfix(link, `\??\D:\out`)
	twiceLink := link
	twiceLink.SubstituteName = once
	twice := Rpfix(twiceLink, `\??\D:\out`)
	require.Equal(t, once, twice)
}

func TestRpfixNeverRewritesRelativeSymlinks(t *testing.T) {
	link := LinkReparsePoint{
		Tag:            uint32(wimtypes.ReparseTagSymlink),
		Flags:          wimtypes.SymlinkFlagRelative,
		SubstituteName: `subdir\target`,
	}
	require.Equal(t, link.SubstituteName, Rpfix(link, `\??\D:\out`))
}

// TestScenarioS4MountPointRpfixAndPrintName implements spec.md §8 scenario S4:
// a MOUNT_POINT reparse point captured under "\??\C:\Users\Public" and
// extracted to a target whose NT path is "\??\D:\out" must resolve to
// substitute name "\??\D:\out\Users\Public" and print name
// "D:\out\Users\Public".
func TestScenarioS4MountPointRpfixAndPrintName(t *testing.T) {
	link := LinkReparsePoint{
		Tag:            uint32(wimtypes.ReparseTagMountPoint),
		Flags:          0, // rp_flags & NOT_FIXED == 0
		SubstituteName: `\??\C:\Users\Public`,
	}
	newSubstitute := Rpfix(link, `\??\D:\out`)
	require.Equal(t, `\??\D:\out\Users\Public`, newSubstitute)
	require.Equal(t, `D:\out\Users\Public`, PrintName(newSubstitute))
}
