package taggeditems

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openwim/wimcore/internal/wimtypes"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	items := []Item{
		{Tag: wimtypes.TaggedItemObjectID, Payload: []byte{1, 2, 3}},
		{Tag: wimtypes.TaggedItemWimLibUnixData, Payload: EncodeUnixData(UnixData{UID: 1000, GID: 1000, Mode: 0755})},
	}
	buf := Encode(items)
	require.Equal(t, 0, len(buf)%8)

	decoded := Decode(buf)
	require.Len(t, decoded, 2)
	require.Equal(t, items[0].Tag, decoded[0].Tag)
	require.Equal(t, items[0].Payload, decoded[0].Payload)

	unix, ok := DecodeUnixData(decoded[1].Payload)
	require.True(t, ok)
	require.EqualValues(t, 1000, unix.UID)
	require.EqualValues(t, 0755, unix.Mode)
}

func TestSetReplacesExistingTagAndNilRemoves(t *testing.T) {
	items := []Item{{Tag: wimtypes.TaggedItemObjectID, Payload: []byte{1}}}
	items = Set(items, wimtypes.TaggedItemObjectID, []byte{2, 3})
	require.Len(t, items, 1)
	require.Equal(t, []byte{2, 3}, items[0].Payload)

	items = Set(items, wimtypes.TaggedItemObjectID, nil)
	require.Empty(t, items)
}

func TestGetRespectsMinLen(t *testing.T) {
	items := []Item{{Tag: wimtypes.TaggedItemXattrs, Payload: []byte{1, 2}}}
	_, ok := Get(items, wimtypes.TaggedItemXattrs, 4)
	require.False(t, ok)
	_, ok = Get(items, wimtypes.TaggedItemXattrs, 2)
	require.True(t, ok)
}

func TestXattrsEncodeDecodeRoundTrip(t *testing.T) {
	entries := []XattrEntry{
		{Name: "user.comment", Value: []byte("hello")},
		{Name: "user.empty", Value: nil, Flags: 1},
	}
	payload, err := EncodeXattrs(entries)
	require.Nil(t, err)

	decoded, derr := DecodeXattrs(payload)
	require.Nil(t, derr)
	require.Equal(t, entries, decoded)
}

func TestDecodeXattrsRejectsTruncatedEntry(t *testing.T) {
	_, err := DecodeXattrs([]byte{1, 2, 3})
	require.NotNil(t, err)
}
