package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data := Data{Descriptors: [][]byte{
		{1, 2, 3},
		{4, 5, 6, 7, 8},
		{},
	}}
	buf := Encode(data)
	require.Equal(t, 0, len(buf)%8)

	decoded, n, err := Decode(buf)
	require.Nil(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, data.Descriptors, decoded.Descriptors)
}

func TestDecodeEmptyTable(t *testing.T) {
	buf := make([]byte, 8) // total_length == 0
	decoded, n, err := Decode(buf)
	require.Nil(t, err)
	require.Equal(t, 8, n)
	require.Empty(t, decoded.Descriptors)
}

func TestResolveSecurityIDOutOfRangeResetsToNegativeOne(t *testing.T) {
	var warned string
	got := ResolveSecurityID(5, 3, func(msg string) { warned = msg })
	require.EqualValues(t, -1, got)
	require.NotEmpty(t, warned)
}

func TestResolveSecurityIDNegativeIsUntouched(t *testing.T) {
	got := ResolveSecurityID(-1, 3, func(string) { t.Fatal("should not warn") })
	require.EqualValues(t, -1, got)
}

func TestResolveSecurityIDInRange(t *testing.T) {
	got := ResolveSecurityID(2, 3, func(string) { t.Fatal("should not warn") })
	require.EqualValues(t, 2, got)
}
