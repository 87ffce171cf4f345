package blobtable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func hashOf(b byte) Hash {
	var h Hash
	h[0] = b
	return h
}

func TestInsertLookupRemove(t *testing.T) {
	tbl := New()
	d := NewHashedDescriptor(hashOf(1), 42)
	tbl.Insert(d)

	require.Equal(t, d, tbl.Lookup(hashOf(1)))
	require.Equal(t, 1, tbl.Len())

	tbl.Remove(hashOf(1))
	require.Nil(t, tbl.Lookup(hashOf(1)))
	require.Equal(t, 0, tbl.Len())
}

func TestAdjustRefcntFreesAtZero(t *testing.T) {
	tbl := New()
	d := NewHashedDescriptor(hashOf(2), 7)
	d.Refcnt = 2
	tbl.Insert(d)

	tbl.AdjustRefcnt(d, -1)
	require.NotNil(t, tbl.Lookup(hashOf(2)))
	require.Equal(t, uint32(1), d.Refcnt)

	tbl.AdjustRefcnt(d, -1)
	require.Nil(t, tbl.Lookup(hashOf(2)))
	require.Equal(t, uint32(0), d.Refcnt)
}

func TestForceResolveIsIdempotent(t *testing.T) {
	tbl := New()
	d1 := tbl.ForceResolve(hashOf(3))
	d2 := tbl.ForceResolve(hashOf(3))
	require.Same(t, d1, d2)
}

func TestUnhashedSideList(t *testing.T) {
	tbl := New()
	d := NewUnhashedDescriptor("owner", 1, 10)
	tbl.Insert(d)

	count := 0
	tbl.ForEachUnhashed(func(*Descriptor) { count++ })
	require.Equal(t, 1, count)

	tbl.RemoveUnhashed(d)
	count = 0
	tbl.ForEachUnhashed(func(*Descriptor) { count++ })
	require.Equal(t, 0, count)
}
