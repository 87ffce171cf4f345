package blobtable

import (
	"github.com/openwim/wimcore/internal/wimtypes"
)

// Table is a BlobTable: a multiset of Descriptors keyed by digest, plus a
// separate list of not-yet-hashed descriptors (spec.md §3, §4.7). It
// performs no concurrency control of its own (spec.md §5).
type Table struct {
	byHash   map[Hash]*Descriptor
	unhashed []*Descriptor
}

// New creates an empty blob table.
func New() *Table {
	return &Table{byHash: make(map[Hash]*Descriptor)}
}

// Insert adds a hashed descriptor, keyed by its digest. Inserting a second
// descriptor with the same digest replaces the first, matching the
// invariant that "a hashed blob in a BlobTable is unique by digest"
// (spec.md §3).
func (t *Table) Insert(d *Descriptor) {
	if d.Unhashed {
		t.unhashed = append(t.unhashed, d)
		return
	}
	t.byHash[d.Hash] = d
}

// Lookup returns the descriptor for the given digest, or nil.
func (t *Table) Lookup(hash Hash) *Descriptor {
	return t.byHash[hash]
}

// Remove deletes the descriptor for the given digest.
func (t *Table) Remove(hash Hash) {
	delete(t.byHash, hash)
}

// RemoveUnhashed removes a specific unhashed descriptor from the side list
// (e.g. once it has been hashed and reinserted via Insert).
func (t *Table) RemoveUnhashed(d *Descriptor) {
	for i, u := range t.unhashed {
		if u == d {
			t.unhashed = append(t.unhashed[:i], t.unhashed[i+1:]...)
			return
		}
	}
}

// ForEach iterates all hashed descriptors in unspecified order.
func (t *Table) ForEach(fn func(*Descriptor)) {
	for _, d := range t.byHash {
		fn(d)
	}
}

// ForEachUnhashed iterates all unhashed descriptors.
func (t *Table) ForEachUnhashed(fn func(*Descriptor)) {
	for _, d := range t.unhashed {
		fn(d)
	}
}

// Len returns the number of hashed descriptors.
func (t *Table) Len() int { return len(t.byHash) }

// AdjustRefcnt adds delta (which may be negative) to a descriptor's refcnt.
// When the refcnt drops to zero the descriptor is removed from the table and
// freed, per spec.md §4.7: "A blob whose refcnt drops to zero is removed from
// the table and freed."
func (t *Table) AdjustRefcnt(d *Descriptor, delta int32) {
	if d == nil {
		return
	}
	if delta < 0 && uint32(-delta) > d.Refcnt {
		d.Refcnt = 0
	} else {
		d.Refcnt = uint32(int32(d.Refcnt) + delta)
	}
	if d.Refcnt == 0 && !d.Unhashed {
		t.Remove(d.Hash)
	}
}

// AdjustOutRefcnt adds delta to a descriptor's planner-scoped OutRefcnt
// (spec.md §4.10 phase 6: "the FIRST time a blob is referenced it is
// appended to a blob list; subsequent references grow an in-blob target
// array"). Unlike AdjustRefcnt, a descriptor is never removed as a result:
// OutRefcnt tracks extraction demand, not the blob's lifetime.
func (t *Table) AdjustOutRefcnt(d *Descriptor, delta int32) {
	if d == nil {
		return
	}
	if delta < 0 && uint32(-delta) > d.OutRefcnt {
		d.OutRefcnt = 0
	} else {
		d.OutRefcnt = uint32(int32(d.OutRefcnt) + delta)
	}
}

// ResetOutRefcnts zeroes OutRefcnt on every hashed descriptor, so a fresh
// extraction plan starts from a clean count.
func (t *Table) ResetOutRefcnts() {
	for _, d := range t.byHash {
		d.OutRefcnt = 0
	}
	for _, d := range t.unhashed {
		d.OutRefcnt = 0
	}
}

// ForceResolve synthesizes an empty descriptor for a requested hash and
// inserts it into the table, used when reading from a pipe where the blob
// table is not yet populated (spec.md §4.7 "Force-resolving").
func (t *Table) ForceResolve(hash Hash) *Descriptor {
	if d := t.Lookup(hash); d != nil {
		return d
	}
	d := &Descriptor{Hash: hash, Location: wimtypes.BlobLocationNoData}
	t.Insert(d)
	return d
}
