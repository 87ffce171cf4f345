package dentry

import (
	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/codec/encoding"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// rawStream is the main_hash or one extra stream entry, treated uniformly
// for the purposes of stream-type inference (spec.md §4.3).
type rawStream struct {
	name encoding.Name
	hash blobtable.Hash
}

// inferStreams implements the decode-time stream-type inference procedure
// of spec.md §4.3, given the dentry's attributes, its synthetic main stream
// (from main_hash) and its extra stream entries in on-disk order.
func inferStreams(attributes wimtypes.FileAttributes, mainHash blobtable.Hash, extras []extraStreamEntry) []*wimtree.Stream {
	items := make([]rawStream, 0, 1+len(extras))
	items = append(items, rawStream{name: encoding.EmptyName, hash: mainHash})
	for _, e := range extras {
		items = append(items, rawStream{name: e.Name, hash: e.Hash})
	}

	if attributes.IsEncrypted() {
		for _, it := range items {
			if it.name.IsEmpty() && !it.hash.IsZero() {
				return []*wimtree.Stream{{Type: wimtree.StreamTypeEfsrpcRawData, Hash: it.hash}}
			}
		}
		return nil
	}

	var streams []*wimtree.Stream
	haveReparse := false
	haveUnnamedData := false
	typed := false
	for idx, it := range items {
		if !it.name.IsEmpty() {
			streams = append(streams, &wimtree.Stream{Type: wimtree.StreamTypeData, Name: it.name, Hash: it.hash})
			continue
		}
		if idx == 0 && it.hash.IsZero() {
			continue
		}
		switch {
		case attributes.IsReparsePoint() && !haveReparse:
			streams = append(streams, &wimtree.Stream{Type: wimtree.StreamTypeReparsePoint, Hash: it.hash})
			haveReparse = true
			typed = true
		case !haveUnnamedData:
			streams = append(streams, &wimtree.Stream{Type: wimtree.StreamTypeData, Hash: it.hash})
			haveUnnamedData = true
			typed = true
		default:
			// Extra unnamed stream beyond what's representable; not
			// materialized (spec.md §4.3).
		}
	}
	if !typed {
		t := wimtree.StreamTypeData
		if attributes.IsReparsePoint() {
			t = wimtree.StreamTypeReparsePoint
		}
		synthetic := &wimtree.Stream{Type: t, Hash: mainHash}
		streams = append([]*wimtree.Stream{synthetic}, streams...)
	}
	return streams
}

// encodeLayout is the result of applying the write-side layout rules of
// spec.md §4.3 to an inode's streams.
type encodeLayout struct {
	mainHash blobtable.Hash
	extras   []extraStreamEntry
}

// planStreamLayout decides, for a given (possibly-directory) inode's
// streams, whether the unnamed stream goes in main_hash or alongside the
// rest in extra stream entries (spec.md §4.3 "Writing").
func planStreamLayout(isDirectory bool, streams []*wimtree.Stream) encodeLayout {
	var unnamed *wimtree.Stream // Data or ReparsePoint, whichever is unnamed
	var reparse *wimtree.Stream
	var unnamedData *wimtree.Stream
	var named []*wimtree.Stream

	for _, s := range streams {
		switch {
		case s.Type == wimtree.StreamTypeData && isDirectory && s.Name.IsEmpty():
			// Directories never serialize their unnamed data stream.
			continue
		case s.Type == wimtree.StreamTypeData && !s.Name.IsEmpty():
			named = append(named, s)
		case s.Type == wimtree.StreamTypeReparsePoint:
			reparse = s
		case s.Type == wimtree.StreamTypeData:
			unnamedData = s
		}
	}

	switch {
	case reparse != nil && unnamedData == nil:
		unnamed = reparse
	case reparse == nil && unnamedData != nil:
		unnamed = unnamedData
	}

	if unnamed != nil && len(named) == 0 {
		return encodeLayout{mainHash: unnamed.Hash}
	}

	var extras []extraStreamEntry
	if reparse != nil {
		extras = append(extras, extraStreamEntry{Hash: reparse.Hash})
	}
	if unnamedData != nil {
		extras = append(extras, extraStreamEntry{Hash: unnamedData.Hash})
	}
	for _, s := range named {
		extras = append(extras, extraStreamEntry{Hash: s.Hash, Name: s.Name})
	}
	return encodeLayout{extras: extras}
}
