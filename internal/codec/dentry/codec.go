package dentry

import (
	"encoding/binary"

	"github.com/openwim/wimcore/internal/codec/security"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// ReadDentryTree decodes the dentry tree of a metadata resource, starting at
// rootOffset (immediately after the SecurityData block), into an in-memory
// wimtree.Dentry tree (spec.md §4.3). warn receives human-readable messages
// for every recoverable validation failure (a dentry with an invalid or
// duplicate name is discarded rather than aborting the whole decode; a
// truncated or structurally malformed record still aborts it with an error).
//
// Hard-linked files are merged into a single shared Inode as a fixup pass
// once the flat per-dentry decode is complete, grouping non-directory
// dentries by their non-zero on-disk hard_link_group_id (directories are
// never grouped: the format does not support directory hard links).
func ReadDentryTree(buf []byte, rootOffset uint64, secData security.Data, warn func(string)) (*wimtree.Dentry, *wimtypes.WimError) {
	rrec, _, err := decodeDentry(buf, rootOffset)
	if err != nil {
		return nil, err
	}
	if rrec == nil {
		return nil, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "metadata resource has no root dentry")
	}
	if !rrec.attributes.IsDirectory() {
		return nil, wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "root dentry is not a directory")
	}
	rootInode := buildInode(rrec, secData, warn)
	root := wimtree.NewDentry(wimtree.NoStreamName, rootInode) // non-empty root name is silently stripped
	root.Parent = root
	root.SubdirOffset = rrec.subdirOffset
	root.ReservedUnused = rrec.unused

	groups := make(map[uint64][]*wimtree.Dentry)
	if err := decodeChildren(buf, root, secData, 1, groups, warn); err != nil {
		return nil, err
	}
	fixupHardLinks(groups)
	return root, nil
}

func decodeChildren(buf []byte, dir *wimtree.Dentry, secData security.Data, depth int, groups map[uint64][]*wimtree.Dentry, warn func(string)) *wimtypes.WimError {
	if depth > wimtypes.MaxDirectoryDepth {
		return wimtypes.NewError(wimtypes.ErrInvalidMetadataResource, "directory nesting exceeds maximum depth")
	}
	off := dir.SubdirOffset
	if off == 0 {
		return nil
	}
	for {
		rrec, consumed, err := decodeDentry(buf, off)
		if err != nil {
			return err
		}
		if rrec == nil {
			break // end-of-directory marker
		}
		off += consumed

		if !nameValid(rrec.name, false) {
			if warn != nil {
				warn("discarding dentry with invalid name")
			}
			continue
		}

		in := buildInode(rrec, secData, warn)
		child := wimtree.NewDentry(rrec.name, in)
		child.ShortName = rrec.shortName
		child.SubdirOffset = rrec.subdirOffset
		child.ReservedUnused = rrec.unused

		if existing := wimtree.AddChild(dir, child); existing != nil {
			if warn != nil {
				warn("discarding dentry with duplicate name")
			}
			continue
		}

		if !in.IsDirectory() && rrec.hardLinkGroupID != 0 {
			groups[rrec.hardLinkGroupID] = append(groups[rrec.hardLinkGroupID], child)
		}

		if in.IsDirectory() {
			if err := decodeChildren(buf, child, secData, depth+1, groups, warn); err != nil {
				return err
			}
		}
	}
	return nil
}

// fixupHardLinks merges every group of dentries sharing a non-zero
// hard_link_group_id into a single Inode (spec.md §3 "ino: hard-link group
// id"; "nlink: number of dentries aliasing this inode").
func fixupHardLinks(groups map[uint64][]*wimtree.Dentry) {
	for _, dentries := range groups {
		if len(dentries) < 2 {
			continue
		}
		canonical := dentries[0].Inode
		for _, d := range dentries[1:] {
			wimtree.ReassignInode(d, canonical)
		}
	}
}

// assignHardLinkGroupIDs ensures every inode with more than one alias has a
// non-zero Ino before encoding, so the hard-link relationship survives a
// round trip even for inodes built in memory via NewDentryWithExistingInode
// without the caller ever touching Ino directly. New ids are allocated above
// the largest Ino already present in the tree.
func assignHardLinkGroupIDs(root *wimtree.Dentry) {
	var maxIno uint64
	seen := make(map[*wimtree.Inode]bool)
	wimtree.ForDentryInTree(root, func(d *wimtree.Dentry) bool {
		if d.Inode != nil && !seen[d.Inode] {
			seen[d.Inode] = true
			if d.Inode.Ino > maxIno {
				maxIno = d.Inode.Ino
			}
		}
		return true
	})
	next := maxIno + 1
	assigned := make(map[*wimtree.Inode]bool)
	wimtree.ForDentryInTree(root, func(d *wimtree.Dentry) bool {
		in := d.Inode
		if in == nil || assigned[in] {
			return true
		}
		assigned[in] = true
		if in.Nlink > 1 && in.Ino == 0 {
			in.Ino = next
			next++
		}
		return true
	})
}

// CalculateSubdirOffsets assigns Dentry.SubdirOffset to every directory
// dentry in the tree rooted at root. startOffset is the absolute position at
// which root's own children will begin, i.e. security_data length +
// length(root dentry record) + 8 (spec.md §4.3 "Subdir offsets"). It must
// traverse in the same pre-order as WriteDentryTree so that the offsets it
// assigns match where bytes will actually land, mirroring wimlib's
// calculate_subdir_offsets/write_dentry_tree pairing in dentry.c.
func CalculateSubdirOffsets(root *wimtree.Dentry, startOffset uint64) {
	offset := startOffset
	wimtree.ForDentryInTree(root, func(d *wimtree.Dentry) bool {
		if !d.IsDirectory() {
			d.SubdirOffset = 0
			return true
		}
		d.SubdirOffset = offset
		wimtree.ForEachChild(d, func(c *wimtree.Dentry) bool {
			offset += DentryOutTotalLength(c)
			return true
		})
		offset += 8 // end-of-directory marker
		return true
	})
}

// WriteDentryTree serializes root and every descendant into buf (which must
// already be sized to fit: use EncodedSize(root) to size it). It mirrors wimlib's write_dentry_tree/write_dir_dentries: the
// root record and its end-of-directory marker are written first, then a
// single pre-order traversal emits, for every directory dentry, its
// immediate children followed by their own end-of-directory marker.
func WriteDentryTree(root *wimtree.Dentry, buf []byte) *wimtypes.WimError {
	p := 0
	p += writeOneDentry(root, buf[p:])
	binary.LittleEndian.PutUint64(buf[p:], 0)
	p += 8

	var werr *wimtypes.WimError
	wimtree.ForDentryInTree(root, func(d *wimtree.Dentry) bool {
		if !d.IsDirectory() {
			return true
		}
		wimtree.ForEachChild(d, func(c *wimtree.Dentry) bool {
			p += writeOneDentry(c, buf[p:])
			return true
		})
		if p+8 > len(buf) {
			werr = wimtypes.NewError(wimtypes.ErrWrite, "dentry tree encoding overran its computed size")
			return false
		}
		binary.LittleEndian.PutUint64(buf[p:], 0)
		p += 8
		return true
	})
	return werr
}

func writeOneDentry(d *wimtree.Dentry, dst []byte) int {
	taggedItems := d.Inode.Extra
	encoded := encodeDentryRecord(d, taggedItems)
	copy(dst, encoded)
	return len(encoded)
}

// EncodedSize returns the total number of bytes WriteDentryTree will write
// for the tree rooted at root: its own record, its end-of-directory marker,
// and (recursively) every directory's children block plus marker. This does
// not depend on subdir_offset values, only on tree structure, so it may be
// called before or after CalculateSubdirOffsets.
func EncodedSize(root *wimtree.Dentry) uint64 {
	size := DentryOutTotalLength(root) + 8
	wimtree.ForDentryInTree(root, func(d *wimtree.Dentry) bool {
		if !d.IsDirectory() {
			return true
		}
		wimtree.ForEachChild(d, func(c *wimtree.Dentry) bool {
			size += DentryOutTotalLength(c)
			return true
		})
		size += 8
		return true
	})
	return size
}
