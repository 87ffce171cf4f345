package dentry

import (
	"github.com/openwim/wimcore/internal/codec/security"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// DecodeMetadataResource decodes a full uncompressed metadata resource
// buffer: [SecurityData][Root dentry record][End-of-dir marker][children...]
// (spec.md §4.3 opening layout).
func DecodeMetadataResource(buf []byte, warn func(string)) (*wimtree.Dentry, security.Data, *wimtypes.WimError) {
	secData, secLen, serr := security.Decode(buf)
	if serr != nil {
		return nil, security.Data{}, serr
	}
	root, derr := ReadDentryTree(buf, uint64(secLen), secData, warn)
	if derr != nil {
		return nil, security.Data{}, derr
	}
	return root, secData, nil
}

// EncodeMetadataResource serializes root's dentry tree together with
// secData back into a full metadata resource buffer, computing subdir
// offsets starting right after the security data and the root record's own
// end-of-directory marker (spec.md §4.3 "Subdir offsets").
func EncodeMetadataResource(root *wimtree.Dentry, secData security.Data) ([]byte, *wimtypes.WimError) {
	assignHardLinkGroupIDs(root)

	secBytes := security.Encode(secData)
	secOffset := uint64(len(secBytes))

	// Per spec.md §4.3 "Subdir offsets", the pass starts from
	// security_data length + length(root dentry record) + 8: root's own
	// children begin right after root's record and its end-of-directory
	// marker, both of which precede the recursive pass.
	childStart := secOffset + DentryOutTotalLength(root) + 8
	CalculateSubdirOffsets(root, childStart)

	treeSize := EncodedSize(root)
	buf := make([]byte, secOffset+treeSize)
	copy(buf, secBytes)
	if err := WriteDentryTree(root, buf[secOffset:]); err != nil {
		return nil, err
	}
	return buf, nil
}
