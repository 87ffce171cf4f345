package dentry

import (
	"github.com/openwim/wimcore/internal/codec/security"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// Codec adapts this package's free functions to the
// wiminterfaces.DentryCodec contract.
type Codec struct{}

// DecodeMetadataResource implements wiminterfaces.DentryCodec.
func (Codec) DecodeMetadataResource(buf []byte, warn func(string)) (*wimtree.Dentry, security.Data, *wimtypes.WimError) {
	return DecodeMetadataResource(buf, warn)
}

// EncodeMetadataResource implements wiminterfaces.DentryCodec.
func (Codec) EncodeMetadataResource(root *wimtree.Dentry, secData security.Data) ([]byte, *wimtypes.WimError) {
	return EncodeMetadataResource(root, secData)
}
