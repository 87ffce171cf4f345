package reparse

import "github.com/openwim/wimcore/internal/wimtypes"

// Codec adapts this package's free functions to the
// wiminterfaces.ReparsePointCodec contract.
type Codec struct{}

// Decode implements wiminterfaces.ReparsePointCodec.
func (Codec) Decode(buf []byte) (Buffer, *wimtypes.WimError) { return Decode(buf) }

// Encode implements wiminterfaces.ReparsePointCodec.
func (Codec) Encode(b Buffer) ([]byte, *wimtypes.WimError) { return Encode(b) }

// ParseLink implements wiminterfaces.ReparsePointCodec.
func (Codec) ParseLink(tag uint32, data []byte) (LinkReparsePoint, *wimtypes.WimError) {
	return ParseLink(tag, data)
}

// Rpfix implements wiminterfaces.ReparsePointCodec.
func (Codec) Rpfix(link LinkReparsePoint, volumeNTPath string) string {
	return Rpfix(link, volumeNTPath)
}
