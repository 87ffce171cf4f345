package security

import "github.com/openwim/wimcore/internal/wimtypes"

// Codec adapts this package's free functions to the
// wiminterfaces.SecurityDataCodec contract.
type Codec struct{}

// Decode implements wiminterfaces.SecurityDataCodec.
func (Codec) Decode(buf []byte) (Data, int, *wimtypes.WimError) { return Decode(buf) }

// Encode implements wiminterfaces.SecurityDataCodec.
func (Codec) Encode(data Data) []byte { return Encode(data) }
