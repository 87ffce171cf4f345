package taggeditems

// Codec adapts this package's free functions to the
// wiminterfaces.TaggedItemCodec contract.
type Codec struct{}

// Decode implements wiminterfaces.TaggedItemCodec.
func (Codec) Decode(buf []byte) []Item { return Decode(buf) }

// Encode implements wiminterfaces.TaggedItemCodec.
func (Codec) Encode(items []Item) []byte { return Encode(items) }
