package codec

import "fmt"

// LampLen is the length of the lamp data block.
const LampLen = 10

// LampBlock is the 10-byte lamp status block: visible-on flag, visible
// cumulative on-time in seconds, IR-on flag, IR cumulative on-time.
type LampBlock struct {
	raw [LampLen]byte
}

// DecodeLamp validates the length of p and wraps it as a LampBlock.
func DecodeLamp(p []byte) (*LampBlock, error) {
	if len(p) != LampLen {
		return nil, fmt.Errorf("codec: lamp block must be %d bytes, got %d", LampLen, len(p))
	}
	b := &LampBlock{}
	copy(b.raw[:], p)
	return b, nil
}

// NewLamp returns a zeroed lamp block, suitable as a scratch buffer for a
// get-lamp transport call.
func NewLamp() *LampBlock { return &LampBlock{} }

// Bytes returns the raw wire bytes.
func (b *LampBlock) Bytes() []byte { return b.raw[:] }

// VisibleOn reports whether the visible lamp is currently on.
func (b *LampBlock) VisibleOn() bool { return b.raw[0] != 0 }

// VisibleSeconds returns the cumulative on-time of the visible lamp.
func (b *LampBlock) VisibleSeconds() uint32 { return be32(b.raw[1:5]) }

// IROn reports whether the IR lamp is currently on.
func (b *LampBlock) IROn() bool { return b.raw[5] != 0 }

// IRSeconds returns the cumulative on-time of the IR lamp.
func (b *LampBlock) IRSeconds() uint32 { return be32(b.raw[6:10]) }
