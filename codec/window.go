package codec

import "fmt"

// WindowHeaderLen is the length of the set/get window parameter list header.
const WindowHeaderLen = 8

// WindowDescriptorLen is the length of a single window descriptor.
const WindowDescriptorLen = 46

// WindowLen is the total length of a one-window parameter list.
const WindowLen = WindowHeaderLen + WindowDescriptorLen

// WindowBlock wraps an 8-byte header followed by a single 46-byte window
// descriptor, following the generic SCSI-2 window parameter list layout
// with 6 vendor-reserved trailer bytes appended to the descriptor.
type WindowBlock struct {
	raw [WindowLen]byte
}

// NewWindow returns a zeroed window block with the descriptor-length byte
// of the header pre-filled, suitable as a scratch buffer before SetWindow.
func NewWindow() *WindowBlock {
	b := &WindowBlock{}
	putBE16(b.raw[6:8], WindowDescriptorLen)
	return b
}

// DecodeWindow validates the length of p and wraps it as a WindowBlock.
func DecodeWindow(p []byte) (*WindowBlock, error) {
	if len(p) != WindowLen {
		return nil, fmt.Errorf("codec: window block must be %d bytes, got %d", WindowLen, len(p))
	}
	b := &WindowBlock{}
	copy(b.raw[:], p)
	return b, nil
}

// Bytes returns the raw wire bytes.
func (b *WindowBlock) Bytes() []byte { return b.raw[:] }

// descriptor returns the 46-byte descriptor region of raw, offset past
// the 8-byte header.
func (b *WindowBlock) descriptor() []byte { return b.raw[WindowHeaderLen:] }

// XRes and YRes are the programmed optical resolution, in pixels per inch.
func (b *WindowBlock) XRes() uint16 { return be16(b.descriptor()[4:6]) }
func (b *WindowBlock) YRes() uint16 { return be16(b.descriptor()[6:8]) }

func (b *WindowBlock) SetXRes(v uint16) { putBE16(b.descriptor()[4:6], v) }
func (b *WindowBlock) SetYRes(v uint16) { putBE16(b.descriptor()[6:8], v) }

// ULX and ULY are the upper-left corner of the scan window, in
// 1/1200-inch units.
func (b *WindowBlock) ULX() uint32 { return be32(b.descriptor()[8:12]) }
func (b *WindowBlock) ULY() uint32 { return be32(b.descriptor()[12:16]) }

func (b *WindowBlock) SetULX(v uint32) { putBE32(b.descriptor()[8:12], v) }
func (b *WindowBlock) SetULY(v uint32) { putBE32(b.descriptor()[12:16], v) }

// Width and Height are the scan window extent, in 1/1200-inch units.
func (b *WindowBlock) Width() uint32  { return be32(b.descriptor()[16:20]) }
func (b *WindowBlock) Height() uint32 { return be32(b.descriptor()[20:24]) }

func (b *WindowBlock) SetWidth(v uint32)  { putBE32(b.descriptor()[16:20], v) }
func (b *WindowBlock) SetHeight(v uint32) { putBE32(b.descriptor()[20:24], v) }

// BitsPerPixel returns the wire bits-per-sample code (see BitsCodeFor).
func (b *WindowBlock) BitsPerPixel() byte { return b.descriptor()[24] }

// SetBitsPerPixel sets the wire bits-per-sample code.
func (b *WindowBlock) SetBitsPerPixel(code byte) { b.descriptor()[24] = code }

// ImageComposition selects the channel composition (e.g. RGB vs grayscale);
// vendor-private beyond that distinction, so this is carried as a raw code.
func (b *WindowBlock) ImageComposition() byte { return b.descriptor()[25] }

// SetImageComposition sets the channel composition code.
func (b *WindowBlock) SetImageComposition(v byte) { b.descriptor()[25] = v }
