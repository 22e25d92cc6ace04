package codec

import (
	"fmt"

	"github.com/nasa-jpl/fs4000scan/util"
)

// ScanModeLen is the length of the scan-mode block.
const ScanModeLen = 0x38 // 56

// NoMarginBit is set in sample_mods when margin == 0 (§4.3).
const NoMarginBit = 0x20

// noMarginBitIndex is NoMarginBit expressed as a bit position for util.SetBit.
const noMarginBitIndex = 5

// sampleModsModeMask isolates the 2-bit sample-mod mode in sample_mods.
const sampleModsModeMask = 0x03

// InMode bits-per-sample codes for the window descriptor, keyed by the
// session in_mode value.
const (
	BitsCode8  = 0x03
	BitsCode16 = 0x02
	BitsCode14 = 0x00
)

// BitsCodeFor maps a session in_mode (8, 14, or 16) to the wire bits-per-
// sample code used in the window descriptor.
func BitsCodeFor(inMode int) (byte, error) {
	switch inMode {
	case 8:
		return BitsCode8, nil
	case 16:
		return BitsCode16, nil
	case 14:
		return BitsCode14, nil
	default:
		return 0, fmt.Errorf("codec: unsupported in_mode %d", inMode)
	}
}

// ScanModeBlock is the 0x38-byte scan mode block. Layout, left to right:
// length(1) reserved(3) vendor-opaque(11) speed(1) reserved(4)
// sample_mods(1) reserved(1) a_gain[3](2 each) a_offset[3](2 each)
// shutter[3](2 each) image_mods(1) reserved(15).
type ScanModeBlock struct {
	raw [ScanModeLen]byte
}

// DecodeScanMode validates the length of p and wraps it as a ScanModeBlock.
func DecodeScanMode(p []byte) (*ScanModeBlock, error) {
	if len(p) != ScanModeLen {
		return nil, fmt.Errorf("codec: scan mode block must be %d bytes, got %d", ScanModeLen, len(p))
	}
	b := &ScanModeBlock{}
	copy(b.raw[:], p)
	return b, nil
}

// Bytes returns the raw wire bytes.
func (b *ScanModeBlock) Bytes() []byte { return b.raw[:] }

// Length returns the block's self-reported length byte.
func (b *ScanModeBlock) Length() byte { return b.raw[0] }

// Speed returns the programmed scan speed (1..=4, 1 slowest).
func (b *ScanModeBlock) Speed() byte { return b.raw[15] }

// SetSpeed sets the scan speed.
func (b *ScanModeBlock) SetSpeed(v byte) { b.raw[15] = v }

// SampleMods returns the sample-mods byte (mode bits + no-margin flag).
func (b *ScanModeBlock) SampleMods() byte { return b.raw[20] }

// SetSampleMods sets the sample-mods byte.
func (b *ScanModeBlock) SetSampleMods(v byte) { b.raw[20] = v }

// BuildSampleMods packs a sample-mod mode (0..=3) and the no-margin flag
// (set iff margin == 0) into a sample_mods byte.
func BuildSampleMods(mode byte, margin int) byte {
	v := mode & sampleModsModeMask
	return util.SetBit(v, noMarginBitIndex, margin == 0)
}

// HasNoMargin reports whether sample_mods carries the no-margin flag.
func (b *ScanModeBlock) HasNoMargin() bool {
	return util.GetBit(b.SampleMods(), noMarginBitIndex)
}

// AGain returns the per-channel analog gain.
func (b *ScanModeBlock) AGain() [3]uint16 {
	return [3]uint16{be16(b.raw[22:24]), be16(b.raw[24:26]), be16(b.raw[26:28])}
}

// SetAGain sets the per-channel analog gain.
func (b *ScanModeBlock) SetAGain(g [3]uint16) {
	putBE16(b.raw[22:24], g[0])
	putBE16(b.raw[24:26], g[1])
	putBE16(b.raw[26:28], g[2])
}

// AOffset returns the per-channel encoded analog offset (see EncodeOffset).
func (b *ScanModeBlock) AOffset() [3]uint16 {
	return [3]uint16{be16(b.raw[28:30]), be16(b.raw[30:32]), be16(b.raw[32:34])}
}

// SetAOffset sets the per-channel encoded analog offset.
func (b *ScanModeBlock) SetAOffset(o [3]uint16) {
	putBE16(b.raw[28:30], o[0])
	putBE16(b.raw[30:32], o[1])
	putBE16(b.raw[32:34], o[2])
}

// Shutter returns the per-channel shutter width.
func (b *ScanModeBlock) Shutter() [3]uint16 {
	return [3]uint16{be16(b.raw[34:36]), be16(b.raw[36:38]), be16(b.raw[38:40])}
}

// SetShutter sets the per-channel shutter width.
func (b *ScanModeBlock) SetShutter(s [3]uint16) {
	putBE16(b.raw[34:36], s[0])
	putBE16(b.raw[36:38], s[1])
	putBE16(b.raw[38:40], s[2])
}

// ImageMods returns the image-mods byte.
func (b *ScanModeBlock) ImageMods() byte { return b.raw[40] }

// SetImageMods sets the image-mods byte.
func (b *ScanModeBlock) SetImageMods(v byte) { b.raw[40] = v }

// EncodeOffset encodes a signed analog offset in -255..=255 for the CCD
// front-end (the AD9814 front-end format): clamp to range, then if
// negative, 256-value. This intentionally does not produce a sign-magnitude
// byte: a negative x lands in 257..511, which is what keeps it invertible
// (see DecodeOffset) without colliding with the 0..255 positive range.
func EncodeOffset(x int) uint16 {
	x = int(util.Clamp(float64(x), -255, 255))
	if x < 0 {
		return uint16(256 - x)
	}
	return uint16(x)
}

// DecodeOffset inverts EncodeOffset.
func DecodeOffset(v uint16) int {
	if v > 255 {
		return 256 - int(v)
	}
	return int(v)
}
