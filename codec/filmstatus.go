package codec

import "fmt"

// FilmStatusLen is the length of the film status block.
const FilmStatusLen = 0x28 // 40

// Holder types reported in byte 0 of the film status block.
const (
	HolderNone     = 0
	HolderNegative = 1
	HolderSlide    = 2
)

// FilmStatusBlock is the 40-byte film status block.
type FilmStatusBlock struct {
	raw [FilmStatusLen]byte
}

// DecodeFilmStatus validates the length of p and wraps it as a FilmStatusBlock.
func DecodeFilmStatus(p []byte) (*FilmStatusBlock, error) {
	if len(p) != FilmStatusLen {
		return nil, fmt.Errorf("codec: film status block must be %d bytes, got %d", FilmStatusLen, len(p))
	}
	b := &FilmStatusBlock{}
	copy(b.raw[:], p)
	return b, nil
}

// Bytes returns the raw wire bytes.
func (b *FilmStatusBlock) Bytes() []byte { return b.raw[:] }

// HolderType returns 1 (negative strip) or 2 (slide tray), or some other
// value meaning no holder / an unrecognised holder is mounted.
func (b *FilmStatusBlock) HolderType() int { return int(b.raw[0]) }

// FrameCount returns the frame count reported by the device.
func (b *FilmStatusBlock) FrameCount() int { return int(b.raw[1]) }

// HolderPosition returns the current carriage/holder position.
func (b *FilmStatusBlock) HolderPosition() uint16 { return be16(b.raw[2:4]) }

// LastSetFrame returns the 3 packed bytes describing the last set-frame
// call's effect, preserved verbatim; semantics beyond the direction bit
// (§4.3 set_frame bit 0) are vendor-private.
func (b *FilmStatusBlock) LastSetFrame() [3]byte {
	var out [3]byte
	copy(out[:], b.raw[4:7])
	return out
}

// FocusPosition returns the focus motor position.
func (b *FilmStatusBlock) FocusPosition() byte { return b.raw[7] }

// StartPixel and LimitPixel bound the optically active scan line.
func (b *FilmStatusBlock) StartPixel() uint16 { return be16(b.raw[8:10]) }
func (b *FilmStatusBlock) LimitPixel() uint16 { return be16(b.raw[10:12]) }

// DiffsSum returns the per-channel autofocus difference sums.
func (b *FilmStatusBlock) DiffsSum() [3]uint32 {
	return [3]uint32{be32(b.raw[12:16]), be32(b.raw[16:20]), be32(b.raw[20:24])}
}

// SpeedHint returns the device's suggested scan speed.
func (b *FilmStatusBlock) SpeedHint() byte { return b.raw[24] }

// FocusBest returns the per-channel best-focus position.
func (b *FilmStatusBlock) FocusBest() [3]byte {
	return [3]byte{b.raw[25], b.raw[26], b.raw[27]}
}

// CarriageOffsets maps a 0-based frame index to the carriage offset used
// for that frame, per holder type. Index out of range returns (0, false).
var (
	negativeFrameOffsets = [6]int{600, 1080, 1558, 2038, 2516, 2996}
	slideFrameOffsets    = [4]int{552, 1330, 2110, 2883}
)

// KnownHolderType reports whether holderType is a type this driver
// recognises (negative strip or slide tray). A caller must check this
// before CarriageOffset to distinguish "no/unrecognised holder mounted"
// from "holder mounted, frame index out of range" (spec.md §8 scenarios
// 2 vs 5 map to distinct errors).
func KnownHolderType(holderType int) bool {
	return holderType == HolderNegative || holderType == HolderSlide
}

// CarriageOffset returns the carriage offset for frame index within the
// given holder type, and whether the index was in range. It returns
// (0, false) both for an unrecognised holder type and for a recognised
// holder type whose frame index is out of range; callers that must tell
// the two apart should check KnownHolderType first.
func CarriageOffset(holderType, frame int) (int, bool) {
	switch holderType {
	case HolderNegative:
		if frame < 0 || frame >= len(negativeFrameOffsets) {
			return 0, false
		}
		return negativeFrameOffsets[frame], true
	case HolderSlide:
		if frame < 0 || frame >= len(slideFrameOffsets) {
			return 0, false
		}
		return slideFrameOffsets[frame], true
	default:
		return 0, false
	}
}
