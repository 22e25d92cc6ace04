package codec

import (
	"fmt"
	"strings"
)

// InquiryLen is the length of the inquiry data block.
const InquiryLen = 36

// CanonicalVendor and CanonicalProduct are the strings this backend expects
// to see in a healthy inquiry response. A mismatch is a warning, not a
// transport failure: the device still answers every other opcode the same
// way regardless of what it calls itself.
const (
	CanonicalVendor  = "CANON   "
	CanonicalProduct = "IX-40015G "
)

// InquiryBlock is the 36-byte inquiry data block: 8 reserved bytes, an
// 8-byte vendor string, a 16-byte product string, and a 4-byte revision.
type InquiryBlock struct {
	raw [InquiryLen]byte
}

// DecodeInquiry validates the length of p and wraps it as an InquiryBlock.
func DecodeInquiry(p []byte) (*InquiryBlock, error) {
	if len(p) != InquiryLen {
		return nil, fmt.Errorf("codec: inquiry block must be %d bytes, got %d", InquiryLen, len(p))
	}
	b := &InquiryBlock{}
	copy(b.raw[:], p)
	return b, nil
}

// Bytes returns the raw wire bytes.
func (b *InquiryBlock) Bytes() []byte { return b.raw[:] }

// Vendor returns the 8-byte vendor identification string.
func (b *InquiryBlock) Vendor() string { return string(b.raw[8:16]) }

// Product returns the 16-byte product identification string.
func (b *InquiryBlock) Product() string { return string(b.raw[16:32]) }

// Revision returns the 4-byte product revision string.
func (b *InquiryBlock) Revision() string { return string(b.raw[32:36]) }

// IsCanonical reports whether the vendor and product strings match what
// this backend was written against.
func (b *InquiryBlock) IsCanonical() bool {
	return strings.HasPrefix(b.Vendor(), "CANON") && strings.HasPrefix(b.Product(), "IX-40015G")
}
